package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// QueryChainLength returns the number of blocks in the chain, genesis included.
func (s *State) QueryChainLength() int {
	return s.db.Length()
}

// QueryBlocksByNumber returns the set of blocks between the two positions,
// inclusive. A range past the tip is cut at the tip.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	latest := uint64(s.db.Length() - 1)

	if from == QueryLatest {
		from = latest
		to = from
	}
	if to == QueryLatest || to > latest {
		to = latest
	}

	var out []database.Block
	for i := from; i <= to; i++ {
		block, err := s.db.GetBlock(i)
		if err != nil {
			s.evHandler("state: QueryBlocksByNumber: getblock: ERROR: %s", err)
			return nil
		}
		out = append(out, block)
	}

	return out
}

// QueryBlocksByMiner returns the blocks in the chain mined by the specified
// node. The genesis block is never included.
func (s *State) QueryBlocksByMiner(minerID int) []database.Block {
	var out []database.Block

	s.db.ForEach(func(num uint64, block database.Block) bool {
		if num > 0 && block.MinerID == minerID {
			out = append(out, block)
		}
		return true
	})

	return out
}
