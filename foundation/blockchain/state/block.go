package state

import (
	"context"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Result reports the outcome of offering a block to the node's chain.
// A nil Reason means the block was appended.
type Result struct {
	Block  database.Block
	Reason error
}

// Accepted reports whether the block was appended to the chain.
func (r Result) Accepted() bool {
	return r.Reason == nil
}

// String implements the Stringer interface for logging.
func (r Result) String() string {
	if r.Accepted() {
		return "accepted"
	}

	return "rejected: " + r.Reason.Error()
}

// =============================================================================

// FindNewBlock solves the puzzle on top of the current tip of the chain.
// The chain is not changed. The search runs until a solution is found or
// the context is cancelled.
func (s *State) FindNewBlock(ctx context.Context) (database.Block, error) {
	tip := s.db.LatestBlock()

	block, err := database.POW(ctx, s.nodeID, s.difficulty, tip, s.powOptions...)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: FindNewBlock: node[%d] found a new block: hash[%s]: nonce[%d]: chain[%d]", s.nodeID, block.Hash, block.Nonce, s.db.Length()+1)

	return block, nil
}

// AddBlock validates the block against the current tip and appends it when
// valid. Invalid blocks leave the chain unchanged and are reported through
// the result.
func (s *State) AddBlock(block database.Block) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.verifyBlock(block); err != nil {
		s.stats.rejected.Add(1)
		s.evHandler("state: AddBlock: node[%d]: REJECTED: blk[%s]: %s", s.nodeID, block, err)
		return Result{Block: block, Reason: err}
	}

	s.db.Append(block)
	s.stats.accepted.Add(1)
	s.evHandler("state: AddBlock: node[%d]: ACCEPTED: blk[%s]: chain[%d]", s.nodeID, block, s.db.Length())

	return Result{Block: block}
}

// VerifyBlock validates the block against this node's current tip, not the
// tip the miner saw. A block mined on a stale tip fails.
func (s *State) VerifyBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.verifyBlock(block)
}

// IsValidBlock reports whether the block extends the current tip.
func (s *State) IsValidBlock(block database.Block) bool {
	return s.VerifyBlock(block) == nil
}

// verifyBlock expects the caller to hold the lock.
func (s *State) verifyBlock(block database.Block) error {
	return block.ValidateBlock(s.db.LatestBlock(), s.difficulty)
}
