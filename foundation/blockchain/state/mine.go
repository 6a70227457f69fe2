package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// ErrBlockRejected is returned when a block this node mined no longer
// extends the tip by the time it is added.
var ErrBlockRejected = errors.New("mined block rejected")

// =============================================================================

// MineNewBlock solves the puzzle on top of the current tip and adds the new
// block to the chain. If a peer's block extends the chain first, the mined
// block no longer validates and ErrBlockRejected is returned.
func (s *State) MineNewBlock(ctx context.Context) (Result, error) {
	s.evHandler("state: MineNewBlock: MINING: node[%d]: perform POW", s.nodeID)

	block, err := s.FindNewBlock(ctx)
	if err != nil {
		return Result{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: node[%d]: update local chain", s.nodeID)

	result := s.AddBlock(block)
	if !result.Accepted() {
		return result, fmt.Errorf("%w: %w", ErrBlockRejected, result.Reason)
	}
	s.stats.mined.Add(1)

	return result, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local chain. Any mining operation in
// flight is cancelled since it is working on a tip that is about to change.
func (s *State) ProcessProposedBlock(block database.Block) Result {
	s.evHandler("state: ProcessProposedBlock: started: node[%d]: blk[%s]", s.nodeID, block)
	defer s.evHandler("state: ProcessProposedBlock: completed: node[%d]", s.nodeID)

	// If a mining operation is running it needs to stop immediately. The G
	// executing it will not return until done is called. That allows this
	// function to complete its state changes before new mining takes place.
	done := s.RetrieveWorker().SignalCancelMining()
	defer func() {
		s.evHandler("state: ProcessProposedBlock: node[%d]: signal mining operation to terminate", s.nodeID)
		done()
	}()

	return s.AddBlock(block)
}
