package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation solves the puzzle on top of the current tip, adds the
// block to the chain and hands it to the known peers.
func (w *Worker) runMiningOperation() {
	nodeID := w.state.RetrieveNodeID()

	w.evHandler("worker: runMiningOperation: MINING: started: node[%d]", nodeID)
	defer w.evHandler("worker: runMiningOperation: MINING: completed: node[%d]", nodeID)

	// After running a mining operation, check if a new operation should
	// be signaled again.
	defer func() {
		if w.autoMine && !w.isShutdown() {
			w.evHandler("worker: runMiningOperation: MINING: node[%d]: signal new mining operation", nodeID)
			w.SignalStartMining()
		}
	}()

	// If mining is signalled to be cancelled by the ProcessProposedBlock
	// function, this G can't terminate until it is told it can.
	var wait chan struct{}
	defer func() {
		if wait != nil {
			w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
			<-wait
			w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
		}
	}()

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Can't return from this function until these G's are complete.
	var wg sync.WaitGroup
	wg.Add(2)

	// This G exists to cancel the mining operation.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		select {
		case wait = <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: node[%d]: CANCEL: requested", nodeID)
		case <-w.shut:
			w.evHandler("worker: runMiningOperation: MINING: node[%d]: CANCEL: shutdown", nodeID)
		case <-ctx.Done():
		}
	}()

	// This G is performing the mining.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		t := time.Now()
		result, err := w.state.MineNewBlock(ctx)
		duration := time.Since(t)

		w.evHandler("worker: runMiningOperation: MINING: node[%d]: mining duration[%v]", nodeID, duration)

		if err != nil {
			switch {
			case errors.Is(err, state.ErrBlockRejected):
				w.evHandler("worker: runMiningOperation: MINING: node[%d]: WARNING: tip moved: %s", nodeID, err)
			case ctx.Err() != nil:
				w.evHandler("worker: runMiningOperation: MINING: node[%d]: CANCEL: complete", nodeID)
			default:
				w.evHandler("worker: runMiningOperation: MINING: node[%d]: ERROR: %s", nodeID, err)
			}
			return
		}

		// WOW, we mined a block. Hand the new block to the peers.
		// Log the error, but that's it.
		if err := w.state.NetSendBlockToPeers(context.Background(), result.Block); err != nil {
			w.evHandler("worker: runMiningOperation: MINING: node[%d]: NetSendBlockToPeers: WARNING: %s", nodeID, err)
		}
	}()

	// Wait for both G's to terminate.
	wg.Wait()
}
