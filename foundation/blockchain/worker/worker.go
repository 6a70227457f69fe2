// Package worker implements background mining for a node. A mining operation
// is cancelled as soon as a peer delivers a block, so the node never keeps
// working on a tip that is about to change.
package worker

import (
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// Option configures the worker.
type Option func(w *Worker)

// WithAutoMine makes the worker start a new mining operation as soon as the
// previous one ends.
func WithAutoMine() Option {
	return func(w *Worker) {
		w.autoMine = true
	}
}

// =============================================================================

// Worker manages the POW workflows for a node.
type Worker struct {
	state        *state.State
	autoMine     bool
	wg           sync.WaitGroup
	shut         chan struct{}
	shutOnce     sync.Once
	startMining  chan bool
	cancelMining chan chan struct{}
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, evHandler state.EventHandler, opts ...Option) *Worker {
	w := Worker{
		state:        st,
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan chan struct{}, 1),
		evHandler:    evHandler,
	}

	if w.evHandler == nil {
		w.evHandler = func(v string, args ...any) {}
	}

	for _, opt := range opts {
		opt(&w)
	}

	// Register this worker with the state package.
	st.RegisterWorker(&w)

	// Load the set of operations we need to run.
	operations := []func(){
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	if w.autoMine {
		w.SignalStartMining()
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work. It is safe to call
// more than once.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started: node[%d]", w.state.RetrieveNodeID())
		defer w.evHandler("worker: shutdown: completed: node[%d]", w.state.RetrieveNodeID())

		w.evHandler("worker: shutdown: signal cancel mining")
		done := w.SignalCancelMining()
		done()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	if w.isShutdown() {
		return
	}

	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: node[%d]: mining signaled", w.state.RetrieveNodeID())
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately. That G will not return from the function until done
// is called. This allows the caller to complete any state changes before a new
// mining operation takes place.
func (w *Worker) SignalCancelMining() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelMining <- wait:
	default:
	}
	w.evHandler("worker: SignalCancelMining: node[%d]: MINING: CANCEL: signaled", w.state.RetrieveNodeID())

	var once sync.Once
	return func() { once.Do(func() { close(wait) }) }
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
