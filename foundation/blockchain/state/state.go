// Package state is the core API for a node and implements the rules for
// mining blocks and extending the node's chain.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hashcash"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// ErrNoPropagator is returned when a node is asked to send a block to its
// peers but was constructed without a way to reach them.
var ErrNoPropagator = errors.New("no propagator configured")

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// Propagator interface represents the behavior required to hand a block
// to a peer. The peer is only known by its handle.
type Propagator interface {
	SendBlock(ctx context.Context, pr peer.Peer, block database.Block) error
}

// =============================================================================

// Config represents the configuration required to start a node. A zero
// Difficulty uses hashcash.DefaultDifficulty.
type Config struct {
	NodeID         int
	Host           string
	Difficulty     int
	MaxAttempts    uint64
	TargetHashRate float64
	KnownPeers     *peer.PeerSet
	Propagator     Propagator
	EvHandler      EventHandler
}

// State manages a single node and the chain it owns.
type State struct {
	mu sync.Mutex

	nodeID     int
	host       string
	difficulty int
	powOptions []hashcash.Option
	evHandler  EventHandler

	knownPeers *peer.PeerSet
	propagator Propagator
	db         *database.Database
	stats      stats

	workerMu sync.RWMutex
	worker   Worker
}

// New constructs a node with a chain holding only the genesis block.
func New(cfg Config) (*State, error) {
	if cfg.Difficulty == 0 {
		cfg.Difficulty = hashcash.DefaultDifficulty
	}

	if err := hashcash.ValidateDifficulty(cfg.Difficulty); err != nil {
		return nil, fmt.Errorf("node[%d]: %w", cfg.NodeID, err)
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	host := cfg.Host
	if host == "" {
		host = fmt.Sprintf("node%d", cfg.NodeID)
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	powOptions := []hashcash.Option{hashcash.WithEvHandler(hashcash.EventHandler(ev))}
	if cfg.MaxAttempts > 0 {
		powOptions = append(powOptions, hashcash.WithMaxAttempts(cfg.MaxAttempts))
	}
	if cfg.TargetHashRate > 0 {
		powOptions = append(powOptions, hashcash.WithTargetHashRate(cfg.TargetHashRate))
	}

	state := State{
		nodeID:     cfg.NodeID,
		host:       host,
		difficulty: cfg.Difficulty,
		powOptions: powOptions,
		evHandler:  ev,

		knownPeers: knownPeers,
		propagator: cfg.Propagator,
		db:         database.New(),

		// The worker package replaces this when background mining is run.
		worker: noopWorker{},
	}

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: Shutdown: started: node[%d]", s.nodeID)
	defer s.evHandler("state: Shutdown: completed: node[%d]", s.nodeID)

	// Stop all mining activity.
	s.RetrieveWorker().Shutdown()

	return nil
}

// RegisterWorker installs the worker that runs background mining for the
// node. It is safe to call while peers are delivering blocks.
func (s *State) RegisterWorker(w Worker) {
	s.workerMu.Lock()
	defer s.workerMu.Unlock()

	s.worker = w
}

// RetrieveWorker returns the registered worker.
func (s *State) RetrieveWorker() Worker {
	s.workerMu.RLock()
	defer s.workerMu.RUnlock()

	return s.worker
}

// =============================================================================

// noopWorker is used until a worker registers itself with the node, so a
// node driven directly by an orchestrator has nothing to cancel.
type noopWorker struct{}

func (noopWorker) Shutdown()                  {}
func (noopWorker) SignalStartMining()         {}
func (noopWorker) SignalCancelMining() func() { return func() {} }
