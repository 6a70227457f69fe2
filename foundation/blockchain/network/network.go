// Package network delivers blocks between nodes running in the same process.
// Nodes only know each other by peer handle; the network resolves a handle
// to the node behind it and hands the block to that node for validation.
package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"golang.org/x/sync/errgroup"
)

// Set of error variables for block delivery.
var (
	ErrUnknownPeer  = errors.New("unknown peer")
	ErrPeerRejected = errors.New("peer rejected block")
	ErrDuplicate    = errors.New("node already registered")
)

// EventHandler defines a function that is called when events
// occur while delivering blocks.
type EventHandler func(v string, args ...any)

// Network maintains the set of nodes reachable by handle.
type Network struct {
	mu        sync.RWMutex
	nodes     map[string]*state.State
	evHandler EventHandler
}

// New constructs an empty network.
func New(evHandler EventHandler) *Network {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Network{
		nodes:     make(map[string]*state.State),
		evHandler: ev,
	}
}

// Register makes the node reachable through its host handle.
func (n *Network) Register(node *state.State) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	host := node.RetrieveHost()
	if _, exists := n.nodes[host]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, host)
	}

	n.nodes[host] = node
	n.evHandler("network: Register: node[%d]: host[%s]", node.RetrieveNodeID(), host)

	return nil
}

// Deregister removes the node behind the handle. Blocks sent to it
// afterwards fail with ErrUnknownPeer.
func (n *Network) Deregister(host string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.nodes, host)
	n.evHandler("network: Deregister: host[%s]", host)
}

// Lookup returns the node behind the handle.
func (n *Network) Lookup(host string) (*state.State, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	node, exists := n.nodes[host]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, host)
	}

	return node, nil
}

// LookupID returns the node with the specified node id.
func (n *Network) LookupID(id int) (*state.State, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, node := range n.nodes {
		if node.RetrieveNodeID() == id {
			return node, nil
		}
	}

	return nil, fmt.Errorf("%w: node[%d]", ErrUnknownPeer, id)
}

// Nodes returns the registered nodes ordered by node id.
func (n *Network) Nodes() []*state.State {
	n.mu.RLock()
	defer n.mu.RUnlock()

	nodes := make([]*state.State, 0, len(n.nodes))
	for _, node := range n.nodes {
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].RetrieveNodeID() < nodes[j].RetrieveNodeID() })

	return nodes
}

// Connect registers each node as a peer of the other.
func (n *Network) Connect(a *state.State, b *state.State) {
	a.AddKnownPeer(peer.New(b.RetrieveHost()))
	b.AddKnownPeer(peer.New(a.RetrieveHost()))
}

// ConnectAll registers every registered node as a peer of every other.
func (n *Network) ConnectAll() {
	nodes := n.Nodes()
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			n.Connect(nodes[i], nodes[j])
		}
	}
}

// =============================================================================

// SendBlock implements the state.Propagator interface. The peer validates
// the block against its own tip.
func (n *Network) SendBlock(ctx context.Context, pr peer.Peer, block database.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	node, err := n.Lookup(pr.Host)
	if err != nil {
		return err
	}

	result := node.ProcessProposedBlock(block)
	if !result.Accepted() {
		n.evHandler("network: SendBlock: peer[%s]: blk[%s]: %s", pr, block, result)
		return fmt.Errorf("%w: %w", ErrPeerRejected, result.Reason)
	}

	n.evHandler("network: SendBlock: peer[%s]: blk[%s]: accepted", pr, block)

	return nil
}

// Broadcast is the orchestrator's form of delivery: the block is offered to
// every registered node except the sender, concurrently, and the result
// for each host is returned.
func (n *Network) Broadcast(ctx context.Context, from string, block database.Block) (map[string]state.Result, error) {
	nodes := n.Nodes()

	var mu sync.Mutex
	results := make(map[string]state.Result, len(nodes))

	g, ctx := errgroup.WithContext(ctx)
	for _, node := range nodes {
		if node.RetrieveHost() == from {
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result := node.ProcessProposedBlock(block)

			mu.Lock()
			results[node.RetrieveHost()] = result
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, nil
}
