package state_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hashcash"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func newNode(t *testing.T, id int, difficulty int) *state.State {
	ev := func(v string, args ...any) {
		t.Logf("\t\t"+v, args...)
	}

	s, err := state.New(state.Config{
		NodeID:     id,
		Difficulty: difficulty,
		EvHandler:  ev,
	})
	ifErrFailNow(t, err)

	return s
}

// directPropagator resolves peer handles to nodes held in a map.
type directPropagator map[string]*state.State

func (dp directPropagator) SendBlock(ctx context.Context, pr peer.Peer, block database.Block) error {
	node, exists := dp[pr.Host]
	if !exists {
		return fmt.Errorf("unknown peer %s", pr)
	}

	if result := node.ProcessProposedBlock(block); !result.Accepted() {
		return result.Reason
	}

	return nil
}

// =============================================================================

func TestGenesis(t *testing.T) {
	t.Log("Given the need to start every node from the genesis block.")
	{
		for _, id := range []int{0, 1, 2, 42} {
			node := newNode(t, id, 1)

			blocks := node.RetrieveBlocks()
			if len(blocks) != 1 || blocks[0] != (database.Block{Hash: "", MinerID: 0, Nonce: 0}) {
				t.Fatalf("\t%s\tnode[%d]:\tShould have only the genesis block: %v", failed, id, blocks)
			}
			t.Logf("\t%s\tnode[%d]:\tShould have only the genesis block.", success, id)
		}

		node, err := state.New(state.Config{NodeID: 1})
		ifErrFailNow(t, err)

		if node.RetrieveDifficulty() != hashcash.DefaultDifficulty {
			t.Fatalf("\t%s\tShould use the default difficulty, got %d.", failed, node.RetrieveDifficulty())
		}
		t.Logf("\t%s\tShould use the default difficulty.", success)

		if _, err := state.New(state.Config{NodeID: 1, Difficulty: -1}); !errors.Is(err, hashcash.ErrInvalidDifficulty) {
			t.Fatalf("\t%s\tShould reject an invalid difficulty, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject an invalid difficulty.", success)
	}
}

func TestAddBlock(t *testing.T) {
	t.Log("Given the need to extend a chain only with valid blocks.")
	{
		node := newNode(t, 1, 2)

		block, err := node.FindNewBlock(context.Background())
		ifErrFailNow(t, err)

		if node.QueryChainLength() != 1 {
			t.Fatalf("\t%s\tShould not change the chain when finding a block.", failed)
		}
		t.Logf("\t%s\tShould not change the chain when finding a block.", success)

		if block.MinerID != 1 || hashcash.CountLeadingZeros(block.Hash) < 2 {
			t.Fatalf("\t%s\tShould mine a block for this node: %s", failed, block)
		}
		t.Logf("\t%s\tShould mine a block for this node.", success)

		bad := database.Block{Hash: block.Hash, MinerID: block.MinerID, Nonce: block.Nonce + 1}
		result := node.AddBlock(bad)
		if result.Accepted() || !errors.Is(result.Reason, database.ErrInvalidBlock) {
			t.Fatalf("\t%s\tShould reject a block with the wrong nonce: %s", failed, result)
		}
		if node.QueryChainLength() != 1 {
			t.Fatalf("\t%s\tShould leave the chain unchanged after a rejection.", failed)
		}
		t.Logf("\t%s\tShould reject a block with the wrong nonce: %s", success, result)

		if node.IsValidBlock(bad) {
			t.Fatalf("\t%s\tShould not report the bad block as valid.", failed)
		}

		result = node.AddBlock(block)
		if !result.Accepted() {
			t.Fatalf("\t%s\tShould accept the honestly mined block: %s", failed, result)
		}
		if node.QueryChainLength() != 2 || node.RetrieveLatestBlock() != block {
			t.Fatalf("\t%s\tShould append the block to the chain.", failed)
		}
		t.Logf("\t%s\tShould accept and append the honestly mined block.", success)

		result = node.AddBlock(block)
		if result.Accepted() {
			t.Fatalf("\t%s\tShould reject the same block a second time.", failed)
		}
		t.Logf("\t%s\tShould reject the same block a second time.", success)

		stats := node.RetrieveStats()
		if stats.Accepted != 1 || stats.Rejected != 2 {
			t.Fatalf("\t%s\tShould count accepted and rejected blocks: %+v", failed, stats)
		}
		t.Logf("\t%s\tShould count accepted and rejected blocks.", success)
	}
}

func TestStaleBlock(t *testing.T) {
	t.Log("Given the need to validate against the validator's own tip.")
	{
		nodeA := newNode(t, 1, 1)
		nodeB := newNode(t, 2, 1)

		blockB, err := nodeB.FindNewBlock(context.Background())
		ifErrFailNow(t, err)

		blockA, err := nodeA.FindNewBlock(context.Background())
		ifErrFailNow(t, err)

		if result := nodeA.AddBlock(blockA); !result.Accepted() {
			t.Fatalf("\t%s\tShould accept node A's own block: %s", failed, result)
		}

		if result := nodeA.AddBlock(blockB); result.Accepted() {
			t.Fatalf("\t%s\tShould reject a block mined against a stale tip.", failed)
		}
		t.Logf("\t%s\tShould reject a block mined against a stale tip.", success)

		if err := nodeB.VerifyBlock(blockB); err != nil {
			t.Fatalf("\t%s\tShould still validate the block on the node whose tip it extends: %v", failed, err)
		}
		t.Logf("\t%s\tShould still validate the block on the node whose tip it extends.", success)
	}
}

func TestTwoNodes(t *testing.T) {
	t.Log("Given the need to keep two chains identical with one miner.")
	{
		nodeA := newNode(t, 1, 1)
		nodeB := newNode(t, 2, 1)
		nodeA.AddKnownPeer(peer.New(nodeB.RetrieveHost()))

		block, err := nodeA.FindNewBlock(context.Background())
		ifErrFailNow(t, err)

		for _, node := range []*state.State{nodeA, nodeB} {
			if result := node.AddBlock(block); !result.Accepted() {
				t.Fatalf("\t%s\tnode[%d]:\tShould accept the first block: %s", failed, node.RetrieveNodeID(), result)
			}
		}
		t.Logf("\t%s\tShould have both nodes accept the first block.", success)

		for i := 0; i < 9; i++ {
			block, err := nodeA.FindNewBlock(context.Background())
			ifErrFailNow(t, err)

			nodeA.AddBlock(block)
			nodeB.AddBlock(block)
		}

		chainA := nodeA.RetrieveBlocks()
		chainB := nodeB.RetrieveBlocks()
		if len(chainA) != 11 || len(chainB) != 11 {
			t.Fatalf("\t%s\tShould have chains of length 11, got %d and %d.", failed, len(chainA), len(chainB))
		}
		t.Logf("\t%s\tShould have chains of length 11.", success)

		for i := range chainA {
			if chainA[i] != chainB[i] {
				t.Fatalf("\t%s\tShould have identical chains, differ at %d: %s %s", failed, i, chainA[i], chainB[i])
			}
		}
		t.Logf("\t%s\tShould have identical chains.", success)

		if got := len(nodeB.QueryBlocksByMiner(1)); got != 10 {
			t.Fatalf("\t%s\tShould find 10 blocks mined by node 1, got %d.", failed, got)
		}
		if got := nodeB.QueryBlocksByNumber(state.QueryLatest, state.QueryLatest); len(got) != 1 || got[0] != chainA[10] {
			t.Fatalf("\t%s\tShould query the latest block: %v", failed, got)
		}
		if got := nodeB.QueryBlocksByNumber(8, 20); len(got) != 3 {
			t.Fatalf("\t%s\tShould cut a range at the tip, got %d blocks.", failed, len(got))
		}
		t.Logf("\t%s\tShould query blocks by miner and number.", success)
	}
}

func TestMineAndPropagate(t *testing.T) {
	t.Log("Given the need to hand a mined block to every peer.")
	{
		dp := make(directPropagator)

		nodes := make([]*state.State, 3)
		for i := range nodes {
			node, err := state.New(state.Config{
				NodeID:     i + 1,
				Difficulty: 1,
				Propagator: dp,
			})
			ifErrFailNow(t, err)

			dp[node.RetrieveHost()] = node
			nodes[i] = node
		}

		for _, node := range nodes[1:] {
			if !nodes[0].AddKnownPeer(peer.New(node.RetrieveHost())) {
				t.Fatalf("\t%s\tShould add peer %s.", failed, node.RetrieveHost())
			}
		}
		if nodes[0].AddKnownPeer(peer.New(nodes[0].RetrieveHost())) {
			t.Fatalf("\t%s\tShould not add itself as a peer.", failed)
		}
		t.Logf("\t%s\tShould register the peers one way.", success)

		result, err := nodes[0].MineNewBlock(context.Background())
		ifErrFailNow(t, err)

		if err := nodes[0].NetSendBlockToPeers(context.Background(), result.Block); err != nil {
			t.Fatalf("\t%s\tShould send the block to every peer: %v", failed, err)
		}

		for _, node := range nodes {
			if node.QueryChainLength() != 2 || node.RetrieveLatestBlock() != result.Block {
				t.Fatalf("\t%s\tnode[%d]:\tShould have the mined block at the tip.", failed, node.RetrieveNodeID())
			}
		}
		t.Logf("\t%s\tShould have the mined block at the tip of every node.", success)

		if stats := nodes[0].RetrieveStats(); stats.Mined != 1 {
			t.Fatalf("\t%s\tShould count the mined block: %+v", failed, stats)
		}

		// The peers already have the block so a second delivery is rejected.
		err = nodes[0].NetSendBlockToPeers(context.Background(), result.Block)
		if !errors.Is(err, database.ErrInvalidBlock) {
			t.Fatalf("\t%s\tShould report the peers rejecting a duplicate, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould report the peers rejecting a duplicate.", success)

		// Nodes 2 and 3 have no peers, so node 2's block stays local.
		if _, err := nodes[1].MineNewBlock(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould mine on node 2: %v", failed, err)
		}
		if nodes[2].QueryChainLength() != 2 {
			t.Fatalf("\t%s\tShould not reach nodes that aren't peers.", failed)
		}
		t.Logf("\t%s\tShould not reach nodes that aren't peers.", success)
	}
}

func TestMineCancel(t *testing.T) {
	t.Log("Given the need to stop mining when asked.")
	{
		node := newNode(t, 1, 64)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := node.MineNewBlock(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("\t%s\tShould return the context error, got %v.", failed, err)
		}
		if node.QueryChainLength() != 1 {
			t.Fatalf("\t%s\tShould leave the chain unchanged.", failed)
		}
		t.Logf("\t%s\tShould stop mining and leave the chain unchanged.", success)

		if err := node.NetSendBlockToPeers(context.Background(), database.GenesisBlock); err != nil {
			t.Fatalf("\t%s\tShould have nothing to do without peers, got %v.", failed, err)
		}

		node.AddKnownPeer(peer.New("node2"))
		if err := node.NetSendBlockToPeers(context.Background(), database.GenesisBlock); !errors.Is(err, state.ErrNoPropagator) {
			t.Fatalf("\t%s\tShould require a propagator to send blocks, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould require a propagator to send blocks.", success)
	}
}
