package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// RetrieveNodeID returns the identity the node mines with.
func (s *State) RetrieveNodeID() int {
	return s.nodeID
}

// RetrieveHost returns the handle peers use to reach this node.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveDifficulty returns the number of leading zeros the node requires.
func (s *State) RetrieveDifficulty() int {
	return s.difficulty
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveBlocks returns a copy of the full chain.
func (s *State) RetrieveBlocks() []database.Block {
	return s.db.Blocks()
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// RetrieveStatus returns the status this node reports to others.
func (s *State) RetrieveStatus() peer.PeerStatus {
	return peer.PeerStatus{
		LatestBlockHash: s.db.LatestBlock().Hash,
		ChainLength:     s.db.Length(),
		KnownPeers:      s.RetrieveKnownPeers(),
	}
}

// RetrieveStats returns a snapshot of the node's block counters.
func (s *State) RetrieveStats() Stats {
	return s.stats.snapshot()
}
