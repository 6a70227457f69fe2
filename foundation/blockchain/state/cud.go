package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// AddKnownPeer registers a peer handle. Registration is one way; the peer
// is not told about this node. It reports false if the peer is this node
// or was already known.
func (s *State) AddKnownPeer(pr peer.Peer) bool {
	if pr.Match(s.host) {
		return false
	}

	return s.knownPeers.Add(pr)
}

// RemoveKnownPeer removes a peer handle.
func (s *State) RemoveKnownPeer(pr peer.Peer) {
	s.knownPeers.Remove(pr)
}
