package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// NetSendBlockToPeers hands the block to every known peer. A peer that
// can't be reached or rejects the block doesn't stop delivery to the rest.
func (s *State) NetSendBlockToPeers(ctx context.Context, block database.Block) error {
	s.evHandler("state: NetSendBlockToPeers: started: node[%d]", s.nodeID)
	defer s.evHandler("state: NetSendBlockToPeers: completed: node[%d]", s.nodeID)

	peers := s.RetrieveKnownPeers()
	if len(peers) == 0 {
		return nil
	}

	if s.propagator == nil {
		return ErrNoPropagator
	}

	var errs []error
	for _, pr := range peers {
		if err := s.propagator.SendBlock(ctx, pr, block); err != nil {
			s.evHandler("state: NetSendBlockToPeers: node[%d]: peer[%s]: WARNING: %s", s.nodeID, pr, err)
			errs = append(errs, fmt.Errorf("%s: %w", pr.Host, err))
			continue
		}

		s.evHandler("state: NetSendBlockToPeers: node[%d]: sent to peer[%s]", s.nodeID, pr)
	}

	return errors.Join(errs...)
}
