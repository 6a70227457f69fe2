package state

import "sync/atomic"

// Stats represents the block counters for a node.
type Stats struct {
	Mined    uint64 `json:"mined"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

// stats holds the live counters. Accepted counts every block appended,
// including the ones this node mined.
type stats struct {
	mined    atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Mined:    s.mined.Load(),
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
	}
}
