package mda

import "github.com/tracelattice/tracelattice/pkg/lattice"

// NewLinkEvent is MDA_NEW_LINK: a newly discovered lattice edge, emitted
// the first time any flow is observed traversing both prev and next.
type NewLinkEvent struct {
	Prev, Next *lattice.Node
	FlowIDs    []uint16
}

// TimeoutEvent mirrors Paris's per-probe timeout notice, scoped to the
// interface currently being expanded.
type TimeoutEvent struct {
	TTL int
}
