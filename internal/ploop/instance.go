package ploop

import (
	"time"

	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

// Handle identifies one algorithm instance added to a Loop.
type Handle uint64

// Send is one probe an Instance wants transmitted, paced and tracked by
// the loop on the instance's behalf.
type Send struct {
	Probe    *probe.Probe
	Dst      packet.Address
	HopLimit int
	Protocol int
}

// Instance is a running algorithm: Paris traceroute or MDA. The loop
// owns scheduling, pacing, and matching; the instance owns per-TTL
// state, the outstanding-probe budget, and its own output events.
type Instance interface {
	// PumpSends returns any new probes the instance wants sent right now.
	// Called once per loop iteration, before the I/O wait.
	PumpSends(now time.Time) []Send

	// HandleReply delivers a probe matched to an inbound reply.
	HandleReply(now time.Time, o probe.Outcome)

	// HandleTimeout delivers a probe whose deadline expired with no
	// reply.
	HandleTimeout(now time.Time, p *probe.Probe)

	// Events drains and returns this instance's pending output events,
	// clearing its internal queue.
	Events() []any

	// Terminated reports whether every branch has reached a terminal
	// state (destination reached or hop limit exhausted on every path).
	Terminated() bool

	// Result returns the instance's final value once Terminated is true
	// (a completed lattice for MDA, a hop list for Paris).
	Result() any

	// Teardown releases the instance's resources (lattice, outstanding
	// probe set). Called once, after the final AlgorithmTerminated event
	// has been dispatched.
	Teardown()
}
