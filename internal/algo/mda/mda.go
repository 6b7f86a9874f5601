// Package mda implements the Multipath Detection Algorithm: per-TTL
// varied-flow probing with an adaptive stopping rule, assembling the
// discovered next-hops into a pkg/lattice.Lattice.
package mda

import (
	"fmt"
	"sync"
	"time"

	"github.com/tracelattice/tracelattice/internal/algo"
	"github.com/tracelattice/tracelattice/internal/ploop"
	"github.com/tracelattice/tracelattice/pkg/lattice"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

// Register adds "mda" to host.
func Register(host *algo.Host) {
	host.Register("mda", New)
}

// New builds an MDA instance from cfg.MDA.
func New(cfg algo.Config) (ploop.Instance, error) {
	if cfg.MDA == nil {
		return nil, fmt.Errorf("mda: Config.MDA is nil")
	}
	opts := cfg.MDA.WithDefaults()

	l := lattice.New()
	root := l.Observe(0, algo.LocalSourceAddress(opts.Target), false)

	return &Instance{
		opts:    opts,
		srcAddr: algo.LocalSourceAddress(opts.Target),
		lattice: l,
		pool:    algo.NewFlowPool(opts.FlowMin, opts.FlowMax),
		root:    root,
		queue:   []*lattice.Node{root},
	}, nil
}

// expansion tracks the single interface currently being probed for
// next-hops: this implementation expands exactly one lattice node at a
// time, so a freshly drawn flow id unambiguously traverses the node
// under expansion (no sibling branch is being probed concurrently to
// confuse attribution).
type expansion struct {
	node        *lattice.Node
	sent        int
	outstanding int
	sawReply    bool
}

// Instance is the MDA state machine. It keeps one node "active" at a
// time, sending fresh flows at that node's TTL+1 until the stopping
// threshold for its currently-known branching factor is met, then
// queues every newly discovered non-terminal child for its own
// expansion — a breadth-first walk of the lattice.
type Instance struct {
	mu sync.Mutex

	opts    algo.MDAOptions
	srcAddr packet.Address

	lattice *lattice.Lattice
	pool    *algo.FlowPool
	root    *lattice.Node

	queue   []*lattice.Node
	current *expansion

	events []any
	done   bool
}

// PumpSends draws fresh flows and sends probes at the active node's
// TTL+1 until the dynamically recomputed stopping threshold is met.
func (in *Instance) PumpSends(now time.Time) []ploop.Send {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.done {
		return nil
	}
	if in.current == nil {
		if len(in.queue) == 0 {
			in.done = true
			return nil
		}
		in.current = &expansion{node: in.queue[0]}
		in.queue = in.queue[1:]
	}

	var sends []ploop.Send
	for in.current.sent < in.target() && !in.branchCapReached() {
		flowID, ok := in.pool.Next()
		if !ok {
			break // pool exhausted: accept whatever branching we've found
		}
		ttl := in.current.node.TTL + 1
		p, err := algo.BuildProbe(in.opts.TracerouteOptions, in.srcAddr, ttl, flowID)
		if err != nil {
			in.events = append(in.events, TimeoutEvent{TTL: ttl})
			in.current.sent++
			continue
		}
		sends = append(sends, ploop.Send{
			Probe:    p,
			Dst:      in.opts.Target,
			HopLimit: ttl,
			Protocol: algo.UpperProtocolNumber(in.opts.Protocol, in.opts.Target.Family()),
		})
		in.current.sent++
		in.current.outstanding++
	}
	return sends
}

// target recomputes k(n, alpha) for the active node's currently known
// branching factor, with n taken as 1 until a first reply arrives, and
// capped at MaxBranch so a pathologically wide load balancer can't grow
// the stopping threshold without bound.
func (in *Instance) target() int {
	n := len(in.lattice.NextHops(in.current.node))
	if n < 1 {
		n = 1
	}
	if in.opts.MaxBranch > 0 && n > in.opts.MaxBranch {
		n = in.opts.MaxBranch
	}
	return StoppingThreshold(n, in.opts.Alpha)
}

// branchCapReached reports whether the active node has already
// discovered MaxBranch distinct next-hop interfaces, in which case its
// enumeration stops regardless of the stopping rule's confidence level.
func (in *Instance) branchCapReached() bool {
	if in.opts.MaxBranch <= 0 {
		return false
	}
	return len(in.lattice.NextHops(in.current.node)) >= in.opts.MaxBranch
}

func (in *Instance) HandleReply(now time.Time, o probe.Outcome) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.current == nil {
		return
	}

	in.current.sawReply = true
	ttl := in.current.node.TTL + 1
	reached := o.Reply.Kind.DestinationReached() || o.Reply.From.Equal(in.opts.Target)

	child := in.lattice.Observe(ttl, o.Reply.From, false)
	edge, isNew := in.lattice.Link(in.current.node, child, o.Probe.FlowID)
	if isNew {
		in.events = append(in.events, NewLinkEvent{Prev: in.current.node, Next: child, FlowIDs: edge.FlowIDs})
		if !reached && ttl < in.opts.MaxTTL {
			in.queue = append(in.queue, child)
		}
	}

	in.current.outstanding--
	in.maybeFinishExpansion()
}

func (in *Instance) HandleTimeout(now time.Time, p *probe.Probe) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.current == nil {
		return
	}

	in.events = append(in.events, TimeoutEvent{TTL: in.current.node.TTL + 1})
	in.current.outstanding--
	in.maybeFinishExpansion()
}

// maybeFinishExpansion closes out the active node's expansion once
// every dispatched probe has resolved and the stopping threshold for
// its up-to-date branching factor is satisfied (or the flow pool is
// exhausted). Called with in.mu already held.
func (in *Instance) maybeFinishExpansion() {
	if in.current.outstanding > 0 {
		return
	}
	if in.current.sent < in.target() && !in.branchCapReached() {
		return // PumpSends will top up next iteration
	}

	if !in.current.sawReply {
		// Every probe from this interface timed out: a single
		// unresponsive hop, inserted as the star sentinel per §4.7, and
		// still queued so traceroute-style probing continues past it.
		ttl := in.current.node.TTL + 1
		star := in.lattice.Observe(ttl, packet.Address{}, true)
		if edge, isNew := in.lattice.Link(in.current.node, star, 0); isNew {
			in.events = append(in.events, NewLinkEvent{Prev: in.current.node, Next: star, FlowIDs: edge.FlowIDs})
		}
		if ttl < in.opts.MaxTTL {
			in.queue = append(in.queue, star)
		}
	}

	in.current = nil
	if len(in.queue) == 0 {
		in.done = true
	}
}

func (in *Instance) Events() []any {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.events) == 0 {
		return nil
	}
	out := in.events
	in.events = nil
	return out
}

func (in *Instance) Terminated() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.done
}

// Result returns the completed lattice, per §4.7's
// ALGORITHM_HAS_TERMINATED contract.
func (in *Instance) Result() any {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.lattice
}

// Teardown drops the instance's reference to its lattice; the caller
// (a report writer reading Result before termination dispatch) is the
// only other holder, per the lifecycle note that the lattice is owned
// by the MDA instance and freed on instance termination.
func (in *Instance) Teardown() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.lattice = nil
}
