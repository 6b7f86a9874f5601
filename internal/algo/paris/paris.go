// Package paris implements Paris traceroute: the flow-identifier-stable
// per-TTL probing state machine from spec.md §4.6.
package paris

import (
	"fmt"
	"sync"
	"time"

	"github.com/tracelattice/tracelattice/internal/algo"
	"github.com/tracelattice/tracelattice/internal/ploop"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

// ProbeReplyEvent is emitted in arrival order for every reply received
// at a TTL, as TRACEROUTE_PROBE_REPLY.
type ProbeReplyEvent struct {
	TTL   int
	From  packet.Address
	RTT   time.Duration
	Reply probe.Reply
}

// ProbeTimeoutEvent is emitted for every probe that times out, as
// TRACEROUTE_PROBE_TIMEOUT.
type ProbeTimeoutEvent struct {
	TTL int
}

// HopResult collects one TTL's outcomes for the final report.
type HopResult struct {
	TTL      int
	Replies  []ProbeReplyEvent
	TimedOut int
}

// Result is the value Instance.Result returns once terminated.
type Result struct {
	Target  packet.Address
	Hops    []HopResult
	Reached bool
}

// Register adds "traceroute" to host.
func Register(host *algo.Host) {
	host.Register("traceroute", New)
}

// New builds a Paris-traceroute instance from cfg.Traceroute.
func New(cfg algo.Config) (ploop.Instance, error) {
	if cfg.Traceroute == nil {
		return nil, fmt.Errorf("paris: Config.Traceroute is nil")
	}
	opts := cfg.Traceroute.WithDefaults()

	srcAddr := algo.LocalSourceAddress(opts.Target)

	return &Instance{
		opts:    opts,
		srcAddr: srcAddr,
		flowID:  algo.DeriveParisFlowID(opts),
		ttl:     opts.FirstTTL,
	}, nil
}

// Instance is the Paris-traceroute state machine: INIT/WAIT/CLASSIFY
// per TTL, advancing to the next TTL only once every probe at the
// current one has either replied or timed out.
type Instance struct {
	mu sync.Mutex

	opts    algo.TracerouteOptions
	srcAddr packet.Address
	flowID  uint16

	ttl         int
	sent        int
	outstanding int

	hop   HopResult
	hops  []HopResult
	done  bool
	reachedAtTTL bool

	events []any
}

// PumpSends sends num_probes probes for the current TTL exactly once;
// it returns nothing again until the WAIT/CLASSIFY step advances ttl.
func (in *Instance) PumpSends(now time.Time) []ploop.Send {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.done || in.sent > 0 {
		return nil
	}

	var sends []ploop.Send
	for i := 0; i < in.opts.NumProbes; i++ {
		p, err := algo.BuildProbe(in.opts, in.srcAddr, in.ttl, in.flowID)
		if err != nil {
			// A packet-assembly failure is fatal to this one probe, not
			// the instance: record it as timed out without counting it
			// as outstanding, so WAIT/CLASSIFY can't stall waiting on a
			// probe that will never arrive.
			in.hop.TimedOut++
			in.events = append(in.events, ProbeTimeoutEvent{TTL: in.ttl})
			continue
		}
		sends = append(sends, ploop.Send{
			Probe:    p,
			Dst:      in.opts.Target,
			HopLimit: in.ttl,
			Protocol: algo.UpperProtocolNumber(in.opts.Protocol, in.opts.Target.Family()),
		})
		in.outstanding++
	}
	in.sent = in.opts.NumProbes
	if in.outstanding == 0 {
		in.maybeClassify()
	}
	return sends
}

func (in *Instance) HandleReply(now time.Time, o probe.Outcome) {
	in.mu.Lock()
	defer in.mu.Unlock()

	ev := ProbeReplyEvent{TTL: in.ttl, From: o.Reply.From, RTT: o.Reply.RecvAt.Sub(o.Probe.SentAt), Reply: o.Reply}
	in.hop.Replies = append(in.hop.Replies, ev)
	in.events = append(in.events, ev)

	if o.Reply.Kind.DestinationReached() || o.Reply.From.Equal(in.opts.Target) {
		in.reachedAtTTL = true
	}

	in.outstanding--
	in.maybeClassify()
}

func (in *Instance) HandleTimeout(now time.Time, p *probe.Probe) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.hop.TimedOut++
	in.events = append(in.events, ProbeTimeoutEvent{TTL: in.ttl})

	in.outstanding--
	in.maybeClassify()
}

// maybeClassify runs CLASSIFY(k) once every probe at the current TTL
// has resolved, called with in.mu already held.
func (in *Instance) maybeClassify() {
	if in.outstanding > 0 {
		return
	}
	in.hop.TTL = in.ttl
	in.hops = append(in.hops, in.hop)

	switch {
	case in.reachedAtTTL:
		in.done = true
	case in.ttl >= in.opts.MaxTTL:
		in.done = true
	default:
		in.ttl++
		in.sent = 0
		in.hop = HopResult{}
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

func (in *Instance) Result() any {
	in.mu.Lock()
	defer in.mu.Unlock()
	return Result{Target: in.opts.Target, Hops: in.hops, Reached: in.reachedAtTTL}
}

func (in *Instance) Teardown() {}
