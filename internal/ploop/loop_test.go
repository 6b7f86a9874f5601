package ploop

import (
	"sync"
	"testing"
	"time"

	"github.com/tracelattice/tracelattice/internal/netio/netiotest"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

// singleProbeInstance hands over exactly one probe on its first PumpSends and
// terminates as soon as it sees a reply or a timeout — just enough
// state-machine behavior to exercise the loop's plumbing ahead of the
// real traceroute/MDA instances.
type singleProbeInstance struct {
	mu         sync.Mutex
	sent       bool
	pkt        *packet.Packet
	dst        packet.Address
	ttl        int
	outcomes   []any
	terminated bool
}

func newSingleProbeInstance(t *testing.T, dst packet.Address, ttl int, flowID uint16) *singleProbeInstance {
	t.Helper()
	var pkt packet.Packet
	if err := pkt.SetProtocols("ipv4", "udp", "payload"); err != nil {
		t.Fatalf("SetProtocols: %v", err)
	}
	if err := pkt.PayloadResize(4); err != nil {
		t.Fatalf("PayloadResize: %v", err)
	}
	if err := pkt.SetField("ip.src", packet.V4Value(packet.MustAddress("192.0.2.1"))); err != nil {
		t.Fatalf("set ip.src: %v", err)
	}
	if err := pkt.SetField("ip.dst", packet.V4Value(dst)); err != nil {
		t.Fatalf("set ip.dst: %v", err)
	}
	if err := pkt.SetField("ip.ttl", packet.U8(uint8(ttl))); err != nil {
		t.Fatalf("set ip.ttl: %v", err)
	}
	if err := pkt.SetFlowID(flowID); err != nil {
		t.Fatalf("SetFlowID: %v", err)
	}
	if err := pkt.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return &singleProbeInstance{pkt: &pkt, dst: dst, ttl: ttl}
}

func (s *singleProbeInstance) PumpSends(now time.Time) []Send {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent {
		return nil
	}
	s.sent = true
	return []Send{{
		Probe:    &probe.Probe{TTL: s.ttl, Packet: s.pkt},
		Dst:      s.dst,
		HopLimit: s.ttl,
		Protocol: int(packet.ProtoUDP),
	}}
}

func (s *singleProbeInstance) HandleReply(now time.Time, o probe.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	s.terminated = true
}

func (s *singleProbeInstance) HandleTimeout(now time.Time, p *probe.Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, probe.Outcome{Probe: p, Matched: false})
	s.terminated = true
}

func (s *singleProbeInstance) Events() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outcomes) == 0 {
		return nil
	}
	out := s.outcomes
	s.outcomes = nil
	return out
}

func (s *singleProbeInstance) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

func (s *singleProbeInstance) Result() any { return s.dst }
func (s *singleProbeInstance) Teardown()   {}

func TestLoop_DeliversReplyAndTerminates(t *testing.T) {
	routers := []packet.Address{packet.MustAddress("10.0.0.1")}
	dest := packet.MustAddress("198.51.100.1")
	fakeNet := netiotest.NewNetwork(netiotest.StraightPath(routers, dest, probe.ReplyDestUnreachablePort), time.Millisecond)

	loop := NewLoop(fakeNet, fakeNet, 0, WithTimeout(200*time.Millisecond))
	inst := newSingleProbeInstance(t, dest, 1, 0x4242)
	loop.AddInstance("single", inst)

	var events []Event
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		_ = loop.Run(func(l *Loop, ev Event, ctx any) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
			if _, ok := ev.(AlgorithmTerminated); ok {
				close(done)
			}
		}, nil)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not terminate in time")
	}
	loop.Terminate()

	mu.Lock()
	defer mu.Unlock()
	var sawEvent, sawTerminated bool
	for _, ev := range events {
		switch e := ev.(type) {
		case AlgorithmEvent:
			sawEvent = true
			o, ok := e.Inner.(probe.Outcome)
			if !ok || !o.Matched {
				t.Errorf("expected a matched outcome, got %+v", e.Inner)
			}
		case AlgorithmTerminated:
			sawTerminated = true
		}
	}
	if !sawEvent {
		t.Error("expected at least one AlgorithmEvent")
	}
	if !sawTerminated {
		t.Error("expected an AlgorithmTerminated event")
	}
}

func TestLoop_TimesOutAgainstAStarHop(t *testing.T) {
	dest := packet.MustAddress("198.51.100.1")
	topo := &netiotest.Topology{
		Hops:            []netiotest.Hop{{Candidates: []netiotest.HopResponse{{Star: true}}}},
		Destination:     dest,
		DestinationKind: probe.ReplyDestUnreachablePort,
	}
	fakeNet := netiotest.NewNetwork(topo, 0)

	loop := NewLoop(fakeNet, fakeNet, 0, WithTimeout(50*time.Millisecond))
	inst := newSingleProbeInstance(t, dest, 1, 0x1)
	loop.AddInstance("single", inst)

	done := make(chan struct{})
	go func() {
		_ = loop.Run(func(l *Loop, ev Event, ctx any) {
			if _, ok := ev.(AlgorithmTerminated); ok {
				close(done)
			}
		}, nil)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not terminate after a timeout")
	}
	loop.Terminate()

	if len(inst.outcomes) != 0 {
		t.Errorf("outcomes should have been drained by Events(), got %d leftover", len(inst.outcomes))
	}
}
