package paris

import (
	"testing"
	"time"

	"github.com/tracelattice/tracelattice/internal/algo"
	"github.com/tracelattice/tracelattice/internal/netio/netiotest"
	"github.com/tracelattice/tracelattice/internal/ploop"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

func TestNew_RejectsMissingOptions(t *testing.T) {
	if _, err := New(algo.Config{}); err == nil {
		t.Error("expected error when Config.Traceroute is nil")
	}
}

func TestInstance_PumpSends_OnlySendsOncePerTTL(t *testing.T) {
	inst, err := New(algo.Config{Traceroute: &algo.TracerouteOptions{
		Target: packet.MustAddress("192.0.2.1"), Protocol: algo.ProtocolUDP, NumProbes: 3,
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sends := inst.PumpSends(time.Now())
	if len(sends) != 3 {
		t.Fatalf("len(sends) = %d, want 3", len(sends))
	}
	if again := inst.PumpSends(time.Now()); again != nil {
		t.Errorf("expected no further sends before the current TTL resolves, got %d", len(again))
	}
}

func TestInstance_EndToEnd_ReachesDestination(t *testing.T) {
	dest := packet.MustAddress("192.0.2.1")
	routers := []packet.Address{packet.MustAddress("203.0.113.1"), packet.MustAddress("203.0.113.2")}
	topo := netiotest.StraightPath(routers, dest, probe.ReplyDestUnreachablePort)
	net := netiotest.NewNetwork(topo, time.Millisecond)

	loop := ploop.NewLoop(net, net, 0.001, ploop.WithTimeout(50*time.Millisecond))
	inst, err := New(algo.Config{Traceroute: &algo.TracerouteOptions{
		Target: dest, Protocol: algo.ProtocolUDP, NumProbes: 1, MaxTTL: 10,
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	loop.AddInstance("traceroute", inst)

	done := make(chan struct{})
	go func() {
		loop.Run(func(l *ploop.Loop, ev ploop.Event, ctx any) {
			if _, ok := ev.(ploop.AlgorithmTerminated); ok {
				close(done)
				l.Terminate()
			}
		}, nil)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("instance never terminated")
	}
}
