package netiotest

import (
	"testing"
	"time"

	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

func buildUDPProbe(t *testing.T, ttl int, flowID uint16) *packet.Packet {
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
	if err := pkt.SetField("ip.dst", packet.V4Value(packet.MustAddress("198.51.100.1"))); err != nil {
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
	return &pkt
}

func TestNetwork_StraightPathRepliesFromEachHop(t *testing.T) {
	routers := []packet.Address{
		packet.MustAddress("10.0.0.1"),
		packet.MustAddress("10.0.0.2"),
		packet.MustAddress("10.0.0.3"),
	}
	dest := packet.MustAddress("198.51.100.1")
	topo := StraightPath(routers, dest, probe.ReplyDestUnreachablePort)
	net := NewNetwork(topo, time.Millisecond)

	pkt := buildUDPProbe(t, 2, 0x1234)
	if _, err := net.Send(pkt, dest, 2, int(packet.ProtoUDP)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case r := <-net.Replies():
		if r.Kind != probe.ReplyTimeExceeded {
			t.Errorf("kind = %v, want TimeExceeded", r.Kind)
		}
		if r.From != routers[1] {
			t.Errorf("from = %v, want second router", r.From)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestNetwork_TTLPastTopologyReachesDestination(t *testing.T) {
	routers := []packet.Address{packet.MustAddress("10.0.0.1")}
	dest := packet.MustAddress("198.51.100.1")
	topo := StraightPath(routers, dest, probe.ReplyDestUnreachablePort)
	net := NewNetwork(topo, 0)

	pkt := buildUDPProbe(t, 5, 0xbeef)
	if _, err := net.Send(pkt, dest, 5, int(packet.ProtoUDP)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case r := <-net.Replies():
		if r.Kind != probe.ReplyDestUnreachablePort {
			t.Errorf("kind = %v, want DestUnreachablePort", r.Kind)
		}
		if r.From != dest {
			t.Errorf("from = %v, want destination", r.From)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestNetwork_StarHopDropsSilently(t *testing.T) {
	topo := &Topology{
		Hops: []Hop{{Candidates: []HopResponse{{Star: true}}}},
	}
	dest := packet.MustAddress("198.51.100.1")
	topo.Destination = dest
	net := NewNetwork(topo, 0)

	pkt := buildUDPProbe(t, 1, 0x1)
	if _, err := net.Send(pkt, dest, 1, int(packet.ProtoUDP)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case r := <-net.Replies():
		t.Fatalf("expected no reply from a star hop, got %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNetwork_LoadBalancedHopRoutesByFlow(t *testing.T) {
	left := packet.MustAddress("10.0.1.1")
	right := packet.MustAddress("10.0.1.2")
	dest := packet.MustAddress("198.51.100.1")
	topo := &Topology{
		Hops: []Hop{{
			Candidates: []HopResponse{{Addr: left}, {Addr: right}},
			Select: func(flowID uint16) int {
				return int(flowID) % 2
			},
		}},
		Destination:     dest,
		DestinationKind: probe.ReplyDestUnreachablePort,
	}
	net := NewNetwork(topo, 0)

	pkt := buildUDPProbe(t, 1, 2)
	if _, err := net.Send(pkt, dest, 1, int(packet.ProtoUDP)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case r := <-net.Replies():
		if r.From != left {
			t.Errorf("from = %v, want left branch for even flow", r.From)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
	}
}
