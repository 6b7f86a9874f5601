package probe

import (
	"testing"

	"github.com/tracelattice/tracelattice/pkg/packet"
)

func TestRegistry_MatchFindsRegisteredProbe(t *testing.T) {
	r := NewRegistry()
	key := MatchingKey{Protocol: 17}
	p := &Probe{FlowID: 33456, Key: key}
	r.Register(p)

	got, ok := r.Match(key)
	if !ok {
		t.Fatal("expected match")
	}
	if got != p {
		t.Error("matched probe is not the registered one")
	}
	if r.Outstanding() != 0 {
		t.Error("expected match to remove the probe from the registry")
	}
}

func TestRegistry_MatchMissesUnknownKey(t *testing.T) {
	r := NewRegistry()
	r.Register(&Probe{Key: MatchingKey{Protocol: 17}})

	_, ok := r.Match(MatchingKey{Protocol: 6})
	if ok {
		t.Error("expected no match for an unregistered key")
	}
}

func TestRegistry_CollisionKeepsOldestRegistration(t *testing.T) {
	r := NewRegistry()
	key := MatchingKey{Protocol: 17}
	first := &Probe{Key: key}
	second := &Probe{Key: key}
	r.Register(first)
	r.Register(second)

	got, ok := r.Match(key)
	if !ok {
		t.Fatal("expected match")
	}
	if got.ID != first.ID {
		t.Errorf("collision resolution kept probe #%d, want the oldest (#%d)", got.ID, first.ID)
	}
}

func TestRegistry_RemoveDropsMatchingEntry(t *testing.T) {
	r := NewRegistry()
	key := MatchingKey{Protocol: 17}
	p := &Probe{Key: key}
	r.Register(p)
	r.Remove(p)

	if _, ok := r.Match(key); ok {
		t.Error("expected removed probe not to be matchable")
	}
}

func TestRegistry_MatchTCPFlowFindsResetReply(t *testing.T) {
	r := NewRegistry()
	target := packet.MustAddress("198.51.100.10")
	key := MatchingKey{Src: packet.MustAddress("198.51.100.1"), Dst: target, Protocol: 6}
	p := &Probe{FlowID: 16449, Key: key}
	r.Register(p)

	got, ok := r.MatchTCPFlow(target, 16449)
	if !ok {
		t.Fatal("expected a TCP-flow match")
	}
	if got != p {
		t.Error("matched probe is not the registered one")
	}
	if r.Outstanding() != 0 {
		t.Error("expected the match to also drop the probe from the generic key index")
	}
}

func TestRegistry_MatchTCPFlowMissesWrongFlowOrTarget(t *testing.T) {
	r := NewRegistry()
	target := packet.MustAddress("198.51.100.10")
	key := MatchingKey{Dst: target, Protocol: 6}
	r.Register(&Probe{FlowID: 16449, Key: key})

	if _, ok := r.MatchTCPFlow(target, 9999); ok {
		t.Error("expected no match for a mismatched flow identifier")
	}
	if _, ok := r.MatchTCPFlow(packet.MustAddress("198.51.100.11"), 16449); ok {
		t.Error("expected no match for a mismatched target address")
	}
}

func TestRegistry_MatchReplyFallsBackToTCPFlow(t *testing.T) {
	r := NewRegistry()
	target := packet.MustAddress("198.51.100.10")
	key := MatchingKey{Dst: target, Protocol: 6}
	p := &Probe{FlowID: 16449, Key: key}
	r.Register(p)

	// The reply's Key is the zero value — exactly what a genuine
	// destination RST/SYN-ACK produces, since it is not a quote of the
	// probe's own packet.
	got, ok := r.MatchReply(Reply{Kind: ReplyTCPResetOrSYNACK, From: target, FlowID: 16449})
	if !ok {
		t.Fatal("expected MatchReply to fall back to the TCP flow index")
	}
	if got != p {
		t.Error("matched probe is not the registered one")
	}
}

func TestRegistry_MatchReplyPrefersGenericKey(t *testing.T) {
	r := NewRegistry()
	key := MatchingKey{Protocol: 17}
	p := &Probe{Key: key}
	r.Register(p)

	got, ok := r.MatchReply(Reply{Kind: ReplyTimeExceeded, Key: key})
	if !ok || got != p {
		t.Fatal("expected MatchReply to resolve via the generic key")
	}
}

func TestReplyKind_DestinationReached(t *testing.T) {
	tests := []struct {
		kind ReplyKind
		want bool
	}{
		{ReplyTimeExceeded, false},
		{ReplyDestUnreachablePort, true},
		{ReplyEchoReply, true},
		{ReplyTCPResetOrSYNACK, true},
		{ReplyOther, false},
		{ReplyUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.DestinationReached(); got != tt.want {
				t.Errorf("%s.DestinationReached() = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}
