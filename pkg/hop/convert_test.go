package hop

import (
	"testing"
	"time"

	"github.com/tracelattice/tracelattice/internal/algo/paris"
	"github.com/tracelattice/tracelattice/pkg/lattice"
	"github.com/tracelattice/tracelattice/pkg/packet"
)

func TestFromParisResult_ConvertsHopsAndTimeouts(t *testing.T) {
	r := paris.Result{
		Target:  packet.MustAddress("192.0.2.1"),
		Reached: true,
		Hops: []paris.HopResult{
			{
				TTL: 1,
				Replies: []paris.ProbeReplyEvent{
					{TTL: 1, From: packet.MustAddress("203.0.113.1"), RTT: 10 * time.Millisecond},
				},
				TimedOut: 2,
			},
		},
	}

	tr := FromParisResult("example", "192.0.2.1", "udp", r, time.Time{}, time.Time{})
	if !tr.ReachedTarget {
		t.Error("expected ReachedTarget = true")
	}
	if len(tr.Hops) != 1 {
		t.Fatalf("len(Hops) = %d, want 1", len(tr.Hops))
	}
	if len(tr.Hops[0].Probes) != 3 {
		t.Fatalf("len(Probes) = %d, want 3 (1 reply + 2 timeouts)", len(tr.Hops[0].Probes))
	}
}

func TestFromLattice_MarksStarsAsTimeouts(t *testing.T) {
	l := lattice.New()
	root := l.Observe(0, packet.MustAddress("0.0.0.0"), false)
	star := l.Observe(1, packet.Address{}, true)
	l.Link(root, star, 1)

	tr := FromLattice("example", "192.0.2.1", "udp", packet.MustAddress("192.0.2.1"), l, time.Time{}, time.Time{})
	if len(tr.Hops) != 1 {
		t.Fatalf("len(Hops) = %d, want 1 (TTL 0 root excluded)", len(tr.Hops))
	}
	if len(tr.Hops[0].Probes) != 1 || !tr.Hops[0].Probes[0].Timeout {
		t.Errorf("expected a single timeout probe, got %+v", tr.Hops[0].Probes)
	}
}

func TestFromLattice_MarksDestinationReached(t *testing.T) {
	dest := packet.MustAddress("192.0.2.1")
	l := lattice.New()
	root := l.Observe(0, packet.MustAddress("0.0.0.0"), false)
	n := l.Observe(1, dest, false)
	l.Link(root, n, 1)

	tr := FromLattice("example", "192.0.2.1", "udp", dest, l, time.Time{}, time.Time{})
	if !tr.ReachedTarget {
		t.Error("expected ReachedTarget = true when a node matches the destination")
	}
}
