package algo

import (
	"testing"
	"time"

	"github.com/tracelattice/tracelattice/internal/netio/netiotest"
	"github.com/tracelattice/tracelattice/internal/ploop"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

func testDestination() packet.Address { return packet.MustAddress("192.0.2.1") }

type noopInstance struct{ terminated bool }

func (n *noopInstance) PumpSends(time.Time) []ploop.Send           { return nil }
func (n *noopInstance) HandleReply(time.Time, probe.Outcome)       {}
func (n *noopInstance) HandleTimeout(time.Time, *probe.Probe)      {}
func (n *noopInstance) Events() []any                              { return nil }
func (n *noopInstance) Terminated() bool                            { return n.terminated }
func (n *noopInstance) Result() any                                 { return nil }
func (n *noopInstance) Teardown()                                   {}

func TestHost_RegisterAndNew(t *testing.T) {
	h := NewHost()
	h.Register("noop", func(cfg Config) (ploop.Instance, error) {
		return &noopInstance{}, nil
	})

	net := netiotest.NewNetwork(netiotest.StraightPath(nil, testDestination(), probe.ReplyEchoReply), time.Millisecond)
	loop := ploop.NewLoop(net, net, 0.01)

	handle, err := h.New(loop, "noop", Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if handle.Name != "noop" {
		t.Errorf("Name = %q, want noop", handle.Name)
	}
	if handle.ID.String() == "" {
		t.Error("expected a non-empty uuid tag")
	}
}

func TestHost_NewRejectsUnknownAlgorithm(t *testing.T) {
	h := NewHost()
	net := netiotest.NewNetwork(netiotest.StraightPath(nil, testDestination(), probe.ReplyEchoReply), time.Millisecond)
	loop := ploop.NewLoop(net, net, 0.01)

	if _, err := h.New(loop, "does-not-exist", Config{}); err == nil {
		t.Error("expected error for unregistered algorithm name")
	}
}

func TestHost_ReregisteringReplacesConstructor(t *testing.T) {
	h := NewHost()
	var built string
	h.Register("noop", func(cfg Config) (ploop.Instance, error) { built = "first"; return &noopInstance{}, nil })
	h.Register("noop", func(cfg Config) (ploop.Instance, error) { built = "second"; return &noopInstance{terminated: true}, nil })

	net := netiotest.NewNetwork(netiotest.StraightPath(nil, testDestination(), probe.ReplyEchoReply), time.Millisecond)
	loop := ploop.NewLoop(net, net, 0.01)

	if _, err := h.New(loop, "noop", Config{}); err != nil {
		t.Fatalf("New: %v", err)
	}
	if built != "second" {
		t.Errorf("New used the %s constructor, want the second (replacing) one", built)
	}
}
