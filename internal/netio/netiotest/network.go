// Package netiotest fakes the raw-socket layer with an in-memory routed
// topology, so internal/ploop and internal/algo/... can be exercised by
// end-to-end tests without opening real sockets or needing CAP_NET_RAW.
// It stands in for internal/netio.Sender and internal/netio.Sniffer behind
// the same two narrow surfaces those types expose to the event loop.
package netiotest

import (
	"time"

	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

// HopResponse describes how one simulated router at a given TTL answers a
// probe: which address the time-exceeded (or final) reply appears to come
// from. A Star hop drops the probe instead of replying, modeling a router
// that is configured not to send ICMP.
type HopResponse struct {
	Addr packet.Address
	Star bool
}

// HopSelector picks which of several candidate routers an arriving flow
// is routed through at one TTL, modeling an ECMP load balancer keyed on
// the packet's flow identifier. A nil selector is only valid for a
// single-candidate hop.
type HopSelector func(flowID uint16) int

// Hop is one TTL's worth of simulated topology: one or more candidate
// routers (more than one models a load-balanced hop) and the selector
// that picks among them.
type Hop struct {
	Candidates []HopResponse
	Select     HopSelector
}

// Topology is an ordered list of hops from TTL 1 to the path's length.
// A probe whose TTL exceeds len(Hops) is treated as having
// reached the destination and gets a destination-class reply instead of
// a time-exceeded.
type Topology struct {
	Hops []Hop

	// DestinationKind is the reply kind returned once a probe's TTL is
	// large enough to reach the end of Hops — probe.ReplyEchoReply for
	// ICMP traceroutes, probe.ReplyDestUnreachablePort for UDP ones.
	DestinationKind probe.ReplyKind
	Destination     packet.Address
}

// StraightPath builds a single-candidate hop at every TTL from 1..n,
// terminated by dest, the simplest of the end-to-end scenarios.
func StraightPath(routers []packet.Address, dest packet.Address, destKind probe.ReplyKind) *Topology {
	t := &Topology{DestinationKind: destKind, Destination: dest}
	for _, r := range routers {
		t.Hops = append(t.Hops, Hop{Candidates: []HopResponse{{Addr: r}}})
	}
	return t
}

// Network turns a Topology into the two faked surfaces the event loop
// drives: Send (mimicking internal/netio.Sender.Send) and Replies
// (mimicking internal/netio.Sniffer.Replies), wiring one directly to the
// other without touching a socket.
type Network struct {
	topo    *Topology
	replies chan probe.Reply
	delay   time.Duration
}

// NewNetwork builds a Network over topo. delay is the simulated
// round-trip latency applied to every reply, letting pacing/timeout
// tests observe realistic ordering.
func NewNetwork(topo *Topology, delay time.Duration) *Network {
	return &Network{topo: topo, replies: make(chan probe.Reply, 256), delay: delay}
}

// Replies mimics internal/netio.Sniffer.Replies.
func (n *Network) Replies() <-chan probe.Reply { return n.replies }

// Send mimics internal/netio.Sender.Send: instead of writing pkt to a
// socket, it looks up the packet's TTL and flow identifier in the
// topology and, after the simulated delay, synthesizes the matching
// probe.Reply (or drops the probe silently for a star hop or a timeout
// scenario the caller modeled by omitting a hop entirely).
func (n *Network) Send(pkt *packet.Packet, _ packet.Address, hopLimit, _ int) (time.Time, error) {
	sentAt := time.Now()

	flowID, err := pkt.FlowID()
	if err != nil {
		return time.Time{}, err
	}
	key, err := probe.KeyFromPacket(pkt, probe.IPIdentifierOf(pkt))
	if err != nil {
		return time.Time{}, err
	}

	go n.deliver(key, flowID, hopLimit, sentAt)
	return sentAt, nil
}

func (n *Network) deliver(key probe.MatchingKey, flowID uint16, ttl int, sentAt time.Time) {
	if n.delay > 0 {
		time.Sleep(n.delay)
	}

	if ttl <= 0 || ttl > len(n.topo.Hops) {
		n.replies <- probe.Reply{
			Kind:   n.topo.DestinationKind,
			From:   n.topo.Destination,
			Key:    key,
			RecvAt: time.Now(),
		}
		return
	}

	hop := n.topo.Hops[ttl-1]
	idx := 0
	if hop.Select != nil {
		idx = hop.Select(flowID)
	}
	if idx < 0 || idx >= len(hop.Candidates) {
		return
	}
	candidate := hop.Candidates[idx]
	if candidate.Star {
		return // no reply: the event loop's timer will expire this probe
	}

	n.replies <- probe.Reply{
		Kind:   probe.ReplyTimeExceeded,
		From:   candidate.Addr,
		Key:    key,
		RecvAt: time.Now(),
	}
}
