package hop

import (
	"time"

	"github.com/tracelattice/tracelattice/internal/algo/paris"
	"github.com/tracelattice/tracelattice/pkg/lattice"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

// FromParisResult converts a completed Paris-traceroute run into the
// report model internal/export and internal/display render, running the
// NAT heuristics across each hop's observed reply TTLs/IP-IDs along the
// way.
func FromParisResult(target, targetIP, protocol string, r paris.Result, started, ended time.Time) *TraceResult {
	tr := NewTraceResult(target, targetIP)
	tr.Protocol = protocol
	tr.ReachedTarget = r.Reached
	tr.StartTime = started
	tr.EndTime = ended

	for _, hr := range r.Hops {
		h := NewHop(hr.TTL)
		var ipIDs []uint16
		var ttls []int
		for _, rep := range hr.Replies {
			h.AddProbe(rep.From.IP(), rep.RTT)
			if len(rep.Reply.MPLS) > 0 {
				h.SetMPLS(convertMPLS(rep.Reply.MPLS))
			}
			if rep.Reply.MTU > 0 {
				h.MTU = rep.Reply.MTU
			}
			ipIDs = append(ipIDs, rep.Reply.OuterIPID)
			ttls = append(ttls, rep.Reply.OuterTTL)
		}
		for i := 0; i < hr.TimedOut; i++ {
			h.AddTimeout()
		}
		if len(ipIDs) >= 2 && probe.DetectNATFromIPID(ipIDs) {
			h.NAT = true
		} else {
			for _, t := range ttls {
				if probe.DetectNATFromTTL(hr.TTL, t) {
					h.NAT = true
					break
				}
			}
		}
		tr.AddHop(h)
	}
	return tr
}

func convertMPLS(labels []probe.MPLSLabel) []MPLSLabel {
	out := make([]MPLSLabel, len(labels))
	for i, l := range labels {
		out[i] = MPLSLabel{Label: l.Label, Exp: l.Exp, S: l.S, TTL: l.TTL}
	}
	return out
}

// FromLattice builds the per-TTL report a textual renderer shows above
// the full lattice dump: one hop per TTL, with one probe entry per node
// seen at that TTL (a star node as a timeout, any other node as a reply
// with zero RTT, since the lattice keeps no timings) (MDA's
// full branching is rendered separately by internal/display's lattice
// renderer; this view exists so existing single-path exporters keep
// working in MDA mode too).
func FromLattice(target, targetIP, protocol string, dest packet.Address, l *lattice.Lattice, started, ended time.Time) *TraceResult {
	tr := NewTraceResult(target, targetIP)
	tr.Protocol = protocol
	tr.StartTime = started
	tr.EndTime = ended

	for _, ttlNode := range l.Dump() {
		if ttlNode.TTL == 0 {
			continue // the synthetic source node, not a probed hop
		}
		h := NewHop(ttlNode.TTL)
		for _, n := range ttlNode.Nodes {
			if n.Star {
				h.AddTimeout()
				continue
			}
			h.AddProbe(n.Addr.IP(), 0)
			if n.Addr.Equal(dest) {
				tr.ReachedTarget = true
			}
		}
		tr.AddHop(h)
	}
	return tr
}
