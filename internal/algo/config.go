// Package algo hosts the traceroute/MDA algorithm registry and the
// configuration records the CLI layer builds and hands to a Loop.
package algo

import (
	"time"

	"github.com/tracelattice/tracelattice/pkg/packet"
)

// Protocol selects which transport carries a probe's flow identifier.
type Protocol uint8

const (
	ProtocolUDP Protocol = iota
	ProtocolTCP
	ProtocolICMP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolICMP:
		return "icmp"
	default:
		return "udp"
	}
}

// TransportDefaults returns the source/destination ports a probe of the
// given protocol uses by default. altDestination selects the "-U"/"-T"
// variant that targets a conventional well-known port instead of the
// libparistraceroute defaults — 53 for UDP (DNS), 80 for TCP (HTTP) —
// to get past middleboxes that filter the high-numbered defaults.
// ICMP carries no ports; both return values are 0.
//
// The teacher's own UDP tracer instead defaults to port 33434
// (traceroute(8)'s traditional base port); that value is kept here only
// as this comment, never as a live default, so behavior matches the
// libparistraceroute lineage this algorithm set implements.
func TransportDefaults(protocol Protocol, altDestination bool) (srcPort, dstPort int) {
	switch protocol {
	case ProtocolUDP:
		if altDestination {
			return 33456, 53
		}
		return 33456, 33457
	case ProtocolTCP:
		if altDestination {
			return 16449, 80
		}
		return 16449, 16963
	default:
		return 0, 0
	}
}

// TracerouteOptions configures one Paris-traceroute run.
type TracerouteOptions struct {
	Target   packet.Address
	Protocol Protocol

	FirstTTL int
	MaxTTL   int

	NumProbes int

	SrcPort, DstPort int // ignored for ICMP

	Timeout      time.Duration
	MinInterSend float64 // seconds, or milliseconds if >10

	// MaxOutstandingMultiplier bounds in-flight probes at this instance
	// at MaxOutstandingMultiplier*NumProbes (default 8, per §5).
	MaxOutstandingMultiplier int
}

// WithDefaults fills unset fields with the specification's documented
// defaults, leaving explicit caller values untouched.
func (o TracerouteOptions) WithDefaults() TracerouteOptions {
	if o.FirstTTL == 0 {
		o.FirstTTL = 1
	}
	if o.MaxTTL == 0 {
		o.MaxTTL = 30
	}
	if o.NumProbes == 0 {
		o.NumProbes = 3
	}
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Second
	}
	if o.MinInterSend == 0 {
		o.MinInterSend = 0.01
	}
	if o.MaxOutstandingMultiplier == 0 {
		o.MaxOutstandingMultiplier = 8
	}
	if o.SrcPort == 0 && o.DstPort == 0 && o.Protocol != ProtocolICMP {
		o.SrcPort, o.DstPort = TransportDefaults(o.Protocol, false)
	}
	return o
}

// MDAOptions configures one MDA run; it embeds TracerouteOptions since
// MDA is a generalization of the same per-TTL probing loop.
type MDAOptions struct {
	TracerouteOptions

	// Alpha is the confidence parameter for the stopping rule (default
	// 0.05): the algorithm keeps probing an interface until it is at
	// least 1-Alpha confident no further next-hops remain.
	Alpha float64

	FlowMin, FlowMax uint16

	// MaxBranch caps the number of distinct next-hop interfaces this
	// algorithm will track per node (default 16): once a node's known
	// branching factor reaches it, that interface's enumeration is
	// considered complete regardless of the stopping rule's confidence
	// level, bounding probe volume against a pathologically
	// high-fan-out load balancer.
	MaxBranch int
}

// WithDefaults fills unset fields with the specification's documented
// MDA defaults on top of the embedded traceroute defaults.
func (o MDAOptions) WithDefaults() MDAOptions {
	o.TracerouteOptions = o.TracerouteOptions.WithDefaults()
	if o.Alpha == 0 {
		o.Alpha = 0.05
	}
	if o.FlowMin == 0 && o.FlowMax == 0 {
		// 1024..65000: the well-known range below 1024 and the top of
		// the 16-bit space are left out. The transport default ports
		// (33456, 33457, 16449, 16963) lie inside this range and are not
		// excluded from it.
		o.FlowMin, o.FlowMax = 1024, 65000
	}
	if o.MaxBranch == 0 {
		o.MaxBranch = 16
	}
	return o
}

// Config is the variant record the CLI layer builds: exactly one of
// Traceroute or MDA is set, selecting which algorithm constructor runs.
type Config struct {
	Traceroute *TracerouteOptions
	MDA        *MDAOptions
}
