package probe

import (
	"time"

	"github.com/tracelattice/tracelattice/pkg/packet"
)

// Probe is an outbound packet enrolled with the runtime: its wire-ready
// packet, the flow identifier it carries, and the matching key the
// runtime will use to pair an eventual reply to it.
type Probe struct {
	ID       uint64
	Owner    uint64 // instance handle that enrolled this probe
	TTL      int
	FlowID   uint16
	Packet   *packet.Packet
	Key      MatchingKey
	SentAt   time.Time
	Attempts int
}

// ReplyKind classifies an inbound ICMP/TCP message by what it tells the
// algorithm about the probe it answers.
type ReplyKind uint8

const (
	ReplyUnknown ReplyKind = iota
	ReplyTimeExceeded
	ReplyDestUnreachablePort
	ReplyEchoReply
	ReplyTCPResetOrSYNACK
	ReplyFragNeeded
	ReplyOther
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyTimeExceeded:
		return "time-exceeded"
	case ReplyDestUnreachablePort:
		return "dest-unreachable-port"
	case ReplyEchoReply:
		return "echo-reply"
	case ReplyTCPResetOrSYNACK:
		return "tcp-reset-synack"
	case ReplyFragNeeded:
		return "fragmentation-needed"
	case ReplyOther:
		return "other"
	default:
		return "unknown"
	}
}

// DestinationReached reports whether a reply of this kind indicates the
// probe's packet reached its destination, per the traceroute CLASSIFY
// step: an ICMP destination-unreachable/port-unreachable, an echo reply,
// or a TCP reset/SYN-ACK all count.
func (k ReplyKind) DestinationReached() bool {
	switch k {
	case ReplyDestUnreachablePort, ReplyEchoReply, ReplyTCPResetOrSYNACK:
		return true
	default:
		return false
	}
}

// Reply is an inbound message parsed off the wire and matched (or not) to
// an outstanding probe.
type Reply struct {
	Kind   ReplyKind
	From   packet.Address
	Key    MatchingKey
	RecvAt time.Time

	// FlowID is set only on a ReplyTCPResetOrSYNACK whose Key could not
	// be derived from a quoted packet (the reply is the destination's
	// own segment, not an intermediate router's quote of ours): it is
	// the TCP destination port of the inbound segment, which carries
	// back the flow identifier our probe wrote into its source port.
	// See Registry.MatchTCPFlow.
	FlowID uint16

	MPLS []MPLSLabel
	MTU  int

	// OuterIPID and OuterTTL are the IPv4 identification field and TTL of
	// this reply's own outer IP header (not the quoted inner one), kept
	// so a hop aggregator can run the NAT heuristics across a run of
	// replies from the same address.
	OuterIPID uint16
	OuterTTL  int
}

// MPLSLabel is one RFC 4950 label-stack entry carried in an ICMP
// extension on a time-exceeded reply.
type MPLSLabel struct {
	Label uint32
	Exp   uint8
	S     bool
	TTL   uint8
}

// Outcome pairs a matched probe with its reply, or marks a probe as
// timed out (Reply is the zero value in that case).
type Outcome struct {
	Probe   *Probe
	Reply   Reply
	Matched bool
}
