package probe

import (
	"encoding/binary"
	"time"

	"github.com/tracelattice/tracelattice/pkg/packet"
)

// ICMPv4 type/code values this runtime classifies.
const (
	icmpv4TimeExceeded      = 11
	icmpv4DestUnreach       = 3
	icmpv4DestUnreachPort   = 3
	icmpv4DestUnreachFragDF = 4 // RFC 1191 Fragmentation Needed and DF Set
	icmpv4EchoReply         = 0
)

// ICMPv6 type/code values this runtime classifies.
const (
	icmpv6TimeExceeded    = 3
	icmpv6DestUnreach     = 1
	icmpv6DestUnreachPort = 4
	icmpv6PacketTooBig    = 2 // RFC 4443
	icmpv6EchoReply       = 129
)

// ParseICMPReply interprets an ICMP message (header onward, outer IP
// already stripped — golang.org/x/net/icmp hands messages over this way)
// and, for time-exceeded and destination-unreachable messages, recovers
// the matching key of the probe it answers by reading the quoted inner
// IP header and first 8 bytes of transport header. Returns ok=false for
// messages this runtime has no use for.
func ParseICMPReply(family packet.Family, icmpPayload []byte, from packet.Address, outerTTL int, outerIPID uint16, recvAt time.Time) (Reply, bool) {
	if len(icmpPayload) < 8 {
		return Reply{}, false
	}
	typ, code := icmpPayload[0], icmpPayload[1]

	kind := classifyICMP(family, typ, code)
	reply := Reply{Kind: kind, From: from, RecvAt: recvAt, OuterTTL: outerTTL, OuterIPID: outerIPID}
	if kind == ReplyEchoReply {
		return reply, true
	}
	if kind == ReplyFragNeeded {
		reply.MTU = parseNextHopMTU(family, icmpPayload)
	}
	if kind != ReplyTimeExceeded && kind != ReplyDestUnreachablePort && kind != ReplyFragNeeded {
		return reply, false
	}

	quoted := icmpPayload[8:]
	key, ok := quotedPacketKey(family, quoted)
	if !ok {
		return reply, false
	}
	reply.Key = key
	if kind == ReplyTimeExceeded {
		reply.MPLS = ExtractMPLSFromICMP(icmpPayload[8:])
	}
	return reply, true
}

// parseNextHopMTU recovers the next-hop MTU a router reports when it
// cannot forward a probe whose IP header has DF set: bytes 6-7
// (big-endian) for ICMPv4 Destination Unreachable/Fragmentation Needed,
// bytes 4-7 for ICMPv6 Packet Too Big, per their respective RFCs.
func parseNextHopMTU(family packet.Family, icmpPayload []byte) int {
	switch family {
	case packet.FamilyV4:
		return int(icmpPayload[6])<<8 | int(icmpPayload[7])
	default:
		if len(icmpPayload) < 8 {
			return 0
		}
		return int(binary.BigEndian.Uint32(icmpPayload[4:8]))
	}
}

func classifyICMP(family packet.Family, typ, code byte) ReplyKind {
	switch family {
	case packet.FamilyV4:
		switch {
		case typ == icmpv4TimeExceeded:
			return ReplyTimeExceeded
		case typ == icmpv4DestUnreach && code == icmpv4DestUnreachFragDF:
			return ReplyFragNeeded
		case typ == icmpv4DestUnreach && code == icmpv4DestUnreachPort:
			return ReplyDestUnreachablePort
		case typ == icmpv4EchoReply:
			return ReplyEchoReply
		default:
			return ReplyOther
		}
	default:
		switch {
		case typ == icmpv6TimeExceeded:
			return ReplyTimeExceeded
		case typ == icmpv6PacketTooBig:
			return ReplyFragNeeded
		case typ == icmpv6DestUnreach && code == icmpv6DestUnreachPort:
			return ReplyDestUnreachablePort
		case typ == icmpv6EchoReply:
			return ReplyEchoReply
		default:
			return ReplyOther
		}
	}
}

// quotedPacketKey rebuilds a MatchingKey from the quoted inner IP header
// and transport bytes an ICMP error carries. For IPv4 it honors a
// variable IHL; for IPv6 it assumes no extension headers, which is what
// every probe this runtime sends produces.
func quotedPacketKey(family packet.Family, quoted []byte) (MatchingKey, bool) {
	var key MatchingKey
	switch family {
	case packet.FamilyV4:
		if len(quoted) < 20 {
			return MatchingKey{}, false
		}
		ihl := int(quoted[0]&0x0f) * 4
		if ihl < 20 || len(quoted) < ihl+8 {
			return MatchingKey{}, false
		}
		var src, dst Address4
		copy(src[:], quoted[12:16])
		copy(dst[:], quoted[16:20])
		srcAddr, _ := packet.NewAddressFromIP(v4Bytes(src))
		dstAddr, _ := packet.NewAddressFromIP(v4Bytes(dst))
		key.Src = srcAddr
		key.Dst = dstAddr
		key.Protocol = quoted[9]
		key.IPIdentifier = uint32(binary.BigEndian.Uint16(quoted[4:6]))
		copy(key.TransportHdr[:], quoted[ihl:ihl+8])
		return key, true
	default:
		if len(quoted) < 40+8 {
			return MatchingKey{}, false
		}
		var src, dst Address16
		copy(src[:], quoted[8:24])
		copy(dst[:], quoted[24:40])
		srcAddr, _ := packet.NewAddressFromIP(v6Bytes(src))
		dstAddr, _ := packet.NewAddressFromIP(v6Bytes(dst))
		key.Src = srcAddr
		key.Dst = dstAddr
		key.Protocol = quoted[6]
		flowLabel := uint32(quoted[1]&0x0f)<<16 | uint32(quoted[2])<<8 | uint32(quoted[3])
		key.IPIdentifier = flowLabel
		copy(key.TransportHdr[:], quoted[40:48])
		return key, true
	}
}

// Address4/Address16 are plain byte arrays used only to stage bytes before
// handing them to net.IP/packet.NewAddressFromIP; packet.Address itself
// keeps its representation private.
type Address4 [4]byte
type Address16 [16]byte
