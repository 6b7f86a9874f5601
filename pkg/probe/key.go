// Package probe wraps assembled packets with send/receive metadata and
// matches ICMP replies back to the probe that elicited them.
package probe

import "github.com/tracelattice/tracelattice/pkg/packet"

// MatchingKey is exactly the set of header fields an ICMP time-exceeded
// quotes verbatim from the packet that triggered it: source and
// destination address, IP protocol number, the IPv4 identification field
// (or IPv6 flow label), and the first 8 bytes of the transport header.
// Two probes that produce the same key are, from the network's point of
// view, indistinguishable.
type MatchingKey struct {
	Src, Dst     packet.Address
	Protocol     uint8
	IPIdentifier uint32
	TransportHdr [8]byte
}

// KeyFromPacket derives the matching key a finalized outbound packet would
// be quoted back as. ipIdentifier is the IPv4 identification field or, for
// IPv6, the 20-bit flow label.
func KeyFromPacket(pkt *packet.Packet, ipIdentifier uint32) (MatchingKey, error) {
	layers := pkt.Layers()
	if len(layers) < 2 {
		return MatchingKey{}, errShortPacket
	}
	netLayer := layers[0]

	var key MatchingKey
	switch netLayer.Descriptor.String() {
	case "ipv4":
		src, err := pkt.GetField("ip.src")
		if err != nil {
			return MatchingKey{}, err
		}
		dst, err := pkt.GetField("ip.dst")
		if err != nil {
			return MatchingKey{}, err
		}
		proto, err := pkt.GetField("ip.protocol")
		if err != nil {
			return MatchingKey{}, err
		}
		key.Src, _ = src.AsAddress()
		key.Dst, _ = dst.AsAddress()
		p, _ := proto.AsU32()
		key.Protocol = uint8(p)
	case "ipv6":
		src, err := pkt.GetField("ip6.src")
		if err != nil {
			return MatchingKey{}, err
		}
		dst, err := pkt.GetField("ip6.dst")
		if err != nil {
			return MatchingKey{}, err
		}
		proto, err := pkt.GetField("ip6.next_header")
		if err != nil {
			return MatchingKey{}, err
		}
		key.Src, _ = src.AsAddress()
		key.Dst, _ = dst.AsAddress()
		p, _ := proto.AsU32()
		key.Protocol = uint8(p)
	default:
		return MatchingKey{}, errUnknownNetworkLayer
	}
	key.IPIdentifier = ipIdentifier

	transport := layers[1]
	buf := pkt.Bytes()
	start := transport.Offset
	n := copy(key.TransportHdr[:], buf[start:])
	_ = n
	return key, nil
}

// IPIdentifierOf reads whichever of ip.id (IPv4) or ip6.flowlabel (IPv6)
// an outbound packet carries, for passing to KeyFromPacket — the same
// value a reply's quoted header would later be parsed back into.
func IPIdentifierOf(pkt *packet.Packet) uint32 {
	if v, err := pkt.GetField("ip.id"); err == nil {
		if u, err := v.AsU32(); err == nil {
			return u
		}
	}
	if v, err := pkt.GetField("ip6.flowlabel"); err == nil {
		if u, err := v.AsU32(); err == nil {
			return u & 0xfffff // the field spans bytes 0-3; keep the 20-bit label
		}
	}
	return 0
}
