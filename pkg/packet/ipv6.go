package packet

// IPv6 fixed header layout (RFC 8200), 40 bytes, no extension headers:
//
//	version(4)/traffic class(8)/flow label(20)   -- bytes 0-3
//	payload length(16) | next header(8) | hop limit(8)
//	source address (16)
//	destination address (16)
const (
	ipv6HeaderLen = 40

	ipv6OffVerClassFlow = 0
	ipv6OffPayloadLen   = 4
	ipv6OffNextHeader   = 6
	ipv6OffHopLimit     = 7
	ipv6OffSrc          = 8
	ipv6OffDst          = 24
)

func init() {
	Register(&LayerDescriptor{
		Name:      "ipv6",
		HeaderLen: func(*Layer) int { return ipv6HeaderLen },
		Above: func(name string) bool {
			switch name {
			case "udp", "tcp", "icmpv6":
				return true
			default:
				return false
			}
		},
		Fields: []FieldDescriptor{
			{Key: "ip6.version", Kind: KindU4, Offset: ipv6OffVerClassFlow, Size: 1},
			// ip6.flowlabel occupies the low 20 bits of bytes 0-3; the
			// field reads and writes all four bytes unmasked (version and
			// traffic class included), and probe.IPIdentifierOf masks it
			// to the label so it can serve as a matching-key field the way
			// spec.4.2 requires for v6.
			{Key: "ip6.flowlabel", Kind: KindU32, Offset: ipv6OffVerClassFlow, Size: 4},
			{Key: "ip6.payload_len", Kind: KindU16, Offset: ipv6OffPayloadLen, Size: 2},
			{Key: "ip6.next_header", Kind: KindU8, Offset: ipv6OffNextHeader, Size: 1},
			{Key: "ip6.hop_limit", Kind: KindU8, Offset: ipv6OffHopLimit, Size: 1},
			{Key: "ip6.src", Kind: KindV6, Offset: ipv6OffSrc, Size: 16},
			{Key: "ip6.dst", Kind: KindV6, Offset: ipv6OffDst, Size: 16},
		},
		WriteHeader: func(pkt *Packet, idx int) error {
			l := &pkt.layers[idx]
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[ipv6OffVerClassFlow] = 0x60 // version 6, traffic class/flow label 0
			buf[ipv6OffHopLimit] = 64
			if idx+1 < len(pkt.layers) {
				buf[ipv6OffNextHeader] = protocolNumberAbove(pkt.layers[idx+1].Descriptor.Name)
			}
			return nil
		},
		Checksum: func(pkt *Packet, idx int) error {
			l := &pkt.layers[idx]
			payloadLen := len(pkt.buf) - (l.Offset + l.Len)
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[ipv6OffPayloadLen] = byte(payloadLen >> 8)
			buf[ipv6OffPayloadLen+1] = byte(payloadLen)
			return nil
		},
	})
}

// ipv6PseudoHeader builds the 40-byte pseudo-header used by UDP/TCP/ICMPv6
// checksums over IPv6: source, destination, upper-layer length, zeros,
// next header.
func ipv6PseudoHeader(buf []byte, ipLayer Layer, nextHeader byte, transportLen int) []byte {
	ph := make([]byte, 40)
	copy(ph[0:16], buf[ipLayer.Offset+ipv6OffSrc:ipLayer.Offset+ipv6OffSrc+16])
	copy(ph[16:32], buf[ipLayer.Offset+ipv6OffDst:ipLayer.Offset+ipv6OffDst+16])
	ph[32] = byte(transportLen >> 24)
	ph[33] = byte(transportLen >> 16)
	ph[34] = byte(transportLen >> 8)
	ph[35] = byte(transportLen)
	ph[39] = nextHeader
	return ph
}
