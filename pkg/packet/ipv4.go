package packet

// IPv4 header layout (no options), RFC 791:
//
//	0        1        2                  3
//	version/ihl | tos  | total length
//	identification      | flags/fragoff
//	ttl      | protocol | header checksum
//	source address
//	destination address
const (
	ipv4HeaderLen = 20

	ipv4OffVersion  = 0
	ipv4OffTOS      = 1
	ipv4OffTotalLen = 2
	ipv4OffID       = 4
	ipv4OffFlagsOff = 6
	ipv4OffTTL      = 8
	ipv4OffProtocol = 9
	ipv4OffChecksum = 10
	ipv4OffSrc      = 12
	ipv4OffDst      = 16
)

// IP protocol numbers used to link a layer to the one above it.
const (
	ProtoICMPv4 = 1
	ProtoTCP    = 6
	ProtoUDP    = 17
	ProtoICMPv6 = 58
)

func init() {
	Register(&LayerDescriptor{
		Name:      "ipv4",
		HeaderLen: func(*Layer) int { return ipv4HeaderLen },
		Above: func(name string) bool {
			switch name {
			case "udp", "tcp", "icmpv4":
				return true
			default:
				return false
			}
		},
		Fields: []FieldDescriptor{
			{Key: "ip.version", Kind: KindU4, Offset: ipv4OffVersion, Size: 1},
			{Key: "ip.tos", Kind: KindU8, Offset: ipv4OffTOS, Size: 1},
			{Key: "ip.len", Kind: KindU16, Offset: ipv4OffTotalLen, Size: 2},
			{Key: "ip.id", Kind: KindU16, Offset: ipv4OffID, Size: 2},
			{Key: "ip.flags_frag", Kind: KindU16, Offset: ipv4OffFlagsOff, Size: 2},
			{Key: "ip.ttl", Kind: KindU8, Offset: ipv4OffTTL, Size: 1},
			{Key: "ip.protocol", Kind: KindU8, Offset: ipv4OffProtocol, Size: 1},
			{Key: "ip.checksum", Kind: KindU16, Offset: ipv4OffChecksum, Size: 2},
			{Key: "ip.src", Kind: KindV4, Offset: ipv4OffSrc, Size: 4},
			{Key: "ip.dst", Kind: KindV4, Offset: ipv4OffDst, Size: 4},
		},
		WriteHeader: func(pkt *Packet, idx int) error {
			l := &pkt.layers[idx]
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[ipv4OffVersion] = 0x45 // version 4, IHL 5 (20 bytes, no options)
			buf[ipv4OffTTL] = 64
			if idx+1 < len(pkt.layers) {
				buf[ipv4OffProtocol] = protocolNumberAbove(pkt.layers[idx+1].Descriptor.Name)
			}
			return nil
		},
		Checksum: func(pkt *Packet, idx int) error {
			l := &pkt.layers[idx]
			totalLen := len(pkt.buf) - l.Offset
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[ipv4OffTotalLen] = byte(totalLen >> 8)
			buf[ipv4OffTotalLen+1] = byte(totalLen)
			buf[ipv4OffChecksum] = 0
			buf[ipv4OffChecksum+1] = 0
			csum := internetChecksum(buf)
			buf[ipv4OffChecksum] = byte(csum >> 8)
			buf[ipv4OffChecksum+1] = byte(csum)
			return nil
		},
	})
}

func protocolNumberAbove(name string) byte {
	switch name {
	case "udp":
		return ProtoUDP
	case "tcp":
		return ProtoTCP
	case "icmpv4":
		return ProtoICMPv4
	case "icmpv6":
		return ProtoICMPv6
	default:
		return 0
	}
}

// ipv4PseudoHeader builds the 12-byte pseudo-header used by UDP/TCP
// checksums over IPv4: source, destination, zero, protocol, length.
func ipv4PseudoHeader(buf []byte, ipLayer Layer, protocol byte, transportLen int) []byte {
	ph := make([]byte, 12)
	copy(ph[0:4], buf[ipLayer.Offset+ipv4OffSrc:ipLayer.Offset+ipv4OffSrc+4])
	copy(ph[4:8], buf[ipLayer.Offset+ipv4OffDst:ipLayer.Offset+ipv4OffDst+4])
	ph[8] = 0
	ph[9] = protocol
	ph[10] = byte(transportLen >> 8)
	ph[11] = byte(transportLen)
	return ph
}
