package packet

import "encoding/binary"

// ICMPv6 echo request/reply header, RFC 4443: type, code, checksum,
// identifier, sequence number. Unlike ICMPv4, its checksum covers the
// IPv6 pseudo-header.
const (
	icmpv6HeaderLen = 8

	icmpv6OffType     = 0
	icmpv6OffCode     = 1
	icmpv6OffChecksum = 2
	icmpv6OffID       = 4
	icmpv6OffSeq      = 6

	ICMPv6TypeEchoRequest  = 128
	ICMPv6TypeEchoReply    = 129
	ICMPv6TypeTimeExceeded = 3
	ICMPv6TypeDestUnreach  = 1
	ICMPv6CodePortUnreach  = 4
	ICMPv6CodeHopLimit     = 0

	// icmpNextHeader is the IPv6 next-header value for ICMPv6, distinct
	// from the IPv4 protocol-number constant of the same value.
	icmpNextHeader = 58
)

func init() {
	Register(&LayerDescriptor{
		Name:      "icmpv6",
		HeaderLen: func(*Layer) int { return icmpv6HeaderLen },
		Above: func(name string) bool {
			return false
		},
		Fields: []FieldDescriptor{
			{Key: "icmp6.type", Kind: KindU8, Offset: icmpv6OffType, Size: 1},
			{Key: "icmp6.code", Kind: KindU8, Offset: icmpv6OffCode, Size: 1},
			{Key: "icmp6.checksum", Kind: KindU16, Offset: icmpv6OffChecksum, Size: 2},
			{Key: "icmp6.id", Kind: KindU16, Offset: icmpv6OffID, Size: 2},
			{Key: "icmp6.seq", Kind: KindU16, Offset: icmpv6OffSeq, Size: 2},
		},
		WriteHeader: func(pkt *Packet, idx int) error {
			l := &pkt.layers[idx]
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[icmpv6OffType] = ICMPv6TypeEchoRequest
			return nil
		},
		Checksum: func(pkt *Packet, idx int) error {
			l := &pkt.layers[idx]
			total := len(pkt.buf) - l.Offset
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[icmpv6OffChecksum] = 0
			buf[icmpv6OffChecksum+1] = 0

			base, err := icmpv6BaseSum(pkt, idx, total)
			if err != nil {
				return err
			}
			csum := uint16(^foldSum16Chain(base, pkt.buf[l.Offset:l.Offset+l.Len], pkt.Payload()) & 0xffff)
			buf[icmpv6OffChecksum] = byte(csum >> 8)
			buf[icmpv6OffChecksum+1] = byte(csum)
			return nil
		},
		SetFlowID: func(pkt *Packet, idx int, flowID uint16) error {
			l := &pkt.layers[idx]
			payload := pkt.Payload()
			if len(payload) < 2 {
				return errNeedsCompensatorRoom
			}
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[icmpv6OffChecksum] = 0
			buf[icmpv6OffChecksum+1] = 0
			comp := payload[len(payload)-2:]
			comp[0], comp[1] = 0, 0

			total := len(pkt.buf) - l.Offset
			base, err := icmpv6BaseSum(pkt, idx, total)
			if err != nil {
				return err
			}
			baseSum := foldSum16Chain(base, pkt.buf[l.Offset:l.Offset+l.Len], payload)
			c := compensate(baseSum, flowID)
			binary.BigEndian.PutUint16(comp, c)
			return nil
		},
		FlowID: func(pkt *Packet, idx int) (uint16, error) {
			l := &pkt.layers[idx]
			return binary.BigEndian.Uint16(pkt.buf[l.Offset+icmpv6OffChecksum : l.Offset+icmpv6OffChecksum+2]), nil
		},
	})
}

func icmpv6BaseSum(pkt *Packet, idx int, transportLen int) (uint32, error) {
	if idx == 0 {
		return 0, errNoNetworkLayer
	}
	below := &pkt.layers[idx-1]
	if below.Descriptor.Name != "ipv6" {
		return 0, errNoNetworkLayer
	}
	return foldSum16(ipv6PseudoHeader(pkt.buf, *below, icmpNextHeader, transportLen)), nil
}
