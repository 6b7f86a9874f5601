package packet

import "encoding/binary"

// ICMPv4 echo request/reply header, RFC 792: type, code, checksum,
// identifier, sequence number.
const (
	icmpv4HeaderLen = 8

	icmpv4OffType     = 0
	icmpv4OffCode     = 1
	icmpv4OffChecksum = 2
	icmpv4OffID       = 4
	icmpv4OffSeq      = 6

	ICMPv4TypeEchoRequest       = 8
	ICMPv4TypeEchoReply         = 0
	ICMPv4TypeDestUnreachable   = 3
	ICMPv4TypeTimeExceeded      = 11
	ICMPv4CodePortUnreachable   = 3
	ICMPv4CodeFragNeeded        = 4
	ICMPv4CodeTTLExceeded       = 0
)

func init() {
	Register(&LayerDescriptor{
		Name:      "icmpv4",
		HeaderLen: func(*Layer) int { return icmpv4HeaderLen },
		Above: func(name string) bool {
			return false
		},
		Fields: []FieldDescriptor{
			{Key: "icmp.type", Kind: KindU8, Offset: icmpv4OffType, Size: 1},
			{Key: "icmp.code", Kind: KindU8, Offset: icmpv4OffCode, Size: 1},
			{Key: "icmp.checksum", Kind: KindU16, Offset: icmpv4OffChecksum, Size: 2},
			{Key: "icmp.id", Kind: KindU16, Offset: icmpv4OffID, Size: 2},
			{Key: "icmp.seq", Kind: KindU16, Offset: icmpv4OffSeq, Size: 2},
		},
		WriteHeader: func(pkt *Packet, idx int) error {
			l := &pkt.layers[idx]
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[icmpv4OffType] = ICMPv4TypeEchoRequest
			return nil
		},
		Checksum: func(pkt *Packet, idx int) error {
			l := &pkt.layers[idx]
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[icmpv4OffChecksum] = 0
			buf[icmpv4OffChecksum+1] = 0
			// ICMPv4's checksum covers only its own header and payload, no
			// pseudo-header, unlike UDP/TCP.
			csum := uint16(^foldSum16Chain(0, pkt.buf[l.Offset:l.Offset+l.Len], pkt.Payload()) & 0xffff)
			buf[icmpv4OffChecksum] = byte(csum >> 8)
			buf[icmpv4OffChecksum+1] = byte(csum)
			return nil
		},
		// ICMP echo's 8-byte header is, like UDP's, entirely within the
		// bytes a time-exceeded quotes back, so the checksum compensator
		// applies the same way.
		SetFlowID: func(pkt *Packet, idx int, flowID uint16) error {
			l := &pkt.layers[idx]
			payload := pkt.Payload()
			if len(payload) < 2 {
				return errNeedsCompensatorRoom
			}
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[icmpv4OffChecksum] = 0
			buf[icmpv4OffChecksum+1] = 0
			comp := payload[len(payload)-2:]
			comp[0], comp[1] = 0, 0

			baseSum := foldSum16Chain(0, pkt.buf[l.Offset:l.Offset+l.Len], payload)
			c := compensate(baseSum, flowID)
			binary.BigEndian.PutUint16(comp, c)
			return nil
		},
		FlowID: func(pkt *Packet, idx int) (uint16, error) {
			l := &pkt.layers[idx]
			return binary.BigEndian.Uint16(pkt.buf[l.Offset+icmpv4OffChecksum : l.Offset+icmpv4OffChecksum+2]), nil
		},
	})
}
