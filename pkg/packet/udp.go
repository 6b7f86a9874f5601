package packet

import "encoding/binary"

// UDP header, RFC 768: source port, destination port, length, checksum.
const (
	udpHeaderLen = 8

	udpOffSrcPort  = 0
	udpOffDstPort  = 2
	udpOffLength   = 4
	udpOffChecksum = 6
)

func init() {
	Register(&LayerDescriptor{
		Name:      "udp",
		HeaderLen: func(*Layer) int { return udpHeaderLen },
		Above: func(name string) bool {
			return false
		},
		Fields: []FieldDescriptor{
			{Key: "udp.srcport", Kind: KindU16, Offset: udpOffSrcPort, Size: 2},
			{Key: "udp.dstport", Kind: KindU16, Offset: udpOffDstPort, Size: 2},
			{Key: "udp.length", Kind: KindU16, Offset: udpOffLength, Size: 2},
			{Key: "udp.checksum", Kind: KindU16, Offset: udpOffChecksum, Size: 2},
		},
		Checksum: func(pkt *Packet, idx int) error {
			l := &pkt.layers[idx]
			total := len(pkt.buf) - l.Offset
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			buf[udpOffLength] = byte(total >> 8)
			buf[udpOffLength+1] = byte(total)
			buf[udpOffChecksum] = 0
			buf[udpOffChecksum+1] = 0

			base, err := transportBaseSum(pkt, idx, ProtoUDP, total)
			if err != nil {
				return err
			}
			csum := uint16(^foldSum16Chain(base, pkt.buf[l.Offset:l.Offset+l.Len], pkt.Payload()) & 0xffff)
			if csum == 0 {
				csum = 0xffff
			}
			buf[udpOffChecksum] = byte(csum >> 8)
			buf[udpOffChecksum+1] = byte(csum)
			return nil
		},
		// SetFlowID implements the checksum-compensator trick: UDP's 8-byte
		// header is entirely within the 8 bytes an ICMP time-exceeded
		// quotes back, so making the checksum field itself equal the flow
		// identifier is sufficient — no separate bookkeeping is needed on
		// the receive side.
		SetFlowID: func(pkt *Packet, idx int, flowID uint16) error {
			l := &pkt.layers[idx]
			payload := pkt.Payload()
			if len(payload) < 2 {
				return errNeedsCompensatorRoom
			}
			buf := pkt.buf[l.Offset : l.Offset+l.Len]
			total := len(pkt.buf) - l.Offset
			// The length field is covered by the checksum, so it must hold
			// its final value before the compensator is derived.
			buf[udpOffLength] = byte(total >> 8)
			buf[udpOffLength+1] = byte(total)
			buf[udpOffChecksum] = 0
			buf[udpOffChecksum+1] = 0
			comp := payload[len(payload)-2:]
			comp[0], comp[1] = 0, 0

			base, err := transportBaseSum(pkt, idx, ProtoUDP, total)
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
			return binary.BigEndian.Uint16(pkt.buf[l.Offset+udpOffChecksum : l.Offset+udpOffChecksum+2]), nil
		},
	})
}

// transportBaseSum folds the pseudo-header contributed by the layer below
// idx into a running one's-complement sum, keyed off that layer's address
// family.
func transportBaseSum(pkt *Packet, idx int, protocol byte, transportLen int) (uint32, error) {
	if idx == 0 {
		return 0, errNoNetworkLayer
	}
	below := &pkt.layers[idx-1]
	switch below.Descriptor.Name {
	case "ipv4":
		return foldSum16(ipv4PseudoHeader(pkt.buf, *below, protocol, transportLen)), nil
	case "ipv6":
		return foldSum16(ipv6PseudoHeader(pkt.buf, *below, protocol, transportLen)), nil
	default:
		return 0, errNoNetworkLayer
	}
}

// foldSum16Chain combines a running sum with one or more additional byte
// regions, each folded and added in one's-complement.
func foldSum16Chain(sum uint32, regions ...[]byte) uint32 {
	for _, r := range regions {
		sum = onesComplementAdd(sum, foldSum16(r))
	}
	return sum
}
