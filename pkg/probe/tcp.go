package probe

import (
	"encoding/binary"
	"time"
)

// TCP control bits this runtime inspects, RFC 793 byte offset 13.
const (
	tcpFlagSYN = 0x02
	tcpFlagRST = 0x04
	tcpFlagACK = 0x10
)

// ParseTCPSegment interprets a TCP header (any network-layer header
// already stripped by the caller — IPv4 and IPv6 raw sockets disagree on
// whether the header is included on read, so netio's sniffer resolves
// that before calling in) and reports whether it is a reset or a
// SYN-ACK: the destination's own answer to a TCP probe, as opposed to an
// intermediate router's ICMP time-exceeded, which the sniffer's ICMP
// path already handles. A raw TCP capture socket sees every segment
// addressed to the host, so callers must still resolve the segment to
// an outstanding probe before trusting it; ParseTCPSegment only
// classifies.
//
// Unlike an ICMP reply, this segment is not a quote of our own packet:
// there is no sequence number or IP identifier to recover a MatchingKey
// from. The one fact it carries back is the flow identifier our probe
// wrote into its own TCP source port (pkg/packet/tcp.go's SetFlowID),
// echoed here as the segment's destination port — callers resolve the
// originating probe via Registry.MatchTCPFlow, keyed on that plus the
// segment's source address.
func ParseTCPSegment(tcp []byte, recvAt time.Time) (Reply, bool) {
	if len(tcp) < 20 {
		return Reply{}, false
	}
	flags := tcp[13]
	isReset := flags&tcpFlagRST != 0
	isSynAck := flags&(tcpFlagSYN|tcpFlagACK) == tcpFlagSYN|tcpFlagACK
	if !isReset && !isSynAck {
		return Reply{}, false
	}
	return Reply{
		Kind:   ReplyTCPResetOrSYNACK,
		FlowID: binary.BigEndian.Uint16(tcp[2:4]),
		RecvAt: recvAt,
	}, true
}
