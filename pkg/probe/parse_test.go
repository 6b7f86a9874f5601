package probe

import (
	"net"
	"testing"
	"time"

	"github.com/tracelattice/tracelattice/pkg/packet"
)

func TestParseICMPReply_TimeExceededRecoversMatchingKey(t *testing.T) {
	quotedIP := []byte{
		0x45, 0x00, 0x00, 0x1c, // version/ihl, tos, total length
		0x12, 0x34, 0x00, 0x00, // identification, flags/frag
		0x01, 0x11, 0x00, 0x00, // ttl=1, protocol=UDP(17), checksum
		198, 51, 100, 10, // source
		198, 51, 100, 1, // destination
	}
	quotedUDP := []byte{0x82, 0x91, 0x82, 0x90, 0x00, 0x08, 0xab, 0xcd} // srcport, dstport, len, checksum

	icmpPayload := append([]byte{11, 0, 0, 0, 0, 0, 0, 0}, append(quotedIP, quotedUDP...)...)

	from, _ := packet.NewAddressFromIP(net.ParseIP("198.51.100.10"))
	reply, ok := ParseICMPReply(packet.FamilyV4, icmpPayload, from, 250, 0, time.Now())
	if !ok {
		t.Fatal("expected a recognized time-exceeded reply")
	}
	if reply.Kind != ReplyTimeExceeded {
		t.Errorf("kind = %s, want time-exceeded", reply.Kind)
	}
	if reply.Key.Protocol != 17 {
		t.Errorf("protocol = %d, want 17", reply.Key.Protocol)
	}
	if reply.Key.IPIdentifier != 0x1234 {
		t.Errorf("IP identifier = %#x, want 0x1234", reply.Key.IPIdentifier)
	}
	wantTransport := [8]byte{0x82, 0x91, 0x82, 0x90, 0x00, 0x08, 0xab, 0xcd}
	if reply.Key.TransportHdr != wantTransport {
		t.Errorf("transport header = %v, want %v", reply.Key.TransportHdr, wantTransport)
	}
}

func TestParseICMPReply_TooShortIsUnrecognized(t *testing.T) {
	from, _ := packet.NewAddressFromIP(net.ParseIP("198.51.100.10"))
	if _, ok := ParseICMPReply(packet.FamilyV4, []byte{11, 0, 0}, from, 0, 0, time.Now()); ok {
		t.Error("expected short ICMP payload to be rejected")
	}
}

func TestParseICMPReply_EchoReplyNeedsNoQuotedPacket(t *testing.T) {
	from, _ := packet.NewAddressFromIP(net.ParseIP("198.51.100.1"))
	icmpPayload := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	reply, ok := ParseICMPReply(packet.FamilyV4, icmpPayload, from, 60, 0, time.Now())
	if !ok || reply.Kind != ReplyEchoReply {
		t.Errorf("expected echo reply, got kind=%s ok=%v", reply.Kind, ok)
	}
}

func TestParseICMPReply_V4FragNeededRecoversMTUAndMatchingKey(t *testing.T) {
	quotedIP := []byte{
		0x45, 0x00, 0x00, 0x1c,
		0x12, 0x34, 0x00, 0x00,
		0x01, 0x11, 0x00, 0x00,
		198, 51, 100, 10,
		198, 51, 100, 1,
	}
	quotedUDP := []byte{0x82, 0x91, 0x82, 0x90, 0x00, 0x08, 0xab, 0xcd}
	// Type=3, Code=4, checksum=0, unused=0, next-hop MTU=1400 (0x0578)
	icmpPayload := append([]byte{3, 4, 0, 0, 0, 0, 0x05, 0x78}, append(quotedIP, quotedUDP...)...)

	from, _ := packet.NewAddressFromIP(net.ParseIP("198.51.100.10"))
	reply, ok := ParseICMPReply(packet.FamilyV4, icmpPayload, from, 45, 0, time.Now())
	if !ok {
		t.Fatal("expected a recognized fragmentation-needed reply")
	}
	if reply.Kind != ReplyFragNeeded {
		t.Errorf("kind = %s, want fragmentation-needed", reply.Kind)
	}
	if reply.MTU != 1400 {
		t.Errorf("MTU = %d, want 1400", reply.MTU)
	}
	if reply.Key.Protocol != 17 {
		t.Errorf("protocol = %d, want 17", reply.Key.Protocol)
	}
}

func TestParseICMPReply_V6PacketTooBigRecoversMTU(t *testing.T) {
	quotedIPv6 := make([]byte, 40)
	quotedIPv6[6] = 17 // next header = UDP
	quotedTransport := []byte{0x82, 0x91, 0x82, 0x90, 0x00, 0x08, 0xab, 0xcd}
	// Type=2 (Packet Too Big), Code=0, checksum=0, MTU=1280 (0x00000500)
	icmpPayload := append([]byte{2, 0, 0, 0, 0x00, 0x00, 0x05, 0x00}, append(quotedIPv6, quotedTransport...)...)

	from, _ := packet.NewAddressFromIP(net.ParseIP("2001:db8::1"))
	reply, ok := ParseICMPReply(packet.FamilyV6, icmpPayload, from, 45, 0, time.Now())
	if !ok {
		t.Fatal("expected a recognized packet-too-big reply")
	}
	if reply.Kind != ReplyFragNeeded {
		t.Errorf("kind = %s, want fragmentation-needed", reply.Kind)
	}
	if reply.MTU != 1280 {
		t.Errorf("MTU = %d, want 1280", reply.MTU)
	}
}
