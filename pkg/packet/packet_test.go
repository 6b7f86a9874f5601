package packet

import "testing"

func TestSetProtocols_RejectsUnknownLayer(t *testing.T) {
	var p Packet
	if err := p.SetProtocols("ipv4", "sctp"); err == nil {
		t.Error("expected error for unknown layer")
	}
}

func TestSetProtocols_RejectsIncompatibleStack(t *testing.T) {
	var p Packet
	if err := p.SetProtocols("udp", "ipv4"); err == nil {
		t.Error("expected error stacking ipv4 above udp")
	}
}

func TestSetProtocols_AllocatesHeaders(t *testing.T) {
	var p Packet
	if err := p.SetProtocols("ipv4", "udp", "payload"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := len(p.Bytes()), ipv4HeaderLen+udpHeaderLen; got != want {
		t.Errorf("buffer length = %d, want %d", got, want)
	}
	if got, want := p.PayloadOffset(), ipv4HeaderLen+udpHeaderLen; got != want {
		t.Errorf("payload offset = %d, want %d", got, want)
	}
}

func TestFieldRoundTrip_PreservesValueAcrossFinalize(t *testing.T) {
	tests := []struct {
		name    string
		layers  []string
		key     string
		value   FieldValue
	}{
		{"ipv4 ttl", []string{"ipv4", "udp", "payload"}, "ip.ttl", U8(5)},
		{"ipv4 src", []string{"ipv4", "udp", "payload"}, "ip.src", V4Value(MustAddress("192.0.2.1"))},
		{"ipv6 hop limit", []string{"ipv6", "udp", "payload"}, "ip6.hop_limit", U8(5)},
		{"udp dstport", []string{"ipv4", "udp", "payload"}, "udp.dstport", U16(33456)},
		{"tcp seq", []string{"ipv4", "tcp", "payload"}, "tcp.seq", U32(123456)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Packet
			if err := p.SetProtocols(tt.layers...); err != nil {
				t.Fatalf("SetProtocols: %v", err)
			}
			if err := p.PayloadResize(4); err != nil {
				t.Fatalf("PayloadResize: %v", err)
			}
			if err := p.SetField(tt.key, tt.value); err != nil {
				t.Fatalf("SetField: %v", err)
			}
			if err := p.Finalize(); err != nil {
				t.Fatalf("Finalize: %v", err)
			}
			got, err := p.GetField(tt.key)
			if err != nil {
				t.Fatalf("GetField: %v", err)
			}
			if got.Kind != tt.value.Kind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.value.Kind)
			}
			switch got.Kind {
			case KindU4, KindU8, KindU16, KindU32:
				gv, _ := got.AsU32()
				wv, _ := tt.value.AsU32()
				if gv != wv {
					t.Errorf("value = %d, want %d", gv, wv)
				}
			case KindV4, KindV6:
				ga, _ := got.AsAddress()
				wa, _ := tt.value.AsAddress()
				if !ga.Equal(wa) {
					t.Errorf("value = %s, want %s", ga, wa)
				}
			}
		})
	}
}

func TestFinalize_ProducesValidUDPChecksumOverIPv4(t *testing.T) {
	var p Packet
	if err := p.SetProtocols("ipv4", "udp", "payload"); err != nil {
		t.Fatalf("SetProtocols: %v", err)
	}
	if err := p.PayloadResize(4); err != nil {
		t.Fatalf("PayloadResize: %v", err)
	}
	must(t, p.SetField("ip.src", V4Value(MustAddress("192.0.2.1"))))
	must(t, p.SetField("ip.dst", V4Value(MustAddress("192.0.2.2"))))
	must(t, p.SetField("udp.srcport", U16(33457)))
	must(t, p.SetField("udp.dstport", U16(33456)))
	if err := p.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	l := p.layers[1]
	// UDP's checksum covers the IPv4 pseudo-header as well as the UDP
	// header and payload.
	buf := ipv4PseudoHeader(p.buf, p.layers[0], ProtoUDP, l.Len+len(p.Payload()))
	buf = append(buf, p.buf[l.Offset:l.Offset+l.Len]...)
	buf = append(buf, p.Payload()...)
	if internetChecksum(buf) != 0 {
		t.Errorf("recomputed checksum over header+payload did not fold to zero")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
