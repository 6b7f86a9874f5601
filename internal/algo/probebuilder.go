package algo

import (
	"fmt"

	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

// payloadSize is the fixed payload length every built probe carries: two
// bytes are the checksum-compensator's flow-identifier slot for
// UDP/ICMP (see pkg/packet's SetFlowID), the rest padding so the probe
// looks like ordinary traffic on the wire.
const payloadSize = 8

// BuildProbe assembles a wire-ready probe for ttl hops with the given
// covert flow identifier, using opts to pick the transport and real
// source/destination ports. srcAddr and opts.Target must share a family.
func BuildProbe(opts TracerouteOptions, srcAddr packet.Address, ttl int, flowID uint16) (*probe.Probe, error) {
	if srcAddr.Family() != opts.Target.Family() {
		return nil, fmt.Errorf("algo: source/destination address family mismatch")
	}

	var pkt packet.Packet
	layers, err := layerStack(opts.Target.Family(), opts.Protocol)
	if err != nil {
		return nil, err
	}
	if err := pkt.SetProtocols(layers...); err != nil {
		return nil, fmt.Errorf("algo: set protocols %v: %w", layers, err)
	}
	if err := pkt.PayloadResize(payloadSize); err != nil {
		return nil, fmt.Errorf("algo: resize payload: %w", err)
	}

	if err := setAddressFields(&pkt, opts.Target.Family(), srcAddr, opts.Target); err != nil {
		return nil, err
	}
	if err := setTTLField(&pkt, opts.Target.Family(), ttl); err != nil {
		return nil, err
	}
	if err := setPorts(&pkt, opts); err != nil {
		return nil, err
	}

	if err := pkt.SetFlowID(flowID); err != nil {
		return nil, fmt.Errorf("algo: set flow id: %w", err)
	}
	if err := pkt.Finalize(); err != nil {
		return nil, fmt.Errorf("algo: finalize: %w", err)
	}

	return &probe.Probe{TTL: ttl, FlowID: flowID, Packet: &pkt}, nil
}

func layerStack(family packet.Family, protocol Protocol) ([]string, error) {
	var net, transport string
	if family == packet.FamilyV4 {
		net = "ipv4"
	} else {
		net = "ipv6"
	}
	switch protocol {
	case ProtocolUDP:
		transport = "udp"
	case ProtocolTCP:
		transport = "tcp"
	case ProtocolICMP:
		if family == packet.FamilyV4 {
			transport = "icmpv4"
		} else {
			transport = "icmpv6"
		}
	default:
		return nil, fmt.Errorf("algo: unknown protocol %v", protocol)
	}
	return []string{net, transport, "payload"}, nil
}

func setAddressFields(pkt *packet.Packet, family packet.Family, src, dst packet.Address) error {
	if family == packet.FamilyV4 {
		if err := pkt.SetField("ip.src", packet.V4Value(src)); err != nil {
			return err
		}
		return pkt.SetField("ip.dst", packet.V4Value(dst))
	}
	if err := pkt.SetField("ip6.src", packet.V6Value(src)); err != nil {
		return err
	}
	return pkt.SetField("ip6.dst", packet.V6Value(dst))
}

func setTTLField(pkt *packet.Packet, family packet.Family, ttl int) error {
	if family == packet.FamilyV4 {
		return pkt.SetField("ip.ttl", packet.U8(uint8(ttl)))
	}
	return pkt.SetField("ip6.hop_limit", packet.U8(uint8(ttl)))
}

func setPorts(pkt *packet.Packet, opts TracerouteOptions) error {
	switch opts.Protocol {
	case ProtocolUDP:
		if err := pkt.SetField("udp.srcport", packet.U16(uint16(opts.SrcPort))); err != nil {
			return err
		}
		return pkt.SetField("udp.dstport", packet.U16(uint16(opts.DstPort)))
	case ProtocolTCP:
		// tcp.srcport is overwritten by SetFlowID (the flow identifier
		// rides the source port for TCP); only the destination needs
		// setting here.
		return pkt.SetField("tcp.dstport", packet.U16(uint16(opts.DstPort)))
	default:
		return nil // ICMP carries no ports
	}
}

// UpperProtocolNumber returns the IPv6 upper-layer protocol number a
// built probe's transport uses, for selecting the right raw socket.
func UpperProtocolNumber(protocol Protocol, family packet.Family) int {
	switch protocol {
	case ProtocolUDP:
		return packet.ProtoUDP
	case ProtocolTCP:
		return packet.ProtoTCP
	default:
		if family == packet.FamilyV4 {
			return packet.ProtoICMPv4
		}
		return packet.ProtoICMPv6
	}
}
