package mcpserver

import (
	"fmt"
	"time"

	"github.com/tracelattice/tracelattice/internal/algo"
)

// argString reads a string argument from an MCP tool call's argument
// map, falling back to def when absent or the wrong type.
func argString(args map[string]any, key, def string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func argFloat(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return def
}

func argInt(args map[string]any, key string, def int) int {
	return int(argFloat(args, key, float64(def)))
}

func argBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// baseOptionsFromArgs builds the TracerouteOptions common to both tools
// from a tool call's raw argument map; target resolution is the
// caller's job since it needs a context and the address family choice.
func baseOptionsFromArgs(args map[string]any) (algo.TracerouteOptions, error) {
	protoStr := argString(args, "protocol", "icmp")
	protocol, err := parseToolProtocol(protoStr)
	if err != nil {
		return algo.TracerouteOptions{}, err
	}

	opts := algo.TracerouteOptions{
		Protocol:  protocol,
		FirstTTL:  argInt(args, "first_ttl", 0),
		MaxTTL:    argInt(args, "max_hops", 0),
		NumProbes: argInt(args, "probes", 0),
		SrcPort:   argInt(args, "src_port", 0),
		DstPort:   argInt(args, "dst_port", 0),
	}
	if protocol == algo.ProtocolICMP && (opts.SrcPort != 0 || opts.DstPort != 0) {
		return algo.TracerouteOptions{}, fmt.Errorf("src_port/dst_port are not meaningful for ICMP tracerouting")
	}
	if timeoutStr := argString(args, "timeout", ""); timeoutStr != "" {
		d, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return algo.TracerouteOptions{}, fmt.Errorf("invalid timeout %q: %w", timeoutStr, err)
		}
		opts.Timeout = d
	}
	if opts.SrcPort == 0 && opts.DstPort == 0 && argBool(args, "alt_port", false) {
		opts.SrcPort, opts.DstPort = algo.TransportDefaults(protocol, true)
	}
	return opts.WithDefaults(), nil
}

func parseToolProtocol(s string) (algo.Protocol, error) {
	switch s {
	case "icmp", "":
		return algo.ProtocolICMP, nil
	case "udp":
		return algo.ProtocolUDP, nil
	case "tcp":
		return algo.ProtocolTCP, nil
	default:
		return 0, fmt.Errorf("invalid protocol %q: must be icmp, udp, or tcp", s)
	}
}

func mdaOptionsFromArgs(args map[string]any, base algo.TracerouteOptions) algo.MDAOptions {
	return algo.MDAOptions{
		TracerouteOptions: base,
		Alpha:             argFloat(args, "alpha", 0),
		FlowMin:           uint16(argInt(args, "flow_min", 0)),
		FlowMax:           uint16(argInt(args, "flow_max", 0)),
		MaxBranch:         argInt(args, "mda_max_branch", 0),
	}.WithDefaults()
}
