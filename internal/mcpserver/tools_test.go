package mcpserver

import (
	"testing"

	"github.com/tracelattice/tracelattice/internal/algo"
)

func TestArgString_FallsBackToDefaultWhenAbsentOrWrongType(t *testing.T) {
	args := map[string]any{"protocol": "udp", "bogus": 5}
	if got := argString(args, "protocol", "icmp"); got != "udp" {
		t.Errorf("argString(protocol) = %q, want udp", got)
	}
	if got := argString(args, "bogus", "icmp"); got != "icmp" {
		t.Errorf("argString(bogus) = %q, want fallback icmp", got)
	}
	if got := argString(args, "missing", "icmp"); got != "icmp" {
		t.Errorf("argString(missing) = %q, want fallback icmp", got)
	}
}

func TestArgInt_ReadsJSONNumberAsFloat64(t *testing.T) {
	args := map[string]any{"max_hops": float64(16)}
	if got := argInt(args, "max_hops", 30); got != 16 {
		t.Errorf("argInt(max_hops) = %d, want 16", got)
	}
	if got := argInt(args, "missing", 30); got != 30 {
		t.Errorf("argInt(missing) = %d, want fallback 30", got)
	}
}

func TestArgBool_ReadsBoolOrFallsBack(t *testing.T) {
	args := map[string]any{"alt_port": true}
	if !argBool(args, "alt_port", false) {
		t.Error("expected alt_port to read true")
	}
	if argBool(args, "missing", false) {
		t.Error("expected fallback false for missing key")
	}
}

func TestBaseOptionsFromArgs_RejectsUnknownProtocol(t *testing.T) {
	_, err := baseOptionsFromArgs(map[string]any{"protocol": "sctp"})
	if err == nil {
		t.Error("expected an error for an unrecognized protocol")
	}
}

func TestBaseOptionsFromArgs_AppliesAltPortDefaults(t *testing.T) {
	opts, err := baseOptionsFromArgs(map[string]any{"protocol": "udp", "alt_port": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	srcWant, dstWant := algo.TransportDefaults(algo.ProtocolUDP, true)
	if opts.SrcPort != srcWant || opts.DstPort != dstWant {
		t.Errorf("ports = %d/%d, want %d/%d", opts.SrcPort, opts.DstPort, srcWant, dstWant)
	}
}

func TestMdaOptionsFromArgs_FillsMDADefaults(t *testing.T) {
	base, err := baseOptionsFromArgs(map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opts := mdaOptionsFromArgs(map[string]any{}, base)
	if opts.Alpha != 0.05 {
		t.Errorf("Alpha = %v, want default 0.05", opts.Alpha)
	}
	if opts.FlowMin == 0 && opts.FlowMax == 0 {
		t.Error("expected a non-zero default flow identifier pool")
	}
	if opts.MaxBranch != 16 {
		t.Errorf("MaxBranch = %d, want default 16", opts.MaxBranch)
	}
}

func TestMdaOptionsFromArgs_HonorsExplicitMaxBranch(t *testing.T) {
	base, err := baseOptionsFromArgs(map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opts := mdaOptionsFromArgs(map[string]any{"mda_max_branch": float64(4)}, base)
	if opts.MaxBranch != 4 {
		t.Errorf("MaxBranch = %d, want 4", opts.MaxBranch)
	}
}

func TestBaseOptionsFromArgs_RejectsPortsWithICMP(t *testing.T) {
	if _, err := baseOptionsFromArgs(map[string]any{"protocol": "icmp", "src_port": float64(12345)}); err == nil {
		t.Error("expected an error for src_port set with ICMP")
	}
	if _, err := baseOptionsFromArgs(map[string]any{"dst_port": float64(53)}); err == nil {
		t.Error("expected an error for dst_port set with the default (ICMP) protocol")
	}
}

func TestBaseOptionsFromArgs_AppliesExplicitPorts(t *testing.T) {
	opts, err := baseOptionsFromArgs(map[string]any{"protocol": "tcp", "src_port": float64(16449), "dst_port": float64(443)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.SrcPort != 16449 || opts.DstPort != 443 {
		t.Errorf("ports = %d/%d, want 16449/443", opts.SrcPort, opts.DstPort)
	}
}
