package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracelattice/tracelattice/internal/algo"
)

// cliConfig holds the parsed CLI configuration, mirroring the teacher's
// own flat Config-struct-plus-Cobra-flags idiom.
type cliConfig struct {
	Target string `yaml:"target"`

	Algorithm string `yaml:"algorithm"` // "traceroute" or "mda"

	Protocol string `yaml:"protocol"` // icmp|udp|tcp
	AltUDP   bool   `yaml:"-"`        // -U: UDP to port 53
	AltTCP   bool   `yaml:"-"`        // -T: TCP to port 80

	SrcPort int `yaml:"src_port"`
	DstPort int `yaml:"dst_port"`

	FirstTTL      int     `yaml:"first_ttl"`
	MaxHops       int     `yaml:"max_hops"`
	Probes        int     `yaml:"probes"`
	Timeout       string  `yaml:"timeout"`
	MinIntervalMs float64 `yaml:"min_inter_send_ms"`

	Alpha        float64 `yaml:"alpha"`
	FlowMin      int     `yaml:"flow_min"`
	FlowMax      int     `yaml:"flow_max"`
	MDAMaxBranch int     `yaml:"mda_max_branch"`

	Simple  bool `yaml:"-"`
	NoColor bool `yaml:"-"`

	Output string `yaml:"-"`
	Format string `yaml:"-"`

	IPv4Only bool `yaml:"-"`
	IPv6Only bool `yaml:"-"`

	Verbose bool `yaml:"-"`
	DryRun  bool `yaml:"-"`

	ConfigFile string `yaml:"-"`
}

// loadConfigFile merges a YAML config file's values into cfg. It runs
// after Cobra has parsed the flags and fills in only the fields that are
// still at their zero value, so a value given on the command line always
// wins over the file.
func loadConfigFile(path string, cfg *cliConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var fromFile cliConfig
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Target == "" {
		cfg.Target = fromFile.Target
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = fromFile.Algorithm
	}
	if cfg.Protocol == "" {
		cfg.Protocol = fromFile.Protocol
	}
	if cfg.FirstTTL == 0 {
		cfg.FirstTTL = fromFile.FirstTTL
	}
	if cfg.MaxHops == 0 {
		cfg.MaxHops = fromFile.MaxHops
	}
	if cfg.Probes == 0 {
		cfg.Probes = fromFile.Probes
	}
	if cfg.Timeout == "" {
		cfg.Timeout = fromFile.Timeout
	}
	if cfg.MinIntervalMs == 0 {
		cfg.MinIntervalMs = fromFile.MinIntervalMs
	}
	if cfg.Alpha == 0 {
		cfg.Alpha = fromFile.Alpha
	}
	if cfg.FlowMin == 0 {
		cfg.FlowMin = fromFile.FlowMin
	}
	if cfg.FlowMax == 0 {
		cfg.FlowMax = fromFile.FlowMax
	}
	if cfg.MDAMaxBranch == 0 {
		cfg.MDAMaxBranch = fromFile.MDAMaxBranch
	}
	if cfg.SrcPort == 0 {
		cfg.SrcPort = fromFile.SrcPort
	}
	if cfg.DstPort == 0 {
		cfg.DstPort = fromFile.DstPort
	}
	return nil
}

func parseProtocol(s string) (algo.Protocol, error) {
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

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
