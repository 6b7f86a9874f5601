package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tracelattice/tracelattice/internal/algo"
	"github.com/tracelattice/tracelattice/internal/display"
	"github.com/tracelattice/tracelattice/internal/export"
	"github.com/tracelattice/tracelattice/internal/runner"
	"github.com/tracelattice/tracelattice/pkg/hop"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/perr"
)

// NewRootCmd builds the tracelattice command tree.
func NewRootCmd(version string) *cobra.Command {
	var cfg cliConfig

	cmd := &cobra.Command{
		Use:     "tracelattice <target>",
		Short:   "Paris-style traceroute and multipath detection",
		Version: version,
		Long: `tracelattice sends constant-flow-identifier probes to map a single path to
a target (Paris traceroute) or varies the flow identifier to enumerate every
parallel next-hop an ECMP load balancer can route through (MDA).`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.ConfigFile != "" {
				// --algorithm and --protocol carry non-empty defaults; they
				// count as unset unless passed explicitly, so the file can
				// supply them.
				if !cmd.Flags().Changed("algorithm") {
					cfg.Algorithm = ""
				}
				if !cmd.Flags().Changed("protocol") {
					cfg.Protocol = ""
				}
				if err := loadConfigFile(cfg.ConfigFile, &cfg); err != nil {
					return perr.Wrap(perr.ErrConfigInvalid, err)
				}
				if cfg.Algorithm == "" {
					cfg.Algorithm = "traceroute"
				}
			}
			if cfg.IPv4Only && cfg.IPv6Only {
				return perr.Wrap(perr.ErrConfigInvalid, fmt.Errorf("-4/--ipv4 and -6/--ipv6 are mutually exclusive"))
			}
			if cfg.AltUDP && cfg.AltTCP {
				return perr.Wrap(perr.ErrConfigInvalid, fmt.Errorf("-U and -T are mutually exclusive"))
			}
			// An explicit transport flag takes precedence over --protocol.
			if cfg.AltUDP {
				cfg.Protocol = "udp"
			}
			if cfg.AltTCP {
				cfg.Protocol = "tcp"
			}
			if (cfg.Protocol == "icmp" || cfg.Protocol == "") && (cfg.SrcPort != 0 || cfg.DstPort != 0) {
				return perr.Wrap(perr.ErrConfigInvalid, fmt.Errorf("--src-port/--dst-port are not meaningful for ICMP tracerouting"))
			}
			if cfg.Algorithm != "traceroute" && cfg.Algorithm != "mda" {
				return perr.Wrap(perr.ErrConfigInvalid, fmt.Errorf("invalid algorithm %q: must be traceroute or mda", cfg.Algorithm))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Target = args[0]
			if cfg.DryRun {
				return nil
			}
			return runTrace(cmd, &cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Algorithm, "algorithm", "traceroute", "Algorithm: traceroute|mda")
	cmd.Flags().StringVar(&cfg.Protocol, "protocol", "icmp", "Protocol: icmp|udp|tcp")
	cmd.Flags().BoolVarP(&cfg.AltUDP, "udp-alt", "U", false, "UDP probes to a conventional port (53) instead of the high default")
	cmd.Flags().BoolVarP(&cfg.AltTCP, "tcp-alt", "T", false, "TCP probes to a conventional port (80) instead of the high default")

	cmd.Flags().IntVar(&cfg.FirstTTL, "first-ttl", 0, "First TTL to probe (default 1)")
	cmd.Flags().IntVar(&cfg.MaxHops, "max-hops", 0, "Maximum TTL (default 30)")
	cmd.Flags().IntVar(&cfg.Probes, "probes", 0, "Probes per TTL (default 3)")
	cmd.Flags().StringVar(&cfg.Timeout, "timeout", "", "Per-probe reply timeout (default 5s)")
	cmd.Flags().Float64Var(&cfg.MinIntervalMs, "pacing-ms", 0, "Minimum interval between sends, milliseconds (default 10)")
	cmd.Flags().IntVar(&cfg.SrcPort, "src-port", 0, "Source port for UDP/TCP probes (ignored for ICMP; mutually exclusive with ICMP)")
	cmd.Flags().IntVar(&cfg.DstPort, "dst-port", 0, "Destination port for UDP/TCP probes (ignored for ICMP; mutually exclusive with ICMP)")

	cmd.Flags().Float64Var(&cfg.Alpha, "alpha", 0, "MDA confidence parameter (default 0.05)")
	cmd.Flags().IntVar(&cfg.FlowMin, "flow-min", 0, "MDA flow identifier pool lower bound")
	cmd.Flags().IntVar(&cfg.FlowMax, "flow-max", 0, "MDA flow identifier pool upper bound")
	cmd.Flags().IntVar(&cfg.MDAMaxBranch, "mda-max-branch", 0, "Cap on parallel next-hops MDA will track per node (default 16)")

	cmd.Flags().BoolVar(&cfg.Simple, "simple", false, "Force line-by-line text output (no live view)")
	cmd.Flags().BoolVar(&cfg.NoColor, "no-color", false, "Disable colors")

	cmd.Flags().StringVarP(&cfg.Output, "output", "o", "", "Export results to file (json/csv/txt)")
	cmd.Flags().StringVar(&cfg.Format, "format", "", "Explicit export format, inferred from --output's extension otherwise")

	cmd.Flags().BoolVarP(&cfg.IPv4Only, "ipv4", "4", false, "Resolve and probe IPv4 only")
	cmd.Flags().BoolVarP(&cfg.IPv6Only, "ipv6", "6", false, "Resolve and probe IPv6 only")

	cmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Validate configuration without probing")
	cmd.Flags().StringVar(&cfg.ConfigFile, "config", "", "Load defaults from a YAML config file")

	cmd.AddCommand(newMCPCmd(version))

	return cmd
}

// resolveTarget resolves host to an Address of the requested family,
// mirroring the teacher's own IsIPv4/IsIPv6 family-detection idiom
// (internal/trace/ipversion.go) generalized to a DNS lookup.
func resolveTarget(ctx context.Context, host string, v4Only, v6Only bool) (packet.Address, error) {
	if ip := net.ParseIP(host); ip != nil {
		return packet.NewAddressFromIP(ip)
	}

	network := "ip"
	switch {
	case v4Only:
		network = "ip4"
	case v6Only:
		network = "ip6"
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, network, host)
	if err != nil || len(ips) == 0 {
		return packet.Address{}, perr.Wrap(perr.ErrAddressUnresolved, fmt.Errorf("resolving %q: %w", host, err))
	}
	addr, err := packet.NewAddressFromIP(ips[0])
	if err != nil {
		return packet.Address{}, perr.Wrap(perr.ErrAddressUnresolved, err)
	}
	return addr, nil
}

// runTrace builds the configured algorithm instance, drives it on a real
// event loop against raw sockets, and renders/export the result.
func runTrace(cmd *cobra.Command, cfg *cliConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	target, err := resolveTarget(ctx, cfg.Target, cfg.IPv4Only, cfg.IPv6Only)
	if err != nil {
		return err
	}

	protocol, err := parseProtocol(cfg.Protocol)
	if err != nil {
		return perr.Wrap(perr.ErrConfigInvalid, err)
	}
	timeout, err := parseTimeout(cfg.Timeout)
	if err != nil {
		return perr.Wrap(perr.ErrConfigInvalid, err)
	}

	base := algo.TracerouteOptions{
		Target:    target,
		Protocol:  protocol,
		FirstTTL:  cfg.FirstTTL,
		MaxTTL:    cfg.MaxHops,
		NumProbes: cfg.Probes,
		Timeout:   timeout,
		SrcPort:   cfg.SrcPort,
		DstPort:   cfg.DstPort,
	}
	if base.SrcPort == 0 && base.DstPort == 0 && (cfg.AltUDP || cfg.AltTCP) {
		base.SrcPort, base.DstPort = algo.TransportDefaults(protocol, true)
	}
	base = base.WithDefaults()

	var algoCfg algo.Config
	if cfg.Algorithm == "mda" {
		algoCfg.MDA = &algo.MDAOptions{
			TracerouteOptions: base,
			Alpha:             cfg.Alpha,
			FlowMin:           uint16(cfg.FlowMin),
			FlowMax:           uint16(cfg.FlowMax),
			MaxBranch:         cfg.MDAMaxBranch,
		}
	} else {
		algoCfg.Traceroute = &base
	}

	out := cmd.OutOrStdout()
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	useColor := isTTY && !cfg.NoColor

	// The live view only makes sense for a single representative path on
	// a real terminal, with nothing else competing for stdout.
	useTUI := isTTY && !cfg.Simple && !cfg.Verbose && cfg.Algorithm == "traceroute"

	// --pacing-ms is in milliseconds; the loop takes seconds.
	minInterSend := cfg.MinIntervalMs / 1000

	var result *runner.Result
	if useTUI {
		result, err = runTracerouteLive(ctx, cancel, cfg, algoCfg, target, minInterSend, base.NumProbes)
	} else {
		var onEvent func(any)
		if cfg.Verbose {
			onEvent = func(ev any) {
				if useColor {
					fmt.Fprintf(out, "\033[2m%+v\033[0m\n", ev)
				} else {
					fmt.Fprintf(out, "%+v\n", ev)
				}
			}
		}
		result, err = runner.Run(ctx, cfg.Algorithm, algoCfg, target, cfg.Target, cfg.Protocol, minInterSend, onEvent)
	}
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\ntrace interrupted")
			return nil
		}
		return err
	}

	renderReport(out, cfg, result.Report)
	if result.Lattice != nil {
		fmt.Fprintln(out, "\nlattice:")
		display.NewLatticeRenderer().RenderLattice(out, result.Lattice)
	}

	if cfg.Output != "" {
		format := export.Format(cfg.Format)
		if err := export.ExportToFile(cfg.Output, format, result.Report); err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}
		fmt.Fprintf(out, "Results exported to %s\n", cfg.Output)
	}

	return nil
}

func renderReport(out io.Writer, cfg *cliConfig, tr *hop.TraceResult) {
	renderer := display.NewSimpleRenderer()
	fmt.Fprintf(out, "traceroute to %s (%s), %s algorithm\n", tr.Target, tr.TargetIP, cfg.Algorithm)
	for _, h := range tr.Hops {
		fmt.Fprintln(out, renderer.RenderHop(h))
	}
	if tr.ReachedTarget {
		fmt.Fprintf(out, "\nreached %s in %d hops\n", tr.Target, tr.TotalHops())
	} else {
		fmt.Fprintf(out, "\ntarget not reached (%d hops)\n", tr.TotalHops())
	}
}

// exitCode maps a run's error to the documented exit status: 0 on
// success, 1 for every recognized fatal ErrorKind, 2 for anything
// unrecognized (a defensive fallback, not a documented code).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := perr.As(err); ok {
		return 1
	}
	return 2
}
