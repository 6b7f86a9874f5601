// Package mcpserver exposes traceroute and MDA runs as Model Context
// Protocol tools over stdio, so an LLM agent can drive a probe the same
// way a person drives the command-line front end. It shares every bit
// of socket/loop wiring with the CLI through internal/runner — this
// package only parses tool arguments, resolves a target, calls
// runner.Run, and renders the result as JSON.
package mcpserver

import (
	"bytes"
	"context"
	"fmt"
	"net"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tracelattice/tracelattice/internal/algo"
	"github.com/tracelattice/tracelattice/internal/export"
	"github.com/tracelattice/tracelattice/internal/runner"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/perr"
)

const (
	toolTraceroute = "traceroute"
	toolMDA        = "mda"
)

// New builds the MCP server, with both tools registered.
func New(version string) *server.MCPServer {
	s := server.NewMCPServer("tracelattice", version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(tracerouteTool(), handleTraceroute)
	s.AddTool(mdaTool(), handleMDA)

	return s
}

// Serve runs the server over stdio until the client disconnects. ctx is
// not passed to the stdio server, so canceling it does not stop Serve.
func Serve(ctx context.Context, version string) error {
	return server.ServeStdio(New(version))
}

func targetProperty() mcp.ToolOption {
	return mcp.WithString("target",
		mcp.Required(),
		mcp.Description("Hostname or IP address to probe"),
	)
}

func commonProperties() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("protocol", mcp.Description("Probe protocol: icmp, udp, or tcp (default icmp)")),
		mcp.WithBoolean("alt_port", mcp.Description("Use the conventional well-known destination port (53 for UDP, 80 for TCP) instead of the high default")),
		mcp.WithNumber("first_ttl", mcp.Description("First TTL to probe (default 1)")),
		mcp.WithNumber("max_hops", mcp.Description("Maximum TTL (default 30)")),
		mcp.WithNumber("probes", mcp.Description("Probes per TTL (default 3)")),
		mcp.WithString("timeout", mcp.Description("Per-probe reply timeout, e.g. \"5s\" (default 5s)")),
		mcp.WithBoolean("ipv6", mcp.Description("Resolve the target as IPv6 only")),
		mcp.WithNumber("src_port", mcp.Description("Source port for UDP/TCP probes (ignored for ICMP; mutually exclusive with ICMP)")),
		mcp.WithNumber("dst_port", mcp.Description("Destination port for UDP/TCP probes (ignored for ICMP; mutually exclusive with ICMP)")),
	}
}

func tracerouteTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Run a Paris-style traceroute: every probe carries the same flow identifier, mapping the one path an ECMP load balancer routes that flow through."),
		targetProperty(),
	}, commonProperties()...)
	return mcp.NewTool(toolTraceroute, opts...)
}

func mdaTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Run the Multipath Detection Algorithm: varies the flow identifier per TTL to enumerate every parallel next-hop an ECMP load balancer can route through, stopping each interface once confident no further next-hops remain."),
		targetProperty(),
		mcp.WithNumber("alpha", mcp.Description("Confidence parameter for the stopping rule, in (0,1) (default 0.05)")),
		mcp.WithNumber("flow_min", mcp.Description("Lower bound of the flow identifier pool")),
		mcp.WithNumber("flow_max", mcp.Description("Upper bound of the flow identifier pool")),
		mcp.WithNumber("mda_max_branch", mcp.Description("Cap on parallel next-hops tracked per node (default 16)")),
	}, commonProperties()...)
	return mcp.NewTool(toolMDA, opts...)
}

func resolveToolTarget(ctx context.Context, host string, v6Only bool) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	network := "ip4"
	if v6Only {
		network = "ip6"
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, network, host)
	if err != nil || len(ips) == 0 {
		return nil, perr.Wrap(perr.ErrAddressUnresolved, fmt.Errorf("resolving %q: %w", host, err))
	}
	return ips[0], nil
}

func handleTraceroute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return runTool(ctx, req, false)
}

func handleMDA(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return runTool(ctx, req, true)
}

func runTool(ctx context.Context, req mcp.CallToolRequest, isMDA bool) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	hostArg := argString(args, "target", "")
	if hostArg == "" {
		return mcp.NewToolResultError("target is required"), nil
	}

	ip, err := resolveToolTarget(ctx, hostArg, argBool(args, "ipv6", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := packetAddress(ip)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	base, err := baseOptionsFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	base.Target = target

	var cfg algo.Config
	algorithm := "traceroute"
	if isMDA {
		algorithm = "mda"
		mdaOpts := mdaOptionsFromArgs(args, base)
		cfg.MDA = &mdaOpts
	} else {
		cfg.Traceroute = &base
	}

	result, err := runner.Run(ctx, algorithm, cfg, target, hostArg, argString(args, "protocol", "icmp"), 0, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	exporter := export.NewJSONExporter()
	exporter.Pretty = true
	var buf bytes.Buffer
	if err := exporter.Export(&buf, result.Report); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(buf.String()), nil
}

func packetAddress(ip net.IP) (packet.Address, error) {
	return packet.NewAddressFromIP(ip)
}
