package main

import (
	"github.com/spf13/cobra"

	"github.com/tracelattice/tracelattice/internal/mcpserver"
)

// newMCPCmd builds the "mcp" subcommand, which serves the traceroute and
// mda tools over stdio for an MCP client instead of running a single
// trace and exiting.
func newMCPCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve traceroute and mda as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mcpserver.Serve(cmd.Context(), version)
		},
	}
}
