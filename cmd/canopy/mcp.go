package main

import (
	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes page sessions as MCP tools so agents can render pages, trigger
events, navigate and inspect the page graph.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		idle, _ := cmd.Flags().GetDuration("idle-timeout")

		return cli.ServeMCP(cmd.Context(), cli.MCPOptions{
			EngineOptions: engineOptions(cmd),
			Transport:     transport,
			Port:          port,
			Version:       version(),
			IdleTimeout:   idle,
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", cli.TransportStdio, "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	mcpCmd.Flags().Duration("idle-timeout", 0, "Drop sessions idle for longer than this (0 keeps them)")
}
