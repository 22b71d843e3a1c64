package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the srsconv MCP server (stdio)",
	Long: `Start a Model Context Protocol (MCP) server that exposes package inspection
and conversion in both directions as MCP tools via STDIO.

The persistent flags and config file supply the defaults; every tool call may
override error_handling and compact.

Example:

  srsconv mcp --log-file srsconv.log`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := mcp.NewConverterMCPServer(cfg, logger)

		// Log to stderr so we don't contaminate the JSON-RPC stream on stdout.
		fmt.Fprintf(os.Stderr, "srsconv MCP server started. Error handling: %s\n", cfg.ErrorHandling)
		fmt.Fprintf(os.Stderr, "Available tools: %s\n", strings.Join(mcp.ToolNames(), ", "))
		fmt.Fprintln(os.Stderr, "Listening for MCP JSON-RPC on STDIN/STDOUT ... (Ctrl+C to quit)")

		return srv.Start()
	},
}
