package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/repolens/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for AI agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets AI coding agents trigger repository analysis natively.
Configure in Claude Code with:

  {
    "mcpServers": {
      "repolens": { "command": "repolens", "args": ["mcp"] }
    }
  }

Available tools: repolens_analyze, repolens_quota`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		srv := mcp.NewServer(buildService())
		return srv.ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
