// Package mcp exposes the analyzer as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/repolens/internal/analyzer"
)

// Server wraps the analyzer and exposes it as MCP tools.
type Server struct {
	svc *analyzer.Service
}

// NewServer creates the MCP server wrapper.
func NewServer(svc *analyzer.Service) *Server {
	return &Server{svc: svc}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("repolens", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.analyzeTool())
	srv.AddTool(s.quotaTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// repolens_analyze
func (s *Server) analyzeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("repolens_analyze",
		mcp.WithDescription("Analyze a public GitHub repository's code quality. Returns a JSON report with per-file scores, an overall quality score, and the top issues found."),
		mcp.WithString("repo_url", mcp.Required(), mcp.Description("Repository URL or owner/name")),
		mcp.WithString("file_limit", mcp.Description("Maximum number of files to analyze (1-50, default 10)")),
	)
	return tool, s.handleAnalyze
}

func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoURL, err := request.RequireString("repo_url")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repo_url"), nil
	}
	limit := analyzer.ParseFileLimit(request.GetString("file_limit", ""))

	report, err := s.svc.Analyze(ctx, analyzer.Request{RepoURL: repoURL, FileLimit: &limit})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// repolens_quota
func (s *Server) quotaTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("repolens_quota",
		mcp.WithDescription("Check the GitHub API rate limit remaining for the configured token."),
	)
	return tool, s.handleQuota
}

func (s *Server) handleQuota(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.svc.QuotaStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("quota check failed: %v", err)), nil
	}
	data, err := json.Marshal(status)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal quota: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
