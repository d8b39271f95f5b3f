package mcp

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewKeyscopeMCPServer creates a new MCP server with all keyscope tools and
// resources registered. The projectPath is the root of the Flutter project
// to scan.
func NewKeyscopeMCPServer(projectPath string) *server.MCPServer {
	s := server.NewMCPServer(
		"keyscope",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerTools(s, projectPath)
	registerResources(s, projectPath)

	return s
}
