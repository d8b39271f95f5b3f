package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/keyscope/keyscope/internal/adapters/outbound/snapshot"
)

// registerResources registers all keyscope MCP resources on the given server.
func registerResources(s *server.MCPServer, projectPath string) {
	// keyscope://baseline - the stored baseline snapshot
	s.AddResource(
		mcplib.NewResource(
			"keyscope://baseline",
			"Baseline Snapshot",
			mcplib.WithResourceDescription("The baseline key snapshot the project is validated against"),
			mcplib.WithMIMEType("application/json"),
		),
		handleBaselineResource(projectPath),
	)
}

func handleBaselineResource(projectPath string) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		p, err := loadProject(projectPath)
		if err != nil {
			return nil, err
		}
		baseline, err := p.snapshots.Load(p.baselinePath(""))
		if err != nil {
			return nil, fmt.Errorf("loading baseline: %w", err)
		}
		data, err := snapshot.Encode(baseline)
		if err != nil {
			return nil, fmt.Errorf("encoding baseline: %w", err)
		}

		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      "keyscope://baseline",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	}
}
