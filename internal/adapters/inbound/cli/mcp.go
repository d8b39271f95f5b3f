package cli

import (
	mcpadapter "github.com/keyscope/keyscope/internal/adapters/inbound/mcp"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose key scans to MCP clients",
		Long:  "Serve keyscope_scan, keyscope_diff and keyscope_validate plus the baseline snapshot resource over the Model Context Protocol.",
	}
	cmd.AddCommand(newMCPServeCmd())
	return cmd
}

func newMCPServeCmd() *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the key tools over stdio",
		Long:  "Answer MCP requests on stdin/stdout for the Flutter project at --path. An assistant can inventory automation keys, diff them against the saved baseline and get the CI verdict before editing widgets.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectPath == "" {
				projectPath = "."
			}
			s := mcpadapter.NewKeyscopeMCPServer(projectPath)
			return server.ServeStdio(s)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "Project path (defaults to current working directory)")

	return cmd
}
