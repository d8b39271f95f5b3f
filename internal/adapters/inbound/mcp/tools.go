package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	cacheAdapter "github.com/keyscope/keyscope/internal/adapters/outbound/cache"
	"github.com/keyscope/keyscope/internal/adapters/outbound/config"
	"github.com/keyscope/keyscope/internal/adapters/outbound/gitinfo"
	"github.com/keyscope/keyscope/internal/adapters/outbound/manifest"
	"github.com/keyscope/keyscope/internal/adapters/outbound/scanner"
	"github.com/keyscope/keyscope/internal/adapters/outbound/snapshot"
	"github.com/keyscope/keyscope/internal/application"
	"github.com/keyscope/keyscope/internal/domain"
)

// registerTools registers all keyscope MCP tools on the given server.
func registerTools(s *server.MCPServer, projectPath string) {
	// 1. keyscope_scan
	s.AddTool(
		mcplib.NewTool("keyscope_scan",
			mcplib.WithDescription("Scans the project for automation keys and returns the snapshot as JSON"),
			mcplib.WithString("scope",
				mcplib.Description("What to scan: workspace, deps or all (defaults to the configured scope)"),
			),
			mcplib.WithString("since",
				mcplib.Description("Git ref; only workspace files changed since it are analyzed"),
			),
			mcplib.WithBoolean("save",
				mcplib.Description("Write the snapshot to the baseline path"),
			),
		),
		handleScan(projectPath),
	)

	// 2. keyscope_diff
	s.AddTool(
		mcplib.NewTool("keyscope_diff",
			mcplib.WithDescription("Compares the baseline snapshot with a fresh scan or a second snapshot file"),
			mcplib.WithString("baseline",
				mcplib.Description("Baseline snapshot path (defaults to the configured baseline)"),
			),
			mcplib.WithString("current",
				mcplib.Description("Snapshot to compare against instead of scanning"),
			),
		),
		handleDiff(projectPath),
	)

	// 3. keyscope_validate
	s.AddTool(
		mcplib.NewTool("keyscope_validate",
			mcplib.WithDescription("Checks key changes against the configured policy and returns the verdict"),
			mcplib.WithString("baseline",
				mcplib.Description("Baseline snapshot path (defaults to the configured baseline)"),
			),
			mcplib.WithString("current",
				mcplib.Description("Snapshot to validate instead of scanning"),
			),
		),
		handleValidate(projectPath),
	)
}

// project bundles the services every tool needs for one call.
type project struct {
	root      string
	cfg       domain.ProjectConfig
	scans     *application.ScanService
	snapshots *snapshot.FileStore
}

func loadProject(projectPath string) (*project, error) {
	root, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.New().Load(root)
	if err != nil {
		return nil, err
	}
	scans := application.NewScanService(
		scanner.New(),
		cacheAdapter.New(),
		application.WithChangeResolver(gitinfo.New()),
		application.WithManifestResolver(manifest.New()),
	)
	return &project{root: root, cfg: cfg, scans: scans, snapshots: snapshot.New()}, nil
}

func (p *project) baselinePath(override string) string {
	if override != "" {
		return snapshot.DefaultPath(p.root, override)
	}
	return snapshot.DefaultPath(p.root, p.cfg.EffectiveBaselinePath())
}

func (p *project) compareRequest(args map[string]any) application.CompareRequest {
	baseline, _ := args["baseline"].(string)
	current, _ := args["current"].(string)
	req := application.CompareRequest{
		BaselinePath: p.baselinePath(baseline),
		Scan:         application.RequestFromConfig(p.root, p.cfg),
	}
	if current != "" {
		req.CurrentPath = snapshot.DefaultPath(p.root, current)
	}
	return req
}

func handleScan(projectPath string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		p, err := loadProject(projectPath)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		args := request.GetArguments()
		req := application.RequestFromConfig(p.root, p.cfg)
		if raw, _ := args["scope"].(string); raw != "" {
			scope, err := domain.ParseScope(raw)
			if err != nil {
				return errorResult(err.Error()), nil
			}
			req.Scope = scope
		}
		req.Since, _ = args["since"].(string)

		path := p.baselinePath("")
		if p.snapshots.Exists(path) {
			if baseline, err := p.snapshots.Load(path); err == nil {
				req.Baseline = baseline
			}
		}

		save, _ := args["save"].(bool)
		if save {
			if err := application.CheckSavable(req); err != nil {
				return errorResult(err.Error()), nil
			}
		}

		result, err := p.scans.Scan(ctx, req)
		if err != nil {
			return errorResult(fmt.Sprintf("scan failed: %v", err)), nil
		}

		if save {
			if err := p.snapshots.Save(path, result); err != nil {
				return errorResult(fmt.Sprintf("saving snapshot failed: %v", err)), nil
			}
		}

		data, err := snapshot.Encode(result)
		if err != nil {
			return nil, fmt.Errorf("encoding snapshot: %w", err)
		}
		return textResult(string(data)), nil
	}
}

func handleDiff(projectPath string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		p, err := loadProject(projectPath)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		svc := application.NewDiffService(p.scans, p.snapshots)
		result, err := svc.Diff(ctx, p.compareRequest(request.GetArguments()))
		if err != nil {
			return errorResult(fmt.Sprintf("diff failed: %v", err)), nil
		}
		return jsonResult(result)
	}
}

func handleValidate(projectPath string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		p, err := loadProject(projectPath)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		svc := application.NewValidateService(p.scans, p.snapshots)
		result, err := svc.Validate(ctx, application.ValidateRequest{
			CompareRequest: p.compareRequest(request.GetArguments()),
			Policy:         p.cfg.Policy,
		})
		if err != nil {
			return errorResult(fmt.Sprintf("validate failed: %v", err)), nil
		}
		return jsonResult(result)
	}
}

// jsonResult marshals v to JSON and returns it as a text content result.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// textResult returns a plain text content result.
func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(text)},
	}
}

// errorResult returns a tool result that indicates an error occurred.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
