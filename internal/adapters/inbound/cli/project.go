package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	cacheAdapter "github.com/keyscope/keyscope/internal/adapters/outbound/cache"
	"github.com/keyscope/keyscope/internal/adapters/outbound/config"
	"github.com/keyscope/keyscope/internal/adapters/outbound/gitinfo"
	"github.com/keyscope/keyscope/internal/adapters/outbound/manifest"
	"github.com/keyscope/keyscope/internal/adapters/outbound/scanner"
	"github.com/keyscope/keyscope/internal/adapters/outbound/snapshot"
	"github.com/keyscope/keyscope/internal/application"
	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/detect"
)

// project is a resolved project root with its config and services.
type project struct {
	root      string
	cfg       domain.ProjectConfig
	logger    *slog.Logger
	scans     *application.ScanService
	snapshots *snapshot.FileStore
}

func loadProject(cmd *cobra.Command, args []string) (*project, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.New().Load(root)
	if err != nil {
		return nil, err
	}

	logger := loggerFor(cmd)
	scans := application.NewScanService(
		scanner.New(),
		cacheAdapter.New(),
		application.WithChangeResolver(gitinfo.New()),
		application.WithManifestResolver(manifest.New()),
		application.WithLogger(logger),
	)
	return &project{
		root:      root,
		cfg:       cfg,
		logger:    logger,
		scans:     scans,
		snapshots: snapshot.New(),
	}, nil
}

// resolve turns a flag path into an absolute path below the project root.
// An empty value selects the configured baseline.
func (p *project) resolve(path string) string {
	if path == "" {
		path = p.cfg.EffectiveBaselinePath()
	}
	return snapshot.DefaultPath(p.root, path)
}

// scanFlags are the request overrides shared by every command that scans.
type scanFlags struct {
	scope            string
	since            string
	includeTests     bool
	includeGenerated bool
	includeExamples  bool
	packages         []string
	detectors        []string
	concurrency      int
}

func (f *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scope, "scope", "", "What to scan: workspace, deps or all")
	cmd.Flags().StringVar(&f.since, "since", "", "Only analyze workspace files changed since this git ref")
	cmd.Flags().BoolVar(&f.includeTests, "include-tests", false, "Analyze test directories")
	cmd.Flags().BoolVar(&f.includeGenerated, "include-generated", false, "Analyze generated files")
	cmd.Flags().BoolVar(&f.includeExamples, "include-examples", false, "Analyze example directories")
	cmd.Flags().StringSliceVar(&f.packages, "packages", nil, "Glob patterns on dependency package names")
	cmd.Flags().StringSliceVar(&f.detectors, "detectors", nil, "Detectors to run (defaults to all)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Worker count (defaults to the CPU count)")
}

// request builds a scan request from config, then applies flags the user set.
func (f *scanFlags) request(cmd *cobra.Command, p *project) (application.ScanRequest, error) {
	req := application.RequestFromConfig(p.root, p.cfg)
	flags := cmd.Flags()

	if flags.Changed("scope") {
		scope, err := domain.ParseScope(f.scope)
		if err != nil {
			return req, &domain.InputError{Op: "parsing", Path: "--scope", Err: err}
		}
		req.Scope = scope
	}
	req.Since = f.since
	if flags.Changed("include-tests") {
		req.Filter.IncludeTests = f.includeTests
	}
	if flags.Changed("include-generated") {
		req.Filter.IncludeGenerated = f.includeGenerated
	}
	if flags.Changed("include-examples") {
		req.Filter.IncludeExamples = f.includeExamples
	}
	if flags.Changed("packages") {
		req.PackageFilter = f.packages
	}
	if flags.Changed("detectors") {
		known := detect.Names()
		for _, d := range f.detectors {
			if !slices.Contains(known, d) {
				return req, &domain.InputError{Op: "parsing", Path: "--detectors", Err: fmt.Errorf("unknown detector %q", d)}
			}
		}
		req.Detectors = f.detectors
	}
	if flags.Changed("concurrency") {
		req.Concurrency = f.concurrency
	}
	return req, nil
}

func renderJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
