package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/analysis"
	"github.com/keyscope/keyscope/internal/domain/coverage"
	"github.com/keyscope/keyscope/internal/domain/detect"
)

// ChangeTimeout bounds the version-control query of an incremental scan.
const ChangeTimeout = 10 * time.Second

// ErrPartialSnapshot rejects saving an incremental scan that has no baseline
// to fill in the files it skipped.
var ErrPartialSnapshot = errors.New("an incremental scan without a baseline covers only changed files and cannot be saved")

// headerSize is how much of a file is inspected for generated-code markers.
const headerSize = 1024

// ScanRequest describes one scan. Zero values select defaults.
type ScanRequest struct {
	ProjectRoot string
	Scope       domain.Scope
	Filter      analysis.Filter
	// Since is a git base ref; when set only files changed since it are
	// analyzed. Unchanged files are taken from Baseline when it has them.
	Since string
	// PackageFilter holds globs on dependency package names.
	PackageFilter []string
	Concurrency   int
	// Dependencies overrides manifest resolution when non-nil.
	Dependencies     []domain.Dependency
	SDKVersion       string
	Detectors        []string
	IneffectiveFloor *float64
	WidgetTypes      []string
	TagRules         []domain.TagRule
	Baseline         *domain.ScanResult
}

// CheckSavable reports whether the result of req is a complete inventory
// that may replace a baseline.
func CheckSavable(req ScanRequest) error {
	if req.Since != "" && req.Baseline == nil {
		return ErrPartialSnapshot
	}
	return nil
}

// ScanService orchestrates a scan:
// collect files → resolve changes → analyze in parallel → merge → blind spots.
type ScanService struct {
	scanner   domain.ProjectScanner
	cache     domain.DependencyCache
	changes   domain.ChangeResolver
	manifests domain.ManifestResolver
	logger    *slog.Logger
	now       func() time.Time
}

// ScanOption configures optional ScanService collaborators.
type ScanOption func(*ScanService)

// WithChangeResolver enables incremental scans.
func WithChangeResolver(c domain.ChangeResolver) ScanOption {
	return func(s *ScanService) { s.changes = c }
}

// WithManifestResolver resolves dependency packages when a request carries none.
func WithManifestResolver(m domain.ManifestResolver) ScanOption {
	return func(s *ScanService) { s.manifests = m }
}

func WithLogger(l *slog.Logger) ScanOption {
	return func(s *ScanService) { s.logger = l }
}

func WithClock(now func() time.Time) ScanOption {
	return func(s *ScanService) { s.now = now }
}

func NewScanService(scanner domain.ProjectScanner, depCache domain.DependencyCache, opts ...ScanOption) *ScanService {
	s := &ScanService{
		scanner: scanner,
		cache:   depCache,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// job is one unit of parallel work: a workspace file or a dependency package.
type job struct {
	rel     string
	abs     string
	dep     *domain.Dependency
	carried *fileResult
}

// fileResult is the analysis of one file inside a slot.
type fileResult struct {
	analysis *domain.FileAnalysis
	hits     []domain.KeyHit
	handlers map[string][]domain.HandlerInfo
}

// slot holds everything one job produced. Each worker owns exactly one.
type slot struct {
	files     []fileResult
	errors    []domain.ScanError
	skipped   bool
	cacheHit  bool
	cacheMiss bool
}

// Scan runs the full pipeline. It fails only when the project root is
// unusable; per-file problems end up in Metrics.Errors. A cancelled context
// yields the completed subset with the remaining jobs recorded as cancelled.
func (s *ScanService) Scan(ctx context.Context, req ScanRequest) (*domain.ScanResult, error) {
	start := s.now()

	// 0. Validate root
	root, err := filepath.Abs(req.ProjectRoot)
	if err != nil {
		return nil, &domain.InputError{Op: "scanning", Path: req.ProjectRoot, Err: err}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &domain.InputError{Op: "scanning", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &domain.InputError{Op: "scanning", Path: root, Err: fmt.Errorf("not a directory")}
	}

	scope := req.Scope
	if scope == "" {
		scope = domain.ScopeWorkspace
	}
	detectors := detect.Select(req.Detectors)

	result := domain.NewScanResult()
	result.ScanID = uuid.NewString()
	result.ProjectRoot = root
	result.Scope = scope
	result.CreatedAt = start.UTC()

	// 1. Collect workspace files
	var files []string
	if scope.IncludesWorkspace() {
		all, err := s.scanner.Walk(root)
		if err != nil {
			return nil, &domain.InputError{Op: "scanning", Path: root, Err: err}
		}
		for _, rel := range all {
			if req.Filter.Allows(rel, "") {
				files = append(files, rel)
			}
		}
	}

	// 2. Narrow to changed files
	var changed map[string]bool
	if req.Since != "" && scope.IncludesWorkspace() {
		changed = s.changedFiles(ctx, root, req.Since, &result.Metrics)
	}

	// 3. Resolve dependencies
	var deps []domain.Dependency
	sdk := req.SDKVersion
	if scope.IncludesDeps() {
		deps, sdk, err = s.dependencies(ctx, root, req)
		if err != nil {
			return nil, err
		}
	}

	jobs := make([]job, 0, len(files)+len(deps))
	for _, rel := range files {
		j := job{rel: rel, abs: filepath.Join(root, filepath.FromSlash(rel))}
		if changed != nil && !changed[rel] {
			// files the baseline never analyzed are analyzed now
			fa, hits, handlers, ok := coverage.FromBaseline(req.Baseline, rel)
			switch {
			case ok:
				j.carried = &fileResult{analysis: fa, hits: hits, handlers: handlers}
				result.Metrics.BaselineFiles++
			case req.Baseline == nil:
				continue
			}
		}
		jobs = append(jobs, j)
	}
	for i := range deps {
		jobs = append(jobs, job{dep: &deps[i]})
	}

	// 4. Analyze in parallel, one slot per job
	limit := req.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	wctx := workContext{
		root:        root,
		detectors:   detectors,
		fingerprint: detect.Fingerprint(detectors),
		sdk:         sdk,
		widgetTypes: req.WidgetTypes,
		filter:      req.Filter,
	}
	slots := make([]slot, len(jobs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range jobs {
		g.Go(func() error {
			if ctx.Err() != nil {
				slots[i].errors = append(slots[i].errors, cancelled(jobs[i]))
				return nil
			}
			switch {
			case jobs[i].carried != nil:
				slots[i] = slot{files: []fileResult{*jobs[i].carried}}
			case jobs[i].dep != nil:
				slots[i] = s.analyzePackage(ctx, wctx, *jobs[i].dep)
			default:
				slots[i] = s.analyzeFile(wctx, jobs[i])
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	// 5. Merge in job order
	agg := coverage.NewAggregator(result)
	for i := range slots {
		sl := &slots[i]
		if sl.skipped {
			continue
		}
		if jobs[i].dep == nil {
			result.Metrics.TotalFiles++
		} else {
			result.Metrics.TotalFiles += len(sl.files) + countFileErrors(sl.errors)
		}
		if sl.cacheHit {
			result.Metrics.CacheHits++
		}
		if sl.cacheMiss {
			result.Metrics.CacheMisses++
		}
		for _, f := range sl.files {
			agg.AddFile(f.analysis, f.hits, f.handlers)
		}
		for _, e := range sl.errors {
			agg.AddError(e)
		}
	}
	agg.Finish()

	// 6. Heuristics and metadata
	floor := domain.DefaultIneffectiveFloor
	if req.IneffectiveFloor != nil {
		floor = *req.IneffectiveFloor
	}
	result.BlindSpots = coverage.DetectBlindSpots(result, floor)
	if req.Baseline != nil {
		coverage.MergeBaseline(result, req.Baseline)
	}
	coverage.ApplyTagRules(result, req.TagRules)

	result.Duration = s.now().Sub(start)
	result.Metrics.ScanDurationMs = result.Duration.Milliseconds()

	s.logger.Info("scan complete",
		"scope", scope,
		"files", result.Metrics.ScannedFiles,
		"keys", len(result.KeyUsages),
		"widget_coverage", result.Metrics.WidgetCoverage,
		"errors", len(result.Metrics.Errors),
		"duration_ms", result.Metrics.ScanDurationMs,
	)
	return result, nil
}

// changedFiles returns the set of files changed since the given ref. A nil
// set means every file is analyzed, which is also the fallback on failure.
func (s *ScanService) changedFiles(ctx context.Context, root, since string, m *domain.ScanMetrics) map[string]bool {
	if s.changes == nil {
		s.logger.Warn("incremental scan unavailable, scanning everything", "since", since)
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, ChangeTimeout)
	defer cancel()

	changed, err := s.changes.ChangedFiles(cctx, root, since)
	if err != nil {
		s.logger.Warn("resolving changed files failed, scanning everything", "since", since, "error", err)
		return nil
	}

	set := make(map[string]bool, len(changed))
	for _, c := range changed {
		set[c] = true
	}
	m.IncrementalScan = true
	m.IncrementalBase = since
	return set
}

// dependencies returns the packages to scan, sorted by name, and the SDK
// version used in cache keys.
func (s *ScanService) dependencies(ctx context.Context, root string, req ScanRequest) ([]domain.Dependency, string, error) {
	deps := req.Dependencies
	sdk := req.SDKVersion
	if deps == nil && s.manifests != nil {
		m, err := s.manifests.Resolve(ctx, root)
		if err != nil {
			return nil, "", &domain.InputError{Op: "resolving dependencies", Path: root, Err: err}
		}
		if m == nil {
			s.logger.Warn("no package config found; run pub get to scan dependencies", "root", root)
		} else {
			deps = m.Dependencies
			if sdk == "" {
				sdk = m.SDKVersion
			}
		}
	}

	var out []domain.Dependency
	for _, d := range deps {
		if len(req.PackageFilter) > 0 && !matchesAny(req.PackageFilter, d.Name) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, sdk, nil
}

type workContext struct {
	root        string
	detectors   []detect.Detector
	fingerprint string
	sdk         string
	widgetTypes []string
	filter      analysis.Filter
}

func (s *ScanService) analyzeFile(w workContext, j job) slot {
	data, err := os.ReadFile(j.abs)
	if err != nil {
		return slot{errors: []domain.ScanError{{File: j.rel, Type: domain.ScanErrorRead, Message: err.Error()}}}
	}
	text := string(data)
	if !w.filter.IncludeGenerated && analysis.IsGenerated(j.rel, header(text)) {
		return slot{skipped: true}
	}
	out, err := analysis.Analyze(analysis.Input{
		Path:        j.abs,
		RelPath:     j.rel,
		Text:        text,
		Detectors:   w.detectors,
		Source:      domain.SourceWorkspace,
		WidgetTypes: w.widgetTypes,
	})
	if err != nil {
		return slot{errors: []domain.ScanError{{File: j.rel, Type: domain.ScanErrorTokenize, Message: err.Error()}}}
	}
	return slot{
		files:  []fileResult{{analysis: out.Analysis, hits: out.Hits, handlers: out.Handlers}},
		errors: out.Errors,
	}
}

// analyzePackage serves a dependency package from the cache or analyzes it
// and stores the result.
func (s *ScanService) analyzePackage(ctx context.Context, w workContext, dep domain.Dependency) slot {
	id := dep.Identity()
	key := domain.CacheKey(dep.Name, dep.Version, w.fingerprint, w.sdk)

	if s.cache != nil {
		raw, err := s.cache.Load(w.root, key)
		if err != nil {
			s.logger.Debug("cache read failed", "package", id, "error", err)
		}
		if raw != nil {
			var pa domain.PackageAnalysis
			if err := json.Unmarshal(raw, &pa); err == nil && pa.Files != nil {
				s.logger.Debug("cache hit", "package", id)
				sl := unpack(&pa)
				sl.cacheHit = true
				return sl
			}
			s.logger.Debug("cache entry undecodable, reanalyzing", "package", id)
		}
	}

	pa, complete := s.packageAnalysis(ctx, w, dep)
	sl := unpack(pa)
	sl.cacheMiss = true
	if s.cache != nil && complete {
		if err := s.cache.Save(w.root, key, pa); err != nil {
			sl.errors = append(sl.errors, domain.ScanError{File: id, Type: domain.ScanErrorCache, Message: err.Error()})
		}
	}
	return sl
}

// packageAnalysis analyzes every lib/ file of dep. complete is false when the
// context was cancelled part way.
func (s *ScanService) packageAnalysis(ctx context.Context, w workContext, dep domain.Dependency) (*domain.PackageAnalysis, bool) {
	id := dep.Identity()
	pa := &domain.PackageAnalysis{
		Files:    make(map[string]*domain.FileAnalysis),
		Hits:     make(map[string][]domain.KeyLocation),
		Handlers: make(map[string][]domain.HandlerInfo),
	}

	libDir := filepath.Join(dep.RootPath, "lib")
	rels, err := s.scanner.Walk(libDir)
	if err != nil {
		pa.Errors = append(pa.Errors, domain.ScanError{File: id, Type: domain.ScanErrorRead, Message: err.Error()})
		return pa, true
	}

	complete := true
	for _, r := range rels {
		rel := "lib/" + r
		if ctx.Err() != nil {
			pa.Errors = append(pa.Errors, domain.ScanError{File: id + "/" + rel, Type: domain.ScanErrorCancelled, Message: ctx.Err().Error()})
			complete = false
			continue
		}
		abs := filepath.Join(dep.RootPath, filepath.FromSlash(rel))
		data, err := os.ReadFile(abs)
		if err != nil {
			pa.Errors = append(pa.Errors, domain.ScanError{File: id + "/" + rel, Type: domain.ScanErrorRead, Message: err.Error()})
			continue
		}
		text := string(data)
		if !w.filter.IncludeGenerated && analysis.IsGenerated(rel, header(text)) {
			continue
		}
		out, err := analysis.Analyze(analysis.Input{
			Path:        abs,
			RelPath:     rel,
			Text:        text,
			Detectors:   w.detectors,
			Source:      domain.SourcePackage,
			Package:     id,
			WidgetTypes: w.widgetTypes,
		})
		if err != nil {
			pa.Errors = append(pa.Errors, domain.ScanError{File: id + "/" + rel, Type: domain.ScanErrorTokenize, Message: err.Error()})
			continue
		}
		for _, e := range out.Errors {
			e.File = id + "/" + rel
			pa.Errors = append(pa.Errors, e)
		}
		pa.Files[rel] = out.Analysis
		for _, h := range out.Hits {
			pa.Hits[h.Key] = append(pa.Hits[h.Key], h.Location)
		}
		for k, infos := range out.Handlers {
			pa.Handlers[k] = append(pa.Handlers[k], infos...)
		}
	}
	return pa, complete
}

// unpack regroups a package analysis per file, in path order, so cached and
// fresh results merge identically.
func unpack(pa *domain.PackageAnalysis) slot {
	byFile := make(map[string][]domain.KeyHit)
	for key, locs := range pa.Hits {
		for _, loc := range locs {
			byFile[loc.File] = append(byFile[loc.File], domain.KeyHit{Key: key, Location: loc})
		}
	}
	handlersByFile := make(map[string]map[string][]domain.HandlerInfo)
	for key, infos := range pa.Handlers {
		for _, info := range infos {
			if handlersByFile[info.File] == nil {
				handlersByFile[info.File] = make(map[string][]domain.HandlerInfo)
			}
			handlersByFile[info.File][key] = append(handlersByFile[info.File][key], info)
		}
	}

	rels := make([]string, 0, len(pa.Files))
	for rel := range pa.Files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	sl := slot{errors: pa.Errors}
	for _, rel := range rels {
		hits := byFile[rel]
		sort.SliceStable(hits, func(i, j int) bool {
			a, b := hits[i].Location, hits[j].Location
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			if a.Column != b.Column {
				return a.Column < b.Column
			}
			return hits[i].Key < hits[j].Key
		})
		sl.files = append(sl.files, fileResult{analysis: pa.Files[rel], hits: hits, handlers: handlersByFile[rel]})
	}
	return sl
}

func cancelled(j job) domain.ScanError {
	file := j.rel
	if j.dep != nil {
		file = j.dep.Identity()
	}
	return domain.ScanError{File: file, Type: domain.ScanErrorCancelled, Message: context.Canceled.Error()}
}

// countFileErrors counts errors that stand for a whole file.
func countFileErrors(errs []domain.ScanError) int {
	n := 0
	for _, e := range errs {
		if e.Type == domain.ScanErrorRead || e.Type == domain.ScanErrorTokenize || e.Type == domain.ScanErrorCancelled {
			n++
		}
	}
	return n
}

func header(text string) string {
	if len(text) > headerSize {
		return text[:headerSize]
	}
	return text
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if analysis.MatchGlob(p, name) {
			return true
		}
	}
	return false
}
