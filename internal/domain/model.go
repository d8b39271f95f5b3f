package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Source identifies where a key usage was discovered.
type Source string

const (
	SourceWorkspace Source = "workspace"
	SourcePackage   Source = "package"
)

// KeyStatus is the lifecycle state of a key.
type KeyStatus string

const (
	StatusActive     KeyStatus = "active"
	StatusDeprecated KeyStatus = "deprecated"
	StatusReserved   KeyStatus = "reserved"
	StatusRemoved    KeyStatus = "removed"
)

// ValidStatuses enumerates all recognized key statuses.
var ValidStatuses = []KeyStatus{StatusActive, StatusDeprecated, StatusReserved, StatusRemoved}

// Resolution values set by the constant-class detector.
const (
	ResolutionResolved = "resolved"
	ResolutionLiteral  = "literal"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// KeyLocation is a single occurrence of a key in source.
type KeyLocation struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Detector   string `json:"detector"`
	Context    string `json:"context,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	// Package is the name@version the occurrence came from; empty for workspace files.
	Package string `json:"package,omitempty"`
}

// KeyHit is a raw detector match: the key and where it was found.
type KeyHit struct {
	Key      string      `json:"key"`
	Location KeyLocation `json:"location"`
}

// HandlerInfo describes the callback associated with a keyed widget.
type HandlerInfo struct {
	Kind    string `json:"kind"`
	Method  string `json:"method,omitempty"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Package string `json:"package,omitempty"`
}

// KeyUsage aggregates every occurrence of one key across a scan.
type KeyUsage struct {
	ID        string        `json:"id"`
	Locations []KeyLocation `json:"locations"`
	Handlers  []HandlerInfo `json:"handlers,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	Status    KeyStatus     `json:"status"`
	Notes     string        `json:"notes,omitempty"`
	Source    Source        `json:"source"`
	Package   string        `json:"package,omitempty"`
}

// HasTag reports whether the usage carries the given tag.
func (u *KeyUsage) HasTag(tag string) bool {
	for _, t := range u.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTags merges tags into the usage, keeping the set sorted and unique.
func (u *KeyUsage) AddTags(tags ...string) {
	for _, t := range tags {
		if t == "" || u.HasTag(t) {
			continue
		}
		u.Tags = append(u.Tags, t)
	}
	sort.Strings(u.Tags)
}

// SourceIdentity returns "workspace" or the package identity for a usage.
func (u *KeyUsage) SourceIdentity() string {
	if u.Source == SourcePackage && u.Package != "" {
		return u.Package
	}
	return string(SourceWorkspace)
}

// LastSeen returns the most recently discovered location, if any.
func (u *KeyUsage) LastSeen() *KeyLocation {
	if len(u.Locations) == 0 {
		return nil
	}
	loc := u.Locations[len(u.Locations)-1]
	return &loc
}

// FileAnalysis is the per-file output of the analyzer.
type FileAnalysis struct {
	Path                 string         `json:"path"`
	RelativePath         string         `json:"relative_path"`
	Source               Source         `json:"source"`
	Package              string         `json:"package,omitempty"`
	KeysFound            []string       `json:"keys_found"`
	WidgetTypes          []string       `json:"widget_types"`
	UncoveredWidgetTypes []string       `json:"uncovered_widget_types"`
	Functions            []string       `json:"functions"`
	DetectorHits         map[string]int `json:"detector_hits"`

	// DetectorStats counts raw detector output before deduplication.
	DetectorStats    map[string]DetectorStats `json:"detector_stats,omitempty"`
	NodesAnalyzed    int                      `json:"nodes_analyzed"`
	WidgetsTotal     int                      `json:"widgets_total"`
	WidgetsWithKeys  int                      `json:"widgets_with_keys"`
	HandlersTotal    int                      `json:"handlers_total"`
	HandlersWithKeys int                      `json:"handlers_with_keys"`
	Lines            int                      `json:"lines"`
	SizeBytes        int                      `json:"size_bytes"`
}

// HasKeys reports whether at least one key was found in the file.
func (f *FileAnalysis) HasKeys() bool { return len(f.KeysFound) > 0 }

// ScanError records a per-file failure. Scans never abort on one.
type ScanError struct {
	File    string `json:"file"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	ScanErrorRead      = "read"
	ScanErrorTokenize  = "tokenize"
	ScanErrorCache     = "cache"
	ScanErrorCancelled = "cancelled"
	ScanErrorDetector  = "detector"
)

// DetectorStats backs the detector effectiveness heuristic.
type DetectorStats struct {
	Candidates int `json:"candidates"`
	KeysFound  int `json:"keys_found"`
}

// Effectiveness returns keys found per candidate, or 1 if there were no candidates.
func (s DetectorStats) Effectiveness() float64 {
	if s.Candidates == 0 {
		return 1
	}
	return float64(s.KeysFound) / float64(s.Candidates)
}

// ScanMetrics holds scan-wide aggregates.
type ScanMetrics struct {
	TotalFiles       int                      `json:"total_files"`
	ScannedFiles     int                      `json:"scanned_files"`
	FilesWithKeys    int                      `json:"files_with_keys"`
	TotalLines       int                      `json:"total_lines"`
	NodesAnalyzed    int                      `json:"nodes_analyzed"`
	WidgetsTotal     int                      `json:"widgets_total"`
	WidgetsWithKeys  int                      `json:"widgets_with_keys"`
	HandlersTotal    int                      `json:"handlers_total"`
	HandlersWithKeys int                      `json:"handlers_with_keys"`
	FileCoverage     float64                  `json:"file_coverage"`
	WidgetCoverage   float64                  `json:"widget_coverage"`
	HandlerCoverage  float64                  `json:"handler_coverage"`
	DetectorHits     map[string]int           `json:"detector_hits"`
	DetectorStats    map[string]DetectorStats `json:"detector_stats"`
	Errors           []ScanError              `json:"errors"`
	IncrementalScan  bool                     `json:"incremental_scan"`
	IncrementalBase  string                   `json:"incremental_base,omitempty"`
	BaselineFiles    int                      `json:"baseline_files,omitempty"` // unchanged files reused from the baseline
	CacheHits        int                      `json:"cache_hits"`
	CacheMisses      int                      `json:"cache_misses"`
	AverageFileSize  float64                  `json:"average_file_size"`
	ScanDurationMs   int64                    `json:"scan_duration_ms"`
}

// BlindSpot is a heuristic warning about likely under-instrumented code.
type BlindSpot struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

const (
	BlindSpotNoKeysInUIHeavyFile = "no_keys_in_ui_heavy_file"
	BlindSpotIneffectiveDetector = "ineffective_detector"
)

// Scope selects which files a scan covers.
type Scope string

const (
	ScopeWorkspace Scope = "workspace"
	ScopeDeps      Scope = "deps"
	ScopeAll       Scope = "all"
)

// ValidScopes enumerates all recognized scan scopes.
var ValidScopes = []Scope{ScopeWorkspace, ScopeDeps, ScopeAll}

// IncludesWorkspace reports whether workspace files are scanned.
func (s Scope) IncludesWorkspace() bool { return s == ScopeWorkspace || s == ScopeAll || s == "" }

// IncludesDeps reports whether dependency packages are scanned.
func (s Scope) IncludesDeps() bool { return s == ScopeDeps || s == ScopeAll }

// ScanResult is the unit of comparison and persistence (a snapshot).
type ScanResult struct {
	ScanID       string                   `json:"scan_id"`
	ProjectRoot  string                   `json:"project_root"`
	Scope        Scope                    `json:"scope"`
	CreatedAt    time.Time                `json:"created_at"`
	Metrics      ScanMetrics              `json:"metrics"`
	FileAnalyses map[string]*FileAnalysis `json:"file_analyses"`
	KeyUsages    map[string]*KeyUsage     `json:"key_usages"`
	BlindSpots   []BlindSpot              `json:"blind_spots"`
	Duration     time.Duration            `json:"-"`
}

// NewScanResult returns an empty result with initialized maps.
func NewScanResult() *ScanResult {
	return &ScanResult{
		FileAnalyses: make(map[string]*FileAnalysis),
		KeyUsages:    make(map[string]*KeyUsage),
		Metrics: ScanMetrics{
			DetectorHits:  make(map[string]int),
			DetectorStats: make(map[string]DetectorStats),
		},
	}
}

// Keys returns the sorted key ids in the result. A nil result has no keys.
func (r *ScanResult) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.KeyUsages))
	for k := range r.KeyUsages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasKey reports whether the result contains the key.
func (r *ScanResult) HasKey(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.KeyUsages[key]
	return ok
}

// Usage returns the usage for key, or nil.
func (r *ScanResult) Usage(key string) *KeyUsage {
	if r == nil {
		return nil
	}
	return r.KeyUsages[key]
}

// Dependency is one resolved package from the project's dependency manifest.
type Dependency struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	RootPath string `json:"root_path"`
}

// Identity returns name@version.
func (d Dependency) Identity() string { return d.Name + "@" + d.Version }

// PackageAnalysis is the cached analysis of one dependency package.
type PackageAnalysis struct {
	Files    map[string]*FileAnalysis `json:"files"`
	Hits     map[string][]KeyLocation `json:"hits"`
	Handlers map[string][]HandlerInfo `json:"handlers,omitempty"`
	Errors   []ScanError              `json:"errors,omitempty"`
}

// CacheEntry is the on-disk shape of a dependency cache document.
type CacheEntry struct {
	CacheKey string          `json:"cache_key"`
	CachedAt time.Time       `json:"cached_at"`
	Result   json.RawMessage `json:"result"`
}
