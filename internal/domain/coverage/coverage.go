// Package coverage aggregates per-file analyses into scan-wide key usages and
// metrics, derives blind spots, and carries baseline metadata forward.
package coverage

import (
	"fmt"
	"sort"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/analysis"
)

// UIHeavyThreshold is the widget count above which a file without keys is a blind spot.
const UIHeavyThreshold = 5

// Percent returns covered/total as a percentage clamped to [0, 100]. It is
// 100 when total is 0.
func Percent(covered, total int) float64 {
	if total <= 0 {
		return 100
	}
	p := float64(covered) / float64(total) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Aggregator merges file results into a ScanResult. It is not safe for
// concurrent use; the orchestrator feeds it sequentially in job order.
type Aggregator struct {
	result    *domain.ScanResult
	sizeTotal int
}

// NewAggregator starts aggregation into result.
func NewAggregator(result *domain.ScanResult) *Aggregator {
	return &Aggregator{result: result}
}

// AddFile merges one analyzed file and its hits and handlers.
func (a *Aggregator) AddFile(fa *domain.FileAnalysis, hits []domain.KeyHit, handlers map[string][]domain.HandlerInfo) {
	r := a.result
	m := &r.Metrics
	r.FileAnalyses[fileKey(fa)] = fa

	m.ScannedFiles++
	m.TotalLines += fa.Lines
	m.NodesAnalyzed += fa.NodesAnalyzed
	m.WidgetsTotal += fa.WidgetsTotal
	m.WidgetsWithKeys += fa.WidgetsWithKeys
	m.HandlersTotal += fa.HandlersTotal
	m.HandlersWithKeys += fa.HandlersWithKeys
	if fa.HasKeys() {
		m.FilesWithKeys++
	}
	a.sizeTotal += fa.SizeBytes
	for d, n := range fa.DetectorHits {
		m.DetectorHits[d] += n
	}
	for d, s := range fa.DetectorStats {
		cur := m.DetectorStats[d]
		cur.Candidates += s.Candidates
		cur.KeysFound += s.KeysFound
		m.DetectorStats[d] = cur
	}

	for _, h := range hits {
		u := r.KeyUsages[h.Key]
		if u == nil {
			u = &domain.KeyUsage{
				ID:      h.Key,
				Status:  domain.StatusActive,
				Source:  fa.Source,
				Package: fa.Package,
			}
			r.KeyUsages[h.Key] = u
		} else if u.Source == domain.SourcePackage && fa.Source == domain.SourceWorkspace {
			// A workspace occurrence makes the key the app's own.
			u.Source = domain.SourceWorkspace
			u.Package = ""
		}
		loc := h.Location
		if fa.Source == domain.SourcePackage {
			loc.Package = fa.Package
		}
		u.Locations = append(u.Locations, loc)
	}
	for key, infos := range handlers {
		u := r.KeyUsages[key]
		if u == nil {
			continue
		}
		for _, info := range infos {
			if fa.Source == domain.SourcePackage {
				info.Package = fa.Package
			}
			u.Handlers = append(u.Handlers, info)
		}
	}
}

// AddError records a per-file failure.
func (a *Aggregator) AddError(err domain.ScanError) {
	a.result.Metrics.Errors = append(a.result.Metrics.Errors, err)
}

// Finish computes derived metrics.
func (a *Aggregator) Finish() *domain.ScanResult {
	m := &a.result.Metrics
	m.FileCoverage = Percent(m.FilesWithKeys, m.ScannedFiles)
	m.WidgetCoverage = Percent(m.WidgetsWithKeys, m.WidgetsTotal)
	m.HandlerCoverage = Percent(m.HandlersWithKeys, m.HandlersTotal)
	if m.ScannedFiles > 0 {
		m.AverageFileSize = float64(a.sizeTotal) / float64(m.ScannedFiles)
	}
	if m.Errors == nil {
		m.Errors = []domain.ScanError{}
	}
	return a.result
}

// fileKey is the file_analyses map key: the relative path, prefixed with the
// package identity for dependency files.
func fileKey(fa *domain.FileAnalysis) string {
	rel := fa.RelativePath
	if rel == "" {
		rel = fa.Path
	}
	if fa.Source == domain.SourcePackage && fa.Package != "" {
		return fa.Package + "/" + rel
	}
	return rel
}

// DetectBlindSpots flags UI-heavy files without keys and detectors whose
// keys-found/candidates ratio falls under floor. Output is deterministic.
func DetectBlindSpots(r *domain.ScanResult, floor float64) []domain.BlindSpot {
	spots := []domain.BlindSpot{}

	paths := make([]string, 0, len(r.FileAnalyses))
	for p := range r.FileAnalyses {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fa := r.FileAnalyses[p]
		if fa.WidgetsTotal > UIHeavyThreshold && !fa.HasKeys() {
			spots = append(spots, domain.BlindSpot{
				Type:     domain.BlindSpotNoKeysInUIHeavyFile,
				Location: p,
				Severity: domain.SeverityWarning,
				Message:  fmt.Sprintf("%d widgets but no automation keys", fa.WidgetsTotal),
			})
		}
	}

	names := make([]string, 0, len(r.Metrics.DetectorStats))
	for n := range r.Metrics.DetectorStats {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		s := r.Metrics.DetectorStats[n]
		if s.Candidates == 0 || s.Effectiveness() >= floor {
			continue
		}
		spots = append(spots, domain.BlindSpot{
			Type:     domain.BlindSpotIneffectiveDetector,
			Location: n,
			Severity: domain.SeverityInfo,
			Message: fmt.Sprintf("detector %s resolved %d of %d candidates (%.0f%%, floor %.0f%%)",
				n, s.KeysFound, s.Candidates, s.Effectiveness()*100, floor*100),
		})
	}
	return spots
}

// FromBaseline rebuilds what the analyzer produced for workspace file rel in
// an earlier scan: its analysis plus the hits and handlers located in it, so
// an incremental scan can reuse it unchanged. ok is false when the baseline
// holds no analysis for rel.
func FromBaseline(baseline *domain.ScanResult, rel string) (fa *domain.FileAnalysis, hits []domain.KeyHit, handlers map[string][]domain.HandlerInfo, ok bool) {
	if baseline == nil {
		return nil, nil, nil, false
	}
	prev := baseline.FileAnalyses[rel]
	if prev == nil || prev.Source == domain.SourcePackage {
		return nil, nil, nil, false
	}
	copied := *prev
	fa = &copied

	for _, id := range baseline.Keys() {
		u := baseline.KeyUsages[id]
		for _, loc := range u.Locations {
			if loc.File == rel && loc.Package == "" {
				hits = append(hits, domain.KeyHit{Key: id, Location: loc})
			}
		}
		for _, info := range u.Handlers {
			if info.File == rel && info.Package == "" {
				if handlers == nil {
					handlers = make(map[string][]domain.HandlerInfo)
				}
				handlers[id] = append(handlers[id], info)
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i].Location, hits[j].Location
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return fa, hits, handlers, true
}

// MergeBaseline carries tags, status and notes over from baseline usages
// with the same id. Baseline keys absent from current are not resurrected.
func MergeBaseline(current, baseline *domain.ScanResult) {
	if current == nil || baseline == nil {
		return
	}
	for id, u := range current.KeyUsages {
		prev := baseline.Usage(id)
		if prev == nil {
			continue
		}
		u.AddTags(prev.Tags...)
		if prev.Status != "" {
			u.Status = prev.Status
		}
		if u.Notes == "" {
			u.Notes = prev.Notes
		}
	}
}

// ApplyTagRules tags every usage whose id matches a rule's key glob and,
// when the rule sets a path glob, which has a location matching it.
func ApplyTagRules(r *domain.ScanResult, rules []domain.TagRule) {
	if r == nil {
		return
	}
	for _, rule := range rules {
		for _, id := range r.Keys() {
			if !analysis.MatchGlob(rule.Key, id) {
				continue
			}
			u := r.KeyUsages[id]
			if rule.Path != "" && !anyLocationMatches(u, rule.Path) {
				continue
			}
			u.AddTags(rule.Tags...)
		}
	}
}

// SplitBySource expands each usage into one usage per contributing source
// identity, ordered workspace first, for package-scope policy checks.
func SplitBySource(r *domain.ScanResult) map[string][]domain.KeyUsage {
	out := make(map[string][]domain.KeyUsage)
	if r == nil {
		return out
	}
	for _, id := range r.Keys() {
		u := r.KeyUsages[id]
		bySource := make(map[string]*domain.KeyUsage)
		var order []string
		for _, l := range u.Locations {
			ident := l.Package
			if ident == "" {
				ident = string(domain.SourceWorkspace)
			}
			part := bySource[ident]
			if part == nil {
				part = &domain.KeyUsage{ID: id, Status: u.Status, Tags: u.Tags, Notes: u.Notes, Source: domain.SourceWorkspace}
				if l.Package != "" {
					part.Source = domain.SourcePackage
					part.Package = l.Package
				}
				bySource[ident] = part
				order = append(order, ident)
			}
			part.Locations = append(part.Locations, l)
		}
		sort.SliceStable(order, func(i, j int) bool {
			return order[i] == string(domain.SourceWorkspace) && order[j] != string(domain.SourceWorkspace)
		})
		for _, ident := range order {
			out[id] = append(out[id], *bySource[ident])
		}
	}
	return out
}

func anyLocationMatches(u *domain.KeyUsage, pattern string) bool {
	for _, l := range u.Locations {
		if analysis.MatchGlob(pattern, l.File) {
			return true
		}
	}
	return false
}
