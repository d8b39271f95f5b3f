// Package analysis runs the detectors over one Dart file and measures its
// widget and handler coverage.
package analysis

import (
	"fmt"
	"sort"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/dartlex"
	"github.com/keyscope/keyscope/internal/domain/detect"
)

// Input is one file to analyze.
type Input struct {
	Path        string
	RelPath     string
	Text        string
	Detectors   []detect.Detector
	Source      domain.Source
	Package     string
	WidgetTypes []string
}

// Output is the analysis of one file plus the raw hits the orchestrator merges.
type Output struct {
	Analysis *domain.FileAnalysis
	Hits     []domain.KeyHit
	Handlers map[string][]domain.HandlerInfo
	// Errors holds detectors that failed on this file. Their hits are dropped.
	Errors []domain.ScanError
}

// Analyze analyzes one file. It returns an error only when the text cannot be
// tokenized; the caller records it as a tokenize ScanError.
func Analyze(in Input) (*Output, error) {
	toks, err := dartlex.Tokenize(in.Text)
	if err != nil {
		return nil, fmt.Errorf("tokenizing %s: %w", in.RelPath, err)
	}

	file := in.RelPath
	if file == "" {
		file = in.Path
	}
	detectors := in.Detectors
	if detectors == nil {
		detectors = detect.All()
	}
	source := in.Source
	if source == "" {
		source = domain.SourceWorkspace
	}

	fa := &domain.FileAnalysis{
		Path:          in.Path,
		RelativePath:  in.RelPath,
		Source:        source,
		Package:       in.Package,
		KeysFound:     []string{},
		DetectorHits:  make(map[string]int),
		DetectorStats: make(map[string]domain.DetectorStats),
		NodesAnalyzed: len(toks),
		SizeBytes:     len(in.Text),
	}

	src := detect.NewSource(file, in.Text)
	fa.Lines = src.Lines.Count()

	var raw []domain.KeyHit
	var failures []domain.ScanError
	for _, d := range detectors {
		res, err := runDetector(d, src)
		if err != nil {
			failures = append(failures, domain.ScanError{File: file, Type: domain.ScanErrorDetector, Message: err.Error()})
			continue
		}
		fa.DetectorStats[d.Name] = domain.DetectorStats{Candidates: res.Candidates, KeysFound: len(res.Hits)}
		raw = append(raw, res.Hits...)
	}
	hits := Dedupe(raw)

	keys := make(map[string]bool)
	for _, h := range hits {
		fa.DetectorHits[h.Location.Detector]++
		keys[h.Key] = true
	}
	fa.KeysFound = sortedKeys(keys)

	funcs := findFunctions(toks)
	fa.Functions = functionNames(funcs)

	handlers := make(map[string][]domain.HandlerInfo)
	seen := make(map[string]bool)
	covered := make(map[string]bool)
	uncovered := make(map[string]bool)
	types := make(map[string]bool)

	for _, w := range findWidgets(toks, widgetSet(in.WidgetTypes)) {
		fa.WidgetsTotal++
		types[w.Type] = true
		if w.Keyed {
			fa.WidgetsWithKeys++
			covered[w.Type] = true
		}

		var infos []domain.HandlerInfo
		for _, a := range w.Args {
			if !isHandlerArg(a.Name) {
				continue
			}
			method, ok := handlerMethod(toks, a, w.Close, funcs)
			if !ok {
				continue
			}
			fa.HandlersTotal++
			if w.Keyed {
				fa.HandlersWithKeys++
			}
			infos = append(infos, domain.HandlerInfo{
				Kind:   HandlerKind(a.Name),
				Method: method,
				File:   file,
				Line:   toks[a.Index].Line,
			})
		}
		if len(infos) == 0 {
			continue
		}
		for _, h := range hits {
			if !w.within(h.Location) {
				continue
			}
			for _, info := range infos {
				id := fmt.Sprintf("%s|%s|%s|%d", h.Key, info.Kind, info.Method, info.Line)
				if seen[id] {
					continue
				}
				seen[id] = true
				handlers[h.Key] = append(handlers[h.Key], info)
			}
		}
	}

	for t := range types {
		if !covered[t] {
			uncovered[t] = true
		}
	}
	fa.WidgetTypes = sortedKeys(types)
	fa.UncoveredWidgetTypes = sortedKeys(uncovered)

	return &Output{Analysis: fa, Hits: hits, Handlers: handlers, Errors: failures}, nil
}

// runDetector contains a panicking detector to the file it failed on.
func runDetector(d detect.Detector, src *detect.Source) (res detect.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector %s panicked: %v", d.Name, r)
		}
	}()
	return d.Detect(src), nil
}

// Dedupe collapses hits with the same key, line and column. The first hit
// wins; a later duplicate only fills in resolution and symbol when the first
// has none. The result is ordered by position.
func Dedupe(hits []domain.KeyHit) []domain.KeyHit {
	type pos struct {
		key       string
		line, col int
	}
	index := make(map[pos]int, len(hits))
	out := make([]domain.KeyHit, 0, len(hits))
	for _, h := range hits {
		p := pos{h.Key, h.Location.Line, h.Location.Column}
		if i, ok := index[p]; ok {
			if out[i].Location.Resolution == "" && h.Location.Resolution != "" {
				out[i].Location.Resolution = h.Location.Resolution
				out[i].Location.Symbol = h.Location.Symbol
			}
			continue
		}
		index[p] = len(out)
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Location, out[j].Location
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return out
}

func functionNames(funcs []function) []string {
	set := make(map[string]bool, len(funcs))
	for _, f := range funcs {
		set[f.Name] = true
	}
	return sortedKeys(set)
}
