package application

import (
	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/analysis"
)

// RequestFromConfig builds a scan request for root from project config.
// Callers override individual fields from flags afterwards.
func RequestFromConfig(root string, cfg domain.ProjectConfig) ScanRequest {
	sc := cfg.Scan
	floor := sc.EffectiveIneffectiveFloor()
	return ScanRequest{
		ProjectRoot: root,
		Scope:       sc.Scope,
		Filter: analysis.Filter{
			Include:          sc.Include,
			Exclude:          sc.Exclude,
			IncludeTests:     sc.IncludeTests,
			IncludeGenerated: sc.IncludeGenerated,
			IncludeExamples:  sc.IncludeExamples,
		},
		PackageFilter:    sc.Packages,
		Concurrency:      sc.Concurrency,
		Detectors:        sc.Detectors,
		IneffectiveFloor: &floor,
		WidgetTypes:      sc.WidgetTypes,
		TagRules:         cfg.TagRules,
	}
}
