package domain

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultBaselinePath is where the baseline snapshot lives unless configured.
const DefaultBaselinePath = ".keyscope/baseline.json"

// DefaultIneffectiveFloor is the keys-found/candidates ratio below which a
// detector is flagged as ineffective.
const DefaultIneffectiveFloor = 0.5

// ProjectConfig holds project-level configuration loaded from .keyscope.yaml.
type ProjectConfig struct {
	Scan         ScanConfig   `yaml:"scan"          json:"scan"`
	Policy       PolicyConfig `yaml:"policy"        json:"policy"`
	TagRules     []TagRule    `yaml:"tag_rules"     json:"tag_rules,omitempty"`
	BaselinePath string       `yaml:"baseline_path" json:"baseline_path,omitempty"`
}

// ScanConfig configures what a scan covers and how.
type ScanConfig struct {
	Scope            Scope    `yaml:"scope"             json:"scope,omitempty"`
	Include          []string `yaml:"include"           json:"include,omitempty"`
	Exclude          []string `yaml:"exclude"           json:"exclude,omitempty"`
	IncludeTests     bool     `yaml:"include_tests"     json:"include_tests,omitempty"`
	IncludeGenerated bool     `yaml:"include_generated" json:"include_generated,omitempty"`
	IncludeExamples  bool     `yaml:"include_examples"  json:"include_examples,omitempty"`
	Detectors        []string `yaml:"detectors"         json:"detectors,omitempty"`
	WidgetTypes      []string `yaml:"widget_types"      json:"widget_types,omitempty"`
	IneffectiveFloor *float64 `yaml:"ineffective_floor" json:"ineffective_floor,omitempty"`
	Concurrency      int      `yaml:"concurrency"       json:"concurrency,omitempty"`
	Packages         []string `yaml:"packages"          json:"packages,omitempty"`
}

// PolicyConfig controls which changes between snapshots fail validation.
// A nil MaxDriftPercent disables the drift check.
type PolicyConfig struct {
	FailOnLost           bool     `yaml:"fail_on_lost"            json:"fail_on_lost"`
	FailOnRename         bool     `yaml:"fail_on_rename"          json:"fail_on_rename"`
	FailOnExtra          bool     `yaml:"fail_on_extra"           json:"fail_on_extra"`
	MaxDriftPercent      *float64 `yaml:"max_drift_percent"       json:"max_drift_percent,omitempty"`
	ProtectedTags        []string `yaml:"protected_tags"          json:"protected_tags,omitempty"`
	FailOnPackageMissing bool     `yaml:"fail_on_package_missing" json:"fail_on_package_missing"`
	FailOnCollision      bool     `yaml:"fail_on_collision"       json:"fail_on_collision"`
}

// TagRule adds tags to keys whose id matches Key and, when set, whose
// locations match Path.
type TagRule struct {
	Key  string   `yaml:"key"  json:"key"`
	Path string   `yaml:"path" json:"path,omitempty"`
	Tags []string `yaml:"tags" json:"tags"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() ProjectConfig {
	return ProjectConfig{
		Scan: ScanConfig{Scope: ScopeWorkspace},
		Policy: PolicyConfig{
			FailOnLost:    true,
			ProtectedTags: []string{"critical"},
		},
		BaselinePath: DefaultBaselinePath,
	}
}

// EffectiveBaselinePath returns the configured baseline path or the default.
func (c ProjectConfig) EffectiveBaselinePath() string {
	if c.BaselinePath != "" {
		return c.BaselinePath
	}
	return DefaultBaselinePath
}

// EffectiveIneffectiveFloor returns the configured floor or the default.
func (c ScanConfig) EffectiveIneffectiveFloor() float64 {
	if c.IneffectiveFloor != nil {
		return *c.IneffectiveFloor
	}
	return DefaultIneffectiveFloor
}

// Validate checks the config for invalid values and returns a descriptive error.
func (c ProjectConfig) Validate(knownDetectors []string) error {
	// 1. scope must be known or empty
	if c.Scan.Scope != "" && !isValidScope(c.Scan.Scope) {
		return fmt.Errorf("unknown scan.scope %q (valid: workspace, deps, all)", c.Scan.Scope)
	}

	// 2. detectors must be registered
	for _, d := range c.Scan.Detectors {
		if !contains(knownDetectors, d) {
			return fmt.Errorf("unknown detector %q in scan.detectors", d)
		}
	}

	// 3. globs must be well-formed
	for _, g := range append(append([]string{}, c.Scan.Include...), c.Scan.Exclude...) {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("malformed glob %q: %w", g, doublestar.ErrBadPattern)
		}
	}

	// 4. ineffective_floor in [0, 1]
	if f := c.Scan.IneffectiveFloor; f != nil && (*f < 0 || *f > 1) {
		return fmt.Errorf("scan.ineffective_floor must be between 0.0 and 1.0 (got %.2f)", *f)
	}

	// 5. concurrency must not be negative
	if c.Scan.Concurrency < 0 {
		return fmt.Errorf("scan.concurrency must be >= 0 (got %d)", c.Scan.Concurrency)
	}

	// 6. max_drift_percent must not be negative
	if d := c.Policy.MaxDriftPercent; d != nil && *d < 0 {
		return fmt.Errorf("policy.max_drift_percent must be >= 0 (got %.2f)", *d)
	}

	// 7. tag rules need a key glob and at least one tag
	for i, r := range c.TagRules {
		if r.Key == "" {
			return fmt.Errorf("tag_rules[%d].key must not be empty", i)
		}
		if !doublestar.ValidatePattern(r.Key) {
			return fmt.Errorf("tag_rules[%d].key is a malformed glob: %w", i, doublestar.ErrBadPattern)
		}
		if r.Path != "" && !doublestar.ValidatePattern(r.Path) {
			return fmt.Errorf("tag_rules[%d].path is a malformed glob: %w", i, doublestar.ErrBadPattern)
		}
		if len(r.Tags) == 0 {
			return fmt.Errorf("tag_rules[%d].tags must not be empty", i)
		}
	}

	return nil
}

// ParseScope converts user input into a Scope. An empty string means the
// default workspace scope.
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return ScopeWorkspace, nil
	}
	if !isValidScope(Scope(s)) {
		return "", fmt.Errorf("unknown scope %q (valid: workspace, deps, all)", s)
	}
	return Scope(s), nil
}

func isValidScope(s Scope) bool {
	for _, v := range ValidScopes {
		if s == v {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
