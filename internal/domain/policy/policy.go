// Package policy evaluates snapshot changes and package-scope key usage
// against a policy configuration.
package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/diff"
)

// Policy names reported on violations.
const (
	PolicyFailOnLost           = "fail_on_lost"
	PolicyProtectedTags        = "protected_tags"
	PolicyFailOnRename         = "fail_on_rename"
	PolicyFailOnExtra          = "fail_on_extra"
	PolicyMaxDriftPercent      = "max_drift_percent"
	PolicyFailOnPackageMissing = "fail_on_package_missing"
	PolicyFailOnCollision      = "fail_on_collision"
)

// Config selects which changes fail validation. A nil MaxDriftPercent
// disables the drift check.
type Config struct {
	FailOnLost      bool
	FailOnRename    bool
	FailOnExtra     bool
	MaxDriftPercent *float64
	ProtectedTags   []string
	// Now stamps the result; nil means time.Now.
	Now func() time.Time
}

// FromProject builds a Config from the project policy section.
func FromProject(p domain.PolicyConfig) Config {
	return Config{
		FailOnLost:      p.FailOnLost,
		FailOnRename:    p.FailOnRename,
		FailOnExtra:     p.FailOnExtra,
		MaxDriftPercent: p.MaxDriftPercent,
		ProtectedTags:   p.ProtectedTags,
	}
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// Validate compares baseline and current and evaluates cfg. Protected tags
// fail a removal even when FailOnLost is off.
func Validate(baseline, current *domain.ScanResult, cfg Config) *domain.ValidationResult {
	d := diff.Compare(baseline, current)
	res := newResult(cfg.now())

	for _, k := range d.Removed {
		u := baseline.Usage(k)
		tag, protected := protectedTag(u, cfg.ProtectedTags)
		switch {
		case protected:
			res.Violations = append(res.Violations, domain.Violation{
				Type:        domain.ViolationLost,
				Severity:    domain.SeverityError,
				Key:         domain.SnapshotOf(k, u),
				Message:     fmt.Sprintf("protected key %q (tag %s) was removed", k, tag),
				Remediation: fmt.Sprintf("keys tagged %s must never be removed; restore the key", tag),
				Policy:      PolicyProtectedTags,
			})
		case cfg.FailOnLost:
			res.Violations = append(res.Violations, domain.Violation{
				Type:        domain.ViolationLost,
				Severity:    domain.SeverityError,
				Key:         domain.SnapshotOf(k, u),
				Message:     fmt.Sprintf("key %q was removed", k),
				Remediation: "restore the key, or refresh the baseline with 'keyscope scan --save' if the removal is intended",
				Policy:      PolicyFailOnLost,
			})
		}
	}

	if cfg.FailOnRename {
		for _, pair := range diff.SortedRenames(d) {
			res.Violations = append(res.Violations, domain.Violation{
				Type:        domain.ViolationRenamed,
				Severity:    domain.SeverityError,
				Key:         domain.SnapshotOf(pair[0], baseline.Usage(pair[0])),
				Message:     fmt.Sprintf("key %q appears to be renamed to %q", pair[0], pair[1]),
				Remediation: "update test drivers to the new key, or keep the old key",
				Policy:      PolicyFailOnRename,
			})
		}
	}

	if cfg.FailOnExtra {
		for _, k := range d.Added {
			res.Violations = append(res.Violations, domain.Violation{
				Type:        domain.ViolationExtra,
				Severity:    domain.SeverityError,
				Key:         domain.SnapshotOf(k, current.Usage(k)),
				Message:     fmt.Sprintf("key %q is not in the baseline", k),
				Remediation: "add the key to the baseline with 'keyscope scan --save', or remove it",
				Policy:      PolicyFailOnExtra,
			})
		}
	}

	drift := d.DriftPercentage()
	if cfg.MaxDriftPercent != nil && drift > *cfg.MaxDriftPercent {
		res.Violations = append(res.Violations, domain.Violation{
			Type:        domain.ViolationDrift,
			Severity:    domain.SeverityError,
			Message:     fmt.Sprintf("key drift %.1f%% exceeds the maximum of %.1f%%", drift, *cfg.MaxDriftPercent),
			Remediation: "review the changes and refresh the baseline, or raise policy.max_drift_percent",
			Policy:      PolicyMaxDriftPercent,
		})
	}

	res.Summary = domain.ValidationSummary{
		TotalKeys:       len(current.Keys()),
		Lost:            len(d.Removed),
		Added:           len(d.Added),
		Renamed:         len(d.Renamed),
		DriftPercentage: drift,
	}
	for _, k := range current.Keys() {
		u := current.KeyUsages[k]
		switch u.Status {
		case domain.StatusDeprecated:
			res.Summary.DeprecatedInUse++
			res.Warnings = append(res.Warnings, fmt.Sprintf("deprecated key %q is still in use%s", k, seenAt(u)))
		case domain.StatusRemoved:
			res.Warnings = append(res.Warnings, fmt.Sprintf("key %q is marked removed but was found again%s", k, seenAt(u)))
		}
	}

	res.HasViolations = !res.Passed()
	return res
}

func newResult(now time.Time) *domain.ValidationResult {
	return &domain.ValidationResult{
		SchemaVersion: domain.SchemaVersion,
		Violations:    []domain.Violation{},
		Warnings:      []string{},
		Timestamp:     now,
	}
}

func protectedTag(u *domain.KeyUsage, protected []string) (string, bool) {
	if u == nil {
		return "", false
	}
	for _, p := range protected {
		if u.HasTag(p) {
			return p, true
		}
	}
	return "", false
}

func seenAt(u *domain.KeyUsage) string {
	loc := u.LastSeen()
	if loc == nil {
		return ""
	}
	return fmt.Sprintf(" (%s:%d)", loc.File, loc.Line)
}

// Collision is a key contributed by more than one source.
type Collision struct {
	Key     string   `json:"key"`
	Sources []string `json:"sources"`
}

// PackageReport is the package-scope evaluation of a merged usage map.
type PackageReport struct {
	MissingInApp []string           `json:"missing_in_app"`
	Collisions   []Collision        `json:"collisions"`
	Violations   []domain.Violation `json:"violations"`
}

// CheckPackagePolicies finds keys only packages use and keys more than one
// source defines. usages maps a key to its usages, one per source.
func CheckPackagePolicies(usages map[string][]domain.KeyUsage, failOnPackageMissing, failOnCollision bool) *PackageReport {
	rep := &PackageReport{
		MissingInApp: []string{},
		Collisions:   []Collision{},
		Violations:   []domain.Violation{},
	}

	keys := make([]string, 0, len(usages))
	for k := range usages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		us := usages[k]
		if len(us) == 0 {
			continue
		}
		sources := make(map[string]bool)
		inWorkspace := false
		for i := range us {
			sources[us[i].SourceIdentity()] = true
			if us[i].Source != domain.SourcePackage {
				inWorkspace = true
			}
		}

		if !inWorkspace {
			rep.MissingInApp = append(rep.MissingInApp, k)
			if failOnPackageMissing {
				rep.Violations = append(rep.Violations, domain.Violation{
					Type:        domain.ViolationPackageMissing,
					Severity:    domain.SeverityError,
					Key:         domain.SnapshotOf(k, &us[0]),
					Message:     fmt.Sprintf("key %q is defined by %s but never used by the app", k, us[0].SourceIdentity()),
					Remediation: "use the key in the app, or drop it from the package",
					Policy:      PolicyFailOnPackageMissing,
				})
			}
		}

		if len(sources) > 1 {
			list := make([]string, 0, len(sources))
			for s := range sources {
				list = append(list, s)
			}
			SortSources(list)
			rep.Collisions = append(rep.Collisions, Collision{Key: k, Sources: list})
			if failOnCollision {
				rep.Violations = append(rep.Violations, domain.Violation{
					Type:        domain.ViolationCollision,
					Severity:    domain.SeverityError,
					Key:         domain.SnapshotOf(k, &us[0]),
					Sources:     list,
					Message:     fmt.Sprintf("key %q is defined by %d sources: %s", k, len(list), strings.Join(list, ", ")),
					Remediation: "give each source its own key, for example by prefixing it with the package name",
					Policy:      PolicyFailOnCollision,
				})
			}
		}
	}
	return rep
}

// Merge folds a package report into a validation result. A nil result
// starts a fresh one stamped with now.
func Merge(res *domain.ValidationResult, rep *PackageReport, now time.Time) *domain.ValidationResult {
	if res == nil {
		res = newResult(now)
	}
	if rep != nil {
		res.Violations = append(res.Violations, rep.Violations...)
	}
	res.HasViolations = !res.Passed()
	return res
}
