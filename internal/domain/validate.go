package domain

import "time"

// SchemaVersion is the version stamped on snapshot and validation documents.
const SchemaVersion = "1.0"

// DiffResult describes how the key set changed between two snapshots.
type DiffResult struct {
	Added     []string          `json:"added"`
	Removed   []string          `json:"removed"`
	Unchanged []string          `json:"unchanged"`
	Renamed   map[string]string `json:"renamed"`
	Baseline  *ScanResult       `json:"-"`
	Current   *ScanResult       `json:"-"`
}

// HasChanges reports whether anything was added, removed or renamed.
func (d *DiffResult) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Renamed) > 0
}

// DriftPercentage is the share of baseline keys that changed, in percent.
func (d *DiffResult) DriftPercentage() float64 {
	base := len(d.Baseline.Keys())
	if base < 1 {
		base = 1
	}
	changed := len(d.Added) + len(d.Removed) + len(d.Renamed)
	return float64(changed) / float64(base) * 100
}

// ViolationType classifies a policy violation.
type ViolationType string

const (
	ViolationLost           ViolationType = "lost"
	ViolationRenamed        ViolationType = "renamed"
	ViolationExtra          ViolationType = "extra"
	ViolationDrift          ViolationType = "drift"
	ViolationPackageMissing ViolationType = "package_missing"
	ViolationCollision      ViolationType = "collision"
)

// KeySnapshot is the state of a key captured on a violation.
type KeySnapshot struct {
	ID       string       `json:"id"`
	Package  string       `json:"package,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
	Status   KeyStatus    `json:"status,omitempty"`
	LastSeen *KeyLocation `json:"last_seen,omitempty"`
}

// SnapshotOf captures a usage for reporting. A nil usage yields an id-only snapshot.
func SnapshotOf(id string, u *KeyUsage) *KeySnapshot {
	ks := &KeySnapshot{ID: id}
	if u == nil {
		return ks
	}
	ks.Package = u.Package
	ks.Tags = append([]string(nil), u.Tags...)
	ks.Status = u.Status
	ks.LastSeen = u.LastSeen()
	return ks
}

// Violation is one itemized policy failure.
type Violation struct {
	Type        ViolationType `json:"type"`
	Severity    string        `json:"severity"`
	Key         *KeySnapshot  `json:"key,omitempty"`
	Sources     []string      `json:"sources,omitempty"`
	Message     string        `json:"message"`
	Remediation string        `json:"remediation,omitempty"`
	Policy      string        `json:"policy"`
}

// ValidationSummary holds the headline counts of a validation.
type ValidationSummary struct {
	TotalKeys       int     `json:"total_keys"`
	Lost            int     `json:"lost"`
	Added           int     `json:"added"`
	Renamed         int     `json:"renamed"`
	DeprecatedInUse int     `json:"deprecated_in_use"`
	DriftPercentage float64 `json:"drift_percentage"`
}

// ValidationResult is the verdict of evaluating a policy.
type ValidationResult struct {
	SchemaVersion string            `json:"schema_version"`
	Summary       ValidationSummary `json:"summary"`
	Violations    []Violation       `json:"violations"`
	Warnings      []string          `json:"warnings"`
	HasViolations bool              `json:"has_violations"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Passed reports whether no violations were found.
func (v *ValidationResult) Passed() bool { return len(v.Violations) == 0 }

// CountBy returns how many violations have the given type.
func (v *ValidationResult) CountBy(t ViolationType) int {
	n := 0
	for _, vi := range v.Violations {
		if vi.Type == t {
			n++
		}
	}
	return n
}
