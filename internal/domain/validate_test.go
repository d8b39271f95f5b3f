package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDiffResult_DriftPercentage(t *testing.T) {
	base := domain.NewScanResult()
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("k%d", i)
		base.KeyUsages[id] = &domain.KeyUsage{ID: id}
	}
	d := &domain.DiffResult{Baseline: base, Removed: []string{"k0"}}
	assert.InDelta(t, 25.0, d.DriftPercentage(), 0.0001)
	assert.True(t, d.HasChanges())
}

func TestDiffResult_DriftPercentage_EmptyBaseline(t *testing.T) {
	d := &domain.DiffResult{Baseline: domain.NewScanResult(), Added: []string{"a", "b"}}
	assert.InDelta(t, 200.0, d.DriftPercentage(), 0.0001)
}

func TestDiffResult_NoChanges(t *testing.T) {
	d := &domain.DiffResult{Unchanged: []string{"a"}}
	assert.False(t, d.HasChanges())
}

func TestValidationResult_Passed(t *testing.T) {
	v := &domain.ValidationResult{}
	assert.True(t, v.Passed())

	v.Violations = append(v.Violations, domain.Violation{Type: domain.ViolationLost})
	assert.False(t, v.Passed())
	assert.Equal(t, 1, v.CountBy(domain.ViolationLost))
	assert.Equal(t, 0, v.CountBy(domain.ViolationDrift))
}

func TestSnapshotOf(t *testing.T) {
	u := &domain.KeyUsage{
		Tags:      []string{"critical"},
		Status:    domain.StatusDeprecated,
		Package:   "shared_ui@1.0.0",
		Locations: []domain.KeyLocation{{File: "lib/a.dart", Line: 3}},
	}
	ks := domain.SnapshotOf("k", u)
	assert.Equal(t, "k", ks.ID)
	assert.Equal(t, []string{"critical"}, ks.Tags)
	assert.Equal(t, domain.StatusDeprecated, ks.Status)
	assert.Equal(t, 3, ks.LastSeen.Line)

	bare := domain.SnapshotOf("x", nil)
	assert.Equal(t, "x", bare.ID)
	assert.Nil(t, bare.LastSeen)
}

func TestInputError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("loading: %w", &domain.InputError{Op: "read snapshot", Path: "b.json", Err: cause})
	assert.True(t, errors.Is(err, cause))
	assert.True(t, domain.IsInputError(err))
	assert.Contains(t, err.Error(), "read snapshot b.json")

	cfgErr := &domain.ConfigError{Path: ".keyscope.yaml", Err: cause}
	assert.True(t, domain.IsInputError(cfgErr))
	assert.False(t, domain.IsInputError(cause))
}
