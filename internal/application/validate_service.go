package application

import (
	"context"
	"time"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/coverage"
	"github.com/keyscope/keyscope/internal/domain/policy"
)

// ValidateRequest is a CompareRequest plus the policy to evaluate.
type ValidateRequest struct {
	CompareRequest
	Policy domain.PolicyConfig
}

// ValidateService evaluates snapshot changes and package-scope usage
// against policy.
type ValidateService struct {
	scans     *ScanService
	snapshots domain.SnapshotStore
	now       func() time.Time
}

func NewValidateService(scans *ScanService, snapshots domain.SnapshotStore) *ValidateService {
	return &ValidateService{scans: scans, snapshots: snapshots, now: time.Now}
}

// Validate returns the verdict. A failed verdict is data, not an error.
func (s *ValidateService) Validate(ctx context.Context, req ValidateRequest) (*domain.ValidationResult, error) {
	baseline, current, err := loadPair(ctx, s.scans, s.snapshots, req.CompareRequest)
	if err != nil {
		return nil, err
	}
	return Evaluate(baseline, current, req.Policy, s.now().UTC()), nil
}

// Evaluate runs snapshot and package policies and merges their violations.
func Evaluate(baseline, current *domain.ScanResult, p domain.PolicyConfig, now time.Time) *domain.ValidationResult {
	cfg := policy.FromProject(p)
	cfg.Now = func() time.Time { return now }

	res := policy.Validate(baseline, current, cfg)
	rep := policy.CheckPackagePolicies(coverage.SplitBySource(current), p.FailOnPackageMissing, p.FailOnCollision)
	return policy.Merge(res, rep, now)
}
