package application

import (
	"context"
	"fmt"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/diff"
)

// CompareRequest names the two snapshots to compare. When CurrentPath is
// empty the current snapshot comes from a fresh scan described by Scan.
type CompareRequest struct {
	BaselinePath string
	CurrentPath  string
	Scan         ScanRequest
}

// DiffService compares a stored baseline with another snapshot.
type DiffService struct {
	scans     *ScanService
	snapshots domain.SnapshotStore
}

func NewDiffService(scans *ScanService, snapshots domain.SnapshotStore) *DiffService {
	return &DiffService{scans: scans, snapshots: snapshots}
}

func (s *DiffService) Diff(ctx context.Context, req CompareRequest) (*domain.DiffResult, error) {
	baseline, current, err := loadPair(ctx, s.scans, s.snapshots, req)
	if err != nil {
		return nil, err
	}
	return diff.Compare(baseline, current), nil
}

// loadPair loads the baseline and produces the current snapshot.
func loadPair(ctx context.Context, scans *ScanService, store domain.SnapshotStore, req CompareRequest) (*domain.ScanResult, *domain.ScanResult, error) {
	baseline, err := store.Load(req.BaselinePath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading baseline: %w", err)
	}

	if req.CurrentPath != "" {
		current, err := store.Load(req.CurrentPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading current snapshot: %w", err)
		}
		return baseline, current, nil
	}

	scan := req.Scan
	scan.Baseline = baseline
	current, err := scans.Scan(ctx, scan)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning project: %w", err)
	}
	return baseline, current, nil
}
