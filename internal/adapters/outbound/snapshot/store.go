package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/mod/semver"

	"github.com/keyscope/keyscope/internal/adapters/outbound/cache"
	"github.com/keyscope/keyscope/internal/domain"
)

// document is the on-disk snapshot layout.
type document struct {
	SchemaVersion string `json:"schemaVersion"`
	*domain.ScanResult
	DurationMS int64 `json:"duration_ms"`
}

// FileStore implements domain.SnapshotStore using JSON files.
type FileStore struct{}

func New() *FileStore {
	return &FileStore{}
}

// Save writes result to path, creating parent directories.
func (s *FileStore) Save(path string, result *domain.ScanResult) error {
	if result == nil {
		return fmt.Errorf("saving snapshot: nil result")
	}
	data, err := Encode(result)
	if err != nil {
		return err
	}
	if err := cache.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	return nil
}

// Load reads a snapshot. A missing or unreadable file is an InputError; a
// document from another major schema version wraps ErrUnsupportedSchema.
func (s *FileStore) Load(path string) (*domain.ScanResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.InputError{Op: "reading snapshot", Path: path, Err: err}
	}
	r, err := Decode(data)
	if err != nil {
		return nil, &domain.InputError{Op: "decoding snapshot", Path: path, Err: err}
	}
	return r, nil
}

// Exists reports whether a snapshot file is present at path.
func (s *FileStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Encode renders result as an indented snapshot document.
func Encode(result *domain.ScanResult) ([]byte, error) {
	doc := document{
		SchemaVersion: domain.SchemaVersion,
		ScanResult:    result,
		DurationMS:    result.Duration.Milliseconds(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a snapshot document. Any 1.x schema version is accepted.
func Decode(data []byte) (*domain.ScanResult, error) {
	doc := document{ScanResult: domain.NewScanResult()}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if !supported(doc.SchemaVersion) {
		return nil, fmt.Errorf("%w %q (want %s)", domain.ErrUnsupportedSchema, doc.SchemaVersion, domain.SchemaVersion)
	}

	r := doc.ScanResult
	r.Duration = time.Duration(doc.DurationMS) * time.Millisecond
	if r.FileAnalyses == nil {
		r.FileAnalyses = make(map[string]*domain.FileAnalysis)
	}
	if r.KeyUsages == nil {
		r.KeyUsages = make(map[string]*domain.KeyUsage)
	}
	for id, u := range r.KeyUsages {
		if u == nil {
			delete(r.KeyUsages, id)
			continue
		}
		if u.ID == "" {
			u.ID = id
		}
		if u.Status == "" {
			u.Status = domain.StatusActive
		}
	}
	return r, nil
}

func supported(version string) bool {
	v := "v" + version
	return semver.IsValid(v) && semver.Major(v) == semver.Major("v"+domain.SchemaVersion)
}

// DefaultPath joins the configured baseline path onto the project root
// unless it is already absolute.
func DefaultPath(projectRoot, baselinePath string) string {
	if filepath.IsAbs(baselinePath) {
		return baselinePath
	}
	return filepath.Join(projectRoot, filepath.FromSlash(baselinePath))
}
