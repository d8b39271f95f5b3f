package snapshot_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyscope/keyscope/internal/adapters/outbound/snapshot"
	"github.com/keyscope/keyscope/internal/domain"
)

func sampleResult() *domain.ScanResult {
	r := domain.NewScanResult()
	r.ScanID = "5b0c3c4e-3a53-4d8e-9d0f-0d6a3f1b2c11"
	r.ProjectRoot = "/work/app"
	r.Scope = domain.ScopeWorkspace
	r.CreatedAt = time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	r.Duration = 1530 * time.Millisecond
	r.KeyUsages["login_button"] = &domain.KeyUsage{
		ID:        "login_button",
		Locations: []domain.KeyLocation{{File: "lib/login.dart", Line: 12, Column: 18, Detector: "key_constructor"}},
		Tags:      []string{"critical"},
		Status:    domain.StatusActive,
		Source:    domain.SourceWorkspace,
	}
	r.Metrics.TotalFiles = 3
	return r
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".keyscope", "baseline.json")
	store := snapshot.New()

	require.NoError(t, store.Save(path, sampleResult()))
	assert.True(t, store.Exists(path))

	got, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "5b0c3c4e-3a53-4d8e-9d0f-0d6a3f1b2c11", got.ScanID)
	assert.Equal(t, 1530*time.Millisecond, got.Duration)
	assert.True(t, got.CreatedAt.Equal(time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)))
	require.True(t, got.HasKey("login_button"))
	assert.Equal(t, []string{"critical"}, got.Usage("login_button").Tags)
	assert.Equal(t, 3, got.Metrics.TotalFiles)
}

func TestEncode_DocumentLayout(t *testing.T) {
	data, err := snapshot.Encode(sampleResult())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "1.0", raw["schemaVersion"])
	assert.EqualValues(t, 1530, raw["duration_ms"])
	for _, k := range []string{"scan_id", "project_root", "scope", "created_at", "metrics", "file_analyses", "key_usages", "blind_spots"} {
		assert.Contains(t, raw, k)
	}
}

func TestDecode_FillsDefaults(t *testing.T) {
	r, err := snapshot.Decode([]byte(`{"schemaVersion":"1.2","key_usages":{"a":{"locations":[]},"b":null}}`))
	require.NoError(t, err)
	require.True(t, r.HasKey("a"))
	assert.Equal(t, "a", r.Usage("a").ID)
	assert.Equal(t, domain.StatusActive, r.Usage("a").Status)
	assert.False(t, r.HasKey("b"))
	assert.NotNil(t, r.FileAnalyses)
}

func TestDecode_UnsupportedSchema(t *testing.T) {
	_, err := snapshot.Decode([]byte(`{"schemaVersion":"2.0"}`))
	assert.True(t, errors.Is(err, domain.ErrUnsupportedSchema))

	_, err = snapshot.Decode([]byte(`{}`))
	assert.True(t, errors.Is(err, domain.ErrUnsupportedSchema))
}

func TestFileStore_LoadMissingIsInputError(t *testing.T) {
	_, err := snapshot.New().Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, domain.IsInputError(err))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileStore_LoadCorruptIsInputError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))

	_, err := snapshot.New().Load(path)
	assert.True(t, domain.IsInputError(err))
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/work/app", ".keyscope", "baseline.json"), snapshot.DefaultPath("/work/app", ".keyscope/baseline.json"))
	abs := filepath.Join(t.TempDir(), "b.json")
	assert.Equal(t, abs, snapshot.DefaultPath("/work/app", abs))
}
