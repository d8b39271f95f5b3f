package domain

import (
	"context"
	"encoding/json"
)

// ProjectScanner enumerates candidate source files under a directory.
type ProjectScanner interface {
	// Walk returns slash-separated paths of .dart files relative to root.
	Walk(root string, excludeDirs ...string) ([]string, error)
}

// ChangeResolver lists files changed since a version-control base ref.
type ChangeResolver interface {
	ChangedFiles(ctx context.Context, projectPath, baseRef string) ([]string, error)
}

// DependencyCache persists per-package analysis results.
type DependencyCache interface {
	Load(root, key string) (json.RawMessage, error)
	Save(root, key string, payload any) error
	Clear(root string) error
}

// Manifest is a resolved dependency graph.
type Manifest struct {
	Dependencies []Dependency `json:"dependencies"`
	SDKVersion   string       `json:"sdk_version,omitempty"`
}

// ManifestResolver resolves a project's dependency manifest.
type ManifestResolver interface {
	Resolve(ctx context.Context, projectPath string) (*Manifest, error)
}

// ConfigLoader loads project configuration.
type ConfigLoader interface {
	Load(projectPath string) (ProjectConfig, error)
}

// SnapshotStore reads and writes persisted scan results.
type SnapshotStore interface {
	Load(path string) (*ScanResult, error)
	Save(path string, result *ScanResult) error
}
