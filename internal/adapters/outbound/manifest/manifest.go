// Package manifest resolves a Flutter project's dependency packages from the
// files `pub get` leaves behind.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/policy"
)

const (
	packageConfigPath = ".dart_tool/package_config.json"
	lockFileName      = "pubspec.lock"
	unknownVersion    = "0.0.0"
)

// Resolver implements domain.ManifestResolver.
type Resolver struct {
	fs afs.Service
}

func New() *Resolver {
	return &Resolver{fs: afs.New()}
}

type packageConfig struct {
	ConfigVersion int `json:"configVersion"`
	Packages      []struct {
		Name    string `json:"name"`
		RootURI string `json:"rootUri"`
	} `json:"packages"`
}

type lockFile struct {
	Packages map[string]struct {
		Source  string `yaml:"source"`
		Version string `yaml:"version"`
	} `yaml:"packages"`
	SDKs map[string]string `yaml:"sdks"`
}

// Resolve reads .dart_tool/package_config.json for package roots and
// pubspec.lock for versions. It returns (nil, nil) when the project has no
// package config.
func (r *Resolver) Resolve(ctx context.Context, projectPath string) (*domain.Manifest, error) {
	root, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("resolving project path: %w", err)
	}

	configPath := filepath.Join(root, filepath.FromSlash(packageConfigPath))
	data, err := r.read(ctx, configPath)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var cfg packageConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", packageConfigPath, err)
	}

	var lock lockFile
	lockData, err := r.read(ctx, filepath.Join(root, lockFileName))
	if err != nil {
		return nil, err
	}
	if lockData != nil {
		if err := yaml.Unmarshal(lockData, &lock); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", lockFileName, err)
		}
	}

	byName := make(map[string]domain.Dependency)
	for _, p := range cfg.Packages {
		pkgRoot, err := rootPath(filepath.Dir(configPath), p.RootURI)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", p.Name, err)
		}
		if pkgRoot == root {
			continue
		}
		locked, ok := lock.Packages[p.Name]
		if ok && locked.Source == "sdk" {
			continue
		}
		version := locked.Version
		if version == "" {
			version = versionFromDir(p.Name, pkgRoot)
		}

		dep := domain.Dependency{Name: p.Name, Version: version, RootPath: pkgRoot}
		if prev, seen := byName[p.Name]; seen && policy.CompareVersions(prev.Version, dep.Version) >= 0 {
			continue
		}
		byName[p.Name] = dep
	}

	m := &domain.Manifest{Dependencies: make([]domain.Dependency, 0, len(byName))}
	for _, d := range byName {
		m.Dependencies = append(m.Dependencies, d)
	}
	sort.Slice(m.Dependencies, func(i, j int) bool {
		return m.Dependencies[i].Name < m.Dependencies[j].Name
	})

	m.SDKVersion = lock.SDKs["flutter"]
	if m.SDKVersion == "" {
		m.SDKVersion = lock.SDKs["dart"]
	}
	return m, nil
}

func (r *Resolver) read(ctx context.Context, path string) ([]byte, error) {
	ok, err := r.fs.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}
	if !ok {
		return nil, nil
	}
	data, err := r.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// rootPath resolves a package_config rootUri, which is either a file URI or
// relative to the directory holding the config.
func rootPath(configDir, rootURI string) (string, error) {
	u, err := url.Parse(rootURI)
	if err != nil {
		return "", fmt.Errorf("parsing rootUri %q: %w", rootURI, err)
	}
	switch u.Scheme {
	case "file":
		return filepath.Clean(filepath.FromSlash(u.Path)), nil
	case "":
		return filepath.Clean(filepath.Join(configDir, filepath.FromSlash(u.Path))), nil
	default:
		return "", fmt.Errorf("unsupported rootUri scheme %q", u.Scheme)
	}
}

// versionFromDir reads the version out of a pub-cache directory name such
// as shared_ui-1.2.0.
func versionFromDir(name, dir string) string {
	base := filepath.Base(dir)
	if v, ok := strings.CutPrefix(base, name+"-"); ok && v != "" {
		return v
	}
	return unknownVersion
}
