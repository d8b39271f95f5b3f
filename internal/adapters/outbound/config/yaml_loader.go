package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/detect"
)

// FileName is the project configuration file looked up in the project root.
const FileName = ".keyscope.yaml"

// YAMLLoader implements domain.ConfigLoader by reading .keyscope.yaml.
type YAMLLoader struct{}

// New creates a YAMLLoader.
func New() *YAMLLoader { return &YAMLLoader{} }

// Load reads .keyscope.yaml from projectPath.
// Returns DefaultConfig if the file does not exist. Keys present in the file
// override the defaults; absent keys keep them.
func (l *YAMLLoader) Load(projectPath string) (domain.ProjectConfig, error) {
	path := filepath.Join(projectPath, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.DefaultConfig(), nil
		}
		return domain.ProjectConfig{}, &domain.ConfigError{Path: path, Err: err}
	}

	cfg := domain.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.ProjectConfig{}, &domain.ConfigError{Path: path, Err: fmt.Errorf("parsing %s: %w", FileName, err)}
	}

	if err := cfg.Validate(detect.Names()); err != nil {
		return domain.ProjectConfig{}, &domain.ConfigError{Path: path, Err: fmt.Errorf("invalid %s: %w", FileName, err)}
	}

	if cfg.Scan.Scope == "" {
		cfg.Scan.Scope = domain.ScopeWorkspace
	}
	return cfg, nil
}
