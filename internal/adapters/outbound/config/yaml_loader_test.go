package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	appconfig "github.com/keyscope/keyscope/internal/adapters/outbound/config"
	"github.com/keyscope/keyscope/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".keyscope.yaml"), []byte(content), 0644))
}

func TestYAMLLoader_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	loader := appconfig.New()

	cfg, err := loader.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConfig(), cfg)
}

func TestYAMLLoader_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
scan:
  scope: all
  exclude: ["lib/legacy/**"]
  detectors: [key_constructor, finder_call]
  widget_types: [FancyButton]
  ineffective_floor: 0.25
  packages: ["shared_*"]
policy:
  fail_on_rename: true
  max_drift_percent: 10
  protected_tags: [critical, checkout]
tag_rules:
  - key: "checkout_*"
    tags: [checkout]
baseline_path: ci/keys.json
`)
	loader := appconfig.New()

	cfg, err := loader.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, domain.ScopeAll, cfg.Scan.Scope)
	assert.Equal(t, []string{"lib/legacy/**"}, cfg.Scan.Exclude)
	assert.Equal(t, []string{"key_constructor", "finder_call"}, cfg.Scan.Detectors)
	assert.InDelta(t, 0.25, cfg.Scan.EffectiveIneffectiveFloor(), 0.001)
	assert.True(t, cfg.Policy.FailOnRename)
	require.NotNil(t, cfg.Policy.MaxDriftPercent)
	assert.InDelta(t, 10.0, *cfg.Policy.MaxDriftPercent, 0.001)
	assert.Equal(t, []string{"critical", "checkout"}, cfg.Policy.ProtectedTags)
	require.Len(t, cfg.TagRules, 1)
	assert.Equal(t, "ci/keys.json", cfg.EffectiveBaselinePath())
}

func TestYAMLLoader_AbsentKeysKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
policy:
  fail_on_extra: true
`)
	cfg, err := appconfig.New().Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Policy.FailOnExtra)
	assert.True(t, cfg.Policy.FailOnLost, "default survives a partial policy section")
	assert.Equal(t, []string{"critical"}, cfg.Policy.ProtectedTags)
	assert.Equal(t, domain.ScopeWorkspace, cfg.Scan.Scope)
	assert.Equal(t, domain.DefaultBaselinePath, cfg.EffectiveBaselinePath())
	assert.InDelta(t, domain.DefaultIneffectiveFloor, cfg.Scan.EffectiveIneffectiveFloor(), 0.001)
}

func TestYAMLLoader_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{{{invalid yaml`)
	loader := appconfig.New()

	_, err := loader.Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing .keyscope.yaml")

	var ce *domain.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, filepath.Join(dir, ".keyscope.yaml"), ce.Path)
	assert.True(t, domain.IsInputError(err))
}

func TestYAMLLoader_UnknownScope(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
scan:
  scope: everything
`)
	_, err := appconfig.New().Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scan.scope")
}

func TestYAMLLoader_UnknownDetector(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
scan:
  detectors: [key_constructor, magic]
`)
	_, err := appconfig.New().Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown detector "magic"`)
}

func TestYAMLLoader_FloorOutOfRange(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
scan:
  ineffective_floor: 1.5
`)
	_, err := appconfig.New().Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ineffective_floor")
}

func TestYAMLLoader_NegativeDrift(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
policy:
  max_drift_percent: -1
`)
	_, err := appconfig.New().Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_drift_percent")
}

func TestYAMLLoader_TagRuleWithoutTags(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
tag_rules:
  - key: "login_*"
`)
	_, err := appconfig.New().Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag_rules[0].tags")
}

func TestYAMLLoader_MalformedGlob(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
scan:
  include: ["lib/[abc"]
`)
	_, err := appconfig.New().Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed glob")
}
