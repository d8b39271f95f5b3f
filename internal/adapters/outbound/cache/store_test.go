package cache_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyscope/keyscope/internal/adapters/outbound/cache"
	"github.com/keyscope/keyscope/internal/domain"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }

func entryFiles(t *testing.T, root string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(cache.Dir(root), "*.json"))
	require.NoError(t, err)
	return files
}

func TestGetCacheKey(t *testing.T) {
	assert.Equal(t, "shared_ui@1.2.0|abc|3.22.0", cache.GetCacheKey("shared_ui", "1.2.0", "abc", "3.22.0"))
	assert.Equal(t, cache.GetCacheKey("a", "1", "h", "s"), cache.GetCacheKey("a", "1", "h", "s"))
}

func TestStore_SaveAndLoad(t *testing.T) {
	root := t.TempDir()
	key := cache.GetCacheKey("shared_ui", "1.2.0", "abc", "3.22.0")
	payload := map[string]any{"hits": map[string]any{"login": []any{}}}

	require.NoError(t, cache.New(cache.WithClock(clock(now.Add(-1*time.Hour)))).Save(root, key, payload))

	got, err := cache.New(cache.WithClock(clock(now))).Load(root, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	want, _ := json.Marshal(payload)
	assert.JSONEq(t, string(want), string(got))
}

func TestStore_ExpiredEntryIsDeleted(t *testing.T) {
	root := t.TempDir()
	key := "pkg@1.0.0|h|s"

	require.NoError(t, cache.New(cache.WithClock(clock(now.Add(-25*time.Hour)))).Save(root, key, []int{1, 2}))
	require.Len(t, entryFiles(t, root), 1)

	got, err := cache.New(cache.WithClock(clock(now))).Load(root, key)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, entryFiles(t, root))
}

func TestStore_CorruptEntryIsDeleted(t *testing.T) {
	root := t.TempDir()
	key := "pkg@1.0.0|h|s"
	store := cache.New(cache.WithClock(clock(now)))
	require.NoError(t, store.Save(root, key, "ok"))

	files := entryFiles(t, root)
	require.Len(t, files, 1)
	require.NoError(t, os.WriteFile(files[0], []byte("{not json"), 0o644))

	got, err := store.Load(root, key)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, entryFiles(t, root))
}

func TestStore_KeyMismatchIsAMiss(t *testing.T) {
	root := t.TempDir()
	key := "pkg@1.0.0|h|s"
	store := cache.New(cache.WithClock(clock(now)))
	require.NoError(t, store.Save(root, key, "ok"))

	files := entryFiles(t, root)
	require.Len(t, files, 1)
	forged, _ := json.Marshal(domain.CacheEntry{CacheKey: "other", CachedAt: now, Result: json.RawMessage(`"x"`)})
	require.NoError(t, os.WriteFile(files[0], forged, 0o644))

	got, err := store.Load(root, key)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_LoadMissing(t *testing.T) {
	got, err := cache.New().Load(t.TempDir(), "nothing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SaveCreatesDirectoryWithoutTempLeftovers(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, cache.New().Save(root, "k", 1))

	entries, err := os.ReadDir(cache.Dir(root))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

func TestStore_Clear(t *testing.T) {
	root := t.TempDir()
	store := cache.New()
	require.NoError(t, store.Save(root, "a", 1))
	require.NoError(t, store.Save(root, "b", 2))

	require.NoError(t, store.Clear(root))
	_, err := os.Stat(filepath.Join(root, ".cache", "keyscope"))
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is fine.
	assert.NoError(t, store.Clear(root))
}
