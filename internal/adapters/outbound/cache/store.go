package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keyscope/keyscope/internal/domain"
)

// Store is a file-based implementation of domain.DependencyCache. Entries
// live under <root>/.cache/keyscope/cache, one JSON document per key.
type Store struct {
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp and expire entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a new file-based cache store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetCacheKey builds the cache key for one dependency package.
func GetCacheKey(packageName, packageVersion, detectorHash, sdkVersion string) string {
	return domain.CacheKey(packageName, packageVersion, detectorHash, sdkVersion)
}

// Load returns the payload stored under key. It returns (nil, nil) for a
// missing entry; expired, unreadable or mismatched entries are deleted and
// also reported as (nil, nil).
func (s *Store) Load(root, key string) (json.RawMessage, error) {
	path := entryPath(root, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // a miss is not an error
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.CacheKey != key || len(entry.Result) == 0 {
		return nil, s.discard(path)
	}
	if domain.IsExpired(entry.CachedAt, s.now()) {
		return nil, s.discard(path)
	}
	return entry.Result, nil
}

// Save writes payload under key atomically, creating directories as needed.
func (s *Store) Save(root, key string, payload any) error {
	result, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding cache payload: %w", err)
	}
	entry := domain.CacheEntry{
		CacheKey: key,
		CachedAt: s.now().UTC(),
		Result:   result,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := WriteFileAtomic(entryPath(root, key), data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Clear removes the whole cache tree for root.
func (s *Store) Clear(root string) error {
	if err := os.RemoveAll(toolDir(root)); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

func (s *Store) discard(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale cache entry: %w", err)
	}
	return nil
}

func toolDir(root string) string {
	return filepath.Join(root, ".cache", "keyscope")
}

// Dir returns the directory holding cache entries for root.
func Dir(root string) string {
	return filepath.Join(toolDir(root), "cache")
}

func entryPath(root, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(Dir(root), hex.EncodeToString(sum[:])+".json")
}
