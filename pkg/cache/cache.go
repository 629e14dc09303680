// Package cache is a small on-disk key/value cache with time-based
// invalidation. It memoizes expensive lookups (cluster probes, resolved
// names) across sessions; entries older than a TTL are dropped on load.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

// Cache holds timestamped entries backed by a JSON file. All methods are
// safe for concurrent use.
type Cache struct {
	entries map[string]entry
	path    string
	mu      sync.Mutex
	dirty   bool
}

type entry struct {
	Time  time.Time       `json:"time"`
	Value json.RawMessage `json:"value"`
}

// DefaultPath returns the cache file under the user's XDG cache home,
// creating parent directories as needed.
func DefaultPath() (string, error) {
	path, err := xdg.CacheFile("krun/cache.json")
	if err != nil {
		return "", fmt.Errorf("resolve cache path: %w", err)
	}

	return path, nil
}

// Load reads the cache at path. A missing or unreadable file yields an
// empty cache; persistence is best-effort by design.
func Load(path string) *Cache {
	c := &Cache{
		path:    path,
		entries: make(map[string]entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("read cache", slog.String("path", path), slog.Any("err", err))
		}

		return c
	}

	err = json.Unmarshal(data, &c.entries)
	if err != nil {
		slog.Debug("discarding corrupt cache", slog.String("path", path), slog.Any("err", err))
		c.entries = make(map[string]entry)
	}

	return c
}

// Invalidate drops every entry older than maxAge.
func (c *Cache) Invalidate(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if e.Time.Before(cutoff) {
			delete(c.entries, key)
			c.dirty = true
		}
	}
}

// LookupString returns the cached value for key, computing and storing it
// on a miss.
func (c *Cache) LookupString(key string, compute func() (string, error)) (string, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()

	if ok {
		var v string
		if err := json.Unmarshal(e.Value, &v); err == nil {
			return v, nil
		}
	}

	v, err := compute()
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode cache value %q: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = entry{Time: time.Now(), Value: raw}
	c.dirty = true
	c.mu.Unlock()

	return v, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Save writes the cache back to disk if anything changed since load.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(c.path), 0o755)
	if err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	err = os.WriteFile(c.path, data, 0o644)
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}

	c.dirty = false

	return nil
}
