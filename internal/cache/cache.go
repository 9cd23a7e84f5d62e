// Package cache implements the content-addressed artifact cache (component C1):
// a map from a deterministic operation hash to either a serialized result or a
// pinned on-disk artifact path, persisted as individual files plus an in-process
// hit/miss counter and an in-memory hot mirror with no expiry and no size bound.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the artifact cache. Safe for concurrent use.
type Cache struct {
	dir  string
	mem  *gocache.Cache
	hits   int64
	misses int64
}

// New creates a cache rooted at dir, creating it if necessary.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: failed to create directory: %w", err)
	}
	return &Cache{
		dir: dir,
		mem: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
	}, nil
}

// Key builds a deterministic content hash from an operation name, a provider tag, and
// an ordered set of argument values. Provider is included so a fallback-produced
// artifact never poisons the primary provider's key (spec §9).
func Key(operation, provider string, args ...interface{}) string {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, operation, provider)
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("%v", a))
	}
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// entry is the on-disk envelope written for every cache key.
type entry struct {
	Kind string          `json:"kind"` // "value" or "path"
	Data json.RawMessage `json:"data,omitempty"`
	Path string          `json:"path,omitempty"`
}

func (c *Cache) entryFile(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get looks up key. ok is false on miss (including a stale "path" entry whose
// referenced file no longer exists, per P5 — in which case the entry is evicted).
func (c *Cache) Get(key string, out interface{}) (ok bool, path string) {
	if cached, found := c.mem.Get(key); found {
		e := cached.(entry)
		return c.resolve(key, e, out)
	}

	raw, err := os.ReadFile(c.entryFile(key))
	if err != nil {
		atomic.AddInt64(&c.misses, 1)
		return false, ""
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		atomic.AddInt64(&c.misses, 1)
		return false, ""
	}

	c.mem.Set(key, e, gocache.NoExpiration)
	return c.resolve(key, e, out)
}

func (c *Cache) resolve(key string, e entry, out interface{}) (bool, string) {
	if e.Kind == "path" {
		if _, err := os.Stat(e.Path); err != nil {
			// Stale reference: evict and report a miss.
			os.Remove(c.entryFile(key))
			c.mem.Delete(key)
			atomic.AddInt64(&c.misses, 1)
			return false, ""
		}
		atomic.AddInt64(&c.hits, 1)
		return true, e.Path
	}

	if out != nil && len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, out); err != nil {
			atomic.AddInt64(&c.misses, 1)
			return false, ""
		}
	}
	atomic.AddInt64(&c.hits, 1)
	return true, ""
}

// PutValue stores a serializable result under key.
func (c *Cache) PutValue(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal value: %w", err)
	}
	e := entry{Kind: "value", Data: data}
	if err := c.writeEntry(key, e); err != nil {
		return err
	}
	c.mem.Set(key, e, gocache.NoExpiration)
	return nil
}

// PutPath pins an on-disk artifact path under key.
func (c *Cache) PutPath(key, path string) error {
	e := entry{Kind: "path", Path: path}
	if err := c.writeEntry(key, e); err != nil {
		return err
	}
	c.mem.Set(key, e, gocache.NoExpiration)
	return nil
}

// writeEntry does an atomic write-temp-then-rename so concurrent readers never see
// a partially written file.
func (c *Cache) writeEntry(key string, e entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal entry: %w", err)
	}

	final := c.entryFile(key)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: failed to write temp entry: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: failed to rename entry into place: %w", err)
	}
	return nil
}

// Clear removes every on-disk entry and empties the in-memory mirror. Best-effort:
// individual removal errors are swallowed so one bad file never blocks cleanup.
func (c *Cache) Clear() error {
	c.mem.Flush()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("cache: failed to list directory: %w", err)
	}
	for _, de := range entries {
		_ = os.Remove(filepath.Join(c.dir, de.Name()))
	}
	return nil
}

// Stats reports cumulative hit/miss counters.
type Stats struct {
	Hits   int64
	Misses int64
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}
