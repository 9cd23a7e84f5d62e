package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bobarin/reelforge/internal/cache"
	"github.com/bobarin/reelforge/internal/config"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := cache.New(dir)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	return c
}

func TestClearCacheSyncRemovesEntries(t *testing.T) {
	c := newTestCache(t)
	if err := c.PutValue("k", "v"); err != nil {
		t.Fatalf("PutValue: %v", err)
	}

	ctrl := &Controller{
		cache: c,
		cfg:   &config.Config{EnableCacheClearing: true, CacheClearingAsync: false},
	}
	ctrl.clearCache("task-1")

	if ok, _ := c.Get("k", new(string)); ok {
		t.Error("expected cache entry to be cleared synchronously")
	}
}

func TestClearCacheNoopWhenDisabled(t *testing.T) {
	c := newTestCache(t)
	if err := c.PutValue("k", "v"); err != nil {
		t.Fatalf("PutValue: %v", err)
	}

	ctrl := &Controller{
		cache: c,
		cfg:   &config.Config{EnableCacheClearing: false},
	}
	ctrl.clearCache("task-1")

	if ok, _ := c.Get("k", new(string)); !ok {
		t.Error("expected cache entry to survive when clearing is disabled")
	}
}

func TestTerminationSignalsIncludesSIGINTAndSIGTERM(t *testing.T) {
	sigs := terminationSignals()
	if len(sigs) != 2 {
		t.Fatalf("expected exactly 2 termination signals, got %d", len(sigs))
	}
}

func TestCacheDirIsCreatedByNewCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	if _, err := cache.New(dir); err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected cache directory to be created, got %v", err)
	}
}
