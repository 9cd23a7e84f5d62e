package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPutGetValue(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key := Key("image_gen", "openai", "a cat", 1080, 1920)
	if err := c.PutValue(key, map[string]string{"url": "https://example.com/x.png"}); err != nil {
		t.Fatalf("PutValue: %v", err)
	}

	var out map[string]string
	ok, _ := c.Get(key, &out)
	if !ok {
		t.Fatal("expected hit")
	}
	if out["url"] != "https://example.com/x.png" {
		t.Errorf("unexpected value: %v", out)
	}

	stats := c.Stats()
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
}

func TestGetMissUnknownKey(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ok, _ := c.Get("nonexistent", nil)
	if ok {
		t.Fatal("expected miss")
	}
	if c.Stats().Misses != 1 {
		t.Errorf("expected 1 miss, got %d", c.Stats().Misses)
	}
}

func TestStalePathEvicted(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	artifact := filepath.Join(dir, "artifact.mp4")
	if err := os.WriteFile(artifact, []byte("data"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	key := Key("video_gen", "lumaai", "a dog running")
	if err := c.PutPath(key, artifact); err != nil {
		t.Fatalf("PutPath: %v", err)
	}

	ok, path := c.Get(key, nil)
	if !ok || path != artifact {
		t.Fatalf("expected hit with path %s, got ok=%v path=%s", artifact, ok, path)
	}

	// Remove the referenced artifact; the next read must report a miss and evict.
	os.Remove(artifact)

	ok, _ = c.Get(key, nil)
	if ok {
		t.Fatal("expected miss after referenced file was removed")
	}

	if _, err := os.Stat(c.entryFile(key)); !os.IsNotExist(err) {
		t.Error("expected stale entry file to be removed")
	}
}

func TestKeyIncludesProvider(t *testing.T) {
	a := Key("image_gen", "openai", "a cat")
	b := Key("image_gen", "gemini", "a cat")
	if a == b {
		t.Error("expected different keys for different providers on otherwise identical args")
	}
}

func TestClearRemovesEntries(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := Key("tts", "elevenlabs", "hello world")
	if err := c.PutValue(key, "x"); err != nil {
		t.Fatalf("PutValue: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	ok, _ := c.Get(key, nil)
	if ok {
		t.Fatal("expected miss after Clear")
	}
}
