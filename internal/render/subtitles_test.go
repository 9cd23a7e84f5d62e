package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/reelforge/internal/models"
)

func words(ws ...string) []WordTimestamp {
	out := make([]WordTimestamp, 0, len(ws))
	t := 0.0
	for _, w := range ws {
		out = append(out, WordTimestamp{Word: w, Start: t, End: t + 0.3})
		t += 0.3
	}
	return out
}

func TestChunkWordsBreaksAtSentenceBoundary(t *testing.T) {
	chunks := chunkWords(words("Hello", "world.", "Next", "sentence", "goes", "on", "here"), 4)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 2 {
		t.Errorf("expected first chunk to break early at the sentence boundary (2 words), got %d", len(chunks[0]))
	}
}

func TestChunkWordsBreaksAtChunkSize(t *testing.T) {
	chunks := chunkWords(words("one", "two", "three", "four", "five"), 4)
	if len(chunks[0]) != 4 {
		t.Errorf("expected first chunk to hold exactly 4 words, got %d", len(chunks[0]))
	}
}

func TestFormatASSTimeBasic(t *testing.T) {
	if got := formatASSTime(0); got != "0:00:00.00" {
		t.Errorf("expected 0:00:00.00, got %s", got)
	}
	if got := formatASSTime(3661.25); got != "1:01:01.25" {
		t.Errorf("expected 1:01:01.25, got %s", got)
	}
	if got := formatASSTime(-5); got != "0:00:00.00" {
		t.Errorf("expected negative seconds clamped to zero, got %s", got)
	}
}

func TestBuildHighlightedChunkTextWrapsActiveWord(t *testing.T) {
	cfg := resolveSubtitleConfig(nil, nil)
	chunk := words("one", "two", "three")
	text := buildHighlightedChunkText(chunk, 1, cfg, 16)
	if !strings.Contains(text, "{\\3c") {
		t.Errorf("expected highlight override tag present, got %q", text)
	}
	if !strings.Contains(text, "TWO") {
		t.Errorf("expected active word uppercased, got %q", text)
	}
}

func TestResolveSubtitleConfigCascade(t *testing.T) {
	globalFont := "Impact"
	sceneColor := "&H00112233"
	global := &models.SubtitleConfig{FontName: &globalFont}
	scene := &models.SubtitleConfig{Color: &sceneColor}

	cfg := resolveSubtitleConfig(scene, global)
	if cfg.fontName != "Impact" {
		t.Errorf("expected global font to apply, got %s", cfg.fontName)
	}
	if cfg.color != sceneColor {
		t.Errorf("expected scene color to override global/default, got %s", cfg.color)
	}
}

func TestGenerateASSSubtitlesWritesFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "subs.ass")
	cfg := resolveSubtitleConfig(nil, nil)

	err := generateASSSubtitles(words("Hello", "there", "friend"), cfg, out, 0, 1080, 1920)
	if err != nil {
		t.Fatalf("generateASSSubtitles: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "[Events]") {
		t.Error("expected an [Events] section in the generated file")
	}
}

func TestGenerateASSSubtitlesRejectsEmptyWords(t *testing.T) {
	cfg := resolveSubtitleConfig(nil, nil)
	if err := generateASSSubtitles(nil, cfg, "/tmp/unused.ass", 0, 1080, 1920); err == nil {
		t.Error("expected an error for empty word list")
	}
}
