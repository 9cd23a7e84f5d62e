package render

import (
	"strings"
	"testing"

	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		TempDir:       t.TempDir(),
		FFmpegPreset:  "veryfast",
		FFmpegBitrate: "4M",
		FFmpegCRF:     23,
		FFmpegThreads: 2,
		ReelWidth:     1080,
		ReelHeight:    1920,
		FPS:           30,
	}
}

func TestNewEncoderCreatesTempDir(t *testing.T) {
	cfg := testConfig(t)
	enc := NewEncoder(cfg)
	if enc.TempFile("x.mp4") == "" {
		t.Error("expected a non-empty temp file path")
	}
}

func TestCodecArgsIncludesBitrateAndThreads(t *testing.T) {
	enc := NewEncoder(testConfig(t))
	args := enc.codecArgs()
	if !containsArg(args, "-b:v") || !containsArg(args, "-threads") {
		t.Errorf("expected bitrate and thread args present, got %v", args)
	}
}

func TestCodecArgsOmitsBitrateWhenUnset(t *testing.T) {
	cfg := testConfig(t)
	cfg.FFmpegBitrate = ""
	enc := NewEncoder(cfg)
	if containsArg(enc.codecArgs(), "-b:v") {
		t.Error("expected no -b:v arg when bitrate is unset")
	}
}

func TestPositionExprCorners(t *testing.T) {
	x, y := positionExpr(models.PositionTopLeft, 10)
	if x != "10" || y != "10" {
		t.Errorf("expected top-left margin applied to both axes, got x=%s y=%s", x, y)
	}

	x, y = positionExpr(models.PositionBottomRight, 20)
	if x == "" || y == "" {
		t.Error("expected non-empty bottom-right expressions")
	}
}

func TestPositionExprCenterDefault(t *testing.T) {
	x, y := positionExpr(models.PositionCenter, 0)
	if x != "(main_w-overlay_w)/2" || y != "(main_h-overlay_h)/2" {
		t.Errorf("expected centered overlay expression, got x=%s y=%s", x, y)
	}
}

func TestClamp01(t *testing.T) {
	if clamp01(0) != 1.0 {
		t.Error("expected zero opacity to default to fully opaque")
	}
	if clamp01(0.5) != 0.5 {
		t.Error("expected mid-range opacity to pass through unchanged")
	}
	if clamp01(1.5) != 1.0 {
		t.Error("expected out-of-range opacity to clamp to 1.0")
	}
}

func TestEscapeFilterPathEscapesSpecialChars(t *testing.T) {
	got := escapeFilterPath(`C:\subs\it's.ass`)
	if !strings.Contains(got, `\:`) || !strings.Contains(got, `\\`) {
		t.Errorf("expected colon and backslash escaped, got %q", got)
	}
}

func containsArg(args []string, target string) bool {
	for _, a := range args {
		if a == target {
			return true
		}
	}
	return false
}
