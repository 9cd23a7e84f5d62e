package render

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/bobarin/reelforge/internal/models"
)

func TestResolveAnimationPromotesNoneNoneToRandomZoom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	zoom, _, _, _, _ := resolveAnimation(nil, rng)
	if zoom == models.ZoomNone {
		t.Error("expected none/none to be promoted to a non-none zoom")
	}
}

func TestResolveAnimationAppliesPreset(t *testing.T) {
	preset := "subtle"
	cfg := &models.AnimationConfig{Preset: &preset}
	rng := rand.New(rand.NewSource(1))
	zoom, motion, _, _, _ := resolveAnimation(cfg, rng)
	if zoom != models.ZoomIn || motion != models.MotionDriftUp {
		t.Errorf("expected subtle preset to map to zoom_in/drift_up, got %s/%s", zoom, motion)
	}
}

func TestResolveAnimationInvalidModeFallsBackToRandom(t *testing.T) {
	invalid := models.ZoomMode("not-a-real-mode")
	cfg := &models.AnimationConfig{Mode: &invalid}
	rng := rand.New(rand.NewSource(1))
	zoom, _, _, _, _ := resolveAnimation(cfg, rng)
	if !isValidZoom(zoom) {
		t.Errorf("expected invalid mode to fall back to a valid zoom, got %s", zoom)
	}
}

func TestResolveAnimationExplicitModeHonored(t *testing.T) {
	zoomOut := models.ZoomOut
	cfg := &models.AnimationConfig{Mode: &zoomOut}
	rng := rand.New(rand.NewSource(1))
	zoom, _, _, _, _ := resolveAnimation(cfg, rng)
	if zoom != models.ZoomOut {
		t.Errorf("expected explicit zoom_out to be honored, got %s", zoom)
	}
}

func TestBuildMotionFilterContainsZoompan(t *testing.T) {
	f := buildMotionFilter(models.ZoomIn, models.MotionDriftUp, 60, 40, 5000, 1080, 1920, 30)
	if !strings.HasPrefix(f, "zoompan=") {
		t.Errorf("expected filter to start with zoompan=, got %q", f)
	}
	if !strings.Contains(f, "s=1080x1920") {
		t.Errorf("expected filter to target reel size, got %q", f)
	}
}

func TestBuildMotionFilterDriftClampedToFrameHeight(t *testing.T) {
	// drift of 10000px against a 1000px-tall frame should be clamped to 15%.
	f := buildMotionFilter(models.ZoomNone, models.MotionDriftDown, 10000, 0, 3000, 500, 1000, 30)
	if !strings.Contains(f, "150.0") {
		t.Errorf("expected drift clamped to 15%% of height (150.0), got %q", f)
	}
}
