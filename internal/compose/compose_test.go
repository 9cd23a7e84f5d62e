package compose

import (
	"testing"

	"github.com/bobarin/reelforge/internal/models"
)

func TestResolveTransitionDefaultsToOneSecondCrossfade(t *testing.T) {
	transitionType, sec := resolveTransition(nil)
	if transitionType != models.TransitionCrossfade {
		t.Errorf("expected default transition type crossfade, got %s", transitionType)
	}
	if sec != 1.0 {
		t.Errorf("expected default transition duration 1.0s, got %f", sec)
	}
}

func TestResolveTransitionHonorsExplicitConfig(t *testing.T) {
	cfg := &models.TransitionConfig{Type: models.TransitionNone, DurationSeconds: 2.5}
	transitionType, sec := resolveTransition(cfg)
	if transitionType != models.TransitionNone {
		t.Errorf("expected none transition type honored, got %s", transitionType)
	}
	if sec != 2.5 {
		t.Errorf("expected explicit duration honored, got %f", sec)
	}
}

func TestResolveTransitionFallsBackToDefaultDurationWhenZero(t *testing.T) {
	cfg := &models.TransitionConfig{Type: models.TransitionFade, DurationSeconds: 0}
	_, sec := resolveTransition(cfg)
	if sec != defaultTransitionSec {
		t.Errorf("expected zero duration to fall back to default, got %f", sec)
	}
}

func TestOutputKeyHintUsesSpecFilename(t *testing.T) {
	spec := &models.VideoSpecification{OutputFilename: "promo.mp4"}
	got := outputKeyHint(spec, "task-123")
	want := "videos/task-123/promo.mp4"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestOutputKeyHintDefaultsFilenameWhenEmpty(t *testing.T) {
	spec := &models.VideoSpecification{}
	got := outputKeyHint(spec, "task-123")
	want := "videos/task-123/final.mp4"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
