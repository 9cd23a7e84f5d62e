package render

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/bobarin/reelforge/internal/models"
)

const (
	breathAmplitude = 0.03
	breathFrequency = 0.12
)

// animationPresets maps a named preset to a fixed zoom/motion pair (§4.4 step 4).
var animationPresets = map[string]struct {
	zoom   models.ZoomMode
	motion models.MotionMode
}{
	"subtle":  {models.ZoomIn, models.MotionDriftUp},
	"drift":   {models.ZoomNone, models.MotionDriftUp},
	"punchy":  {models.ZoomPulse, models.MotionOscillate},
	"zoomout": {models.ZoomOut, models.MotionDriftDown},
}

// resolveAnimation turns a scene's animation config into a concrete zoom/motion pair,
// applying presets, validating the enum values, and promoting none/none to a random
// zoom per §4.4 step 4's failure semantics (invalid mode logs and falls back to random).
func resolveAnimation(cfg *models.AnimationConfig, rng *rand.Rand) (models.ZoomMode, models.MotionMode, int, int, float64) {
	driftPx, oscPx, darken := 60, 40, 0.0
	zoom, motion := models.ZoomNone, models.MotionNone

	if cfg != nil {
		if cfg.DriftPx > 0 {
			driftPx = cfg.DriftPx
		}
		if cfg.OscPx > 0 {
			oscPx = cfg.OscPx
		}
		darken = cfg.DarkenFactor

		if cfg.Preset != nil {
			if preset, ok := animationPresets[*cfg.Preset]; ok {
				zoom, motion = preset.zoom, preset.motion
			}
		}
		if cfg.Mode != nil {
			if isValidZoom(*cfg.Mode) {
				zoom = *cfg.Mode
			} else {
				log.Printf("render: invalid animation mode %q, using a random zoom", *cfg.Mode)
				zoom = randomZoom(rng)
			}
		}
		if cfg.MotionMode != nil {
			if isValidMotion(*cfg.MotionMode) {
				motion = *cfg.MotionMode
			} else {
				motion = models.MotionNone
			}
		}
	}

	if zoom == models.ZoomNone && motion == models.MotionNone {
		zoom = randomZoom(rng)
	}

	return zoom, motion, driftPx, oscPx, darken
}

func isValidZoom(z models.ZoomMode) bool {
	switch z {
	case models.ZoomNone, models.ZoomIn, models.ZoomOut, models.ZoomPulse:
		return true
	}
	return false
}

func isValidMotion(m models.MotionMode) bool {
	switch m {
	case models.MotionNone, models.MotionDriftUp, models.MotionDriftDown, models.MotionOscillate:
		return true
	}
	return false
}

func randomZoom(rng *rand.Rand) models.ZoomMode {
	opts := []models.ZoomMode{models.ZoomIn, models.ZoomOut, models.ZoomPulse}
	return opts[rng.Intn(len(opts))]
}

// buildMotionFilter constructs a zoompan filter expression combining the requested
// zoom curve and motion drift/oscillation, each layered with a small additive
// breathing pulse so static frames never look perfectly frozen.
func buildMotionFilter(zoom models.ZoomMode, motion models.MotionMode, driftPx, oscPx int, durationMs, width, height, fps int) string {
	totalFrames := durationMs*fps/1000 + fps*2
	breathExpr := fmt.Sprintf("%.3f*sin(on*%.3f)", breathAmplitude, breathFrequency)

	var zExpr string
	switch zoom {
	case models.ZoomIn:
		zExpr = fmt.Sprintf("min(1.0+0.30*(on/%d)+%s,1.30)", totalFrames, breathExpr)
	case models.ZoomOut:
		zExpr = fmt.Sprintf("max(1.20-0.20*(on/%d)+%s,1.00)", totalFrames, breathExpr)
	case models.ZoomPulse:
		zExpr = fmt.Sprintf("1.10+0.05*sin(on*%.3f)", breathFrequency)
	default:
		zExpr = fmt.Sprintf("1.0+%s", breathExpr)
	}

	xExpr := "iw/2-(iw/zoom/2)"
	yExpr := "ih/2-(ih/zoom/2)"

	maxDriftY := float64(height) * 0.15
	drift := float64(driftPx)
	if drift > maxDriftY {
		drift = maxDriftY
	}

	switch motion {
	case models.MotionDriftUp:
		yExpr = fmt.Sprintf("ih/2-(ih/zoom/2)-%.1f*(on/%d)", drift, totalFrames)
	case models.MotionDriftDown:
		yExpr = fmt.Sprintf("ih/2-(ih/zoom/2)+%.1f*(on/%d)", drift, totalFrames)
	case models.MotionOscillate:
		xExpr = fmt.Sprintf("iw/2-(iw/zoom/2)+%d*sin(on*0.08)", oscPx)
	}

	filter := fmt.Sprintf("zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d", zExpr, xExpr, yExpr, totalFrames, width, height, fps)
	return filter
}
