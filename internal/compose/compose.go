// Package compose implements the composer (component C6): it takes the
// ordered per-scene MP4s produced by the renderer/orchestrator, stitches them
// into a single final video with transitions, clamps the overall duration,
// composites a closing CTA logo if one is configured, and publishes the
// result to object storage.
package compose

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/fetch"
	"github.com/bobarin/reelforge/internal/models"
	"github.com/bobarin/reelforge/internal/render"
)

const (
	minDurationSec        = 3.0
	maxDurationSec        = 90.0
	defaultTransitionSec  = 1.0
	defaultTransitionType = models.TransitionCrossfade
)

// Publisher uploads the final composed file to object storage and returns its
// fetchable URL. Satisfied by the storage client.
type Publisher interface {
	Upload(ctx context.Context, localPath, keyHint string) (string, error)
}

// Composer joins rendered scenes into the final published video.
type Composer struct {
	cfg     *config.Config
	enc     *render.Encoder
	fetcher *fetch.Fetcher
	pub     Publisher
}

func New(cfg *config.Config, enc *render.Encoder, fetcher *fetch.Fetcher, pub Publisher) *Composer {
	return &Composer{cfg: cfg, enc: enc, fetcher: fetcher, pub: pub}
}

// Compose runs the full §4.6 pipeline over an ordered list of scene MP4 paths
// and returns the published result.
func (c *Composer) Compose(ctx context.Context, scenePaths []string, spec *models.VideoSpecification, taskID string) (*models.TaskResult, error) {
	if len(scenePaths) == 0 {
		return nil, fmt.Errorf("compose: no scenes to compose")
	}

	cleanupPaths := make([]string, 0, 8)
	cleanup := func(p string) { cleanupPaths = append(cleanupPaths, p) }
	defer c.enc.Cleanup(cleanupPaths...)

	joined, err := c.applyTransitions(ctx, scenePaths, spec.GlobalTransitionConfig)
	if err != nil {
		return nil, fmt.Errorf("compose: joining scenes: %w", err)
	}
	cleanup(joined)

	clamped, err := c.clampDuration(ctx, joined, cleanup)
	if err != nil {
		return nil, fmt.Errorf("compose: clamping duration: %w", err)
	}

	final := clamped
	if spec.Logo != nil && spec.Logo.CTAScreen {
		withLogo, err := c.applyCTALogo(ctx, clamped, *spec.Logo, cleanup)
		if err != nil {
			log.Printf("compose: CTA logo overlay failed, continuing without it: %v", err)
		} else {
			final = withLogo
		}
	}

	if music := c.cfg.BackgroundMusicPath; music != "" {
		mixed := c.enc.TempFile(fmt.Sprintf("music_%s.mp4", uuid.NewString()))
		if err := c.enc.MixBackgroundMusic(ctx, final, music, mixed); err != nil {
			log.Printf("compose: background music mix failed, continuing without it: %v", err)
		} else if _, err := os.Stat(mixed); err == nil {
			cleanup(mixed)
			final = mixed
		}
	}

	encodedPath := c.enc.TempFile(fmt.Sprintf("final_%s.mp4", uuid.NewString()))
	if err := c.enc.Reencode(ctx, final, encodedPath); err != nil {
		return nil, fmt.Errorf("compose: final encode: %w", err)
	}
	cleanup(encodedPath)

	durationSec, err := c.enc.Duration(ctx, encodedPath)
	if err != nil {
		log.Printf("compose: could not probe final duration: %v", err)
	}

	outputURL, err := c.pub.Upload(ctx, encodedPath, outputKeyHint(spec, taskID))
	if err != nil {
		return nil, fmt.Errorf("compose: publishing final video: %w", err)
	}

	return &models.TaskResult{
		OutputURL:       outputURL,
		DurationSeconds: durationSec,
		PostDescription: spec.PostDescription,
	}, nil
}

// applyTransitions joins scenePaths per the configured transition type. A
// "none" type (or a nil config) falls back to a plain concat demuxer join.
// Any failure applying crossfade/fade transitions falls back to straight
// concatenation and logs a warning rather than failing the task.
func (c *Composer) applyTransitions(ctx context.Context, scenePaths []string, cfg *models.TransitionConfig) (string, error) {
	transitionType, transitionSec := resolveTransition(cfg)

	out := c.enc.TempFile(fmt.Sprintf("joined_%s.mp4", uuid.NewString()))

	if transitionType == models.TransitionNone || transitionSec <= 0 {
		if err := c.enc.Concatenate(ctx, scenePaths, out); err != nil {
			return "", err
		}
		return out, nil
	}

	if err := c.enc.CrossfadeConcat(ctx, scenePaths, transitionSec, out); err != nil {
		log.Printf("compose: %s transition failed, falling back to straight concatenation: %v", transitionType, err)
		if err := c.enc.Concatenate(ctx, scenePaths, out); err != nil {
			return "", err
		}
	}
	return out, nil
}

// resolveTransition applies the global transition config, falling back to a
// one-second crossfade when unset.
func resolveTransition(cfg *models.TransitionConfig) (models.TransitionType, float64) {
	transitionType := defaultTransitionType
	transitionSec := defaultTransitionSec
	if cfg != nil {
		transitionType = cfg.Type
		if cfg.DurationSeconds > 0 {
			transitionSec = cfg.DurationSeconds
		}
	}
	return transitionType, transitionSec
}

// outputKeyHint builds the object storage key the final video publishes
// under, defaulting the filename when the specification omits one.
func outputKeyHint(spec *models.VideoSpecification, taskID string) string {
	filename := spec.OutputFilename
	if filename == "" {
		filename = "final.mp4"
	}
	return fmt.Sprintf("videos/%s/%s", taskID, filename)
}

// clampDuration pads a too-short composed video with a trailing black clip or
// truncates a too-long one, so the final duration always falls in [3s, 90s].
func (c *Composer) clampDuration(ctx context.Context, videoPath string, cleanup func(string)) (string, error) {
	durationSec, err := c.enc.Duration(ctx, videoPath)
	if err != nil {
		return "", fmt.Errorf("probing duration: %w", err)
	}

	switch {
	case durationSec < minDurationSec:
		blackPath := c.enc.TempFile(fmt.Sprintf("pad_%s.mp4", uuid.NewString()))
		if err := c.enc.GenerateBlackClip(ctx, blackPath, minDurationSec-durationSec, c.cfg.ReelWidth, c.cfg.ReelHeight, c.cfg.FPS); err != nil {
			return "", fmt.Errorf("generating pad clip: %w", err)
		}
		cleanup(blackPath)

		out := c.enc.TempFile(fmt.Sprintf("padded_%s.mp4", uuid.NewString()))
		if err := c.enc.Concatenate(ctx, []string{videoPath, blackPath}, out); err != nil {
			return "", fmt.Errorf("padding short video: %w", err)
		}
		cleanup(out)
		return out, nil

	case durationSec > maxDurationSec:
		out := c.enc.TempFile(fmt.Sprintf("truncated_%s.mp4", uuid.NewString()))
		if err := c.enc.TrimVideo(ctx, videoPath, out, maxDurationSec); err != nil {
			return "", fmt.Errorf("truncating long video: %w", err)
		}
		cleanup(out)
		return out, nil

	default:
		return videoPath, nil
	}
}

// applyCTALogo composites a global CTA logo over the already-trimmed final
// clip. It runs after duration clamping, never before, since the clamp step's
// black-clip padding/truncation can invalidate an already-composited overlay.
func (c *Composer) applyCTALogo(ctx context.Context, videoPath string, logo models.LogoConfig, cleanup func(string)) (string, error) {
	logoPath, err := c.fetcher.Fetch(ctx, logo.URL, fmt.Sprintf("cta_logo_%s.png", uuid.NewString()))
	if err != nil {
		return "", err
	}
	cleanup(logoPath)

	out := c.enc.TempFile(fmt.Sprintf("cta_%s.mp4", uuid.NewString()))
	if err := c.enc.OverlayLogo(ctx, videoPath, logoPath, logo, out, c.cfg.ReelWidth, c.cfg.ReelHeight); err != nil {
		return "", err
	}
	cleanup(out)
	return out, nil
}
