package render

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/reelforge/internal/cache"
	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/fetch"
	"github.com/bobarin/reelforge/internal/models"
	"github.com/bobarin/reelforge/internal/providers"
)

// Uploader publishes a local file to object storage and returns its fetchable URL.
// Satisfied by the storage client; kept as an interface here so render never
// depends on a storage transport directly.
type Uploader interface {
	Upload(ctx context.Context, localPath, keyHint string) (string, error)
}

// Renderer turns one scene descriptor into a rendered MP4 (component C4).
type Renderer struct {
	cfg *config.Config

	enc     *Encoder
	fetcher *fetch.Fetcher
	cache   *cache.Cache

	tts         *providers.TTSLadder
	imageGen    *providers.ImageGenLadder
	videoGen    *providers.VideoGenLadder
	imageEdit   providers.ImageEditService
	transcriber *Transcriber
	uploader    Uploader

	http *http.Client
}

func NewRenderer(cfg *config.Config, enc *Encoder, fetcher *fetch.Fetcher, c *cache.Cache,
	tts *providers.TTSLadder, imageGen *providers.ImageGenLadder, videoGen *providers.VideoGenLadder,
	imageEdit providers.ImageEditService, transcriber *Transcriber, uploader Uploader) *Renderer {
	return &Renderer{
		cfg: cfg, enc: enc, fetcher: fetcher, cache: c,
		tts: tts, imageGen: imageGen, videoGen: videoGen, imageEdit: imageEdit,
		transcriber: transcriber, uploader: uploader,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// Result is the scene renderer's successful output: the final clip path plus
// every ancillary temp file the caller should clean up once composition finishes.
type Result struct {
	Path      string
	Ancillary []string
}

// RenderScene runs the full 9-step pipeline for one scene. spec provides the
// global decoration cascade (subtitle/transition/logo defaults, e-commerce
// product images); index is the scene's position, used for deterministic temp
// file naming and carried through to the orchestrator's join step.
func (r *Renderer) RenderScene(ctx context.Context, scene models.Scene, spec *models.VideoSpecification, index int) (*Result, error) {
	var ancillary []string
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(index)))
	cleanup := func(p string) { ancillary = append(ancillary, p) }

	// Step 1: narration.
	narrationPath, narrationDurationSec, hasNarration, err := r.resolveNarration(ctx, scene, spec, index, cleanup)
	if err != nil {
		return nil, fmt.Errorf("render: scene %d narration: %w", index, err)
	}

	targetDurationSec := float64(scene.DurationSeconds)
	if hasNarration {
		targetDurationSec = narrationDurationSec
	}

	// Step 2 + 3: primary media acquisition and sizing.
	var clipPath string
	switch scene.Type {
	case models.SceneTypeImage:
		clipPath, err = r.resolveImageScene(ctx, scene, spec, index, cleanup)
	case models.SceneTypeVideo:
		clipPath, err = r.resolveVideoScene(ctx, scene, spec, index, cleanup)
	default:
		err = fmt.Errorf("unknown scene type %q", scene.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("render: scene %d media: %w", index, err)
	}

	// Step 4 + 5: animation and audio binding, producing one rendered clip.
	renderedPath := r.enc.TempFile(fmt.Sprintf("scene_%d_rendered_%s.mp4", index, uuid.NewString()))
	cleanup(renderedPath)

	switch scene.Type {
	case models.SceneTypeImage:
		zoom, motion, driftPx, oscPx, _ := resolveAnimation(scene.Animation, rng)
		width, height := r.cfg.ReelWidth, r.cfg.ReelHeight
		durationMs := int(targetDurationSec * 1000)
		filter := imageFitFilter(width, height) + "," + buildMotionFilter(zoom, motion, driftPx, oscPx, durationMs, width, height, sceneEncodeFPS)

		audioPath := narrationPath
		if !hasNarration {
			audioPath = r.enc.TempFile(fmt.Sprintf("scene_%d_silence_%s.m4a", index, uuid.NewString()))
			if err := r.writeSilence(ctx, audioPath, targetDurationSec); err != nil {
				return nil, fmt.Errorf("render: scene %d: failed to synthesize silence: %w", index, err)
			}
			cleanup(audioPath)
		}

		if err := r.enc.RenderImageClip(ctx, clipPath, audioPath, renderedPath, filter, "", width, height, sceneEncodeFPS); err != nil {
			return nil, fmt.Errorf("render: scene %d: encode image clip: %w", index, err)
		}

	case models.SceneTypeVideo:
		audioPath, videoPath, err := r.bindVideoAudio(ctx, clipPath, narrationPath, hasNarration, targetDurationSec, index, cleanup)
		if err != nil {
			return nil, fmt.Errorf("render: scene %d: audio binding: %w", index, err)
		}

		width, height := r.cfg.ReelWidth, r.cfg.ReelHeight
		sizeFilter := ""
		isFallback := false
		if srcW, srcH, derr := r.enc.Dimensions(ctx, videoPath); derr != nil {
			log.Printf("render: scene %d: failed to probe video dimensions, skipping sizing: %v", index, derr)
		} else if sf, ferr := videoFitFilter(srcW, srcH, width, height); ferr != nil {
			log.Printf("render: scene %d: video sizing filter unavailable, falling back to plain resize: %v", index, ferr)
			sizeFilter, isFallback = plainResizeFilter(width, height), true
		} else {
			sizeFilter = sf
		}

		if err := r.enc.RenderVideoClip(ctx, videoPath, audioPath, renderedPath, sizeFilter, ""); err != nil {
			if isFallback || sizeFilter == "" {
				return nil, fmt.Errorf("render: scene %d: encode video clip: %w", index, err)
			}
			// Compositing the full sizing chain failed; fall back to a plain resize.
			log.Printf("render: scene %d: video sizing composite failed, retrying with plain resize: %v", index, err)
			if err := r.enc.RenderVideoClip(ctx, videoPath, audioPath, renderedPath, plainResizeFilter(width, height), ""); err != nil {
				return nil, fmt.Errorf("render: scene %d: encode video clip: %w", index, err)
			}
		}
	}

	finalPath := renderedPath

	// Step 6: subtitles (non-fatal).
	if scene.Subtitle && hasNarration {
		if withSubs, err := r.burnSubtitles(ctx, finalPath, narrationPath, scene, spec, index, cleanup); err != nil {
			log.Printf("render: scene %d: subtitles failed, continuing without: %v", index, err)
		} else {
			finalPath = withSubs
		}
	}

	// Step 7: text overlay (non-fatal).
	if scene.Text != nil {
		if withText, err := r.overlayText(ctx, finalPath, *scene.Text, index, cleanup); err != nil {
			log.Printf("render: scene %d: text overlay failed, continuing without: %v", index, err)
		} else {
			finalPath = withText
		}
	}

	// Step 8: logo (non-fatal).
	logo := scene.Logo
	if logo == nil {
		logo = spec.Logo
	}
	if logo != nil && (logo.ShowInAllScenes || scene.Logo != nil) {
		if withLogo, err := r.overlayLogo(ctx, finalPath, *logo, index, cleanup); err != nil {
			log.Printf("render: scene %d: logo overlay failed, continuing without: %v", index, err)
		} else {
			finalPath = withLogo
		}
	}

	// Step 9: final encode to the scene output path.
	outputPath := r.enc.TempFile(fmt.Sprintf("scene_%s.mp4", uuid.NewString()))
	if err := r.finalizeEncode(ctx, finalPath, outputPath); err != nil {
		return nil, fmt.Errorf("render: scene %d: final encode: %w", index, err)
	}

	return &Result{Path: outputPath, Ancillary: ancillary}, nil
}

func (r *Renderer) resolveNarration(ctx context.Context, scene models.Scene, spec *models.VideoSpecification, index int, cleanup func(string)) (path string, durationSec float64, ok bool, err error) {
	switch {
	case scene.Narration != nil && *scene.Narration != "":
		local, err := r.fetcher.Fetch(ctx, *scene.Narration, fmt.Sprintf("scene_%d_narration_%s.mp3", index, uuid.NewString()))
		if err != nil {
			return "", 0, false, fmt.Errorf("failed to fetch narration asset: %w", err)
		}
		cleanup(local)
		dur, err := r.enc.Duration(ctx, local)
		if err != nil {
			return "", 0, false, fmt.Errorf("failed to measure narration duration: %w", err)
		}
		return local, dur, true, nil

	case scene.NarrationText != nil && *scene.NarrationText != "":
		audioPromptURL := ""
		if scene.AudioPromptURL != nil {
			audioPromptURL = *scene.AudioPromptURL
		} else if spec.AudioPromptURL != nil {
			audioPromptURL = *spec.AudioPromptURL
		}

		resp, err := r.tts.GenerateSpeech(ctx, providers.TTSInput{Text: *scene.NarrationText, AudioPromptURL: audioPromptURL})
		if err != nil {
			return "", 0, false, fmt.Errorf("failed to synthesize narration: %w", err)
		}
		out := r.enc.TempFile(fmt.Sprintf("scene_%d_tts_%s.mp3", index, uuid.NewString()))
		if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
			return "", 0, false, fmt.Errorf("failed to write synthesized narration: %w", err)
		}
		cleanup(out)
		return out, float64(resp.DurationMs) / 1000.0, true, nil

	default:
		return "", 0, false, nil
	}
}

func (r *Renderer) resolveImageScene(ctx context.Context, scene models.Scene, spec *models.VideoSpecification, index int, cleanup func(string)) (string, error) {
	var raw []byte
	var err error

	switch {
	case scene.ImageURL != nil && *scene.ImageURL != "":
		local, ferr := r.fetcher.Fetch(ctx, *scene.ImageURL, fmt.Sprintf("scene_%d_src_%s.jpg", index, uuid.NewString()))
		if ferr != nil {
			return "", fmt.Errorf("failed to fetch source image: %w", ferr)
		}
		cleanup(local)
		raw, err = os.ReadFile(local)
		if err != nil {
			return "", fmt.Errorf("failed to read fetched image: %w", err)
		}

	case scene.PromptImage != nil && *scene.PromptImage != "":
		in := providers.ImageGenInput{Prompt: *scene.PromptImage}
		provider := string(scene.ImageProvider)
		if spec.ECommerceMode() {
			provider = "openai"
			in.ProductImages = spec.ProductImages
		}
		raw, err = r.generateImageCached(ctx, provider, in)
		if err != nil {
			return "", fmt.Errorf("failed to generate image: %w", err)
		}

	default:
		return "", fmt.Errorf("image scene has neither image_url nor prompt_image")
	}

	if scene.PromptEditImage != nil && *scene.PromptEditImage != "" && r.imageEdit != nil && scene.ImageURL != nil {
		edited := providers.EditWithFallback(ctx, r.imageEdit, r.http, providers.ImageEditInput{SourceImageURL: *scene.ImageURL, EditPrompt: *scene.PromptEditImage})
		if len(edited) > 0 {
			raw = edited
		}
	}

	out := r.enc.TempFile(fmt.Sprintf("scene_%d_image_%s.jpg", index, uuid.NewString()))
	if err := os.WriteFile(out, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write resolved image: %w", err)
	}
	cleanup(out)
	return out, nil
}

func (r *Renderer) resolveVideoScene(ctx context.Context, scene models.Scene, spec *models.VideoSpecification, index int, cleanup func(string)) (string, error) {
	switch {
	case scene.VideoURL != nil && *scene.VideoURL != "":
		local, err := r.fetcher.Fetch(ctx, *scene.VideoURL, fmt.Sprintf("scene_%d_src_%s.mp4", index, uuid.NewString()))
		if err != nil {
			return "", fmt.Errorf("failed to fetch source video: %w", err)
		}
		cleanup(local)
		return local, nil

	case scene.PromptVideo != nil && *scene.PromptVideo != "":
		in := providers.VideoGenInput{Prompt: *scene.PromptVideo}

		if scene.VideoProvider == models.VideoProviderKlingAI && scene.PromptImage != nil && *scene.PromptImage != "" {
			refBytes, ierr := r.generateImageCached(ctx, "openai", providers.ImageGenInput{Prompt: *scene.PromptImage})
			if ierr == nil {
				refPath := r.enc.TempFile(fmt.Sprintf("scene_%d_ref_%s.jpg", index, uuid.NewString()))
				if werr := os.WriteFile(refPath, refBytes, 0o644); werr == nil {
					cleanup(refPath)
					if r.uploader != nil {
						if url, uerr := r.uploader.Upload(ctx, refPath, fmt.Sprintf("scene-%d-ref", index)); uerr == nil {
							in.ImageURL = url
						} else {
							log.Printf("render: scene %d: reference image upload failed, proceeding text-only: %v", index, uerr)
						}
					}
				}
			} else {
				log.Printf("render: scene %d: reference image generation failed, proceeding text-only: %v", index, ierr)
			}
		}

		videoURL, err := r.videoGen.GenerateVideo(ctx, string(scene.VideoProvider), in)
		if err != nil {
			return "", fmt.Errorf("failed to generate video: %w", err)
		}
		local, err := r.fetcher.Fetch(ctx, videoURL, fmt.Sprintf("scene_%d_gen_%s.mp4", index, uuid.NewString()))
		if err != nil {
			return "", fmt.Errorf("failed to fetch generated video: %w", err)
		}
		cleanup(local)
		return local, nil

	default:
		return "", fmt.Errorf("video scene has neither video_url nor prompt_video")
	}
}

// bindVideoAudio implements step 5 for video scenes: loop-extend-and-trim when
// narration outruns the clip, or pad narration with silence when it is shorter.
func (r *Renderer) bindVideoAudio(ctx context.Context, videoPath, narrationPath string, hasNarration bool, targetDurationSec float64, index int, cleanup func(string)) (audioPath, outVideoPath string, err error) {
	if !hasNarration {
		silence := r.enc.TempFile(fmt.Sprintf("scene_%d_silence_%s.m4a", index, uuid.NewString()))
		if err := r.writeSilence(ctx, silence, targetDurationSec); err != nil {
			return "", "", err
		}
		cleanup(silence)
		return silence, videoPath, nil
	}

	videoDur, err := r.enc.Duration(ctx, videoPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to measure source video duration: %w", err)
	}

	if targetDurationSec > videoDur && videoDur > 0 {
		n := int(math.Ceil(targetDurationSec / videoDur))
		looped := r.enc.TempFile(fmt.Sprintf("scene_%d_looped_%s.mp4", index, uuid.NewString()))
		if err := r.enc.LoopConcatVideo(ctx, videoPath, looped, n); err != nil {
			return "", "", fmt.Errorf("failed to loop video: %w", err)
		}
		cleanup(looped)
		trimmed := r.enc.TempFile(fmt.Sprintf("scene_%d_trimmed_%s.mp4", index, uuid.NewString()))
		if err := r.enc.TrimVideo(ctx, looped, trimmed, targetDurationSec); err != nil {
			return "", "", fmt.Errorf("failed to trim looped video: %w", err)
		}
		cleanup(trimmed)
		return narrationPath, trimmed, nil
	}

	if targetDurationSec < videoDur {
		padded := r.enc.TempFile(fmt.Sprintf("scene_%d_padded_%s.m4a", index, uuid.NewString()))
		if err := r.enc.PadSilence(ctx, narrationPath, padded, videoDur); err != nil {
			return "", "", fmt.Errorf("failed to pad narration with silence: %w", err)
		}
		cleanup(padded)
		return padded, videoPath, nil
	}

	return narrationPath, videoPath, nil
}

func (r *Renderer) burnSubtitles(ctx context.Context, clipPath, narrationPath string, scene models.Scene, spec *models.VideoSpecification, index int, cleanup func(string)) (string, error) {
	if r.transcriber == nil {
		return "", fmt.Errorf("no transcriber configured")
	}
	words, err := r.transcriber.Transcribe(ctx, narrationPath)
	if err != nil {
		return "", err
	}

	cfg := resolveSubtitleConfig(scene.SubtitleConfig, spec.GlobalSubtitleConfig)
	assPath := r.enc.TempFile(fmt.Sprintf("scene_%d_subs_%s.ass", index, uuid.NewString()))
	if err := generateASSSubtitles(words, cfg, assPath, 0, r.cfg.ReelWidth, r.cfg.ReelHeight); err != nil {
		return "", err
	}
	cleanup(assPath)

	out := r.enc.TempFile(fmt.Sprintf("scene_%d_withsubs_%s.mp4", index, uuid.NewString()))
	if err := r.enc.burnASS(ctx, clipPath, assPath, out); err != nil {
		return "", err
	}
	cleanup(out)
	return out, nil
}

func (r *Renderer) overlayText(ctx context.Context, clipPath string, overlay models.TextOverlay, index int, cleanup func(string)) (string, error) {
	out := r.enc.TempFile(fmt.Sprintf("scene_%d_text_%s.mp4", index, uuid.NewString()))
	if err := r.enc.overlayText(ctx, clipPath, overlay, out); err != nil {
		return "", err
	}
	cleanup(out)
	return out, nil
}

func (r *Renderer) overlayLogo(ctx context.Context, clipPath string, logo models.LogoConfig, index int, cleanup func(string)) (string, error) {
	logoPath, err := r.fetcher.Fetch(ctx, logo.URL, fmt.Sprintf("scene_%d_logo_%s.png", index, uuid.NewString()))
	if err != nil {
		return "", err
	}
	cleanup(logoPath)

	out := r.enc.TempFile(fmt.Sprintf("scene_%d_logo_applied_%s.mp4", index, uuid.NewString()))
	if err := r.enc.OverlayLogo(ctx, clipPath, logoPath, logo, out, r.cfg.ReelWidth, r.cfg.ReelHeight); err != nil {
		return "", err
	}
	cleanup(out)
	return out, nil
}

func (r *Renderer) finalizeEncode(ctx context.Context, inputPath, outputPath string) error {
	return r.enc.Reencode(ctx, inputPath, outputPath)
}

func (r *Renderer) writeSilence(ctx context.Context, outputPath string, durationSec float64) error {
	return r.enc.generateSilence(ctx, outputPath, durationSec)
}

func randomSuffix() string {
	return uuid.NewString()[:8]
}

// generateImageCached wraps the image-gen ladder with a content-addressed cache
// lookup keyed on the provider and prompt, so retried or duplicate scenes (e.g.
// e-commerce reference-image reuse across scenes) never pay for generation twice.
func (r *Renderer) generateImageCached(ctx context.Context, provider string, in providers.ImageGenInput) ([]byte, error) {
	key := cache.Key("image_gen", provider, in.Prompt, in.SceneContext, in.VideoContext)
	if r.cache != nil {
		if ok, path := r.cache.Get(key, nil); ok && path != "" {
			if data, err := os.ReadFile(path); err == nil {
				return data, nil
			}
		}
	}

	data, producer, err := r.imageGen.GenerateImage(ctx, provider, in)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		// Cache under the provider that actually produced the image, not the
		// one requested: a fallback-produced artifact must never poison the
		// primary's key, or a later identical request would silently reuse it.
		producerKey := key
		if producer != provider {
			producerKey = cache.Key("image_gen", producer, in.Prompt, in.SceneContext, in.VideoContext)
		}
		cachePath := r.enc.TempFile(fmt.Sprintf("cache_image_%s.bin", randomSuffix()))
		if werr := os.WriteFile(cachePath, data, 0o644); werr == nil {
			_ = r.cache.PutPath(producerKey, cachePath)
		}
	}
	return data, nil
}
