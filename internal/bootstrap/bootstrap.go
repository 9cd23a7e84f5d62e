// Package bootstrap constructs the concrete render pipeline from typed
// configuration. Both cmd/taskrunner and cmd/worker need the identical
// wiring — one invocation per task versus a polling loop over many — so it
// lives here instead of being duplicated across main packages.
package bootstrap

import (
	"github.com/bobarin/reelforge/internal/cache"
	"github.com/bobarin/reelforge/internal/compose"
	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/fetch"
	"github.com/bobarin/reelforge/internal/orchestrator"
	"github.com/bobarin/reelforge/internal/pipeline"
	"github.com/bobarin/reelforge/internal/providers"
	"github.com/bobarin/reelforge/internal/render"
	"github.com/bobarin/reelforge/internal/storage"
)

// BuildPipeline wires every concrete provider client named in configuration
// into a single task.Runner.
func BuildPipeline(cfg *config.Config, c *cache.Cache) *pipeline.Pipeline {
	enc := render.NewEncoder(cfg)
	fetcher := fetch.New(cfg.TempDir, cfg.PexelsKey)
	stor := storage.New(cfg.StorageURL, cfg.StorageServiceKey, cfg.StorageBucket)

	ttsLadder := buildTTSLadder(cfg)
	imageLadder := buildImageLadder(cfg)
	videoLadder := buildVideoLadder(cfg)

	var imageEdit providers.ImageEditService
	if cfg.OpenAIKey != "" {
		imageEdit = providers.NewOpenAIImageEditClient(cfg.OpenAIKey)
	}

	var transcriber *render.Transcriber
	if cfg.OpenAIKey != "" {
		transcriber = render.NewTranscriber(cfg.OpenAIKey)
	}

	renderer := render.NewRenderer(cfg, enc, fetcher, c, ttsLadder, imageLadder, videoLadder, imageEdit, transcriber, stor)
	orch := orchestrator.New(renderer, cfg)
	composer := compose.New(cfg, enc, fetcher, stor)

	return pipeline.New(orch, composer, enc)
}

func buildTTSLadder(cfg *config.Config) *providers.TTSLadder {
	ladder := &providers.TTSLadder{}
	if cfg.ElevenLabsKey != "" {
		ladder.Primary = providers.NewElevenLabsTTS(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	}
	if cfg.CartesiaKey != "" {
		fallback := providers.NewCartesiaTTS(cfg.CartesiaKey, cfg.CartesiaURL, cfg.CartesiaVoiceID)
		if ladder.Primary == nil {
			ladder.Primary = fallback
		} else {
			ladder.Fallback = fallback
		}
	}
	return ladder
}

func buildImageLadder(cfg *config.Config) *providers.ImageGenLadder {
	providersByName := map[string]providers.ImageGenService{}
	var order []string

	if cfg.OpenAIKey != "" {
		providersByName["openai"] = providers.NewOpenAIImageClient(cfg.OpenAIKey)
		order = append(order, "openai")
	}
	if cfg.GeminiKey != "" {
		providersByName["gemini"] = providers.NewGeminiImageClient(cfg.GeminiKey)
		order = append(order, "gemini")
	}
	if cfg.FreepikKey != "" {
		providersByName["freepik"] = providers.NewFreepikImageClient(cfg.FreepikKey)
		order = append(order, "freepik")
	}

	var visionPrePass *providers.VisionPrePass
	if cfg.OpenAIKey != "" {
		visionPrePass = providers.NewVisionPrePass(cfg.OpenAIKey)
	}

	return &providers.ImageGenLadder{Providers: providersByName, FallbackOrder: order, VisionPrePass: visionPrePass}
}

func buildVideoLadder(cfg *config.Config) *providers.VideoGenLadder {
	providersByName := map[string]providers.VideoGenService{}
	if cfg.LumaAIKey != "" {
		providersByName["lumaai"] = providers.NewLumaAIClient(cfg.LumaAIKey)
	}
	if cfg.KlingAIAccessKey != "" && cfg.KlingAISecretKey != "" {
		providersByName["klingai"] = providers.NewKlingAIClient(cfg.KlingAIAccessKey, cfg.KlingAISecretKey)
	}
	return &providers.VideoGenLadder{Providers: providersByName}
}
