package orchestrator

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/models"
	"github.com/bobarin/reelforge/internal/render"
)

// SceneRenderer renders a single scene. render.Renderer satisfies this.
type SceneRenderer interface {
	RenderScene(ctx context.Context, scene models.Scene, spec *models.VideoSpecification, index int) (*render.Result, error)
}

// Orchestrator fans scene rendering out across a bounded worker pool while
// preserving the caller's scene order on join, regardless of completion order.
type Orchestrator struct {
	renderer SceneRenderer
	cfg      *config.Config
}

func New(renderer SceneRenderer, cfg *config.Config) *Orchestrator {
	return &Orchestrator{renderer: renderer, cfg: cfg}
}

// RenderScenes renders every scene in spec and returns results in the
// original scene order. Among scenes requesting the KlingAI video provider,
// at most klingLimit may be in flight at once; e-commerce specs (non-empty
// product_images) run strictly sequentially to preserve reference-image
// reuse and provider rate limits. On the first fatal scene error, dispatch
// of further scenes stops but scenes already in flight are left to finish.
func (o *Orchestrator) RenderScenes(ctx context.Context, spec *models.VideoSpecification) ([]*render.Result, error) {
	scenes := spec.Scenes
	results := make([]*render.Result, len(scenes))

	limit := int64(o.generalLimit())
	if spec.ECommerceMode() {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)
	klingSem := semaphore.NewWeighted(int64(o.klingLimit()))

	g, gctx := errgroup.WithContext(ctx)

	for i := range scenes {
		if gctx.Err() != nil {
			break
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		i := i
		scene := scenes[i]
		needsKling := scene.Type == models.SceneTypeVideo && scene.VideoProvider == models.VideoProviderKlingAI

		g.Go(func() error {
			defer sem.Release(1)

			if needsKling {
				if err := klingSem.Acquire(gctx, 1); err != nil {
					return fmt.Errorf("scene %d: waiting for klingai slot: %w", i, err)
				}
				defer klingSem.Release(1)
			}

			result, err := o.renderer.RenderScene(gctx, scene, spec, i)
			if err != nil {
				return fmt.Errorf("scene %d: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, r := range results {
		if r == nil {
			return nil, fmt.Errorf("scene %d: not dispatched before cancellation", i)
		}
	}

	return results, nil
}

func (o *Orchestrator) generalLimit() int {
	if o.cfg != nil && o.cfg.SceneParallelLimit > 0 {
		return o.cfg.SceneParallelLimit
	}
	if n := runtime.NumCPU(); n < 4 {
		return n
	}
	return 4
}

func (o *Orchestrator) klingLimit() int {
	if o.cfg != nil && o.cfg.KlingAIMaxInFlight > 0 {
		return o.cfg.KlingAIMaxInFlight
	}
	return 3
}
