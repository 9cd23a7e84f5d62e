// Package pipeline wires the scene orchestrator and composer into the single
// task.Runner the task controller drives: render every scene, then compose
// and publish the final video.
package pipeline

import (
	"context"
	"fmt"

	"github.com/bobarin/reelforge/internal/compose"
	"github.com/bobarin/reelforge/internal/models"
	"github.com/bobarin/reelforge/internal/orchestrator"
	"github.com/bobarin/reelforge/internal/render"
)

// Pipeline runs the full render-then-compose flow for one task.
type Pipeline struct {
	orchestrator *orchestrator.Orchestrator
	composer     *compose.Composer
	enc          *render.Encoder
}

func New(orch *orchestrator.Orchestrator, composer *compose.Composer, enc *render.Encoder) *Pipeline {
	return &Pipeline{orchestrator: orch, composer: composer, enc: enc}
}

// Run satisfies task.Runner: render every scene in spec order, then compose
// and publish the final video.
func (p *Pipeline) Run(ctx context.Context, t *models.Task) (*models.TaskResult, error) {
	results, err := p.orchestrator.RenderScenes(ctx, &t.Spec)
	if err != nil {
		return nil, fmt.Errorf("pipeline: rendering scenes: %w", err)
	}

	scenePaths := make([]string, len(results))
	var ancillary []string
	for i, r := range results {
		scenePaths[i] = r.Path
		ancillary = append(ancillary, r.Ancillary...)
	}
	defer p.enc.Cleanup(ancillary...)

	result, err := p.composer.Compose(ctx, scenePaths, &t.Spec, t.ID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: composing final video: %w", err)
	}
	return result, nil
}
