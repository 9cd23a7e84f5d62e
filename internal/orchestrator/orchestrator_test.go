package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/models"
	"github.com/bobarin/reelforge/internal/render"
)

type fakeRenderer struct {
	inFlight     int32
	maxInFlight  int32
	klingFlight  int32
	maxKlingFlag int32
	delay        time.Duration
	failIndex    int
	failErr      error
}

func (f *fakeRenderer) RenderScene(ctx context.Context, scene models.Scene, spec *models.VideoSpecification, index int) (*render.Result, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		old := atomic.LoadInt32(&f.maxInFlight)
		if cur <= old || atomic.CompareAndSwapInt32(&f.maxInFlight, old, cur) {
			break
		}
	}

	if scene.VideoProvider == models.VideoProviderKlingAI {
		k := atomic.AddInt32(&f.klingFlight, 1)
		defer atomic.AddInt32(&f.klingFlight, -1)
		for {
			old := atomic.LoadInt32(&f.maxKlingFlag)
			if k <= old || atomic.CompareAndSwapInt32(&f.maxKlingFlag, old, k) {
				break
			}
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.failErr != nil && index == f.failIndex {
		return nil, f.failErr
	}

	return &render.Result{Path: fmt.Sprintf("scene_%d.mp4", index)}, nil
}

func specWithScenes(n int, ecommerce bool) *models.VideoSpecification {
	scenes := make([]models.Scene, n)
	for i := range scenes {
		scenes[i] = models.Scene{Index: i, Type: models.SceneTypeImage}
	}
	spec := &models.VideoSpecification{Scenes: scenes}
	if ecommerce {
		spec.ProductImages = []string{"https://example.com/product.png"}
	}
	return spec
}

func TestRenderScenesPreservesOrderRegardlessOfCompletionOrder(t *testing.T) {
	fr := &fakeRenderer{delay: 5 * time.Millisecond}
	o := New(fr, &config.Config{SceneParallelLimit: 4, KlingAIMaxInFlight: 3})

	spec := specWithScenes(8, false)
	results, err := o.RenderScenes(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, results, 8)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("scene_%d.mp4", i), r.Path)
	}
}

func TestRenderScenesRespectsGeneralConcurrencyCap(t *testing.T) {
	fr := &fakeRenderer{delay: 10 * time.Millisecond}
	o := New(fr, &config.Config{SceneParallelLimit: 2, KlingAIMaxInFlight: 3})

	_, err := o.RenderScenes(context.Background(), specWithScenes(6, false))
	require.NoError(t, err)
	assert.LessOrEqual(t, int(fr.maxInFlight), 2)
}

func TestRenderScenesCapsKlingAIInFlight(t *testing.T) {
	fr := &fakeRenderer{delay: 10 * time.Millisecond}
	o := New(fr, &config.Config{SceneParallelLimit: 8, KlingAIMaxInFlight: 2})

	scenes := make([]models.Scene, 6)
	for i := range scenes {
		scenes[i] = models.Scene{Index: i, Type: models.SceneTypeVideo, VideoProvider: models.VideoProviderKlingAI}
	}
	spec := &models.VideoSpecification{Scenes: scenes}

	_, err := o.RenderScenes(context.Background(), spec)
	require.NoError(t, err)
	assert.LessOrEqual(t, int(fr.maxKlingFlag), 2)
}

func TestRenderScenesRunsSequentiallyInECommerceMode(t *testing.T) {
	fr := &fakeRenderer{delay: 5 * time.Millisecond}
	o := New(fr, &config.Config{SceneParallelLimit: 8, KlingAIMaxInFlight: 3})

	_, err := o.RenderScenes(context.Background(), specWithScenes(5, true))
	require.NoError(t, err)
	assert.Equal(t, 1, int(fr.maxInFlight))
}

func TestRenderScenesStopsDispatchingAfterFatalError(t *testing.T) {
	fr := &fakeRenderer{delay: 2 * time.Millisecond, failIndex: 1, failErr: fmt.Errorf("boom")}
	o := New(fr, &config.Config{SceneParallelLimit: 1, KlingAIMaxInFlight: 3})

	_, err := o.RenderScenes(context.Background(), specWithScenes(10, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene 1")
}
