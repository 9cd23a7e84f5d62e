// Package task implements the task lifecycle controller (component C7): the
// queued/in_progress/finished/failed state machine, the credit debit/refund
// protocol around it, signal-triggered failure handling, and the background
// memory monitor that keeps a long-running worker process from growing
// unbounded between tasks.
package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/bobarin/reelforge/internal/cache"
	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/models"
	"github.com/bobarin/reelforge/internal/store"
)

// Runner executes the render-and-compose pipeline for one task and returns
// its published result. The orchestrator/composer pipeline satisfies this.
type Runner interface {
	Run(ctx context.Context, task *models.Task) (*models.TaskResult, error)
}

// Controller drives a single task through its lifecycle: start, run, then
// finish or fail, with the credit ledger and cache kept in step.
type Controller struct {
	store  *store.Store
	cache  *cache.Cache
	cfg    *config.Config
	runner Runner
}

func New(st *store.Store, c *cache.Cache, cfg *config.Config, runner Runner) *Controller {
	return &Controller{store: st, cache: c, cfg: cfg, runner: runner}
}

// Execute runs one task end to end: it transitions queued -> in_progress,
// invokes the runner, and transitions to finished or failed depending on the
// outcome. Credit accounting and cache clearing are best-effort: neither
// failing ever changes the state-machine outcome already decided by the
// render result.
func (c *Controller) Execute(ctx context.Context, t *models.Task) error {
	if err := c.store.StartTask(ctx, t.ID); err != nil {
		if errors.Is(err, store.ErrNotTransitioned) {
			if t.Status.Terminal() {
				log.Printf("task %s: re-invoked after reaching %s, treating as a no-op", t.ID, t.Status)
				return nil
			}
			return fmt.Errorf("task %s: not in a startable state: %w", t.ID, err)
		}
		return fmt.Errorf("task %s: starting: %w", t.ID, err)
	}

	result, runErr := c.runner.Run(ctx, t)
	if runErr != nil {
		c.fail(ctx, t, runErr.Error())
		return runErr
	}

	if err := c.store.FinishTask(ctx, t.ID, result); err != nil {
		if errors.Is(err, store.ErrNotTransitioned) {
			log.Printf("task %s: finish transition rejected, task already left in_progress: %v", t.ID, err)
			return nil
		}
		return fmt.Errorf("task %s: finishing: %w", t.ID, err)
	}

	c.settleCredits(ctx, t, true)
	c.clearCache(t.ID)
	return nil
}

// fail transitions a task to failed with the given reason, then settles the
// credit refund and clears the cache. Errors along this path are logged, not
// returned, since the caller's own error already explains the task outcome.
func (c *Controller) fail(ctx context.Context, t *models.Task, reason string) {
	if err := c.store.FailTask(ctx, t.ID, reason); err != nil && !errors.Is(err, store.ErrNotTransitioned) {
		log.Printf("task %s: failing: %v", t.ID, err)
	}
	c.settleCredits(ctx, t, false)
	c.clearCache(t.ID)
}

// settleCredits debits the scene cost on success or refunds it on failure.
// This is non-transactional with the state-machine write by design: a
// mismatch is logged and never reopens or reverts the task's terminal state.
func (c *Controller) settleCredits(ctx context.Context, t *models.Task, success bool) {
	amount := t.Spec.TotalCost()
	if amount == 0 {
		return
	}

	var err error
	if success {
		err = c.store.DebitCredits(ctx, t.OwnerKey, t.ID, amount, "task finished")
	} else {
		err = c.store.RefundCredits(ctx, t.OwnerKey, t.ID, amount, "task failed")
	}
	if err != nil {
		log.Printf("task %s: credit settlement failed (success=%v, amount=%d): %v", t.ID, success, amount, err)
	}
}

// clearCache spawns the post-task cache cleanup, synchronously or in the
// background depending on configuration. Errors are logged, never fatal.
func (c *Controller) clearCache(taskID string) {
	if c.cache == nil || !c.cfg.EnableCacheClearing {
		return
	}

	clear := func() {
		if err := c.cache.Clear(); err != nil {
			log.Printf("task %s: cache clear failed: %v", taskID, err)
		}
	}

	if c.cfg.CacheClearingAsync {
		go clear()
		return
	}
	clear()
}

// RunWithSignalHandling wraps Execute with process-termination handling: a
// received signal marks the current task failed, settles the refund, clears
// the cache, and exits the process with status 1. Previously installed
// handlers for these signals are restored before returning normally.
func (c *Controller) RunWithSignalHandling(ctx context.Context, t *models.Task) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, terminationSignals()...)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() {
		done <- c.Execute(ctx, t)
	}()

	select {
	case err := <-done:
		return err
	case sig := <-sigCh:
		sigErr := &models.SignalTerminationError{Signal: sig.String()}
		log.Printf("task %s: %s", t.ID, sigErr)
		c.fail(context.Background(), t, sigErr.Error())
		os.Exit(1)
		return nil
	}
}
