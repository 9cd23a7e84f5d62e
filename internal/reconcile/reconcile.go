// Package reconcile implements the reconciler and notifier (component C8):
// a periodic process, separate from any single task's critical path, that
// fails tasks stuck past a timeout and emits grouped failure/stuck
// notifications to an external channel.
package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/models"
	"github.com/bobarin/reelforge/internal/store"
)

const (
	recentFailureLookback = 30 * time.Minute
	retryDelayOnError     = 60 * time.Second
)

// Reconciler runs the periodic stuck-task sweep and failure notification
// cycle described in the reconciler spec section.
type Reconciler struct {
	store    *store.Store
	notifier *Notifier
	cfg      *config.Config
}

func New(st *store.Store, notifier *Notifier, cfg *config.Config) *Reconciler {
	return &Reconciler{store: st, notifier: notifier, cfg: cfg}
}

// Run loops at cfg.ReconcileInterval until ctx is cancelled. A cycle that
// errors does not stop the loop: it waits retryDelayOnError and tries again.
func (r *Reconciler) Run(ctx context.Context) {
	interval := r.cfg.ReconcileInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	for {
		if err := r.runCycle(ctx); err != nil {
			log.Printf("reconciler: cycle failed, retrying in %v: %v", retryDelayOnError, err)
			if !sleepOrDone(ctx, retryDelayOnError) {
				return
			}
			continue
		}
		if !sleepOrDone(ctx, interval) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// runCycle performs one stuck-task sweep plus failure/stuck notifications.
func (r *Reconciler) runCycle(ctx context.Context) error {
	timeout := r.cfg.TaskTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	cutoff := time.Now().Add(-timeout)

	stuck, err := r.store.ListStuckTasks(ctx, cutoff)
	if err != nil {
		return err
	}

	if len(stuck) > 0 {
		r.failStuckTasks(ctx, stuck)

		events := make([]FailureEvent, 0, len(stuck))
		for _, t := range stuck {
			events = append(events, taskToEvent(t, r.cfg.LogURLBase))
		}
		if err := r.notifier.NotifyFailures(ctx, "stuck", events); err != nil {
			log.Printf("reconciler: stuck notification failed: %v", err)
		}
	}

	since := time.Now().Add(-recentFailureLookback)
	failed, err := r.store.ListRecentlyFailed(ctx, since)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		events := make([]FailureEvent, 0, len(failed))
		for _, t := range failed {
			events = append(events, taskToEvent(t, r.cfg.LogURLBase))
		}
		if err := r.notifier.NotifyFailures(ctx, "failed", events); err != nil {
			log.Printf("reconciler: failure notification failed: %v", err)
		}
	}

	return nil
}

// failStuckTasks transitions each stuck task to failed and refunds its
// scene cost, mirroring the controller's credit rules for a failed task.
func (r *Reconciler) failStuckTasks(ctx context.Context, tasks []models.Task) {
	for _, t := range tasks {
		reason := (&models.ReconcilerTimeoutError{TaskID: t.ID}).Error()
		if err := r.store.FailTask(ctx, t.ID, reason); err != nil {
			log.Printf("reconciler: failing stuck task %s: %v", t.ID, err)
			continue
		}

		if amount := t.Spec.TotalCost(); amount > 0 {
			if err := r.store.RefundCredits(ctx, t.OwnerKey, t.ID, amount, "stuck task timeout"); err != nil {
				log.Printf("reconciler: refunding stuck task %s: %v", t.ID, err)
			}
		}
	}
}
