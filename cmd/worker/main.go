// Command worker runs a long-lived loop that dequeues task ids from Redis
// and runs each one to completion, for deployments that prefer a standing
// worker pool fed by an external submitter over invoking cmd/taskrunner once
// per task.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/reelforge/internal/bootstrap"
	"github.com/bobarin/reelforge/internal/cache"
	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/queue"
	"github.com/bobarin/reelforge/internal/store"
	"github.com/bobarin/reelforge/internal/task"
)

const dequeueTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("worker: loading config: %v", err)
	}

	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: connecting to store: %v", err)
	}
	defer st.Close()

	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("worker: connecting to queue: %v", err)
	}
	defer q.Close()

	c, err := cache.New(cfg.CacheDir)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	ctrl := task.New(st, c, cfg, bootstrap.BuildPipeline(cfg, c))

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("worker: shutting down")
		cancel()
	}()

	log.Println("worker: polling for queued tasks")
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := q.DequeueTask(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker: dequeue: %v", err)
			continue
		}
		if job == nil {
			continue
		}

		runTask(ctx, st, ctrl, job.TaskID)
	}
}

// runTask loads one task and executes it. A task-level failure is logged,
// never fatal to the worker loop — the controller has already recorded the
// failure and refunded credits by the time Execute returns an error.
func runTask(ctx context.Context, st *store.Store, ctrl *task.Controller, taskID string) {
	t, err := st.GetTask(ctx, taskID)
	if err != nil {
		log.Printf("worker: loading task %s: %v", taskID, err)
		return
	}

	if err := ctrl.Execute(ctx, t); err != nil {
		log.Printf("worker: task %s failed: %v", taskID, err)
	}
}
