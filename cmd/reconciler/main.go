// Command reconciler runs the periodic stuck-task sweep and failure
// notification cycle as a standalone long-lived process, separate from any
// single task's render critical path.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/reconcile"
	"github.com/bobarin/reelforge/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("reconciler: loading config: %v", err)
	}

	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("reconciler: connecting to store: %v", err)
	}
	defer st.Close()

	notifier := reconcile.NewNotifier(cfg.NotifyWebhookURL)
	r := reconcile.New(st, notifier, cfg)

	ctx, cancel := context.WithCancel(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("reconciler: shutting down")
		cancel()
	}()

	log.Println("reconciler: starting cycle loop")
	r.Run(ctx)
}
