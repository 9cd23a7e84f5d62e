// Command api serves the ambient admin HTTP surface: process liveness and
// read-only task status lookups. It does not render or schedule tasks —
// that is cmd/taskrunner's job; this process exists for health checks and
// status polling from outside the render critical path.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/reelforge/internal/api"
	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/store"
)

func main() {
	log.Println("starting admin API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to store: %v", err)
	}
	defer st.Close()
	log.Println("connected to store")

	handler := api.NewHandler(st)
	router := api.NewRouter(handler, api.RouterConfig{BackendAPIKey: cfg.BackendAPIKey})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: no BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
