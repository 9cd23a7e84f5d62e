// Command taskrunner renders and publishes a single video task end to end.
//
// Usage:
//
//	taskrunner <task_id> [flags]
//
// Exit codes: 0 success; 1 invalid invocation or fatal error; 2 task failed
// due to an external factor (signal, memory pressure, reconciler timeout).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/bobarin/reelforge/internal/bootstrap"
	"github.com/bobarin/reelforge/internal/cache"
	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/store"
	"github.com/bobarin/reelforge/internal/task"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("taskrunner", flag.ContinueOnError)
	var (
		taskIDFlag = fs.String("task-id", "", "task id to run (alternative to the positional argument)")
		apiKey     = fs.String("api-key", "", "API key authorizing this invocation")
		configPath = fs.String("config", "", "path to an env file to load in addition to the environment")
		verbose    = fs.Bool("verbose", false, "enable verbose logging")
		verboseV   = fs.Bool("v", false, "shorthand for --verbose")
		debug      = fs.Bool("debug", false, "enable debug logging")
		help       = fs.Bool("help", false, "show usage")
		helpH      = fs.Bool("h", false, "shorthand for --help")
	)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: taskrunner <task_id> [flags]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help || *helpH {
		fs.Usage()
		return 0
	}

	taskID := *taskIDFlag
	if taskID == "" && fs.NArg() > 0 {
		taskID = fs.Arg(0)
	}
	if taskID == "" {
		fmt.Fprintln(os.Stderr, "taskrunner: a task id is required, as the first positional argument or via --task-id")
		return 1
	}

	if *verbose || *verboseV || *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	if *configPath != "" {
		if err := loadExtraConfig(*configPath); err != nil {
			log.Printf("taskrunner: %v", err)
			return 1
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("taskrunner: loading config: %v", err)
		return 1
	}

	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		log.Printf("taskrunner: connecting to store: %v", err)
		return 1
	}
	defer st.Close()

	ctx := context.Background()

	t, err := st.GetTask(ctx, taskID)
	if err != nil {
		log.Printf("taskrunner: %v", err)
		return 1
	}

	if *apiKey != "" {
		ownerKey, err := st.ResolveAPIKey(ctx, *apiKey)
		if err != nil {
			log.Printf("taskrunner: %v", err)
			return 1
		}
		if ownerKey != t.OwnerKey {
			log.Printf("taskrunner: api key does not authorize task %s", taskID)
			return 1
		}
	}

	c, err := cache.New(cfg.CacheDir)
	if err != nil {
		log.Printf("taskrunner: %v", err)
		return 1
	}

	ctrl := task.New(st, c, cfg, bootstrap.BuildPipeline(cfg, c))

	if err := ctrl.RunWithSignalHandling(ctx, t); err != nil {
		log.Printf("taskrunner: task %s failed: %v", taskID, err)
		return 2
	}
	return 0
}

// loadExtraConfig loads additional environment variables from path before
// config.Load reads the process environment. Values already set in the
// process environment take precedence, matching godotenv's own behavior.
func loadExtraConfig(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading config file %s: %w", path, err)
	}
	return nil
}
