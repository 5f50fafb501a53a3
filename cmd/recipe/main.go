package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aqueductfluidics/aqueduct/internal/config"
	"github.com/aqueductfluidics/aqueduct/internal/runner"
)

func main() {
	// 1. Load environment and file configuration
	env, err := config.LoadRunnerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := env.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	// 3. Run the recipe until it returns or a signal arrives
	err = runner.Run(ctx, runner.Options{
		Env:    env,
		Config: cfg,
		Out:    os.Stdout,
		Err:    os.Stderr,
		Logger: logger,
	}, scaffold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recipe error: %v\n", err)
		os.Exit(1)
	}
}
