// Package runner wires a recipe to the hub: it connects to Redis, builds the
// session with its log file, sink and metrics, serves health checks, runs
// the recipe and flushes the session when it returns.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/aqueductfluidics/aqueduct/internal/config"
	"github.com/aqueductfluidics/aqueduct/internal/hubsink"
	"github.com/aqueductfluidics/aqueduct/internal/logfile"
	"github.com/aqueductfluidics/aqueduct/internal/metrics"
	"github.com/aqueductfluidics/aqueduct/pkg/aqueduct"
	"github.com/aqueductfluidics/aqueduct/pkg/hub"
	"github.com/redis/go-redis/v9"
)

// finishTimeout bounds the final flush after the recipe returns.
const finishTimeout = 5 * time.Second

// Recipe is the body of a recipe run.
type Recipe func(ctx context.Context, s *aqueduct.Session) error

// Options configures Run.
type Options struct {
	Env    *config.RunnerConfig
	Config *config.AqueductConfig

	// HealthAddr overrides the listen address derived from health.port.
	HealthAddr string

	Out    io.Writer
	Err    io.Writer
	Logger *log.Logger
}

// Run executes recipe against a session connected to the hub and returns
// once the recipe has returned and the session has been flushed. Cancelling
// ctx cancels the recipe.
func Run(ctx context.Context, opts Options, recipe Recipe) error {
	if opts.Env == nil || opts.Config == nil {
		return fmt.Errorf("runner needs both environment and file configuration")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	cfg, env := opts.Config, opts.Env

	// 1. Connect to the hub, failing fast if Redis is unreachable
	redisOpts, err := redis.ParseURL(cfg.Hub.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	client, err := hub.NewClient(redisOpts, env.UserID)
	if err != nil {
		return fmt.Errorf("failed to create hub client: %w", err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("hub redis not accessible at %s: %w", cfg.Hub.RedisURL, err)
	}

	// 2. Session log
	logWriter, err := logfile.Open(cfg.Logs.Dir, cfg.Logs.SaveDir, env.UserID)
	if err != nil {
		return err
	}
	defer logWriter.Close()

	// 3. Session
	collector := metrics.New()
	session, err := aqueduct.NewSession(aqueduct.Options{
		UserID:         env.UserID,
		PID:            env.PID,
		Out:            opts.Out,
		Err:            opts.Err,
		LogWriter:      logWriter,
		LogSaver:       logWriter,
		LabModeUserID:  cfg.LabModeUserID,
		HubSerial:      cfg.Hub.SerialNumber,
		UpdateInterval: cfg.Session.UpdateInterval,
		PollInterval:   cfg.Session.PromptPollInterval,
		PushTimeout:    cfg.Session.PushTimeout,
		SampleBuffer:   cfg.Session.SampleBuffer,
		Sink:           hubsink.New(client, logger),
		Observer:       collector,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	// 4. Health and metrics
	addr := opts.HealthAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Health.Port)
	}
	health := NewHealthServer(client, collector, logger)
	if err := health.Start(addr); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		health.Shutdown(shutdownCtx)
	}()

	// 5. Run the recipe with the update loop in the background
	logger.Printf("[INFO] Recipe starting for user '%s' (pid %d, lab mode %v)", env.UserID, env.PID, session.IsLabMode())
	session.Start(ctx)

	recipeErr := runRecipe(ctx, recipe, session)
	if recipeErr != nil {
		logger.Printf("[ERROR] Recipe failed: %v", recipeErr)
	}

	// 6. Final flush, even when ctx was cancelled
	finishCtx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()
	finishErr := session.Finish(finishCtx)
	if finishErr != nil {
		finishErr = fmt.Errorf("final flush to hub failed: %w", finishErr)
	}

	logger.Printf("[INFO] Recipe stopped for user '%s'", env.UserID)
	return errors.Join(recipeErr, finishErr)
}

// runRecipe turns a recipe panic into an error so the session still gets
// flushed.
func runRecipe(ctx context.Context, recipe Recipe, s *aqueduct.Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recipe panicked: %v", r)
		}
	}()
	return recipe(ctx, s)
}
