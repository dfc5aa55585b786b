// Command planner loads a trip file, runs the itinerary optimizer
// against it and prints the committed schedule. SIGINT cancels the
// run; the best schedule found so far is kept and printed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tripweave/engine/internal/config"
	"github.com/tripweave/engine/internal/engine"
	"github.com/tripweave/engine/internal/event"
	"github.com/tripweave/engine/internal/optimizer"
	"github.com/tripweave/engine/internal/routing"
	"github.com/tripweave/engine/internal/sqlite"
)

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: planner <tripfile.yaml>")
		os.Exit(2)
	}

	tf, err := loadTripFile(os.Args[1])
	if err != nil {
		logger.Error("failed to load trip file", "path", os.Args[1], "error", err)
		os.Exit(1)
	}

	if err := ensureDBDir(cfg.Cache.Path); err != nil {
		logger.Error("failed to prepare cache path", "error", err)
		os.Exit(1)
	}
	db, err := sqlite.New(cfg.Cache.Path)
	if err != nil {
		logger.Error("failed to open travel cache", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to migrate travel cache", "error", err)
		os.Exit(1)
	}

	estimator := sqlite.NewTravelCache(db, routing.NewHaversineEstimator())
	eng := engine.New(engine.Config{
		TravelMode:        cfg.Mode(),
		MaxActivities:     cfg.Engine.MaxActivities,
		MatrixConcurrency: cfg.Routing.Concurrency,
		MaxConcurrentRuns: cfg.Engine.MaxConcurrentRuns,
		ProposalQueueSize: cfg.Engine.ProposalQueueSize,
		DeltaLogDepth:     cfg.Engine.DeltaLogDepth,
		Optimizer:         cfg.OptimizerParams(),
		Weights:           cfg.Weights,
	}, estimator, event.NopNotifier{}, logger)
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, eng, tf, logger); err != nil {
		logger.Error("planner failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, eng *engine.Engine, tf *tripFile, logger *slog.Logger) error {
	trip, members, acts, err := tf.build()
	if err != nil {
		return fmt.Errorf("invalid trip file: %w", err)
	}
	if err := eng.RegisterTrip(ctx, trip, members, acts); err != nil {
		return err
	}

	h, err := eng.RunOptimization(ctx, trip.ID, engine.RunRequest{
		Seed:        tf.Seed,
		Preferences: tf.preferences(),
		KeepPartial: true,
	})
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		h.Cancel()
	}()

	res := <-h.Result()
	logger.Info("optimization finished",
		"outcome", string(res.Outcome),
		"generations", res.Generations,
		"feasible", res.Feasible)
	if res.Schedule == nil {
		return fmt.Errorf("no schedule produced (outcome %s)", res.Outcome)
	}
	if res.Outcome == optimizer.OutcomeCancelled {
		logger.Warn("run cancelled, keeping best schedule found so far")
	}

	acc, conflict, err := eng.ProposeMutation(context.Background(), trip.ID,
		engine.ProposalFromResult(trip.ID, "planner", 0, res))
	if err != nil {
		return err
	}
	if conflict != nil {
		return fmt.Errorf("optimizer result rejected: %s", conflict.Message)
	}
	logger.Info("schedule committed", "version", acc.Version, "blocks", len(acc.Delta.Added))

	committed, err := eng.Snapshot(trip.ID)
	if err != nil {
		return err
	}
	return printSchedule(os.Stdout, tf, committed)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
