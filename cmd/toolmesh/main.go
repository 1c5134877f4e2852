package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/toolmesh/toolmesh/internal/api"
	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/history"
	"github.com/toolmesh/toolmesh/internal/models"
	"github.com/toolmesh/toolmesh/internal/orchestrator"
	"github.com/toolmesh/toolmesh/internal/scheduler"
	"github.com/toolmesh/toolmesh/internal/tool"
	"github.com/toolmesh/toolmesh/internal/tool/builtin"
	"github.com/toolmesh/toolmesh/internal/tool/manifest"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "toolmesh.json", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("toolmesh %s (built %s)\n", version, buildTime)
		return 0
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting toolmesh", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tool registry: builtins first, then declarative command tools
	registry := tool.NewRegistry(logger)
	builtin.RegisterAll(registry, cfg.Tools)

	if cfg.Tools.ManifestDir != "" {
		loader := manifest.NewLoader(cfg.Tools.ManifestDir, logger)
		n, err := loader.RegisterAll(registry)
		if err != nil {
			logger.Warn("manifest tools skipped", "error", err)
		} else if n > 0 {
			logger.Info("manifest tools registered", "count", n)
		}
	}
	logger.Info("tool registry ready", "tools", registry.Count())

	router, err := models.BuildRouter(cfg.Models, logger)
	if err != nil {
		logger.Error("model router setup failed", "error", err)
		return 1
	}

	store, err := history.New(cfg.History.Path, logger)
	if err != nil {
		logger.Error("history store setup failed", "error", err)
		return 1
	}
	defer store.Close() //nolint:errcheck

	orch := orchestrator.NewService(registry, router, store, cfg.Chat, cfg.History.WindowSize, logger)

	// Background maintenance
	sched := scheduler.New(logger)
	if cfg.History.RetentionHours > 0 {
		retention := time.Duration(cfg.History.RetentionHours) * time.Hour
		err := sched.AddJob(scheduler.Job{
			Name:     "history-prune",
			Schedule: cfg.History.CleanupSchedule,
			Run: func(ctx context.Context) error {
				_, err := store.PruneBefore(ctx, time.Now().Add(-retention))
				return err
			},
		})
		if err != nil {
			logger.Error("prune job setup failed", "error", err)
			return 1
		}
	}
	sched.Start(ctx)
	defer sched.Stop()

	var jwtSecret []byte
	if cfg.Auth.Secret != "" {
		jwtSecret = []byte(cfg.Auth.Secret)
	} else {
		logger.Warn("no JWT secret configured, authentication disabled")
	}

	server := api.NewServer(cfg.Server.Host, cfg.Server.Port, registry, orch, router, jwtSecret, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}

	logger.Info("toolmesh stopped")
	return 0
}

// loadConfig reads the config file, writing defaults on first run.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		fmt.Printf("created default config at %s\n", path)
	}
	return config.Load(path)
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
