// Package main implements the entry point for the fieldlab engine: a
// federated SPARQL query service that fans routine queries out to data-holder
// endpoints, collects per-endpoint outcomes, and serves them over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/VODAN-Development/2025-fieldlab7/config"
	"github.com/VODAN-Development/2025-fieldlab7/engine"
	"github.com/VODAN-Development/2025-fieldlab7/events"
	"github.com/VODAN-Development/2025-fieldlab7/gateway"
	"github.com/VODAN-Development/2025-fieldlab7/health"
	"github.com/VODAN-Development/2025-fieldlab7/metric"
	"github.com/VODAN-Development/2025-fieldlab7/registry"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "fieldlab"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting fieldlab engine",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		// Registries are part of the configuration surface; a validate run
		// checks they load too.
		if _, err := registry.NewStore(cfg.Registry, logger); err != nil {
			return fmt.Errorf("invalid registries: %w", err)
		}
		slog.Info("Configuration is valid")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := registry.NewStore(cfg.Registry, logger)
	if err != nil {
		return fmt.Errorf("load registries: %w", err)
	}

	if cfg.Registry.Watch {
		watcher, err := registry.NewWatcher(store, logger)
		if err != nil {
			return fmt.Errorf("create registry watcher: %w", err)
		}
		go watcher.Run(ctx)
	}

	metrics := metric.NewRegistry()

	publisher, err := events.Connect(ctx, cfg.Events, logger)
	if err != nil {
		// Events are best-effort; queries must keep working without a broker.
		slog.Warn("event publisher unavailable, continuing without events", "error", err)
		publisher = nil
	}
	defer publisher.Close()

	classifier := health.NewClassifier(
		health.WithTimeout(time.Duration(cfg.Health.TimeoutSeconds)*time.Second),
		health.WithLatencyThreshold(time.Duration(cfg.Health.LatencyThresholdMS)*time.Millisecond),
	)
	monitor := health.NewMonitor(classifier, store.Endpoints,
		time.Duration(cfg.Health.IntervalSeconds)*time.Second, logger, metrics.Metrics)
	monitor.OnRefresh = func(reports map[string]health.Report) {
		snapshot := make([]health.Report, 0, len(reports))
		for _, r := range reports {
			snapshot = append(snapshot, r)
		}
		publisher.PublishHealthSnapshot(snapshot)
	}
	go monitor.Run(ctx)

	eng := engine.New(store, logger,
		engine.WithTimeout(time.Duration(cfg.Executor.TimeoutSeconds)*time.Second),
		engine.WithMetrics(metrics.Metrics),
		engine.WithPublisher(publisher),
	)

	server := gateway.NewServer(cfg.Server, eng, store, monitor, metrics, logger)

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	slog.Info("fieldlab engine shutdown complete")
	return nil
}

// loadConfig loads configuration from the specified file path, or defaults
// plus environment overrides when no path is given.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path == "" {
		return loader.Load()
	}
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
