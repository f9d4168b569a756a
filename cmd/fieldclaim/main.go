// Fieldclaim - Crop insurance claims decided in seconds.
// Copyright (c) 2025 openagri
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openagri/fieldclaim/internal/api"
	"github.com/openagri/fieldclaim/internal/bus"
	"github.com/openagri/fieldclaim/internal/cache"
	"github.com/openagri/fieldclaim/internal/domain"
	"github.com/openagri/fieldclaim/internal/engine"
	"github.com/openagri/fieldclaim/internal/ml"
	"github.com/openagri/fieldclaim/internal/payout"
	"github.com/openagri/fieldclaim/internal/repository"
	"github.com/openagri/fieldclaim/internal/rules"
	"github.com/openagri/fieldclaim/internal/training"
	"github.com/openagri/fieldclaim/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("FIELDCLAIM_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting fieldclaim",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("FIELDCLAIM_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if url := os.Getenv("FIELDCLAIM_ML_URL"); url != "" {
		cfg.ML.BaseURL = url
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"ml_url", cfg.ML.BaseURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Threshold Evaluator
	ruleEngine, err := rules.NewEngine(cfg.Decision.Thresholds)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized")

	// Initialize ML client (prediction + training)
	mlClient := ml.NewClient(cfg.ML)

	// Initialize decision pipeline
	scorer := rules.NewScorer(cfg.Decision)
	resolver := payout.NewResolver(cfg.Decision, mlClient)
	orchestrator := engine.New(repo, busImpl, ruleEngine, scorer, resolver, cfg.Decision)
	slog.Info("decision pipeline initialized",
		"approve_confidence", cfg.Decision.ApproveConfidence,
		"max_payout", cfg.Decision.MaxPayout,
	)

	// Initialize retraining worker
	batcher := training.NewBatcher(repo, mlClient, cacheImpl, cfg.Decision.TrainingBatchSize)
	retrainWorker := worker.NewWorker(busImpl, batcher)
	if err := retrainWorker.Start(); err != nil {
		slog.Error("failed to start retraining worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, orchestrator, cfg.Decision, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("fieldclaim is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop retraining worker first
	if err := retrainWorker.Stop(); err != nil {
		slog.Error("failed to stop retraining worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("fieldclaim shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              🌾 FIELDCLAIM                ║")
	fmt.Println("  ║      Crop Insurance Decision Engine       ║")
	fmt.Println("  ║     Every claim decided in seconds.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST  /sensors                   - Submit a sensor reading")
	fmt.Println("    GET   /sensors                   - List own sensor readings")
	fmt.Println("    GET   /sensors/{id}              - Get sensor reading by ID")
	fmt.Println("    POST  /claims                    - Submit a claim (auto-decided)")
	fmt.Println("    GET   /claims                    - List own claims")
	fmt.Println("    GET   /claims/{id}               - Get claim by ID")
	fmt.Println("    GET   /admin/claims              - List all claims (admin)")
	fmt.Println("    PATCH /admin/claims/{id}/status  - Override a claim (admin)")
	fmt.Println("    GET   /admin/analytics           - Claim analytics (admin)")
	fmt.Println("    GET   /health                    - Health check")
	fmt.Println()
}
