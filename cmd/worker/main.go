// Package main is the entry point for the warehousesim worker.
// The worker retrains duration models on a schedule and persists them, so
// controllers reload fresh parameters once their cache entries age out.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"warehousesim/internal/config"
	"warehousesim/internal/logger"
	"warehousesim/internal/modelparams"
	"warehousesim/internal/observability"
	"warehousesim/internal/store/backend"
	"warehousesim/internal/worker"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file (default: warehousesim.yaml in current directory)")
	once := flag.Bool("once", false, "Run a single refresh round and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := backend.Open(ctx, cfg, false)
	if err != nil {
		log.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("memory backend: retrained models are only visible to this process")
	}

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "warehousesim-worker", cfg.OTELEndpoint)
	if err != nil {
		log.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Error("failed to shutdown metrics", "error", err)
		}
	}()
	simMetrics, err := observability.NewSimMetrics(otel.Meter("warehousesim-worker"))
	if err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	trainer := modelparams.NewLeastSquaresTrainer(st)
	trainer.MinSamples = cfg.Simulation.ModelMinSamples

	agent := worker.New(st, trainer, nil, worker.AgentConfig{
		ID:            "worker-" + uuid.NewString()[:8],
		Concurrency:   cfg.Worker.Concurrency,
		Interval:      cfg.Worker.Interval,
		RetryInterval: cfg.Worker.RetryInterval,
	}, log, simMetrics)

	if *once {
		round, err := agent.RefreshOnce(ctx)
		if err != nil {
			log.Error("refresh failed", "error", err)
			os.Exit(1)
		}
		for category, err := range round.Failed {
			log.Error("model not refreshed", "category", category, "error", err)
		}
		log.Info("refresh finished", "trained", round.Trained, "failed", len(round.Failed))
		if len(round.Failed) > 0 {
			os.Exit(1)
		}
		return
	}

	go agent.Run(ctx)

	// Start a dedicated metrics server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		addr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		log.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker")
	cancel()

	<-agent.Done()
}
