// Package main is the entry point for the warehousesim controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warehousesim/internal/config"
	"warehousesim/internal/controller"
	"warehousesim/internal/controller/handlers"
	"warehousesim/internal/controller/middleware"
	"warehousesim/internal/logger"
	"warehousesim/internal/modelparams"
	"warehousesim/internal/observability"
	"warehousesim/internal/simulation"
	"warehousesim/internal/store/backend"
	"warehousesim/internal/synth"
	"warehousesim/internal/worker"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	refreshFlag := flag.Bool("refresh-models", false, "Run the model refresh agent in-process")
	configPath := flag.String("config", "", "Path to config file (default: warehousesim.yaml in current directory)")
	flag.Parse()

	// Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, cancelAgents := context.WithCancel(context.Background())
	defer cancelAgents()
	st, err := backend.Open(ctx, cfg, *migrateFlag)
	if err != nil {
		log.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "warehousesim-controller", cfg.OTELEndpoint)
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

	meter := otel.Meter("warehousesim-controller")
	simMetrics, err := observability.NewSimMetrics(meter)
	if err != nil {
		log.Error("failed to register simulation metrics", "error", err)
		os.Exit(1)
	}

	// Use an Observable Gauge (Async) that queries the store only when scraped.
	_, err = meter.Int64ObservableGauge("warehousesim.zones",
		metric.WithDescription("Number of zones known to the store"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			zones, err := st.ListZones(ctx)
			if err != nil {
				log.Warn("failed to count zones", "error", err)
				return nil // Don't crash metrics scrape on DB error
			}
			obs.Observe(int64(len(zones)))
			return nil
		}),
	)
	if err != nil {
		log.Warn("failed to register zone gauge", "error", err)
	}

	// Simulation engine
	trainer := modelparams.NewLeastSquaresTrainer(st)
	trainer.MinSamples = cfg.Simulation.ModelMinSamples
	params := modelparams.NewProvider(st, trainer, log, modelparams.WithMaxAge(cfg.Worker.ModelMaxAge))

	orch := simulation.NewOrchestrator(st, params, simulation.Config{
		Runner: simulation.RunnerConfig{
			MaxIterations:   cfg.Simulation.MaxIterations,
			MaxDeferrals:    cfg.Simulation.MaxDeferrals,
			ScalingExponent: cfg.Simulation.ScalingExponent,
		},
		ZoneTimeout: cfg.Simulation.ZoneTimeout,
		Seed:        cfg.Simulation.Seed,
		Parallelism: cfg.Simulation.Parallelism,
		Synth:       synth.DefaultConfig(),
	}, log, simMetrics)

	// The in-process agent invalidates the provider's cache directly.
	var agent *worker.Agent
	if *refreshFlag {
		agent = worker.New(st, trainer, params, worker.AgentConfig{
			ID:            "controller",
			Concurrency:   cfg.Worker.Concurrency,
			Interval:      cfg.Worker.Interval,
			RetryInterval: cfg.Worker.RetryInterval,
		}, log, simMetrics)
		go agent.Run(ctx)
	}

	h := handlers.New(st, orch, log, handlers.Options{
		DefaultRuns: cfg.Simulation.MonteCarloRuns,
		Backend:     cfg.StoreBackend,
	})
	limiter := middleware.NewRateLimiter(middleware.WithLimit(cfg.RateLimit, cfg.RateLimitBurst))

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, h, limiter, metricsHandler)

	go func() {
		log.Info("controller starting", "addr", addr, "backend", cfg.StoreBackend)
		if err := srv.Run(ctx); err != nil {
			log.Error("server stopped", "error", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down controller")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return
	}
	if agent != nil {
		cancelAgents()
		<-agent.Done()
	}
	log.Info("server exited properly")
}
