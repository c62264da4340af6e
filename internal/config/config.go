// Package config loads server settings from defaults, an optional YAML file and
// environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string, required for the postgres backend
	DatabaseURL string

	// StoreBackend selects where zones, workers and tasks are read from
	StoreBackend string

	// FixturePath is the YAML fixture loaded by the memory backend
	FixturePath string

	// HTTP server port for the controller
	HTTPPort int

	// OTLP gRPC collector address
	OTELEndpoint string

	LogLevel string

	// Per client address, requests per second
	RateLimit      float64
	RateLimitBurst int

	Simulation Simulation
	Worker     Worker
}

// Worker tunes the model refresh agent and the controller's model cache.
type Worker struct {
	Concurrency   int
	Interval      time.Duration
	RetryInterval time.Duration
	MetricsPort   int

	// ModelMaxAge makes the controller reload cached models from the store.
	ModelMaxAge time.Duration
}

// Simulation tunes the engine.
type Simulation struct {
	MaxIterations   int
	MaxDeferrals    int
	ZoneTimeout     time.Duration
	Seed            uint64
	ScalingExponent float64
	MonteCarloRuns  int
	Parallelism     int

	// ModelMinSamples is the number of completed picks needed to train a duration model.
	ModelMinSamples int
}

// env maps each key to its environment variable.
var env = map[string]string{
	"database_url":         "DATABASE_URL",
	"store_backend":        "STORE_BACKEND",
	"fixture_path":         "FIXTURE_PATH",
	"http_port":            "PORT",
	"otel_endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
	"log_level":            "LOG_LEVEL",
	"rate_limit":           "RATE_LIMIT",
	"rate_limit_burst":     "RATE_LIMIT_BURST",
	"sim_max_iterations":   "SIM_MAX_ITERATIONS",
	"sim_max_deferrals":    "SIM_MAX_DEFERRALS",
	"sim_zone_timeout":     "SIM_ZONE_TIMEOUT",
	"sim_seed":             "SIM_SEED",
	"sim_scaling_exponent": "SIM_SCALING_EXPONENT",
	"sim_monte_carlo_runs": "SIM_MONTE_CARLO_RUNS",
	"sim_parallelism":      "SIM_PARALLELISM",
	"model_min_samples":    "MODEL_MIN_SAMPLES",
	"model_max_age":        "MODEL_MAX_AGE",
	"worker_concurrency":   "WORKER_CONCURRENCY",
	"worker_interval":      "WORKER_INTERVAL",
	"worker_retry":         "WORKER_RETRY_INTERVAL",
	"worker_metrics_port":  "WORKER_METRICS_PORT",
}

// Load reads configuration. path may be empty; a non-empty path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("store_backend", BackendPostgres)
	v.SetDefault("http_port", 6161)
	v.SetDefault("otel_endpoint", "localhost:4317")
	v.SetDefault("log_level", "info")
	v.SetDefault("rate_limit", 2.0)
	v.SetDefault("rate_limit_burst", 4)
	v.SetDefault("sim_max_iterations", 10000)
	v.SetDefault("sim_max_deferrals", 1000)
	v.SetDefault("sim_zone_timeout", 30*time.Second)
	v.SetDefault("sim_seed", 0)
	v.SetDefault("sim_scaling_exponent", 0.7)
	v.SetDefault("sim_monte_carlo_runs", 100)
	v.SetDefault("sim_parallelism", runtime.GOMAXPROCS(0))
	v.SetDefault("model_min_samples", 30)
	v.SetDefault("model_max_age", 15*time.Minute)
	v.SetDefault("worker_concurrency", 2)
	v.SetDefault("worker_interval", 6*time.Hour)
	v.SetDefault("worker_retry", time.Minute)
	v.SetDefault("worker_metrics_port", 6162)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	cfg := &Config{
		DatabaseURL:    v.GetString("database_url"),
		StoreBackend:   strings.ToLower(v.GetString("store_backend")),
		FixturePath:    v.GetString("fixture_path"),
		HTTPPort:       v.GetInt("http_port"),
		OTELEndpoint:   v.GetString("otel_endpoint"),
		LogLevel:       v.GetString("log_level"),
		RateLimit:      v.GetFloat64("rate_limit"),
		RateLimitBurst: v.GetInt("rate_limit_burst"),
		Simulation: Simulation{
			MaxIterations:   v.GetInt("sim_max_iterations"),
			MaxDeferrals:    v.GetInt("sim_max_deferrals"),
			ZoneTimeout:     v.GetDuration("sim_zone_timeout"),
			Seed:            v.GetUint64("sim_seed"),
			ScalingExponent: v.GetFloat64("sim_scaling_exponent"),
			MonteCarloRuns:  v.GetInt("sim_monte_carlo_runs"),
			Parallelism:     v.GetInt("sim_parallelism"),
			ModelMinSamples: v.GetInt("model_min_samples"),
		},
		Worker: Worker{
			Concurrency:   v.GetInt("worker_concurrency"),
			Interval:      v.GetDuration("worker_interval"),
			RetryInterval: v.GetDuration("worker_retry"),
			MetricsPort:   v.GetInt("worker_metrics_port"),
			ModelMaxAge:   v.GetDuration("model_max_age"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required (env: DATABASE_URL)")
		}
	case BackendMemory:
		if c.FixturePath == "" {
			return fmt.Errorf("fixture_path is required for the memory backend (env: FIXTURE_PATH)")
		}
	default:
		return fmt.Errorf("invalid store_backend %q: must be %s or %s", c.StoreBackend, BackendPostgres, BackendMemory)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port %d", c.HTTPPort)
	}
	if c.RateLimit <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate_limit and rate_limit_burst must be positive")
	}

	s := c.Simulation
	if s.MaxIterations <= 0 || s.MaxDeferrals <= 0 {
		return fmt.Errorf("sim_max_iterations and sim_max_deferrals must be positive")
	}
	if s.ZoneTimeout < 0 {
		return fmt.Errorf("sim_zone_timeout must not be negative")
	}
	if s.ScalingExponent <= 0 {
		return fmt.Errorf("sim_scaling_exponent must be positive")
	}
	if s.MonteCarloRuns <= 0 || s.Parallelism <= 0 {
		return fmt.Errorf("sim_monte_carlo_runs and sim_parallelism must be positive")
	}
	if s.ModelMinSamples <= 0 {
		return fmt.Errorf("model_min_samples must be positive")
	}

	w := c.Worker
	if w.Concurrency <= 0 || w.Interval <= 0 || w.RetryInterval <= 0 {
		return fmt.Errorf("worker_concurrency, worker_interval and worker_retry must be positive")
	}
	if w.MetricsPort <= 0 || w.MetricsPort > 65535 {
		return fmt.Errorf("invalid worker_metrics_port %d", w.MetricsPort)
	}
	if w.ModelMaxAge < 0 {
		return fmt.Errorf("model_max_age must not be negative")
	}
	return nil
}
