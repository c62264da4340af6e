package config

import (
	"os"
	"runtime"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "warehousesim-test-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	// Clear any existing env vars
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_BACKEND", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
	if err.Error() != "database_url is required (env: DATABASE_URL)" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoad_MemoryBackendRequiresFixture(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("FIXTURE_PATH", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error when FIXTURE_PATH is missing")
	}

	t.Setenv("FIXTURE_PATH", "testdata/warehouse.yaml")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.StoreBackend)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Check defaults
	if cfg.HTTPPort != 6161 {
		t.Errorf("expected HTTPPort 6161, got %d", cfg.HTTPPort)
	}
	if cfg.StoreBackend != BackendPostgres {
		t.Errorf("expected StoreBackend postgres, got %s", cfg.StoreBackend)
	}
	if cfg.OTELEndpoint != "localhost:4317" {
		t.Errorf("expected OTELEndpoint localhost:4317, got %s", cfg.OTELEndpoint)
	}
	if cfg.RateLimit != 2 || cfg.RateLimitBurst != 4 {
		t.Errorf("expected rate limit 2/4, got %v/%d", cfg.RateLimit, cfg.RateLimitBurst)
	}

	s := cfg.Simulation
	if s.MaxIterations != 10000 {
		t.Errorf("expected MaxIterations 10000, got %d", s.MaxIterations)
	}
	if s.MaxDeferrals != 1000 {
		t.Errorf("expected MaxDeferrals 1000, got %d", s.MaxDeferrals)
	}
	if s.ZoneTimeout != 30*time.Second {
		t.Errorf("expected ZoneTimeout 30s, got %v", s.ZoneTimeout)
	}
	if s.Seed != 0 {
		t.Errorf("expected Seed 0, got %d", s.Seed)
	}
	if s.ScalingExponent != 0.7 {
		t.Errorf("expected ScalingExponent 0.7, got %v", s.ScalingExponent)
	}
	if s.MonteCarloRuns != 100 {
		t.Errorf("expected MonteCarloRuns 100, got %d", s.MonteCarloRuns)
	}
	if s.Parallelism != runtime.GOMAXPROCS(0) {
		t.Errorf("expected Parallelism %d, got %d", runtime.GOMAXPROCS(0), s.Parallelism)
	}

	w := cfg.Worker
	if w.Concurrency != 2 || w.Interval != 6*time.Hour || w.RetryInterval != time.Minute {
		t.Errorf("unexpected worker defaults: %+v", w)
	}
	if w.MetricsPort != 6162 || w.ModelMaxAge != 15*time.Minute {
		t.Errorf("unexpected worker defaults: %+v", w)
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://custom/db")
	t.Setenv("PORT", "9999")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")
	t.Setenv("SIM_MAX_ITERATIONS", "50")
	t.Setenv("SIM_ZONE_TIMEOUT", "2s")
	t.Setenv("SIM_SEED", "1234")
	t.Setenv("SIM_PARALLELISM", "3")
	t.Setenv("RATE_LIMIT", "0.5")
	t.Setenv("WORKER_INTERVAL", "30m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DatabaseURL != "postgres://custom/db" {
		t.Errorf("expected DatabaseURL from env, got %s", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != 9999 {
		t.Errorf("expected HTTPPort 9999, got %d", cfg.HTTPPort)
	}
	if cfg.OTELEndpoint != "otel-collector:4317" {
		t.Errorf("expected OTELEndpoint otel-collector:4317, got %s", cfg.OTELEndpoint)
	}
	if cfg.Simulation.MaxIterations != 50 {
		t.Errorf("expected MaxIterations 50, got %d", cfg.Simulation.MaxIterations)
	}
	if cfg.Simulation.ZoneTimeout != 2*time.Second {
		t.Errorf("expected ZoneTimeout 2s, got %v", cfg.Simulation.ZoneTimeout)
	}
	if cfg.Simulation.Seed != 1234 {
		t.Errorf("expected Seed 1234, got %d", cfg.Simulation.Seed)
	}
	if cfg.Simulation.Parallelism != 3 {
		t.Errorf("expected Parallelism 3, got %d", cfg.Simulation.Parallelism)
	}
	if cfg.RateLimit != 0.5 {
		t.Errorf("expected RateLimit 0.5, got %v", cfg.RateLimit)
	}
	if cfg.Worker.Interval != 30*time.Minute {
		t.Errorf("expected worker Interval 30m, got %v", cfg.Worker.Interval)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"backend", "STORE_BACKEND", "redis"},
		{"port", "PORT", "70000"},
		{"rate limit", "RATE_LIMIT", "0"},
		{"iterations", "SIM_MAX_ITERATIONS", "-1"},
		{"scaling", "SIM_SCALING_EXPONENT", "0"},
		{"runs", "SIM_MONTE_CARLO_RUNS", "0"},
		{"worker interval", "WORKER_INTERVAL", "0s"},
		{"worker metrics port", "WORKER_METRICS_PORT", "0"},
		{"model max age", "MODEL_MAX_AGE", "-1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/test")
			t.Setenv(tt.key, tt.val)

			if _, err := Load(""); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
database_url: "postgres://config-file/db"
http_port: 7777
sim_max_deferrals: 25
sim_zone_timeout: 5s
`)

	// Clear env vars that would override
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("SIM_MAX_DEFERRALS", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DatabaseURL != "postgres://config-file/db" {
		t.Errorf("expected DatabaseURL from config file, got %s", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != 7777 {
		t.Errorf("expected HTTPPort 7777, got %d", cfg.HTTPPort)
	}
	if cfg.Simulation.MaxDeferrals != 25 {
		t.Errorf("expected MaxDeferrals 25, got %d", cfg.Simulation.MaxDeferrals)
	}
	if cfg.Simulation.ZoneTimeout != 5*time.Second {
		t.Errorf("expected ZoneTimeout 5s, got %v", cfg.Simulation.ZoneTimeout)
	}
}

func TestLoad_EnvOverridesConfigFile(t *testing.T) {
	path := writeConfig(t, `
database_url: "postgres://from-file/db"
http_port: 7777
`)

	// Set env var to override config file
	t.Setenv("DATABASE_URL", "postgres://from-env/db")
	t.Setenv("PORT", "8888")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Env should override config file
	if cfg.DatabaseURL != "postgres://from-env/db" {
		t.Errorf("expected DatabaseURL from env, got %s", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != 8888 {
		t.Errorf("expected HTTPPort 8888 from env, got %d", cfg.HTTPPort)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	_, err := Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent config file")
	}
}
