// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"warehousesim/internal/simulation"
	"warehousesim/internal/store"
	"warehousesim/pkg/api"
)

// StoreFactory combines the interfaces needed for the controller to function.
type StoreFactory interface {
	store.ResultStore
	Ping(ctx context.Context) error
}

// Simulator is the engine behind the simulation endpoints.
type Simulator interface {
	RunSimulation(ctx context.Context, zoneIDs []int64, useTestData bool) (*simulation.SimulationResult, error)
	RunMonteCarlo(ctx context.Context, zoneIDs []int64, useTestData bool, runs int) (*simulation.MonteCarloSummary, error)
}

// Options tunes request handling.
type Options struct {
	// DefaultRuns is used when a Monte Carlo request does not set runs.
	DefaultRuns int
	// MaxRuns rejects larger Monte Carlo requests.
	MaxRuns int
	// Backend names the store behind the API in readiness responses.
	Backend string
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store  StoreFactory
	sim    Simulator
	logger *slog.Logger
	opts   Options
}

// New creates a new Handlers instance with the given dependencies.
func New(s StoreFactory, sim Simulator, logger *slog.Logger, opts Options) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultRuns <= 0 {
		opts.DefaultRuns = 100
	}
	if opts.MaxRuns < opts.DefaultRuns {
		opts.MaxRuns = max(opts.DefaultRuns, 10000)
	}
	return &Handlers{store: s, sim: sim, logger: logger, opts: opts}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// httpErrorDetails is httpError with the underlying cause attached.
func (h *Handlers) httpErrorDetails(w http.ResponseWriter, message string, code int, err error) {
	h.respondJson(w, code, api.ErrorResponse{
		Error:   message,
		Code:    strconv.Itoa(code),
		Details: err.Error(),
	})
}
