// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"net/http"
	"time"

	"warehousesim/internal/controller/handlers"
	"warehousesim/internal/controller/middleware"
)

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
// limiter may be nil to disable rate limiting; metricsHandler may be nil to
// skip the /metrics route.
func New(addr string, h *handlers.Handlers, limiter *middleware.RateLimiter, metricsHandler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     Routes(h, limiter, metricsHandler),
			ReadTimeout: 10 * time.Second,
			// Monte Carlo batches run inside the request.
			WriteTimeout: 5 * time.Minute,
		},
	}
}

// Routes builds the API mux.
func Routes(h *handlers.Handlers, limiter *middleware.RateLimiter, metricsHandler http.Handler) http.Handler {
	limit := func(next http.Handler) http.Handler { return next }
	if limiter != nil {
		limit = limiter.Middleware()
	}

	mux := http.NewServeMux()

	// Simulation endpoints are CPU bound and rate limited per client.
	mux.Handle("POST /simulations", limit(http.HandlerFunc(h.RunSimulation)))
	mux.Handle("POST /simulations/montecarlo", limit(http.HandlerFunc(h.RunMonteCarlo)))
	mux.HandleFunc("GET /simulations/{id}", h.GetSimulation)

	// Probes
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return middleware.RequestID(mux)
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
