// Package worker contains the background agent that keeps duration models fresh.
//
// The agent periodically retrains the model of every picker-zone category from
// recently completed picks and persists the result, so simulations pick up new
// parameters without waiting for a cache miss.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"warehousesim/internal/modelparams"
	"warehousesim/internal/observability"
	"warehousesim/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AgentConfig holds configuration for the refresh agent.
type AgentConfig struct {
	ID          string
	Concurrency int
	// Interval is the pause between successful refresh rounds (default: 6h).
	Interval time.Duration
	// RetryInterval is the first pause after a failed round (default: 1m).
	// It doubles on every failed round, capped at Interval.
	RetryInterval time.Duration
}

// Source is what the agent reads and writes.
type Source interface {
	store.ZoneStore
	store.ModelStore
}

// Invalidator drops cached parameters of a category; *modelparams.Provider implements it.
type Invalidator interface {
	Invalidate(category string)
}

// Round is the outcome of one refresh pass.
type Round struct {
	Trained []string
	// Failed maps a category to its training or persistence error.
	Failed map[string]error
}

// Agent retrains duration models on a schedule.
type Agent struct {
	src     Source
	trainer modelparams.Trainer
	cache   Invalidator
	config  AgentConfig
	logger  *slog.Logger
	metrics *observability.SimMetrics
	tracer  trace.Tracer
	done    chan struct{}
}

// New creates a refresh agent. cache may be nil when no in-process provider
// needs invalidating.
func New(src Source, trainer modelparams.Trainer, cache Invalidator, config AgentConfig, logger *slog.Logger, metrics *observability.SimMetrics) *Agent {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	if config.Interval <= 0 {
		config.Interval = 6 * time.Hour
	}

	if config.RetryInterval <= 0 {
		config.RetryInterval = time.Minute
	}
	if config.RetryInterval > config.Interval {
		config.RetryInterval = config.Interval
	}

	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NopSimMetrics()
	}

	return &Agent{
		src:     src,
		trainer: trainer,
		cache:   cache,
		config:  config,
		logger:  logger.With("agent", config.ID),
		metrics: metrics,
		tracer:  observability.Tracer(),
		done:    make(chan struct{}),
	}
}

// Run refreshes immediately and then on schedule. It blocks until the context
// is cancelled; a round in progress finishes its running trainings first.
func (a *Agent) Run(ctx context.Context) error {
	defer close(a.done)
	a.logger.Info("model refresh agent starting", "concurrency", a.config.Concurrency, "interval", a.config.Interval)

	// Current backoff duration (increases on failed rounds, resets on success)
	wait := time.Duration(0)
	backoff := a.config.RetryInterval

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("model refresh agent stopped")
			return ctx.Err()

		case <-time.After(wait):
			round, err := a.RefreshOnce(ctx)
			if ctx.Err() != nil {
				a.logger.Info("model refresh agent stopped")
				return ctx.Err()
			}
			if err != nil || len(round.Failed) > 0 {
				wait = backoff
				backoff = min(backoff*2, a.config.Interval)
				a.logger.Warn("model refresh round incomplete", "trained", len(round.Trained), "failed", len(round.Failed), "error", err, "retry_in", wait)
				continue
			}

			// Round succeeded - reset backoff
			wait = a.config.Interval
			backoff = a.config.RetryInterval
			a.logger.Info("model refresh round finished", "trained", round.Trained)
		}
	}
}

// Done returns a channel that is closed when the agent has fully stopped.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// RefreshOnce retrains every picker-zone category once. The returned error is
// set only when the categories could not be listed.
func (a *Agent) RefreshOnce(ctx context.Context) (Round, error) {
	round := Round{Failed: make(map[string]error)}

	categories, err := a.categories(ctx)
	if err != nil {
		return round, err
	}

	// Semaphore to limit concurrency
	sem := make(chan struct{}, a.config.Concurrency)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, category := range categories {
		sem <- struct{}{}
		wg.Add(1)
		go func(category string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := a.refresh(ctx, category)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				round.Failed[category] = err
				return
			}
			round.Trained = append(round.Trained, category)
		}(category)
	}
	wg.Wait()

	slices.Sort(round.Trained)
	return round, nil
}

// categories lists the distinct duration-model categories of picker zones.
func (a *Agent) categories(ctx context.Context) ([]string, error) {
	zones, err := a.src.ListZones(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, z := range zones {
		if z.IsPickerZone && !slices.Contains(out, z.Category()) {
			out = append(out, z.Category())
		}
	}
	slices.Sort(out)
	return out, nil
}

func (a *Agent) refresh(ctx context.Context, category string) error {
	ctx, span := a.tracer.Start(ctx, "model.refresh",
		trace.WithAttributes(attribute.String("model.category", category)),
	)
	defer span.End()

	m, err := a.trainer.Train(ctx, category)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "training failed")
		outcome := "error"
		if errors.Is(err, modelparams.ErrDataUnavailable) {
			outcome = "unavailable"
		}
		a.metrics.ModelTrained(ctx, category, outcome)
		a.logger.Warn("model training failed", "category", category, "error", err)
		return err
	}
	m.Category = category

	if err := a.src.SaveModelParams(ctx, m); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		a.metrics.ModelTrained(ctx, category, "error")
		a.logger.Error("failed to persist model", "category", category, "error", err)
		return err
	}

	if a.cache != nil {
		a.cache.Invalidate(category)
	}
	span.SetAttributes(attribute.Int("model.samples", m.Samples))
	a.metrics.ModelTrained(ctx, category, "ok")
	a.logger.Debug("model retrained", "category", category, "samples", m.Samples)
	return nil
}
