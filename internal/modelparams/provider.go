// Package modelparams supplies the learned weights and feature ranges the
// duration model needs for picker zones.
//
// Parameters are looked up in memory, then in the store. When the store has
// none for a category the provider trains a model synchronously, persists it
// and returns it. Concurrent lookups of the same category share one training.
package modelparams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"warehousesim/internal/duration"
	"warehousesim/internal/store"

	"golang.org/x/sync/singleflight"
)

// ErrDataUnavailable means no parameters exist and none could be trained.
var ErrDataUnavailable = errors.New("duration model data unavailable")

// Trainer fits duration-model parameters for a zone category.
type Trainer interface {
	Train(ctx context.Context, category string) (*store.ModelParams, error)
}

// Provider resolves duration.Params per category.
type Provider struct {
	store   store.ModelStore
	trainer Trainer
	logger  *slog.Logger
	maxAge  time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedParams
	group singleflight.Group
}

type cachedParams struct {
	params   duration.Params
	loadedAt time.Time
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithMaxAge reloads cached parameters from the store once they are older than d,
// so models retrained by another process are picked up. Zero keeps them forever.
func WithMaxAge(d time.Duration) ProviderOption {
	return func(p *Provider) { p.maxAge = d }
}

// WithProviderClock overrides time.Now for cache expiry.
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProvider creates a provider. A nil trainer turns a missing model into ErrDataUnavailable.
func NewProvider(s store.ModelStore, t Trainer, logger *slog.Logger, opts ...ProviderOption) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		store:   s,
		trainer: t,
		logger:  logger,
		now:     time.Now,
		cache:   make(map[string]cachedParams),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WeightsAndRanges returns the parameters of category, training them if needed.
func (p *Provider) WeightsAndRanges(ctx context.Context, category string) (duration.Params, error) {
	p.mu.RLock()
	c, ok := p.cache[category]
	p.mu.RUnlock()
	if ok && (p.maxAge <= 0 || p.now().Sub(c.loadedAt) < p.maxAge) {
		return c.params, nil
	}

	v, err, _ := p.group.Do(category, func() (interface{}, error) {
		return p.load(ctx, category)
	})
	if err != nil {
		return duration.Params{}, err
	}
	return v.(duration.Params), nil
}

// Invalidate drops the cached parameters of category.
func (p *Provider) Invalidate(category string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, category)
}

func (p *Provider) load(ctx context.Context, category string) (duration.Params, error) {
	m, err := p.store.GetModelParams(ctx, category)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		m, err = p.train(ctx, category)
		if err != nil {
			return duration.Params{}, err
		}
	default:
		return duration.Params{}, fmt.Errorf("failed to load model %s: %w", category, err)
	}

	if err := m.Params.Validate(); err != nil {
		return duration.Params{}, fmt.Errorf("model %s: %w: %w", category, ErrDataUnavailable, err)
	}

	p.mu.Lock()
	p.cache[category] = cachedParams{params: m.Params, loadedAt: p.now()}
	p.mu.Unlock()
	return m.Params, nil
}

func (p *Provider) train(ctx context.Context, category string) (*store.ModelParams, error) {
	if p.trainer == nil {
		return nil, fmt.Errorf("model %s: %w: no trainer configured", category, ErrDataUnavailable)
	}

	p.logger.Info("training duration model", "category", category)
	m, err := p.trainer.Train(ctx, category)
	if err != nil {
		if errors.Is(err, ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("model %s: %w: %w", category, ErrDataUnavailable, err)
	}
	m.Category = category
	if err := m.Params.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w: %w", category, ErrDataUnavailable, err)
	}

	if err := p.store.SaveModelParams(ctx, m); err != nil {
		// The trained parameters are still usable for this process.
		p.logger.Warn("failed to persist trained model", "category", category, "error", err)
	}
	return m, nil
}
