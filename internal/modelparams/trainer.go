package modelparams

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"warehousesim/internal/duration"
	"warehousesim/internal/store"

	"gonum.org/v1/gonum/mat"
)

const (
	DefaultMinSamples   = 30
	DefaultRidge        = 1e-3
	DefaultTrainingRows = 5000
)

// LeastSquaresTrainer fits per-feature weights (seconds per feature unit) to
// historical picks with ridge-regularised least squares. Negative weights are
// clamped to zero so every feature can only add time. Feature ranges are the
// observed min and max.
type LeastSquaresTrainer struct {
	Store      store.ModelStore
	MinSamples int
	Ridge      float64
	Limit      int
	Now        func() time.Time
}

// NewLeastSquaresTrainer returns a trainer with default settings.
func NewLeastSquaresTrainer(s store.ModelStore) *LeastSquaresTrainer {
	return &LeastSquaresTrainer{
		Store:      s,
		MinSamples: DefaultMinSamples,
		Ridge:      DefaultRidge,
		Limit:      DefaultTrainingRows,
		Now:        time.Now,
	}
}

func (t *LeastSquaresTrainer) Train(ctx context.Context, category string) (*store.ModelParams, error) {
	picks, err := t.Store.ListCompletedPicks(ctx, category, t.Limit)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w: %w", category, ErrDataUnavailable, err)
	}
	if len(picks) == 0 || len(picks) < t.MinSamples {
		return nil, fmt.Errorf("model %s: %w: %d completed picks, need %d", category, ErrDataUnavailable, len(picks), t.MinSamples)
	}

	const n = duration.NumFeatures
	var ranges [n]duration.Range
	for i := range ranges {
		ranges[i] = duration.Range{Min: math.Inf(1), Max: math.Inf(-1)}
	}

	xtx := mat.NewSymDense(n, nil)
	xty := mat.NewVecDense(n, nil)
	for _, p := range picks {
		x := p.Features.Vector()
		for i := range n {
			ranges[i].Min = math.Min(ranges[i].Min, x[i])
			ranges[i].Max = math.Max(ranges[i].Max, x[i])
		}
		xv := mat.NewVecDense(n, x[:])
		xtx.SymRankOne(xtx, 1, xv)
		xty.AddScaledVec(xty, p.Duration.Seconds(), xv)
	}
	for i := range n {
		xtx.SetSym(i, i, xtx.At(i, i)+t.Ridge*float64(len(picks)))
	}

	w, err := solve(xtx, xty)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w: %w", category, ErrDataUnavailable, err)
	}

	var params duration.Params
	for i := range n {
		params.Weights[i] = math.Max(0, w.AtVec(i))
		params.Ranges[i] = ranges[i]
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return &store.ModelParams{
		Category:  category,
		Params:    params,
		Samples:   len(picks),
		TrainedAt: now().UTC(),
	}, nil
}

// solve returns w with a·w = b for the symmetric positive definite normal matrix a.
func solve(a *mat.SymDense, b *mat.VecDense) (*mat.VecDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, errors.New("normal equations are not positive definite")
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, b); err != nil {
		return nil, fmt.Errorf("failed to solve normal equations: %w", err)
	}
	return &w, nil
}
