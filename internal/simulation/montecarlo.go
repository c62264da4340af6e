package simulation

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"warehousesim/internal/logger"
	"warehousesim/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// CurveInterval is the spacing of completion-curve points.
const CurveInterval = 10 * time.Minute

// LatestEndStats summarises the latest end time over the runs that completed anything.
type LatestEndStats struct {
	P50  time.Time
	P90  time.Time
	Mean time.Time
}

// BestCase is the earliest last end time a zone reached, and the run that reached it.
type BestCase struct {
	End time.Time
	Run int
}

// CurvePoint is the average number of tasks completed by At across runs.
type CurvePoint struct {
	At        time.Time
	Completed float64
}

// MonteCarloSummary aggregates repeated simulations of the same zones.
type MonteCarloSummary struct {
	RunID string
	Seed  uint64
	Start time.Time
	Runs  int

	// Completed counts runs in which at least one task finished.
	Completed int

	// LatestEnd is nil when no run completed a task.
	LatestEnd      *LatestEndStats
	ZoneAverageEnd map[int64]time.Time
	BestCase       map[int64]BestCase
	Curve          []CurvePoint

	// Errors holds each distinct message recorded by any run, sorted.
	Errors []string
}

// RunMonteCarlo simulates the zones runs times. Run i uses seed+i, so a fixed
// Config.Seed reproduces the whole batch. At most Config.Parallelism runs are in
// flight at once. Zone validation happens once, before any run starts.
func (o *Orchestrator) RunMonteCarlo(ctx context.Context, zoneIDs []int64, useTestData bool, runs int) (*MonteCarloSummary, error) {
	kind := string(store.RunKindMonteCarlo)
	if runs < 1 {
		o.metrics.RunFinished(ctx, kind, "invalid")
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRuns, runs)
	}
	zones, err := o.resolveZones(ctx, zoneIDs)
	if err != nil {
		o.metrics.RunFinished(ctx, kind, "invalid")
		return nil, err
	}

	runID := uuid.NewString()
	start := o.now()
	seed := o.seed(start)

	ctx = logger.WithRunID(ctx, runID)
	ctx, span := o.tracer.Start(ctx, "simulation.montecarlo", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("runs", runs),
	))
	defer span.End()

	results := make([]*SimulationResult, runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism)
	for i := range runs {
		g.Go(func() error {
			r, err := o.simulate(gctx, fmt.Sprintf("%s/%d", runID, i), zones, useTestData, seed+uint64(i), start)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.metrics.RunFinished(ctx, kind, "error")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		o.metrics.RunFinished(ctx, kind, "error")
		return nil, fmt.Errorf("monte carlo aborted: %w", err)
	}

	sum, err := Summarize(results, start)
	if err != nil {
		o.metrics.RunFinished(ctx, kind, "error")
		return nil, err
	}
	sum.RunID = runID
	sum.Seed = seed

	o.metrics.RunFinished(ctx, kind, "ok")
	logger.FromContext(ctx, o.logger).Info("monte carlo finished", "runs", runs, "completed", sum.Completed)
	return sum, nil
}

// Summarize aggregates simulation results that share the same start time.
// Nil entries are skipped.
func Summarize(results []*SimulationResult, start time.Time) (*MonteCarloSummary, error) {
	sum := &MonteCarloSummary{
		Start:          start,
		Runs:           len(results),
		ZoneAverageEnd: make(map[int64]time.Time),
		BestCase:       make(map[int64]BestCase),
	}

	var ends []time.Duration
	zoneEnds := make(map[int64][]time.Duration)
	messages := make(map[string]struct{})

	for i, r := range results {
		if r == nil {
			continue
		}
		if end, err := r.LatestEnd(); err == nil {
			ends = append(ends, end.Sub(start))
		}
		for _, id := range r.ZoneIDs() {
			z := r.Zones[id]
			for _, msg := range z.Errors {
				messages[msg] = struct{}{}
			}

			last, ok, err := z.LastEndTime()
			if err != nil {
				return nil, fmt.Errorf("run %d: %w", i, err)
			}
			if !ok {
				continue
			}
			zoneEnds[id] = append(zoneEnds[id], last.Sub(start))
			if best, seen := sum.BestCase[id]; !seen || last.Before(best.End) {
				sum.BestCase[id] = BestCase{End: last, Run: i}
			}
		}
	}

	sum.Completed = len(ends)
	if len(ends) > 0 {
		slices.Sort(ends)
		sum.LatestEnd = &LatestEndStats{
			P50:  start.Add(percentile(ends, 50)),
			P90:  start.Add(percentile(ends, 90)),
			Mean: start.Add(mean(ends)),
		}
	}
	for id, ds := range zoneEnds {
		sum.ZoneAverageEnd[id] = start.Add(mean(ds))
	}
	sum.Curve = CompletionCurve(results, start)
	sum.Errors = slices.Sorted(maps.Keys(messages))
	return sum, nil
}

// CompletionCurve averages, across results, how many tasks had finished at each
// CurveInterval step from start to the end of start's day.
func CompletionCurve(results []*SimulationResult, start time.Time) []CurvePoint {
	y, m, d := start.Date()
	endOfDay := time.Date(y, m, d, 23, 59, 59, 0, start.Location())

	var runs []*SimulationResult
	for _, r := range results {
		if r != nil {
			runs = append(runs, r)
		}
	}

	var points []CurvePoint
	for at := start; !at.After(endOfDay); at = at.Add(CurveInterval) {
		var total int
		for _, r := range runs {
			for _, z := range r.Zones {
				total += z.CompletedBy(at)
			}
		}
		p := CurvePoint{At: at}
		if len(runs) > 0 {
			p.Completed = float64(total) / float64(len(runs))
		}
		points = append(points, p)
	}
	return points
}

// percentile returns the nearest-rank percentile of sorted durations.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	rank = max(1, min(rank, len(sorted)))
	return sorted[rank-1]
}

func mean(ds []time.Duration) time.Duration {
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum / time.Duration(len(ds))
}
