package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"warehousesim/internal/duration"
	"warehousesim/internal/logger"
	"warehousesim/internal/modelparams"
	"warehousesim/internal/observability"
	"warehousesim/internal/pool"
	"warehousesim/internal/store"
	"warehousesim/internal/synth"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Source is the read access the orchestrator needs.
type Source interface {
	store.ZoneStore
	store.WorkerStore
	store.TaskStore
}

// ParamsProvider resolves the duration-model parameters of a zone category.
type ParamsProvider interface {
	WeightsAndRanges(ctx context.Context, category string) (duration.Params, error)
}

// Config configures an Orchestrator.
type Config struct {
	Runner RunnerConfig

	// ZoneTimeout bounds each zone of a run. Zero means no limit.
	ZoneTimeout time.Duration

	// Seed makes runs reproducible. Zero derives a seed from the clock.
	Seed uint64

	// Parallelism bounds concurrent Monte Carlo runs. Zero means one.
	Parallelism int

	Synth synth.Config
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now as the source of a run's start time.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator runs one Runner per zone in parallel and aggregates the results.
type Orchestrator struct {
	src     Source
	params  ParamsProvider
	cfg     Config
	runner  *Runner
	logger  *slog.Logger
	metrics *observability.SimMetrics
	tracer  trace.Tracer
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator. params may be nil when no picker zone
// is ever simulated.
func NewOrchestrator(src Source, params ParamsProvider, cfg Config, logger *slog.Logger, metrics *observability.SimMetrics, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NopSimMetrics()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	o := &Orchestrator{
		src:     src,
		params:  params,
		cfg:     cfg,
		runner:  NewRunner(cfg.Runner, logger, metrics),
		logger:  logger,
		metrics: metrics,
		tracer:  observability.Tracer(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunSimulation simulates the given zones once.
//
// Invalid input fails before any zone work starts: ErrNoZones for an empty list,
// ErrInvalidZone for a null or unknown id. Zone-level failures such as missing
// duration-model data are recorded on that zone's result and reported by
// SimulationResult.Err; sibling zones are unaffected.
func (o *Orchestrator) RunSimulation(ctx context.Context, zoneIDs []int64, useTestData bool) (*SimulationResult, error) {
	zones, err := o.resolveZones(ctx, zoneIDs)
	if err != nil {
		o.metrics.RunFinished(ctx, string(store.RunKindSingle), "invalid")
		return nil, err
	}

	start := o.now()
	res, err := o.simulate(ctx, uuid.NewString(), zones, useTestData, o.seed(start), start)
	if err != nil {
		o.metrics.RunFinished(ctx, string(store.RunKindSingle), "error")
		return nil, err
	}
	o.metrics.RunFinished(ctx, string(store.RunKindSingle), outcome(res))
	return res, nil
}

func outcome(res *SimulationResult) string {
	if res.Err() != nil {
		return "zone_error"
	}
	return "ok"
}

func (o *Orchestrator) seed(start time.Time) uint64 {
	if o.cfg.Seed != 0 {
		return o.cfg.Seed
	}
	return uint64(start.UnixNano())
}

// resolveZones validates ids and loads their zones, dropping duplicates.
func (o *Orchestrator) resolveZones(ctx context.Context, ids []int64) ([]store.Zone, error) {
	if len(ids) == 0 {
		return nil, ErrNoZones
	}

	seen := make(map[int64]struct{}, len(ids))
	zones := make([]store.Zone, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			return nil, fmt.Errorf("%w: zone id is null", ErrInvalidZone)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		z, err := o.src.GetZone(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: zone %d does not exist", ErrInvalidZone, id)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load zone %d: %w", id, err)
		}
		zones = append(zones, *z)
	}
	return zones, nil
}

func (o *Orchestrator) simulate(ctx context.Context, runID string, zones []store.Zone, useTestData bool, seed uint64, start time.Time) (*SimulationResult, error) {
	ctx = logger.WithRunID(ctx, runID)
	ctx, span := o.tracer.Start(ctx, "simulation.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("zones", len(zones)),
		attribute.Bool("test_data", useTestData),
	))
	defer span.End()

	results := make([]*ZoneSimResult, len(zones))
	var g errgroup.Group
	for i, z := range zones {
		g.Go(func() error {
			results[i] = o.runZone(ctx, z, useTestData, seed, start)
			return nil
		})
	}
	_ = g.Wait()

	res := &SimulationResult{
		RunID: runID,
		Seed:  seed,
		Start: start,
		Zones: make(map[int64]*ZoneSimResult, len(zones)),
	}
	for _, zr := range results {
		res.Zones[zr.ZoneID] = zr
	}
	if err := res.aggregate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	log := logger.FromContext(ctx, o.logger)
	if end, err := res.LatestEnd(); err == nil {
		log.Info("simulation finished", "zones", len(zones), "latest_end", end)
	} else {
		log.Info("simulation finished without completions", "zones", len(zones))
	}
	return res, nil
}

func (o *Orchestrator) runZone(ctx context.Context, z store.Zone, useTestData bool, seed uint64, start time.Time) *ZoneSimResult {
	if o.cfg.ZoneTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ZoneTimeout)
		defer cancel()
	}

	in, err := o.loadZone(ctx, z, useTestData, zoneRand(seed, z.ID), start)
	if err != nil {
		err = fmt.Errorf("zone %d: %w", z.ID, err)
		logger.FromContext(ctx, o.logger).Error("zone could not be simulated", "zone_id", z.ID, "error", err)
		return &ZoneSimResult{
			ZoneID:       z.ID,
			IsPickerZone: z.IsPickerZone,
			Errors:       []string{err.Error()},
			Partial:      ctx.Err() != nil,
			Err:          err,
		}
	}
	return o.runner.Run(ctx, in)
}

// zoneRand derives an independent stream per zone so results do not depend on
// goroutine scheduling.
func zoneRand(seed uint64, zoneID int64) *rand.Rand {
	h := xxh3.HashString(strconv.FormatInt(zoneID, 10))
	return rand.New(rand.NewPCG(seed^h, h))
}

func (o *Orchestrator) loadZone(ctx context.Context, z store.Zone, useTestData bool, rng *rand.Rand, start time.Time) (ZoneInput, error) {
	in := ZoneInput{Zone: z, Start: start, Rand: rng}

	workers, err := o.src.ListWorkersByZone(ctx, z.ID)
	if err != nil {
		return in, fmt.Errorf("failed to list workers: %w", err)
	}
	shifts, err := o.src.ListShifts(ctx, z.ID, start)
	if err != nil {
		return in, fmt.Errorf("failed to list shifts: %w", err)
	}
	byWorker := make(map[int64][]pool.Shift)
	for _, sh := range shifts {
		byWorker[sh.WorkerID] = append(byWorker[sh.WorkerID], pool.Shift{Start: sh.Start, End: sh.End})
	}
	for _, w := range workers {
		if !w.Available {
			continue
		}
		in.Workers = append(in.Workers, pool.Worker{
			ID:         w.ID,
			Name:       w.Name,
			Licenses:   w.Licenses,
			Efficiency: w.Efficiency,
			Shifts:     byWorker[w.ID],
		})
	}

	if z.IsPickerZone {
		return o.loadPicks(ctx, in, useTestData)
	}
	return o.loadActive(ctx, in, useTestData)
}

func (o *Orchestrator) loadPicks(ctx context.Context, in ZoneInput, useTestData bool) (ZoneInput, error) {
	z := in.Zone
	if o.params == nil {
		return in, fmt.Errorf("%w: no model provider configured", modelparams.ErrDataUnavailable)
	}
	params, err := o.params.WeightsAndRanges(ctx, z.Category())
	if err != nil {
		return in, err
	}
	in.Params = params

	var picks []store.PickerTask
	if useTestData {
		picks = synth.New(in.Rand, o.cfg.Synth).PickerTasks(z.ID, params, in.Start)
	} else {
		picks, err = o.src.ListPendingPickerTasks(ctx, z.ID, in.Start)
		if err != nil {
			return in, fmt.Errorf("failed to list picker tasks: %w", err)
		}
	}

	for _, p := range picks {
		if p.EndTime != nil {
			continue
		}
		f := p.Features
		in.Tasks = append(in.Tasks, NewSingleTask(&SingleWorkerTask{
			ID:       strconv.FormatInt(p.ID, 10),
			ZoneID:   z.ID,
			Features: &f,
			DueDate:  p.DueDate,
		}))
	}
	return in, nil
}

func (o *Orchestrator) loadActive(ctx context.Context, in ZoneInput, useTestData bool) (ZoneInput, error) {
	z := in.Zone
	templates, err := o.src.ListTaskTemplates(ctx, z.ID)
	if err != nil {
		return in, fmt.Errorf("failed to list task templates: %w", err)
	}
	byID := make(map[int64]store.TaskTemplate, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
	}

	var active []store.ActiveTask
	if useTestData {
		active = synth.New(in.Rand, o.cfg.Synth).ActiveTasks(templates, in.Start)
	} else {
		active, err = o.src.ListPendingActiveTasks(ctx, z.ID, in.Start)
		if err != nil {
			return in, fmt.Errorf("failed to list active tasks: %w", err)
		}
	}

	for _, a := range active {
		if a.EndTime != nil {
			continue
		}
		tmpl, ok := byID[a.TemplateID]
		if !ok {
			in.Errors = append(in.Errors, fmt.Sprintf("zone %d: task %d: unknown template %d", z.ID, a.ID, a.TemplateID))
			continue
		}
		if err := tmpl.Validate(); err != nil {
			in.Errors = append(in.Errors, fmt.Sprintf("zone %d: task %d: %v", z.ID, a.ID, err))
			continue
		}
		in.Tasks = append(in.Tasks, NewMultiTask(&MultiWorkerTask{
			ID:          strconv.FormatInt(a.ID, 10),
			Template:    tmpl,
			DueDate:     a.DueDate,
			StrictStart: a.StrictStart,
		}))
	}
	return in, nil
}
