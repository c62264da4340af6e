package simulation

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"warehousesim/internal/duration"
	"warehousesim/internal/logger"
	"warehousesim/internal/observability"
	"warehousesim/internal/pool"
	"warehousesim/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxIterations = 10000
	DefaultMaxDeferrals  = 1000
)

// RunnerConfig bounds a zone simulation.
type RunnerConfig struct {
	// MaxIterations caps the number of passes over the pending tasks.
	MaxIterations int
	// MaxDeferrals caps how often one task may be deferred before it fails.
	MaxDeferrals int
	// ScalingExponent controls how much extra workers shorten a multi-worker task.
	ScalingExponent float64
}

// DefaultRunnerConfig returns the default bounds.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxIterations:   DefaultMaxIterations,
		MaxDeferrals:    DefaultMaxDeferrals,
		ScalingExponent: duration.DefaultScalingExponent,
	}
}

// ZoneInput is everything one zone simulation needs.
type ZoneInput struct {
	Zone    store.Zone
	Workers []pool.Worker
	Tasks   []Task

	// Params drives single-worker durations. Only picker zones need it.
	Params duration.Params
	Start  time.Time
	Rand   *rand.Rand

	// Errors are problems found while loading the zone; they are copied into the result.
	Errors []string
}

// Runner simulates one zone at a time. It is safe to share between goroutines.
type Runner struct {
	cfg     RunnerConfig
	logger  *slog.Logger
	metrics *observability.SimMetrics
	tracer  trace.Tracer
}

// NewRunner creates a runner. Zero config values take their defaults.
func NewRunner(cfg RunnerConfig, logger *slog.Logger, metrics *observability.SimMetrics) *Runner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxDeferrals <= 0 {
		cfg.MaxDeferrals = DefaultMaxDeferrals
	}
	if cfg.ScalingExponent <= 0 {
		cfg.ScalingExponent = duration.DefaultScalingExponent
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NopSimMetrics()
	}
	return &Runner{cfg: cfg, logger: logger, metrics: metrics, tracer: observability.Tracer()}
}

// Run simulates the zone. The input tasks are copied, never modified.
//
// The result always lists every task with its final state. When ctx is done
// before every task settled, the result is marked Partial and unsettled tasks
// keep the Pending or Deferred state. No worker stays assigned after Run returns.
func (r *Runner) Run(ctx context.Context, in ZoneInput) *ZoneSimResult {
	ctx, span := r.tracer.Start(ctx, "simulation.zone", trace.WithAttributes(
		attribute.Int64("zone.id", in.Zone.ID),
		attribute.Bool("zone.picker", in.Zone.IsPickerZone),
		attribute.Int("tasks", len(in.Tasks)),
	))
	defer span.End()
	began := time.Now()

	res := &ZoneSimResult{ZoneID: in.Zone.ID, IsPickerZone: in.Zone.IsPickerZone}
	res.Errors = append(res.Errors, in.Errors...)

	tasks := cloneTasks(in.Tasks)
	SortTasks(tasks)
	for _, t := range tasks {
		if t.Kind == KindMulti {
			res.MultiTasks = append(res.MultiTasks, t.Multi)
		} else {
			res.SingleTasks = append(res.SingleTasks, t.Single)
		}
	}
	if len(tasks) == 0 {
		return res
	}

	z := &zoneRun{
		cfg:     r.cfg,
		metrics: r.metrics,
		log:     logger.FromContext(ctx, r.logger).With("zone_id", in.Zone.ID),
		zoneID:  in.Zone.ID,
		pool:    pool.New(in.Workers, in.Rand),
		model:   duration.New(in.Rand, duration.WithScaling(duration.PowerScaling(r.cfg.ScalingExponent))),
		params:  in.Params,
		clock:   in.Start,
		res:     res,
	}
	z.pool.SetClock(z.clock)
	z.loop(ctx, tasks)
	z.drain()

	if res.Partial {
		span.SetStatus(codes.Error, "zone simulation aborted")
	}
	span.SetAttributes(
		attribute.Int("tasks.scheduled", res.Count(StateScheduled)),
		attribute.Int("tasks.failed", res.Count(StateFailed)),
	)
	r.metrics.ZoneFinished(ctx, in.Zone.ID, time.Since(began).Seconds(), res.Partial)
	z.log.Debug("zone simulated",
		"tasks", len(tasks),
		"scheduled", res.Count(StateScheduled),
		"failed", res.Count(StateFailed),
		"partial", res.Partial,
	)
	return res
}

// zoneRun is the mutable state of one Run call.
type zoneRun struct {
	cfg     RunnerConfig
	metrics *observability.SimMetrics
	log     *slog.Logger

	zoneID int64
	pool   *pool.Pool
	model  *duration.Model
	params duration.Params

	clock  time.Time
	events releaseQueue
	seq    int
	res    *ZoneSimResult
}

func (z *zoneRun) loop(ctx context.Context, pending []Task) {
	for iter := 0; len(pending) > 0; iter++ {
		if iter >= z.cfg.MaxIterations {
			for _, t := range pending {
				z.res.addError("zone %d: task %s: iteration limit of %d reached", z.zoneID, t.ID(), z.cfg.MaxIterations)
			}
			z.log.Warn("iteration limit reached", "unscheduled", len(pending))
			return
		}

		var next []Task
		for i, t := range pending {
			if err := ctx.Err(); err != nil {
				z.res.Partial = true
				z.res.addError("zone %d: simulation aborted with %d tasks unscheduled: %v", z.zoneID, len(next)+len(pending)-i, err)
				return
			}
			if z.attempt(ctx, t) == StateDeferred {
				next = append(next, t)
			}
		}

		pending = next
		if len(pending) == 0 {
			return
		}
		if !z.advance() {
			for _, t := range pending {
				t.setState(StateFailed)
				z.res.addError("zone %d: task %s: no worker release or shift start left", z.zoneID, t.ID())
				z.metrics.TaskFailed(ctx, z.zoneID, "Stalled")
			}
			return
		}
	}
}

// attempt tries to staff t once and returns its new state.
func (z *zoneRun) attempt(ctx context.Context, t Task) TaskState {
	t.setState(StateAllocating)

	var err error
	switch t.Kind {
	case KindMulti:
		err = z.scheduleMulti(t.Multi)
	case KindSingle:
		err = z.scheduleSingle(t.Single)
	}
	if err == nil {
		t.setState(StateScheduled)
		z.metrics.TaskScheduled(ctx, z.zoneID)
		return StateScheduled
	}

	var aerr *pool.AllocationError
	if !errors.As(err, &aerr) {
		t.setState(StateFailed)
		z.res.addError("zone %d: task %s: %v", z.zoneID, t.ID(), err)
		z.metrics.TaskFailed(ctx, z.zoneID, "Invalid")
		return StateFailed
	}

	kind := aerr.Kind.String()
	if !z.feasible(t) || t.deferrals() >= z.cfg.MaxDeferrals {
		t.setState(StateFailed)
		z.res.addError("zone %d: task %s: %s", z.zoneID, t.ID(), kind)
		z.metrics.TaskFailed(ctx, z.zoneID, kind)
		z.log.Warn("task failed", "task_id", t.ID(), "reason", kind, "deferrals", t.deferrals())
		return StateFailed
	}

	if t.deferrals() == 0 {
		z.res.addError("zone %d: task %s: %s (deferred)", z.zoneID, t.ID(), kind)
	}
	t.deferred()
	z.metrics.TaskDeferred(ctx, z.zoneID, kind)
	return StateDeferred
}

// feasible reports whether the zone's workers could ever staff t.
func (z *zoneRun) feasible(t Task) bool {
	if t.Kind == KindMulti {
		return z.pool.Feasible(t.Multi.Template.RequiredLicenses, t.Multi.Template.MinWorkers)
	}
	return z.pool.Feasible(nil, 1)
}

func (z *zoneRun) scheduleMulti(m *MultiWorkerTask) error {
	tmpl := m.Template
	workers, err := z.pool.AcquireMultiple(m.ID, tmpl.MinWorkers, tmpl.MaxWorkers, tmpl.RequiredLicenses)
	if err != nil {
		return err
	}

	ids := make([]int64, len(workers))
	effs := make([]float64, len(workers))
	for i, w := range workers {
		ids[i] = w.ID
		effs[i] = w.Efficiency
	}
	d := z.model.SampleMulti(tmpl.MinTime, tmpl.MaxTime, tmpl.MinWorkers, effs)

	start, end := z.clock, z.clock.Add(d)
	m.WorkerIDs = ids
	m.Start, m.End = &start, &end
	z.schedule(m.ID, end, ids)
	return nil
}

func (z *zoneRun) scheduleSingle(s *SingleWorkerTask) error {
	w, err := z.pool.AcquireSingle(s.ID, nil)
	if err != nil {
		return err
	}

	var f duration.Features
	if s.Features == nil {
		f = z.model.SampleFeatures(z.params)
	} else {
		f = z.model.Jitter(*s.Features)
	}
	d := duration.PredictSingle(f, z.params)

	start, end := z.clock, z.clock.Add(d)
	id := w.ID
	s.Features = &f
	s.WorkerID = &id
	s.Start, s.End = &start, &end
	z.schedule(s.ID, end, []int64{id})
	return nil
}

func (z *zoneRun) schedule(taskID string, at time.Time, workerIDs []int64) {
	z.seq++
	heap.Push(&z.events, release{at: at, seq: z.seq, taskID: taskID, workerIDs: workerIDs})
}

// advance moves the clock to the next release or shift start, whichever comes
// first, and frees every worker due by then. It returns false when neither is left.
func (z *zoneRun) advance() bool {
	shift, hasShift := z.pool.NextShiftStart()
	if z.events.Len() == 0 || (hasShift && shift.Before(z.events[0].at)) {
		if !hasShift {
			return false
		}
		z.setClock(shift)
		return true
	}

	ev := heap.Pop(&z.events).(release)
	if ev.at.After(z.clock) {
		z.setClock(ev.at)
	}
	z.release(ev)
	for z.events.Len() > 0 && !z.events[0].at.After(z.clock) {
		z.release(heap.Pop(&z.events).(release))
	}
	return true
}

func (z *zoneRun) setClock(t time.Time) {
	z.clock = t
	z.pool.SetClock(t)
}

// drain returns every still-assigned worker so the pool ends full.
func (z *zoneRun) drain() {
	for z.events.Len() > 0 {
		z.release(heap.Pop(&z.events).(release))
	}
}

func (z *zoneRun) release(ev release) {
	if err := z.pool.ReleaseAll(ev.workerIDs); err != nil {
		z.res.addError("zone %d: task %s: %v", z.zoneID, ev.taskID, err)
	}
}

func cloneTasks(in []Task) []Task {
	out := make([]Task, 0, len(in))
	for _, t := range in {
		switch t.Kind {
		case KindMulti:
			if t.Multi == nil {
				continue
			}
			c := *t.Multi
			c.WorkerIDs = slices.Clone(c.WorkerIDs)
			out = append(out, NewMultiTask(&c))
		case KindSingle:
			if t.Single == nil {
				continue
			}
			c := *t.Single
			if c.Features != nil {
				f := *c.Features
				c.Features = &f
			}
			out = append(out, NewSingleTask(&c))
		}
	}
	return out
}

// release is a pending return of workers to the pool at a simulated time.
type release struct {
	at        time.Time
	seq       int
	taskID    string
	workerIDs []int64
}

// releaseQueue is a min-heap of releases ordered by time, then insertion.
type releaseQueue []release

func (q releaseQueue) Len() int { return len(q) }

func (q releaseQueue) Less(i, j int) bool {
	if c := q[i].at.Compare(q[j].at); c != 0 {
		return c < 0
	}
	return q[i].seq < q[j].seq
}

func (q releaseQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *releaseQueue) Push(x any) { *q = append(*q, x.(release)) }

func (q *releaseQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
