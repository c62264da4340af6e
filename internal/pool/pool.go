// Package pool brokers the workers of a single zone between the tasks of a simulation run.
//
// A Pool owns a set of idle workers and a counting semaphore with one permit per idle
// worker. Every decision (reserve permits, choose workers, commit or roll back) happens
// inside one critical section, so two allocation attempts can never both observe the
// same spare capacity. Acquisition never waits: it either succeeds immediately or
// returns an *AllocationError and leaves the pool untouched.
//
// Workers with shifts are only handed out while the pool's clock, set with
// SetClock, falls inside one of them.
package pool

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Shift is a working window [Start, End).
type Shift struct {
	Start time.Time
	End   time.Time
}

// Worker is a pool member. Licenses are opaque capability tags.
// A worker without shifts is always on shift.
// CurrentTaskID is set while the worker is assigned out of the pool.
type Worker struct {
	ID            int64
	Name          string
	Licenses      []string
	Efficiency    float64
	Shifts        []Shift
	CurrentTaskID string
}

// OnShift reports whether the worker works at t.
func (w Worker) OnShift(t time.Time) bool {
	if len(w.Shifts) == 0 {
		return true
	}
	for _, s := range w.Shifts {
		if !t.Before(s.Start) && t.Before(s.End) {
			return true
		}
	}
	return false
}

// worksAfter reports whether the worker has shift time left at or after t.
func (w Worker) worksAfter(t time.Time) bool {
	if len(w.Shifts) == 0 {
		return true
	}
	for _, s := range w.Shifts {
		if s.End.After(t) {
			return true
		}
	}
	return false
}

// HasLicenses reports whether the worker holds every required license.
func (w Worker) HasLicenses(required []string) bool {
	for _, l := range required {
		if !slices.Contains(w.Licenses, l) {
			return false
		}
	}
	return true
}

func (w *Worker) clone() Worker {
	c := *w
	c.Licenses = slices.Clone(w.Licenses)
	c.Shifts = slices.Clone(w.Shifts)
	return c
}

// Pool is the resource broker for one zone.
type Pool struct {
	mu       sync.Mutex
	sem      *semaphore.Weighted
	size     int
	permits  int
	idle     []*Worker
	assigned map[int64]*Worker
	rng      *rand.Rand
	now      time.Time
}

// New creates a pool owning copies of the given workers.
// Duplicate worker IDs are ignored after the first occurrence.
// rng drives the shuffle in AcquireMultiple; a nil rng gets a fixed-seed source.
func New(workers []Worker, rng *rand.Rand) *Pool {
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}

	seen := make(map[int64]struct{}, len(workers))
	idle := make([]*Worker, 0, len(workers))
	for i := range workers {
		if _, dup := seen[workers[i].ID]; dup {
			continue
		}
		seen[workers[i].ID] = struct{}{}
		w := workers[i].clone()
		w.CurrentTaskID = ""
		idle = append(idle, &w)
	}

	return &Pool{
		sem:      semaphore.NewWeighted(int64(len(idle))),
		size:     len(idle),
		permits:  len(idle),
		idle:     idle,
		assigned: make(map[int64]*Worker, len(idle)),
		rng:      rng,
	}
}

// SetClock moves the time shifts are checked against.
func (p *Pool) SetClock(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = t
}

// AcquireSingle hands out one idle worker holding the required licenses:
// the first idle worker in pool order, or the first license holder on shift.
func (p *Pool) AcquireSingle(taskID string, licenses []string) (Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reserve(1) == 0 {
		return Worker{}, &AllocationError{Kind: NoWorkerAvailable, TaskID: taskID, Required: 1, Licenses: licenses}
	}

	offShift := false
	for i, w := range p.idle {
		if !w.HasLicenses(licenses) {
			continue
		}
		if !w.OnShift(p.now) {
			offShift = true
			continue
		}
		p.commit(i, taskID)
		return w.clone(), nil
	}

	p.unreserve(1)
	kind := NoLicensedWorker
	if offShift {
		kind = NoWorkerOnShift
	}
	return Worker{}, &AllocationError{Kind: kind, TaskID: taskID, Required: 1, Licenses: licenses}
}

// AcquireMultiple staffs a task needing between min and max workers.
//
// It reserves up to max permits with non-blocking tries. Fewer than min reserved
// permits rolls everything back. Workers are then picked from a shuffled snapshot
// of the idle set, keeping only those on shift and holding all licenses. Picking stops when the
// reserved capacity is used or as soon as more than min workers were gathered;
// running out of candidates with at least min gathered still commits.
// Reserved permits that were not consumed are returned before the call ends.
func (p *Pool) AcquireMultiple(taskID string, min, max int, licenses []string) ([]Worker, error) {
	if min < 1 || max < min {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrInvalidHeadcount, min, max)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if min > p.size {
		return nil, &AllocationError{Kind: InsufficientMinimumWorkers, TaskID: taskID, Required: min, Licenses: licenses}
	}

	got := p.reserve(max)
	if got < min {
		p.unreserve(got)
		return nil, &AllocationError{Kind: InsufficientMinimumWorkers, TaskID: taskID, Required: min, Acquired: got, Licenses: licenses}
	}

	candidates := slices.Clone(p.idle)
	p.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	selected := make([]*Worker, 0, got)
	offShift := 0
	for _, w := range candidates {
		if !w.HasLicenses(licenses) {
			continue
		}
		if !w.OnShift(p.now) {
			offShift++
			continue
		}
		selected = append(selected, w)
		if len(selected) == got || len(selected) > min {
			break
		}
	}

	if len(selected) < min {
		p.unreserve(got)
		kind := NoLicensedWorker
		if len(selected)+offShift >= min {
			kind = NoWorkerOnShift
		}
		return nil, &AllocationError{Kind: kind, TaskID: taskID, Required: min, Acquired: len(selected), Licenses: licenses}
	}

	p.unreserve(got - len(selected))

	out := make([]Worker, 0, len(selected))
	for _, w := range selected {
		p.commit(slices.Index(p.idle, w), taskID)
		out = append(out, w.clone())
	}
	return out, nil
}

// Release returns one worker to the pool.
func (p *Pool) Release(id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.assigned[id]; !ok {
		return fmt.Errorf("%w: worker %d", ErrNotAcquired, id)
	}
	p.giveBack(id)
	return nil
}

// ReleaseAll returns several workers at once. Either all of them are
// released or, if any id was not handed out by this pool, none is.
func (p *Pool) ReleaseAll(ids []int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := p.assigned[id]; !ok {
			return fmt.Errorf("%w: worker %d", ErrNotAcquired, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: worker %d listed twice", ErrNotAcquired, id)
		}
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		p.giveBack(id)
	}
	return nil
}

// Feasible reports whether the pool could still staff a task needing min
// workers with the given licenses, counting idle and assigned members whose
// shifts have not all ended by the pool's clock.
func (p *Pool) Feasible(licenses []string, min int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if min > p.size {
		return false
	}
	n := 0
	for _, w := range p.idle {
		if w.HasLicenses(licenses) && w.worksAfter(p.now) {
			n++
		}
	}
	for _, w := range p.assigned {
		if w.HasLicenses(licenses) && w.worksAfter(p.now) {
			n++
		}
	}
	return n >= min
}

// NextShiftStart returns the earliest shift start of any member after the
// pool's clock.
func (p *Pool) NextShiftStart() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var next time.Time
	found := false
	visit := func(w *Worker) {
		for _, s := range w.Shifts {
			if s.Start.After(p.now) && (!found || s.Start.Before(next)) {
				next, found = s.Start, true
			}
		}
	}
	for _, w := range p.idle {
		visit(w)
	}
	for _, w := range p.assigned {
		visit(w)
	}
	return next, found
}

// AvailablePermits is for observability only; never base an allocation on it.
func (p *Pool) AvailablePermits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permits
}

// AssignedCount returns how many workers are currently out of the pool.
func (p *Pool) AssignedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.assigned)
}

// AssignedIDs returns the ids of the workers currently out of the pool, sorted.
func (p *Pool) AssignedIDs() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]int64, 0, len(p.assigned))
	for id := range p.assigned {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CurrentTask returns the task a worker is assigned to, if any.
func (p *Pool) CurrentTask(id int64) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.assigned[id]
	if !ok {
		return "", false
	}
	return w.CurrentTaskID, true
}

// Size is the number of workers the pool was created with.
func (p *Pool) Size() int {
	return p.size
}

// reserve takes up to n permits. Callers hold p.mu, so a failed try means
// the semaphore is exhausted and there is no point trying again.
func (p *Pool) reserve(n int) int {
	got := 0
	for got < n && p.sem.TryAcquire(1) {
		got++
	}
	p.permits -= got
	return got
}

func (p *Pool) unreserve(n int) {
	if n <= 0 {
		return
	}
	p.sem.Release(int64(n))
	p.permits += n
}

func (p *Pool) commit(idx int, taskID string) {
	w := p.idle[idx]
	p.idle = slices.Delete(p.idle, idx, idx+1)
	w.CurrentTaskID = taskID
	p.assigned[w.ID] = w
}

func (p *Pool) giveBack(id int64) {
	w := p.assigned[id]
	delete(p.assigned, id)
	w.CurrentTaskID = ""
	p.idle = append(p.idle, w)
	p.unreserve(1)
}
