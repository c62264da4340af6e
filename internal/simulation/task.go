// Package simulation runs the discrete-event task assignment engine.
//
// A Runner simulates one zone: it orders the zone's pending tasks, staffs them from
// the zone's own pool.Pool, samples durations and advances a simulated clock from one
// worker release to the next. The Orchestrator fans zones out in parallel, each with
// its own pool and random stream, and aggregates the per-zone results.
package simulation

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"time"

	"warehousesim/internal/duration"
	"warehousesim/internal/store"
)

// TaskKind tags which payload a Task carries.
type TaskKind int

const (
	KindMulti TaskKind = iota
	KindSingle
)

func (k TaskKind) String() string {
	switch k {
	case KindMulti:
		return "multi"
	case KindSingle:
		return "single"
	default:
		return fmt.Sprintf("TaskKind(%d)", int(k))
	}
}

// TaskState is the lifecycle position of a task instance within one run.
type TaskState int

const (
	StatePending TaskState = iota
	StateAllocating
	StateScheduled
	StateDeferred
	StateFailed
)

func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAllocating:
		return "allocating"
	case StateScheduled:
		return "scheduled"
	case StateDeferred:
		return "deferred"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("TaskState(%d)", int(s))
	}
}

// Terminal reports whether no further attempt will be made.
func (s TaskState) Terminal() bool {
	return s == StateScheduled || s == StateFailed
}

// MultiWorkerTask is an instance of a TaskTemplate staffed by min..max workers.
type MultiWorkerTask struct {
	ID          string
	Template    store.TaskTemplate
	DueDate     *time.Time
	StrictStart bool

	WorkerIDs []int64
	Start     *time.Time
	End       *time.Time
	State     TaskState
	Deferrals int
}

// SingleWorkerTask is a pick route staffed by exactly one worker.
// A nil Features is sampled from the zone's model ranges at run time.
type SingleWorkerTask struct {
	ID       string
	ZoneID   int64
	Features *duration.Features
	DueDate  *time.Time

	WorkerID  *int64
	Start     *time.Time
	End       *time.Time
	State     TaskState
	Deferrals int
}

// Task is the tagged union the runner dispatches on. Exactly one payload is set,
// matching Kind.
type Task struct {
	Kind   TaskKind
	Multi  *MultiWorkerTask
	Single *SingleWorkerTask
}

// NewMultiTask wraps t as a Task.
func NewMultiTask(t *MultiWorkerTask) Task {
	return Task{Kind: KindMulti, Multi: t}
}

// NewSingleTask wraps t as a Task.
func NewSingleTask(t *SingleWorkerTask) Task {
	return Task{Kind: KindSingle, Single: t}
}

func (t Task) ID() string {
	if t.Kind == KindMulti {
		return t.Multi.ID
	}
	return t.Single.ID
}

func (t Task) DueDate() *time.Time {
	if t.Kind == KindMulti {
		return t.Multi.DueDate
	}
	return t.Single.DueDate
}

func (t Task) StrictStart() bool {
	return t.Kind == KindMulti && t.Multi.StrictStart
}

func (t Task) State() TaskState {
	if t.Kind == KindMulti {
		return t.Multi.State
	}
	return t.Single.State
}

func (t Task) setState(s TaskState) {
	if t.Kind == KindMulti {
		t.Multi.State = s
		return
	}
	t.Single.State = s
}

func (t Task) deferrals() int {
	if t.Kind == KindMulti {
		return t.Multi.Deferrals
	}
	return t.Single.Deferrals
}

func (t Task) deferred() {
	if t.Kind == KindMulti {
		t.Multi.Deferrals++
		t.Multi.State = StateDeferred
		return
	}
	t.Single.Deferrals++
	t.Single.State = StateDeferred
}

// compareTasks orders by due date (missing due dates last), strict-start first,
// then task id ascending.
func compareTasks(a, b Task) int {
	da, db := a.DueDate(), b.DueDate()
	switch {
	case da != nil && db != nil:
		if c := da.Compare(*db); c != 0 {
			return c
		}
	case da != nil:
		return -1
	case db != nil:
		return 1
	}
	if sa, sb := a.StrictStart(), b.StrictStart(); sa != sb {
		if sa {
			return -1
		}
		return 1
	}
	return compareIDs(a.ID(), b.ID())
}

// compareIDs compares numerically when both ids are integers, lexically otherwise.
func compareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(na, nb)
	}
	return cmp.Compare(a, b)
}

// SortTasks orders tasks in the sequence the runner attempts them.
func SortTasks(tasks []Task) {
	slices.SortStableFunc(tasks, compareTasks)
}
