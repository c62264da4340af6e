package simulation

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// ZoneSimResult holds every task of one zone with its final state, plus the
// messages recorded along the way.
type ZoneSimResult struct {
	ZoneID       int64
	IsPickerZone bool
	MultiTasks   []*MultiWorkerTask
	SingleTasks  []*SingleWorkerTask
	Errors       []string

	// Partial is set when the run was cut short by cancellation or timeout.
	Partial bool

	// Err is a zone-level failure, such as missing duration-model data.
	// Task-level failures only appear in Errors.
	Err error
}

func (z *ZoneSimResult) addError(format string, args ...any) {
	z.Errors = append(z.Errors, fmt.Sprintf(format, args...))
}

// span returns the start and end of a task for aggregation. ok is false for tasks
// that have not completed.
func span(state TaskState, start, end *time.Time, id string) (s, e time.Time, ok bool, err error) {
	switch {
	case start != nil && end != nil:
		if end.Before(*start) {
			return s, e, false, fmt.Errorf("%w: task %s ends before it starts", ErrMalformedDuration, id)
		}
		return *start, *end, true, nil
	case end != nil:
		return s, e, false, fmt.Errorf("%w: task %s has an end time but no start time", ErrMalformedDuration, id)
	case start != nil && state == StateScheduled:
		return s, e, false, fmt.Errorf("%w: task %s is scheduled without an end time", ErrMalformedDuration, id)
	default:
		// Not started, or still in progress.
		return s, e, false, nil
	}
}

func (z *ZoneSimResult) ends() ([]time.Time, error) {
	var out []time.Time
	for _, t := range z.MultiTasks {
		_, e, ok, err := span(t.State, t.Start, t.End, t.ID)
		if err != nil {
			return nil, fmt.Errorf("zone %d: %w", z.ZoneID, err)
		}
		if ok {
			out = append(out, e)
		}
	}
	for _, t := range z.SingleTasks {
		_, e, ok, err := span(t.State, t.Start, t.End, t.ID)
		if err != nil {
			return nil, fmt.Errorf("zone %d: %w", z.ZoneID, err)
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// LastEndTime returns the latest end time of a completed task. ok is false when
// nothing completed.
func (z *ZoneSimResult) LastEndTime() (last time.Time, ok bool, err error) {
	ends, err := z.ends()
	if err != nil {
		return time.Time{}, false, err
	}
	if len(ends) == 0 {
		return time.Time{}, false, nil
	}
	return slices.MaxFunc(ends, time.Time.Compare), true, nil
}

// CompletedBy counts the tasks that finished at or before t.
// Malformed tasks are not counted.
func (z *ZoneSimResult) CompletedBy(t time.Time) int {
	var n int
	for _, task := range z.MultiTasks {
		if task.State == StateScheduled && task.End != nil && !task.End.After(t) {
			n++
		}
	}
	for _, task := range z.SingleTasks {
		if task.State == StateScheduled && task.End != nil && !task.End.After(t) {
			n++
		}
	}
	return n
}

// Count returns how many tasks ended in state s.
func (z *ZoneSimResult) Count(s TaskState) int {
	var n int
	for _, t := range z.MultiTasks {
		if t.State == s {
			n++
		}
	}
	for _, t := range z.SingleTasks {
		if t.State == s {
			n++
		}
	}
	return n
}

// TaskCount is the number of tasks the zone had to simulate.
func (z *ZoneSimResult) TaskCount() int {
	return len(z.MultiTasks) + len(z.SingleTasks)
}

// SimulationResult aggregates the zones of one run.
type SimulationResult struct {
	RunID string
	Seed  uint64
	Start time.Time

	// LatestEndTime is nil when no task in any zone completed.
	LatestEndTime *time.Time
	Zones         map[int64]*ZoneSimResult
}

// ZoneIDs returns the zone ids in ascending order.
func (r *SimulationResult) ZoneIDs() []int64 {
	return slices.Sorted(maps.Keys(r.Zones))
}

// LatestEnd returns the latest end time across zones, or ErrNoCompletions.
func (r *SimulationResult) LatestEnd() (time.Time, error) {
	if r.LatestEndTime == nil {
		return time.Time{}, ErrNoCompletions
	}
	return *r.LatestEndTime, nil
}

// Err joins the zone-level errors in zone order. It is nil when every zone ran.
func (r *SimulationResult) Err() error {
	var errs []error
	for _, id := range r.ZoneIDs() {
		if err := r.Zones[id].Err; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Messages returns every recorded message in zone order.
func (r *SimulationResult) Messages() []string {
	var out []string
	for _, id := range r.ZoneIDs() {
		out = append(out, r.Zones[id].Errors...)
	}
	return out
}

// aggregate fills LatestEndTime from the zone results.
func (r *SimulationResult) aggregate() error {
	var latest *time.Time
	for _, id := range r.ZoneIDs() {
		last, ok, err := r.Zones[id].LastEndTime()
		if err != nil {
			return err
		}
		if ok && (latest == nil || last.After(*latest)) {
			latest = &last
		}
	}
	r.LatestEndTime = latest
	return nil
}
