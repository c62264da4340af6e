package simulation

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"warehousesim/internal/duration"
	"warehousesim/internal/pool"
	"warehousesim/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dayStart = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func testParams() duration.Params {
	return duration.Params{
		Weights: [duration.NumFeatures]float64{0.5, 4, 6, 0.2, 0.3, 10},
		Ranges: [duration.NumFeatures]duration.Range{
			{Min: 50, Max: 200}, {Min: 1, Max: 5}, {Min: 1, Max: 8},
			{Min: 1, Max: 30}, {Min: 1, Max: 20}, {Min: 0.5, Max: 2},
		},
	}
}

func picks(ids ...string) []Task {
	tasks := make([]Task, 0, len(ids))
	for _, id := range ids {
		f := duration.Features{Distance: 100, PackAmount: 2, Lines: 3, Weight: 10, Volume: 5, AvgHeight: 1}
		tasks = append(tasks, NewSingleTask(&SingleWorkerTask{ID: id, ZoneID: 1, Features: &f}))
	}
	return tasks
}

func multi(id string, tmpl store.TaskTemplate) Task {
	return NewMultiTask(&MultiWorkerTask{ID: id, Template: tmpl})
}

func workers(n int, licenses ...string) []pool.Worker {
	out := make([]pool.Worker, n)
	for i := range out {
		out[i] = pool.Worker{ID: int64(i + 1), Licenses: licenses, Efficiency: 1}
	}
	return out
}

func pickerInput(tasks []Task, ws []pool.Worker, seed uint64) ZoneInput {
	return ZoneInput{
		Zone:    store.Zone{ID: 1, Name: "Dry", IsPickerZone: true},
		Workers: ws,
		Tasks:   tasks,
		Params:  testParams(),
		Start:   dayStart,
		Rand:    rand.New(rand.NewPCG(seed, seed)),
	}
}

func newTestRunner(cfg RunnerConfig) *Runner {
	return NewRunner(cfg, nil, nil)
}

func countContaining(msgs []string, sub string) int {
	var n int
	for _, m := range msgs {
		if strings.Contains(m, sub) {
			n++
		}
	}
	return n
}

func TestRun_SingleWorkerServesTasksBackToBack(t *testing.T) {
	res := newTestRunner(RunnerConfig{}).Run(context.Background(), pickerInput(picks("1", "2", "3"), workers(1), 7))

	require.Len(t, res.SingleTasks, 3)
	assert.False(t, res.Partial)
	assert.NoError(t, res.Err)

	prevEnd := dayStart
	for _, task := range res.SingleTasks {
		require.Equal(t, StateScheduled, task.State, "task %s", task.ID)
		require.NotNil(t, task.Start)
		require.NotNil(t, task.End)
		require.NotNil(t, task.WorkerID)
		assert.Equal(t, int64(1), *task.WorkerID)
		assert.Equal(t, prevEnd, *task.Start, "task %s starts when the worker is released", task.ID)
		assert.True(t, task.End.After(*task.Start))
		prevEnd = *task.End
	}

	assert.Equal(t, 0, res.SingleTasks[0].Deferrals)
	assert.Equal(t, 1, res.SingleTasks[1].Deferrals)
	assert.Equal(t, 2, res.SingleTasks[2].Deferrals)
	assert.Equal(t, 2, countContaining(res.Errors, "NoWorkerAvailable (deferred)"), "one deferral message per task")
	assert.Equal(t, 1, countContaining(res.Errors, "zone 1: task 2: NoWorkerAvailable"))

	last, ok, err := res.LastEndTime()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, prevEnd, last)
}

func TestRun_InputTasksAreNotModified(t *testing.T) {
	in := pickerInput(picks("1"), workers(1), 1)
	before := *in.Tasks[0].Single.Features

	res := newTestRunner(RunnerConfig{}).Run(context.Background(), in)

	require.Equal(t, StateScheduled, res.SingleTasks[0].State)
	assert.Nil(t, in.Tasks[0].Single.Start)
	assert.Equal(t, StatePending, in.Tasks[0].Single.State)
	assert.Equal(t, before, *in.Tasks[0].Single.Features)
}

func TestRun_SampledFeaturesWhenNoneGiven(t *testing.T) {
	in := pickerInput([]Task{NewSingleTask(&SingleWorkerTask{ID: "9", ZoneID: 1})}, workers(1), 3)

	res := newTestRunner(RunnerConfig{}).Run(context.Background(), in)

	task := res.SingleTasks[0]
	require.Equal(t, StateScheduled, task.State)
	require.NotNil(t, task.Features)
	assert.GreaterOrEqual(t, task.Features.Distance, 50*0.95-0.01)
	assert.LessOrEqual(t, task.Features.Distance, 200*1.05+0.01)
}

func TestRun_Reproducible(t *testing.T) {
	r := newTestRunner(RunnerConfig{})
	a := r.Run(context.Background(), pickerInput(picks("1", "2", "3", "4"), workers(2), 11))
	b := r.Run(context.Background(), pickerInput(picks("1", "2", "3", "4"), workers(2), 11))

	require.Equal(t, len(a.SingleTasks), len(b.SingleTasks))
	for i := range a.SingleTasks {
		assert.Equal(t, *a.SingleTasks[i].End, *b.SingleTasks[i].End)
		assert.Equal(t, *a.SingleTasks[i].WorkerID, *b.SingleTasks[i].WorkerID)
	}
}

func TestRun_EmptyZone(t *testing.T) {
	res := newTestRunner(RunnerConfig{}).Run(context.Background(), pickerInput(nil, workers(3), 1))

	assert.Empty(t, res.SingleTasks)
	assert.Empty(t, res.MultiTasks)
	assert.Empty(t, res.Errors)
	_, ok, err := res.LastEndTime()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_MultiWorkerTasksRunInParallel(t *testing.T) {
	tmpl := store.TaskTemplate{ID: 10, MinWorkers: 1, MaxWorkers: 1, MinTime: 20 * time.Minute, MaxTime: 40 * time.Minute}
	in := ZoneInput{
		Zone:    store.Zone{ID: 2},
		Workers: workers(2),
		Tasks:   []Task{multi("1", tmpl), multi("2", tmpl)},
		Start:   dayStart,
		Rand:    rand.New(rand.NewPCG(1, 1)),
	}

	res := newTestRunner(RunnerConfig{}).Run(context.Background(), in)

	require.Len(t, res.MultiTasks, 2)
	assert.Empty(t, res.Errors)
	seen := map[int64]bool{}
	for _, task := range res.MultiTasks {
		require.Equal(t, StateScheduled, task.State)
		assert.Equal(t, dayStart, *task.Start)
		d := task.End.Sub(*task.Start)
		assert.GreaterOrEqual(t, d, 20*time.Minute)
		assert.LessOrEqual(t, d, 40*time.Minute)
		require.Len(t, task.WorkerIDs, 1)
		assert.False(t, seen[task.WorkerIDs[0]], "worker assigned twice")
		seen[task.WorkerIDs[0]] = true
	}
}

func TestRun_StructurallyInfeasibleTasksFail(t *testing.T) {
	tests := []struct {
		name string
		tmpl store.TaskTemplate
		kind string
	}{
		{
			name: "missing license",
			tmpl: store.TaskTemplate{ID: 1, MinWorkers: 1, MaxWorkers: 1, MinTime: time.Minute, MaxTime: time.Minute, RequiredLicenses: []string{"forklift"}},
			kind: "NoLicensedWorker",
		},
		{
			name: "min above pool size",
			tmpl: store.TaskTemplate{ID: 2, MinWorkers: 4, MaxWorkers: 6, MinTime: time.Minute, MaxTime: time.Minute},
			kind: "InsufficientMinimumWorkers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ZoneInput{
				Zone:    store.Zone{ID: 2},
				Workers: workers(3),
				Tasks:   []Task{multi("7", tt.tmpl)},
				Start:   dayStart,
				Rand:    rand.New(rand.NewPCG(1, 1)),
			}

			res := newTestRunner(RunnerConfig{}).Run(context.Background(), in)

			require.Len(t, res.MultiTasks, 1)
			task := res.MultiTasks[0]
			assert.Equal(t, StateFailed, task.State)
			assert.Nil(t, task.Start)
			assert.Empty(t, task.WorkerIDs)
			assert.Equal(t, []string{"zone 2: task 7: " + tt.kind}, res.Errors)
		})
	}
}

func TestRun_LicensedTaskWaitsForLicensedWorker(t *testing.T) {
	tmpl := store.TaskTemplate{ID: 1, MinWorkers: 1, MaxWorkers: 1, MinTime: 10 * time.Minute, MaxTime: 10 * time.Minute, RequiredLicenses: []string{"forklift"}}
	ws := []pool.Worker{
		{ID: 1, Licenses: []string{"forklift"}, Efficiency: 1},
		{ID: 2, Efficiency: 1},
	}
	in := ZoneInput{
		Zone:    store.Zone{ID: 2},
		Workers: ws,
		Tasks:   []Task{multi("1", tmpl), multi("2", tmpl)},
		Start:   dayStart,
		Rand:    rand.New(rand.NewPCG(1, 1)),
	}

	res := newTestRunner(RunnerConfig{}).Run(context.Background(), in)

	require.Len(t, res.MultiTasks, 2)
	first, second := res.MultiTasks[0], res.MultiTasks[1]
	require.Equal(t, StateScheduled, first.State)
	require.Equal(t, StateScheduled, second.State)
	assert.Equal(t, []int64{1}, first.WorkerIDs)
	assert.Equal(t, []int64{1}, second.WorkerIDs)
	assert.Equal(t, *first.End, *second.Start)
	assert.Equal(t, []string{"zone 2: task 2: NoLicensedWorker (deferred)"}, res.Errors)
}

func TestRun_DeferralMessagesGrowLinearly(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	res := newTestRunner(RunnerConfig{}).Run(context.Background(), pickerInput(picks(ids...), workers(1), 7))

	require.Equal(t, len(ids), res.Count(StateScheduled))
	assert.Equal(t, len(ids)-1, res.SingleTasks[len(ids)-1].Deferrals)
	assert.Len(t, res.Errors, len(ids)-1)
	for _, id := range ids[1:] {
		assert.Equal(t, 1, countContaining(res.Errors, "task "+id+": NoWorkerAvailable (deferred)"), "task %s", id)
	}
}

func TestRun_DeferralLimit(t *testing.T) {
	res := newTestRunner(RunnerConfig{MaxDeferrals: 1}).Run(context.Background(), pickerInput(picks("1", "2", "3"), workers(1), 7))

	states := []TaskState{res.SingleTasks[0].State, res.SingleTasks[1].State, res.SingleTasks[2].State}
	assert.Equal(t, []TaskState{StateScheduled, StateScheduled, StateFailed}, states)
	assert.Contains(t, res.Errors, "zone 1: task 3: NoWorkerAvailable")
}

func TestRun_IterationLimit(t *testing.T) {
	res := newTestRunner(RunnerConfig{MaxIterations: 1}).Run(context.Background(), pickerInput(picks("1", "2", "3"), workers(1), 7))

	assert.Equal(t, StateScheduled, res.SingleTasks[0].State)
	assert.Equal(t, StateDeferred, res.SingleTasks[1].State)
	assert.Equal(t, StateDeferred, res.SingleTasks[2].State)
	assert.Equal(t, 2, countContaining(res.Errors, "iteration limit of 1 reached"))
}

func TestRun_CancelledContextYieldsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestRunner(RunnerConfig{}).Run(ctx, pickerInput(picks("1", "2"), workers(1), 7))

	assert.True(t, res.Partial)
	require.Len(t, res.SingleTasks, 2)
	for _, task := range res.SingleTasks {
		assert.Equal(t, StatePending, task.State)
		assert.NotEqual(t, StateAllocating, task.State)
	}
	assert.Equal(t, 1, countContaining(res.Errors, "simulation aborted with 2 tasks unscheduled"))
}

func TestRun_NoWorkers(t *testing.T) {
	res := newTestRunner(RunnerConfig{}).Run(context.Background(), pickerInput(picks("1"), nil, 7))

	assert.Equal(t, StateFailed, res.SingleTasks[0].State)
	assert.Equal(t, []string{"zone 1: task 1: NoWorkerAvailable"}, res.Errors)
}

func TestRun_InputErrorsAreKept(t *testing.T) {
	in := pickerInput(nil, workers(1), 1)
	in.Errors = []string{"zone 1: task 5: unknown template 99"}

	res := newTestRunner(RunnerConfig{}).Run(context.Background(), in)

	assert.Equal(t, in.Errors, res.Errors)
}

func TestSortTasks(t *testing.T) {
	at := func(h int) *time.Time {
		v := time.Date(2025, 3, 10, h, 0, 0, 0, time.UTC)
		return &v
	}
	tmpl := store.TaskTemplate{MinWorkers: 1, MaxWorkers: 1}
	tasks := []Task{
		NewMultiTask(&MultiWorkerTask{ID: "10", Template: tmpl}),
		NewMultiTask(&MultiWorkerTask{ID: "2", Template: tmpl}),
		NewMultiTask(&MultiWorkerTask{ID: "5", Template: tmpl, DueDate: at(12)}),
		NewMultiTask(&MultiWorkerTask{ID: "4", Template: tmpl, DueDate: at(9)}),
		NewMultiTask(&MultiWorkerTask{ID: "3", Template: tmpl, DueDate: at(9), StrictStart: true}),
		NewMultiTask(&MultiWorkerTask{ID: "1", Template: tmpl, DueDate: at(9)}),
	}

	SortTasks(tasks)

	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID())
	}
	assert.Equal(t, []string{"3", "1", "4", "5", "2", "10"}, ids)
}

func TestCompareIDs(t *testing.T) {
	assert.Negative(t, compareIDs("2", "10"))
	assert.Positive(t, compareIDs("b", "a"))
	assert.Zero(t, compareIDs("7", "7"))
}

func TestTaskStateStrings(t *testing.T) {
	assert.Equal(t, "scheduled", StateScheduled.String())
	assert.Equal(t, "single", KindSingle.String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateDeferred.Terminal())
}

func TestRun_WaitsForShiftStart(t *testing.T) {
	shiftStart := dayStart.Add(2 * time.Hour)
	ws := []pool.Worker{{ID: 1, Efficiency: 1, Shifts: []pool.Shift{{Start: shiftStart, End: shiftStart.Add(8 * time.Hour)}}}}

	res := newTestRunner(RunnerConfig{}).Run(context.Background(), pickerInput(picks("1", "2"), ws, 7))

	require.Equal(t, 2, res.Count(StateScheduled))
	first, second := res.SingleTasks[0], res.SingleTasks[1]
	assert.Equal(t, shiftStart, *first.Start, "nobody works before the shift")
	assert.Equal(t, *first.End, *second.Start)
	assert.Equal(t, 1, countContaining(res.Errors, "task 1: NoWorkerOnShift (deferred)"))
}

func TestRun_FailsOnceNoShiftRemains(t *testing.T) {
	ended := dayStart.Add(-2 * time.Hour)
	ws := []pool.Worker{{ID: 1, Efficiency: 1, Shifts: []pool.Shift{{Start: ended, End: ended.Add(time.Hour)}}}}

	res := newTestRunner(RunnerConfig{}).Run(context.Background(), pickerInput(picks("1"), ws, 7))

	assert.Equal(t, StateFailed, res.SingleTasks[0].State)
	assert.Nil(t, res.SingleTasks[0].Start)
	assert.Equal(t, []string{"zone 1: task 1: NoWorkerOnShift"}, res.Errors)
}

func TestRun_OffShiftWorkerIsSkipped(t *testing.T) {
	tmpl := store.TaskTemplate{ID: 1, MinWorkers: 1, MaxWorkers: 2, MinTime: 10 * time.Minute, MaxTime: 10 * time.Minute}
	late := dayStart.Add(4 * time.Hour)
	ws := []pool.Worker{
		{ID: 1, Efficiency: 1, Shifts: []pool.Shift{{Start: late, End: late.Add(8 * time.Hour)}}},
		{ID: 2, Efficiency: 1},
	}
	in := ZoneInput{
		Zone:    store.Zone{ID: 2},
		Workers: ws,
		Tasks:   []Task{multi("1", tmpl)},
		Start:   dayStart,
		Rand:    rand.New(rand.NewPCG(1, 1)),
	}

	res := newTestRunner(RunnerConfig{}).Run(context.Background(), in)

	task := res.MultiTasks[0]
	require.Equal(t, StateScheduled, task.State)
	assert.Equal(t, []int64{2}, task.WorkerIDs)
	assert.Equal(t, dayStart, *task.Start)
	assert.Empty(t, res.Errors)
}
