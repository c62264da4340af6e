package synth

import (
	"math/rand/v2"
	"testing"
	"time"

	"warehousesim/internal/duration"
	"warehousesim/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 3, 10, 13, 37, 0, 0, time.UTC)

func templates() []store.TaskTemplate {
	return []store.TaskTemplate{
		{ID: 10, MinWorkers: 1, MaxWorkers: 2, MinTime: 10 * time.Minute, MaxTime: 20 * time.Minute},
		{ID: 11, MinWorkers: 2, MaxWorkers: 4, MinTime: 30 * time.Minute, MaxTime: 60 * time.Minute},
	}
}

func TestActiveTasks(t *testing.T) {
	g := New(rand.New(rand.NewPCG(1, 2)), DefaultConfig())

	for range 50 {
		tasks := g.ActiveTasks(templates(), day)
		require.GreaterOrEqual(t, len(tasks), 10)
		require.LessOrEqual(t, len(tasks), 20)

		for i, task := range tasks {
			assert.Equal(t, int64(i+1), task.ID)
			assert.Contains(t, []int64{10, 11}, task.TemplateID)
			assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), task.Date)
			if task.StrictStart {
				require.NotNil(t, task.DueDate)
			}
			if task.DueDate != nil {
				h, m := task.DueDate.Hour(), task.DueDate.Minute()
				assert.True(t, h >= 8 && h <= 16, "due hour %d", h)
				assert.Contains(t, []int{0, 15, 30, 45}, m)
			}
		}
	}
}

func TestActiveTasks_AlwaysDue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DueDateChance = 100
	g := New(rand.New(rand.NewPCG(1, 2)), cfg)

	for _, task := range g.ActiveTasks(templates(), day) {
		assert.NotNil(t, task.DueDate)
		assert.False(t, task.StrictStart)
	}
}

func TestActiveTasks_NoTemplates(t *testing.T) {
	g := New(nil, Config{})
	assert.Empty(t, g.ActiveTasks(nil, day))
}

func TestPickerTasks_Reproducible(t *testing.T) {
	params := duration.Params{}
	for i := range params.Ranges {
		params.Ranges[i] = duration.Range{Min: 1, Max: 10}
	}

	a := New(rand.New(rand.NewPCG(9, 9)), Config{}).PickerTasks(3, params, day)
	b := New(rand.New(rand.NewPCG(9, 9)), Config{}).PickerTasks(3, params, day)

	require.Equal(t, a, b)
	require.GreaterOrEqual(t, len(a), 20)
	require.LessOrEqual(t, len(a), 40)
	for _, p := range a {
		assert.Equal(t, int64(3), p.ZoneID)
		for i, v := range p.Features.Vector() {
			assert.GreaterOrEqual(t, v, 1.0, "feature %d is drawn without jitter", i)
			assert.LessOrEqual(t, v, 10.0, "feature %d is drawn without jitter", i)
		}
	}
}

func TestCount(t *testing.T) {
	g := New(rand.New(rand.NewPCG(1, 1)), Config{})
	assert.Equal(t, 5, g.count(5, 5))
	assert.Equal(t, 5, g.count(5, 2))
	for range 100 {
		n := g.count(1, 3)
		assert.True(t, n >= 1 && n <= 3)
	}
}
