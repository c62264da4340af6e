// Package synth generates synthetic pending tasks for test-data simulation runs.
package synth

import (
	"math/rand/v2"
	"time"

	"warehousesim/internal/duration"
	"warehousesim/internal/store"
)

// Config controls how many tasks are generated and how often they carry
// due dates or strict starts. Chances are percentages.
type Config struct {
	MinActiveTasks    int
	MaxActiveTasks    int
	MinPicks          int
	MaxPicks          int
	DueDateChance     int
	StrictStartChance int
	DueHours          []int
	DueMinutes        []int
}

// DefaultConfig mirrors a typical warehouse day.
func DefaultConfig() Config {
	return Config{
		MinActiveTasks:    10,
		MaxActiveTasks:    20,
		MinPicks:          20,
		MaxPicks:          40,
		DueDateChance:     10,
		StrictStartChance: 5,
		DueHours:          []int{8, 9, 10, 11, 12, 13, 14, 15, 16},
		DueMinutes:        []int{0, 15, 30, 45},
	}
}

// Generator draws every value from one random source, so a seeded source
// always yields the same day.
type Generator struct {
	rng   *rand.Rand
	cfg   Config
	model *duration.Model
}

// New creates a generator. Zero values in cfg take their defaults.
func New(rng *rand.Rand, cfg Config) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}
	def := DefaultConfig()
	if cfg.MaxActiveTasks <= 0 {
		cfg.MinActiveTasks, cfg.MaxActiveTasks = def.MinActiveTasks, def.MaxActiveTasks
	}
	if cfg.MaxPicks <= 0 {
		cfg.MinPicks, cfg.MaxPicks = def.MinPicks, def.MaxPicks
	}
	if len(cfg.DueHours) == 0 {
		cfg.DueHours = def.DueHours
	}
	if len(cfg.DueMinutes) == 0 {
		cfg.DueMinutes = def.DueMinutes
	}
	return &Generator{rng: rng, cfg: cfg, model: duration.New(rng)}
}

// ActiveTasks generates a day of active tasks drawn from templates.
// Tasks are numbered from 1 in generation order.
func (g *Generator) ActiveTasks(templates []store.TaskTemplate, date time.Time) []store.ActiveTask {
	if len(templates) == 0 {
		return nil
	}
	day := startOfDay(date)
	n := g.count(g.cfg.MinActiveTasks, g.cfg.MaxActiveTasks)

	tasks := make([]store.ActiveTask, 0, n)
	for i := range n {
		t := store.ActiveTask{
			ID:         int64(i + 1),
			TemplateID: templates[g.rng.IntN(len(templates))].ID,
			Date:       day,
		}
		switch {
		case g.chance(g.cfg.DueDateChance):
			due := g.dueTime(day)
			t.DueDate = &due
		case g.chance(g.cfg.StrictStartChance):
			due := g.dueTime(day)
			t.DueDate = &due
			t.StrictStart = true
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// PickerTasks generates a day of picks for a zone with features drawn uniformly
// from params. The runner jitters them when it schedules the pick.
func (g *Generator) PickerTasks(zoneID int64, params duration.Params, date time.Time) []store.PickerTask {
	day := startOfDay(date)
	n := g.count(g.cfg.MinPicks, g.cfg.MaxPicks)

	tasks := make([]store.PickerTask, 0, n)
	for i := range n {
		tasks = append(tasks, store.PickerTask{
			ID:       int64(i + 1),
			ZoneID:   zoneID,
			Date:     day,
			Features: g.model.SampleUniform(params),
		})
	}
	return tasks
}

// count returns a value in [lo, hi], or lo when the bounds are inverted.
func (g *Generator) count(lo, hi int) int {
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) chance(percent int) bool {
	return g.rng.IntN(100) < percent
}

func (g *Generator) dueTime(day time.Time) time.Time {
	h := g.cfg.DueHours[g.rng.IntN(len(g.cfg.DueHours))]
	m := g.cfg.DueMinutes[g.rng.IntN(len(g.cfg.DueMinutes))]
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
