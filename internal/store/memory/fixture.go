package memory

import (
	"fmt"
	"os"
	"time"

	"warehousesim/internal/duration"
	"warehousesim/internal/store"

	"gopkg.in/yaml.v3"
)

// Fixture is the YAML document a memory store is loaded from.
type Fixture struct {
	Zones          []fixtureZone     `yaml:"zones"`
	Workers        []fixtureWorker   `yaml:"workers"`
	Shifts         []fixtureShift    `yaml:"shifts"`
	Templates      []fixtureTemplate `yaml:"templates"`
	ActiveTasks    []fixtureActive   `yaml:"active_tasks"`
	PickerTasks    []fixturePick     `yaml:"picker_tasks"`
	Models         []fixtureModel    `yaml:"models"`
	CompletedPicks []fixtureHistory  `yaml:"completed_picks"`
}

type fixtureZone struct {
	ID     int64  `yaml:"id"`
	Name   string `yaml:"name"`
	Picker bool   `yaml:"picker"`
}

type fixtureWorker struct {
	ID         int64    `yaml:"id"`
	Name       string   `yaml:"name"`
	ZoneID     int64    `yaml:"zone_id"`
	Licenses   []string `yaml:"licenses"`
	Efficiency float64  `yaml:"efficiency"`
	Available  *bool    `yaml:"available"`
}

type fixtureShift struct {
	WorkerID int64     `yaml:"worker_id"`
	Start    time.Time `yaml:"start"`
	End      time.Time `yaml:"end"`
}

type fixtureTemplate struct {
	ID         int64         `yaml:"id"`
	Name       string        `yaml:"name"`
	ZoneID     int64         `yaml:"zone_id"`
	MinWorkers int           `yaml:"min_workers"`
	MaxWorkers int           `yaml:"max_workers"`
	MinTime    time.Duration `yaml:"min_time"`
	MaxTime    time.Duration `yaml:"max_time"`
	Licenses   []string      `yaml:"licenses"`
}

type fixtureActive struct {
	ID          int64      `yaml:"id"`
	TemplateID  int64      `yaml:"template_id"`
	Date        time.Time  `yaml:"date"`
	DueDate     *time.Time `yaml:"due_date"`
	StrictStart bool       `yaml:"strict_start"`
	EndTime     *time.Time `yaml:"end_time"`
}

type fixturePick struct {
	ID       int64             `yaml:"id"`
	ZoneID   int64             `yaml:"zone_id"`
	Date     time.Time         `yaml:"date"`
	DueDate  *time.Time        `yaml:"due_date"`
	Features duration.Features `yaml:"features"`
	EndTime  *time.Time        `yaml:"end_time"`
}

type fixtureModel struct {
	Category string          `yaml:"category"`
	Params   duration.Params `yaml:"params"`
	Samples  int             `yaml:"samples"`
}

type fixtureHistory struct {
	ZoneID   int64             `yaml:"zone_id"`
	Features duration.Features `yaml:"features"`
	Duration time.Duration     `yaml:"duration"`
}

// LoadFixture reads a YAML fixture file into a new store.
func LoadFixture(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return Parse(data)
}

// Parse builds a store from YAML fixture bytes.
func Parse(data []byte) (*Store, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return FromFixture(f)
}

// FromFixture validates f and builds a store from it.
func FromFixture(f Fixture) (*Store, error) {
	s := New()

	for _, z := range f.Zones {
		if z.ID == 0 {
			return nil, fmt.Errorf("fixture: zone %q has no id", z.Name)
		}
		if _, dup := s.zones[z.ID]; dup {
			return nil, fmt.Errorf("fixture: duplicate zone %d", z.ID)
		}
		s.zones[z.ID] = store.Zone{ID: z.ID, Name: z.Name, IsPickerZone: z.Picker}
	}

	for _, w := range f.Workers {
		if _, ok := s.zones[w.ZoneID]; !ok {
			return nil, fmt.Errorf("fixture: worker %d references unknown zone %d", w.ID, w.ZoneID)
		}
		available := true
		if w.Available != nil {
			available = *w.Available
		}
		s.workers = append(s.workers, store.Worker{
			ID:         w.ID,
			Name:       w.Name,
			ZoneID:     w.ZoneID,
			Licenses:   w.Licenses,
			Efficiency: w.Efficiency,
			Available:  available,
		})
	}

	workerZones := make(map[int64]int64, len(s.workers))
	for _, w := range s.workers {
		workerZones[w.ID] = w.ZoneID
	}
	for _, sh := range f.Shifts {
		if _, ok := workerZones[sh.WorkerID]; !ok {
			return nil, fmt.Errorf("fixture: shift references unknown worker %d", sh.WorkerID)
		}
		if !sh.End.After(sh.Start) {
			return nil, fmt.Errorf("fixture: shift of worker %d ends at or before its start", sh.WorkerID)
		}
		s.shifts = append(s.shifts, store.Shift{WorkerID: sh.WorkerID, Start: sh.Start, End: sh.End})
	}

	for _, t := range f.Templates {
		tmpl := store.TaskTemplate{
			ID:               t.ID,
			Name:             t.Name,
			ZoneID:           t.ZoneID,
			MinWorkers:       t.MinWorkers,
			MaxWorkers:       t.MaxWorkers,
			MinTime:          t.MinTime,
			MaxTime:          t.MaxTime,
			RequiredLicenses: t.Licenses,
		}
		if err := tmpl.Validate(); err != nil {
			return nil, fmt.Errorf("fixture: %w", err)
		}
		s.templates[t.ID] = tmpl
	}

	for _, a := range f.ActiveTasks {
		if _, ok := s.templates[a.TemplateID]; !ok {
			return nil, fmt.Errorf("fixture: active task %d references unknown template %d", a.ID, a.TemplateID)
		}
		s.active = append(s.active, store.ActiveTask{
			ID:          a.ID,
			TemplateID:  a.TemplateID,
			Date:        a.Date,
			DueDate:     a.DueDate,
			StrictStart: a.StrictStart,
			EndTime:     a.EndTime,
		})
	}

	for _, p := range f.PickerTasks {
		s.picks = append(s.picks, store.PickerTask{
			ID:       p.ID,
			ZoneID:   p.ZoneID,
			Date:     p.Date,
			DueDate:  p.DueDate,
			Features: p.Features,
			EndTime:  p.EndTime,
		})
	}

	for _, m := range f.Models {
		if err := m.Params.Validate(); err != nil {
			return nil, fmt.Errorf("fixture: model %s: %w", m.Category, err)
		}
		s.models[m.Category] = store.ModelParams{Category: m.Category, Params: m.Params, Samples: m.Samples}
	}

	for _, h := range f.CompletedPicks {
		s.history = append(s.history, store.CompletedPick{ZoneID: h.ZoneID, Features: h.Features, Duration: h.Duration})
	}

	return s, nil
}
