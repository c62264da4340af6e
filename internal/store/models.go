// Package store contains the data layer for warehousesim.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"warehousesim/internal/duration"

	"github.com/google/uuid"
)

// Zone is an area of the warehouse with its own workers and tasks.
// Picker zones schedule single-worker picks, other zones schedule active tasks.
type Zone struct {
	ID           int64
	Name         string
	IsPickerZone bool
}

// Category returns the duration-model category of a picker zone.
// Unknown names fall back to "dry".
func (z Zone) Category() string {
	switch strings.ToLower(strings.TrimSpace(z.Name)) {
	case "freeze":
		return "freeze"
	case "fruit":
		return "fruit"
	default:
		return "dry"
	}
}

// Worker is a warehouse employee assigned to a zone.
type Worker struct {
	ID         int64
	Name       string
	ZoneID     int64
	Licenses   []string
	Efficiency float64
	Available  bool
}

// Shift is one timetable entry: the worker is on the floor in [Start, End).
type Shift struct {
	WorkerID int64
	Start    time.Time
	End      time.Time
}

// TaskTemplate is immutable reference data describing a kind of active task.
type TaskTemplate struct {
	ID               int64
	Name             string
	ZoneID           int64
	MinWorkers       int
	MaxWorkers       int
	MinTime          time.Duration
	MaxTime          time.Duration
	RequiredLicenses []string
}

// ErrInvalidTemplate is returned by TaskTemplate.Validate.
var ErrInvalidTemplate = errors.New("invalid task template")

// Validate checks 1 <= MinWorkers <= MaxWorkers and 0 <= MinTime <= MaxTime.
func (t TaskTemplate) Validate() error {
	if t.MinWorkers < 1 || t.MaxWorkers < t.MinWorkers {
		return fmt.Errorf("%w: template %d workers [%d, %d]", ErrInvalidTemplate, t.ID, t.MinWorkers, t.MaxWorkers)
	}
	if t.MinTime < 0 || t.MaxTime < t.MinTime {
		return fmt.Errorf("%w: template %d time [%s, %s]", ErrInvalidTemplate, t.ID, t.MinTime, t.MaxTime)
	}
	return nil
}

// ActiveTask is a pending instance of a TaskTemplate on a given date.
type ActiveTask struct {
	ID          int64
	TemplateID  int64
	Date        time.Time
	DueDate     *time.Time
	StrictStart bool
	StartTime   *time.Time
	EndTime     *time.Time
}

// PickerTask is a single pick route in a picker zone.
type PickerTask struct {
	ID        int64
	ZoneID    int64
	Date      time.Time
	DueDate   *time.Time
	Features  duration.Features
	StartTime *time.Time
	EndTime   *time.Time
}

// ModelParams is a persisted duration-model artifact for one zone category.
type ModelParams struct {
	Category  string
	Params    duration.Params
	Samples   int
	TrainedAt time.Time
}

// CompletedPick is a historical pick with its measured duration, used for training.
type CompletedPick struct {
	ZoneID   int64
	Features duration.Features
	Duration time.Duration
}

// RunKind tells a single simulation apart from a Monte Carlo batch.
type RunKind string

const (
	RunKindSingle     RunKind = "single"
	RunKindMonteCarlo RunKind = "montecarlo"
)

// SimulationRun is the persisted summary of one simulation request.
type SimulationRun struct {
	ID          uuid.UUID
	Kind        RunKind
	ZoneIDs     []int64
	UseTestData bool
	Runs        int
	StartedAt   time.Time
	LatestEnd   *time.Time
	Errors      []string
	CreatedAt   time.Time
}

// TaskEstimate is the simulated start and end of one task in a run.
type TaskEstimate struct {
	RunID     uuid.UUID
	ZoneID    int64
	TaskID    string
	TaskKind  string
	WorkerIDs []int64
	Start     *time.Time
	End       *time.Time
}
