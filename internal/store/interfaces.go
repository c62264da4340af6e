package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx
// This allows us to pass either a connection pool or an active transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// ZoneStore reads zone reference data.
type ZoneStore interface {
	// GetZone returns ErrNotFound for unknown ids.
	GetZone(ctx context.Context, id int64) (*Zone, error)

	ListZones(ctx context.Context) ([]Zone, error)
}

// WorkerStore reads the workers of a zone.
type WorkerStore interface {
	// ListWorkersByZone returns every worker of the zone, available or not.
	ListWorkersByZone(ctx context.Context, zoneID int64) ([]Worker, error)

	// ListShifts returns the timetable of the zone's workers for the day of date,
	// ordered by worker and start.
	ListShifts(ctx context.Context, zoneID int64, date time.Time) ([]Shift, error)
}

// TaskStore reads templates and pending task instances.
type TaskStore interface {
	ListTaskTemplates(ctx context.Context, zoneID int64) ([]TaskTemplate, error)

	// ListPendingActiveTasks returns the zone's active tasks for date that have no end time.
	ListPendingActiveTasks(ctx context.Context, zoneID int64, date time.Time) ([]ActiveTask, error)

	// ListPendingPickerTasks returns the zone's picks for date that have no end time.
	ListPendingPickerTasks(ctx context.Context, zoneID int64, date time.Time) ([]PickerTask, error)
}

// ModelStore persists duration-model parameters and exposes training data.
type ModelStore interface {
	// GetModelParams returns ErrNotFound when no model was trained for category.
	GetModelParams(ctx context.Context, category string) (*ModelParams, error)

	SaveModelParams(ctx context.Context, params *ModelParams) error

	// ListCompletedPicks returns up to limit finished picks of zones in category.
	ListCompletedPicks(ctx context.Context, category string, limit int) ([]CompletedPick, error)
}

// ResultStore persists simulation outcomes.
type ResultStore interface {
	BeginTx(ctx context.Context) (Tx, error)

	// SaveSimulationRun inserts the run summary.
	SaveSimulationRun(ctx context.Context, tx DBTransaction, run *SimulationRun) error

	// SaveTaskEstimates inserts the simulated times of every task of a run.
	SaveTaskEstimates(ctx context.Context, tx DBTransaction, estimates []TaskEstimate) error

	// GetSimulationRun returns ErrNotFound for unknown ids.
	GetSimulationRun(ctx context.Context, id uuid.UUID) (*SimulationRun, error)
}

// Store is everything a backend provides.
type Store interface {
	ZoneStore
	WorkerStore
	TaskStore
	ModelStore
	ResultStore
	Ping(ctx context.Context) error
	Close() error
}
