package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"warehousesim/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SaveSimulationRun inserts a run summary. Pass the transaction that also
// carries the run's task estimates.
func (s *Store) SaveSimulationRun(ctx context.Context, tx store.DBTransaction, run *store.SimulationRun) error {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO simulation_runs (id, kind, zone_ids, use_test_data, runs, started_at, latest_end, errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}

	_, err := executor.ExecContext(ctx, query,
		run.ID,
		run.Kind,
		pq.Array(run.ZoneIDs),
		run.UseTestData,
		run.Runs,
		run.StartedAt,
		run.LatestEnd,
		pq.Array(errs),
		run.CreatedAt,
	)
	return err
}

// SaveTaskEstimates inserts one row per estimate.
func (s *Store) SaveTaskEstimates(ctx context.Context, tx store.DBTransaction, estimates []store.TaskEstimate) error {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO task_estimates (run_id, zone_id, task_id, task_kind, worker_ids, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, e := range estimates {
		workerIDs := e.WorkerIDs
		if workerIDs == nil {
			workerIDs = []int64{}
		}
		if _, err := executor.ExecContext(ctx, query,
			e.RunID, e.ZoneID, e.TaskID, e.TaskKind, pq.Array(workerIDs), e.Start, e.End,
		); err != nil {
			return fmt.Errorf("task %s: %w", e.TaskID, err)
		}
	}
	return nil
}

func (s *Store) GetSimulationRun(ctx context.Context, id uuid.UUID) (*store.SimulationRun, error) {
	query := `
		SELECT id, kind, zone_ids, use_test_data, runs, started_at, latest_end, errors, created_at
		FROM simulation_runs
		WHERE id = $1
	`

	var (
		r         store.SimulationRun
		latestEnd sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.Kind, pq.Array(&r.ZoneIDs), &r.UseTestData, &r.Runs,
		&r.StartedAt, &latestEnd, pq.Array(&r.Errors), &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("simulation run %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	r.LatestEnd = timePtr(latestEnd)
	return &r, nil
}
