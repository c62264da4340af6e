package postgres

import (
	"context"
	"database/sql"
	"time"

	"warehousesim/internal/store"

	"github.com/lib/pq"
)

func (s *Store) ListTaskTemplates(ctx context.Context, zoneID int64) ([]store.TaskTemplate, error) {
	query := `
		SELECT id, name, zone_id, min_workers, max_workers, min_time_seconds, max_time_seconds, required_licenses
		FROM task_templates
		WHERE zone_id = $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []store.TaskTemplate
	for rows.Next() {
		var (
			t          store.TaskTemplate
			minSeconds int64
			maxSeconds int64
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.ZoneID, &t.MinWorkers, &t.MaxWorkers,
			&minSeconds, &maxSeconds, pq.Array(&t.RequiredLicenses)); err != nil {
			return nil, err
		}
		t.MinTime = time.Duration(minSeconds) * time.Second
		t.MaxTime = time.Duration(maxSeconds) * time.Second
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *Store) ListPendingActiveTasks(ctx context.Context, zoneID int64, date time.Time) ([]store.ActiveTask, error) {
	query := `
		SELECT a.id, a.template_id, a.date, a.due_date, a.strict_start, a.start_time
		FROM active_tasks a
		JOIN task_templates t ON t.id = a.template_id
		WHERE t.zone_id = $1 AND a.date = $2 AND a.end_time IS NULL
		ORDER BY a.id
	`

	rows, err := s.db.QueryContext(ctx, query, zoneID, date.UTC().Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []store.ActiveTask
	for rows.Next() {
		var (
			a       store.ActiveTask
			dueDate sql.NullTime
			start   sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.TemplateID, &a.Date, &dueDate, &a.StrictStart, &start); err != nil {
			return nil, err
		}
		a.DueDate = timePtr(dueDate)
		a.StartTime = timePtr(start)
		tasks = append(tasks, a)
	}
	return tasks, rows.Err()
}

func (s *Store) ListPendingPickerTasks(ctx context.Context, zoneID int64, date time.Time) ([]store.PickerTask, error) {
	query := `
		SELECT id, zone_id, date, due_date, distance, pack_amount, lines_amount, weight, volume, avg_height, start_time
		FROM picker_tasks
		WHERE zone_id = $1 AND date = $2 AND end_time IS NULL
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, zoneID, date.UTC().Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []store.PickerTask
	for rows.Next() {
		var (
			p       store.PickerTask
			dueDate sql.NullTime
			start   sql.NullTime
		)
		f := &p.Features
		if err := rows.Scan(&p.ID, &p.ZoneID, &p.Date, &dueDate,
			&f.Distance, &f.PackAmount, &f.Lines, &f.Weight, &f.Volume, &f.AvgHeight, &start); err != nil {
			return nil, err
		}
		p.DueDate = timePtr(dueDate)
		p.StartTime = timePtr(start)
		tasks = append(tasks, p)
	}
	return tasks, rows.Err()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
