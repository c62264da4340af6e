package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"warehousesim/internal/store"

	"github.com/lib/pq"
)

func (s *Store) GetZone(ctx context.Context, id int64) (*store.Zone, error) {
	query := "SELECT id, name, is_picker_zone FROM zones WHERE id = $1"

	var z store.Zone
	err := s.db.QueryRowContext(ctx, query, id).Scan(&z.ID, &z.Name, &z.IsPickerZone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("zone %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &z, nil
}

func (s *Store) ListZones(ctx context.Context) ([]store.Zone, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, is_picker_zone FROM zones ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []store.Zone
	for rows.Next() {
		var z store.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.IsPickerZone); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// ListWorkersByZone returns every worker of the zone; callers filter on Available.
func (s *Store) ListWorkersByZone(ctx context.Context, zoneID int64) ([]store.Worker, error) {
	query := `
		SELECT id, name, zone_id, licenses, efficiency, available
		FROM workers
		WHERE zone_id = $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []store.Worker
	for rows.Next() {
		var w store.Worker
		if err := rows.Scan(&w.ID, &w.Name, &w.ZoneID, pq.Array(&w.Licenses), &w.Efficiency, &w.Available); err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// ListShifts returns the shifts of the zone's workers that overlap the UTC day of date.
func (s *Store) ListShifts(ctx context.Context, zoneID int64, date time.Time) ([]store.Shift, error) {
	query := `
		SELECT t.worker_id, t.start_time, t.end_time
		FROM timetables t
		JOIN workers w ON w.id = t.worker_id
		WHERE w.zone_id = $1 AND t.start_time < $3 AND t.end_time > $2
		ORDER BY t.worker_id, t.start_time
	`

	y, m, d := date.UTC().Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	rows, err := s.db.QueryContext(ctx, query, zoneID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []store.Shift
	for rows.Next() {
		var sh store.Shift
		if err := rows.Scan(&sh.WorkerID, &sh.Start, &sh.End); err != nil {
			return nil, err
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}
