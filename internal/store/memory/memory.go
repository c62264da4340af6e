// Package memory implements the store interfaces in process memory.
// It backs local runs and tests, loaded from a YAML fixture.
package memory

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"warehousesim/internal/store"

	"github.com/google/uuid"
)

var errNoSQL = errors.New("memory store does not execute SQL")

// Store is a mutex guarded in-memory backend.
type Store struct {
	mu        sync.RWMutex
	zones     map[int64]store.Zone
	workers   []store.Worker
	shifts    []store.Shift
	templates map[int64]store.TaskTemplate
	active    []store.ActiveTask
	picks     []store.PickerTask
	models    map[string]store.ModelParams
	history   []store.CompletedPick
	runs      map[uuid.UUID]store.SimulationRun
	estimates []store.TaskEstimate
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		zones:     make(map[int64]store.Zone),
		templates: make(map[int64]store.TaskTemplate),
		models:    make(map[string]store.ModelParams),
		runs:      make(map[uuid.UUID]store.SimulationRun),
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) GetZone(ctx context.Context, id int64) (*store.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	z, ok := s.zones[id]
	if !ok {
		return nil, fmt.Errorf("zone %d: %w", id, store.ErrNotFound)
	}
	return &z, nil
}

func (s *Store) ListZones(ctx context.Context) ([]store.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zones := make([]store.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		zones = append(zones, z)
	}
	slices.SortFunc(zones, func(a, b store.Zone) int { return cmp.Compare(a.ID, b.ID) })
	return zones, nil
}

func (s *Store) ListWorkersByZone(ctx context.Context, zoneID int64) ([]store.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Worker
	for _, w := range s.workers {
		if w.ZoneID == zoneID {
			w.Licenses = slices.Clone(w.Licenses)
			out = append(out, w)
		}
	}
	return out, nil
}

// ListShifts returns the zone's shifts overlapping the UTC day of date.
func (s *Store) ListShifts(ctx context.Context, zoneID int64, date time.Time) ([]store.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := date.UTC().Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	zoneOf := make(map[int64]int64, len(s.workers))
	for _, w := range s.workers {
		zoneOf[w.ID] = w.ZoneID
	}

	var out []store.Shift
	for _, sh := range s.shifts {
		if zoneOf[sh.WorkerID] != zoneID || !sh.Start.Before(dayEnd) || !sh.End.After(dayStart) {
			continue
		}
		out = append(out, sh)
	}
	slices.SortFunc(out, func(a, b store.Shift) int {
		if c := cmp.Compare(a.WorkerID, b.WorkerID); c != 0 {
			return c
		}
		return a.Start.Compare(b.Start)
	})
	return out, nil
}

func (s *Store) ListTaskTemplates(ctx context.Context, zoneID int64) ([]store.TaskTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.TaskTemplate
	for _, t := range s.templates {
		if t.ZoneID == zoneID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b store.TaskTemplate) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) ListPendingActiveTasks(ctx context.Context, zoneID int64, date time.Time) ([]store.ActiveTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.ActiveTask
	for _, a := range s.active {
		t, ok := s.templates[a.TemplateID]
		if !ok || t.ZoneID != zoneID || a.EndTime != nil || !sameDay(a.Date, date) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) ListPendingPickerTasks(ctx context.Context, zoneID int64, date time.Time) ([]store.PickerTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.PickerTask
	for _, p := range s.picks {
		if p.ZoneID == zoneID && p.EndTime == nil && sameDay(p.Date, date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) GetModelParams(ctx context.Context, category string) (*store.ModelParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[category]
	if !ok {
		return nil, fmt.Errorf("model %s: %w", category, store.ErrNotFound)
	}
	return &m, nil
}

func (s *Store) SaveModelParams(ctx context.Context, params *store.ModelParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[params.Category] = *params
	return nil
}

func (s *Store) ListCompletedPicks(ctx context.Context, category string, limit int) ([]store.CompletedPick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.CompletedPick
	for _, h := range s.history {
		z, ok := s.zones[h.ZoneID]
		if !ok || z.Category() != category {
			continue
		}
		out = append(out, h)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// BeginTx starts a transaction that buffers result writes until Commit.
func (s *Store) BeginTx(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{s: s}, nil
}

func (s *Store) SaveSimulationRun(ctx context.Context, tx store.DBTransaction, run *store.SimulationRun) error {
	if t, ok := tx.(*memTx); ok {
		return t.stage(func() { t.runs = append(t.runs, *run) })
	}
	if tx != nil {
		return errNoSQL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *Store) SaveTaskEstimates(ctx context.Context, tx store.DBTransaction, estimates []store.TaskEstimate) error {
	if t, ok := tx.(*memTx); ok {
		return t.stage(func() { t.estimates = append(t.estimates, estimates...) })
	}
	if tx != nil {
		return errNoSQL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimates = append(s.estimates, estimates...)
	return nil
}

func (s *Store) GetSimulationRun(ctx context.Context, id uuid.UUID) (*store.SimulationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("simulation run %s: %w", id, store.ErrNotFound)
	}
	return &r, nil
}

// TaskEstimates returns the stored estimates of a run.
func (s *Store) TaskEstimates(runID uuid.UUID) []store.TaskEstimate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.TaskEstimate
	for _, e := range s.estimates {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

type memTx struct {
	s         *Store
	mu        sync.Mutex
	done      bool
	runs      []store.SimulationRun
	estimates []store.TaskEstimate
}

func (t *memTx) stage(fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	fn()
	return nil
}

func (t *memTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

func (t *memTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (t *memTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (t *memTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, r := range t.runs {
		t.s.runs[r.ID] = r
	}
	t.s.estimates = append(t.s.estimates, t.estimates...)
	return nil
}

func (t *memTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.runs, t.estimates = nil, nil
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
