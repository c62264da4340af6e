package handlers

import (
	"context"
	"database/sql"
	"time"

	"warehousesim/internal/simulation"
	"warehousesim/internal/store"

	"github.com/google/uuid"
)

// Mock transaction
type mockTx struct {
	committed  bool
	rolledBack bool
}

func (m *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (m *mockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (m *mockTx) Commit() error {
	m.committed = true
	return nil
}

func (m *mockTx) Rollback() error {
	if !m.committed {
		m.rolledBack = true
	}
	return nil
}

// Mock Store
type mockStore struct {
	beginTxErr       error
	saveRunErr       error
	saveEstimatesErr error
	pingErr          error

	getRunResp *store.SimulationRun
	getRunErr  error

	// Spies (to verify arguments passed by handlers)
	tx                 *mockTx
	capturedRun        *store.SimulationRun
	capturedEstimates  []store.TaskEstimate
	capturedLookupID   uuid.UUID
	saveEstimatesCalls int
}

func (m *mockStore) BeginTx(ctx context.Context) (store.Tx, error) {
	if m.beginTxErr != nil {
		return nil, m.beginTxErr
	}
	m.tx = &mockTx{}
	return m.tx, nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockStore) SaveSimulationRun(ctx context.Context, tx store.DBTransaction, run *store.SimulationRun) error {
	m.capturedRun = run
	return m.saveRunErr
}

func (m *mockStore) SaveTaskEstimates(ctx context.Context, tx store.DBTransaction, estimates []store.TaskEstimate) error {
	m.saveEstimatesCalls++
	m.capturedEstimates = estimates
	return m.saveEstimatesErr
}

func (m *mockStore) GetSimulationRun(ctx context.Context, id uuid.UUID) (*store.SimulationRun, error) {
	m.capturedLookupID = id
	return m.getRunResp, m.getRunErr
}

// Mock Simulator
type mockSimulator struct {
	result    *simulation.SimulationResult
	summary   *simulation.MonteCarloSummary
	err       error
	gotZones  []int64
	gotTest   bool
	gotRuns   int
	callCount int
}

func (m *mockSimulator) RunSimulation(ctx context.Context, zoneIDs []int64, useTestData bool) (*simulation.SimulationResult, error) {
	m.callCount++
	m.gotZones = zoneIDs
	m.gotTest = useTestData
	return m.result, m.err
}

func (m *mockSimulator) RunMonteCarlo(ctx context.Context, zoneIDs []int64, useTestData bool, runs int) (*simulation.MonteCarloSummary, error) {
	m.callCount++
	m.gotZones = zoneIDs
	m.gotTest = useTestData
	m.gotRuns = runs
	return m.summary, m.err
}

var testStart = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func at(minutes int) *time.Time {
	t := testStart.Add(time.Duration(minutes) * time.Minute)
	return &t
}

// sampleResult has one picker zone with a finished and a failed pick
// and one active zone with a two-worker task.
func sampleResult() *simulation.SimulationResult {
	w1, w2 := int64(11), int64(12)
	res := &simulation.SimulationResult{
		RunID:         uuid.NewString(),
		Seed:          42,
		Start:         testStart,
		LatestEndTime: at(45),
		Zones: map[int64]*simulation.ZoneSimResult{
			2: {
				ZoneID: 2,
				MultiTasks: []*simulation.MultiWorkerTask{{
					ID:        "7",
					WorkerIDs: []int64{w1, w2},
					Start:     at(0),
					End:       at(45),
					State:     simulation.StateScheduled,
				}},
			},
			1: {
				ZoneID:       1,
				IsPickerZone: true,
				SingleTasks: []*simulation.SingleWorkerTask{
					{ID: "100", ZoneID: 1, WorkerID: &w1, Start: at(0), End: at(20), State: simulation.StateScheduled},
					{ID: "101", ZoneID: 1, State: simulation.StateFailed},
				},
				Errors: []string{"zone 1: task 101: NoWorkerAvailable"},
			},
		},
	}
	return res
}

func sampleSummary() *simulation.MonteCarloSummary {
	return &simulation.MonteCarloSummary{
		RunID:     uuid.NewString(),
		Seed:      7,
		Start:     testStart,
		Runs:      10,
		Completed: 10,
		LatestEnd: &simulation.LatestEndStats{P50: *at(50), P90: *at(90), Mean: *at(55)},
		ZoneAverageEnd: map[int64]time.Time{
			3: *at(40),
			1: *at(55),
		},
		BestCase: map[int64]simulation.BestCase{
			1: {End: *at(30), Run: 4},
		},
		Curve: []simulation.CurvePoint{
			{At: testStart, Completed: 0},
			{At: *at(10), Completed: 0.5},
		},
	}
}
