// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import "time"

// RunSimulationRequest is the request body for a single simulation run.
type RunSimulationRequest struct {
	ZoneIDs []int64 `json:"zone_ids"`
	// UseTestData replaces stored pending tasks with generated ones.
	UseTestData bool `json:"use_test_data,omitempty"`
}

// TaskTimeResponse is the simulated outcome of one task.
type TaskTimeResponse struct {
	TaskID    string     `json:"task_id"`
	Kind      string     `json:"kind"`
	State     string     `json:"state"`
	WorkerIDs []int64    `json:"worker_ids,omitempty"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
}

// ZoneResultResponse is the outcome of one zone.
type ZoneResultResponse struct {
	ZoneID       int64              `json:"zone_id"`
	IsPickerZone bool               `json:"is_picker_zone"`
	LastEnd      *time.Time         `json:"last_end,omitempty"`
	Scheduled    int                `json:"scheduled"`
	Failed       int                `json:"failed"`
	Partial      bool               `json:"partial,omitempty"`
	Error        string             `json:"error,omitempty"`
	Messages     []string           `json:"messages,omitempty"`
	Tasks        []TaskTimeResponse `json:"tasks"`
}

// SimulationResponse is the response body of a single simulation run.
type SimulationResponse struct {
	RunID     string               `json:"run_id"`
	Seed      uint64               `json:"seed"`
	StartedAt time.Time            `json:"started_at"`
	LatestEnd *time.Time           `json:"latest_end,omitempty"`
	Zones     []ZoneResultResponse `json:"zones"`
}

// MonteCarloRequest is the request body for a Monte Carlo batch.
type MonteCarloRequest struct {
	ZoneIDs     []int64 `json:"zone_ids"`
	UseTestData bool    `json:"use_test_data,omitempty"`
	// Runs defaults to the server's configured count when zero.
	Runs int `json:"runs,omitempty"`
}

// LatestEndStats summarises the latest end time over the completed runs.
type LatestEndStats struct {
	P50  time.Time `json:"p50"`
	P90  time.Time `json:"p90"`
	Mean time.Time `json:"mean"`
}

// ZoneEndResponse is the per-zone end time summary of a Monte Carlo batch.
type ZoneEndResponse struct {
	ZoneID     int64      `json:"zone_id"`
	AverageEnd *time.Time `json:"average_end,omitempty"`
	BestEnd    *time.Time `json:"best_end,omitempty"`
	BestRun    int        `json:"best_run"`
}

// CurvePoint is the average number of tasks completed by At.
type CurvePoint struct {
	At        time.Time `json:"at"`
	Completed float64   `json:"completed"`
}

// MonteCarloResponse is the response body of a Monte Carlo batch.
type MonteCarloResponse struct {
	RunID     string            `json:"run_id"`
	Seed      uint64            `json:"seed"`
	Runs      int               `json:"runs"`
	Completed int               `json:"completed"`
	StartedAt time.Time         `json:"started_at"`
	LatestEnd *LatestEndStats   `json:"latest_end,omitempty"`
	Zones     []ZoneEndResponse `json:"zones"`
	Curve     []CurvePoint      `json:"curve"`
	Errors    []string          `json:"errors,omitempty"`
}

// SimulationRunResponse is a persisted run summary.
type SimulationRunResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	ZoneIDs     []int64    `json:"zone_ids"`
	UseTestData bool       `json:"use_test_data"`
	Runs        int        `json:"runs"`
	StartedAt   time.Time  `json:"started_at"`
	LatestEnd   *time.Time `json:"latest_end,omitempty"`
	Errors      []string   `json:"errors,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
