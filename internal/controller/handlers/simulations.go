package handlers

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"warehousesim/internal/logger"
	"warehousesim/internal/simulation"
	"warehousesim/internal/store"
	"warehousesim/pkg/api"

	"github.com/google/uuid"
)

// RunSimulation handles POST /simulations.
// It simulates the requested zones once, persists the run with its task
// estimates and returns the per-zone results.
func (h *Handlers) RunSimulation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RunSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.sim.RunSimulation(ctx, req.ZoneIDs, req.UseTestData)
	if err != nil {
		h.simulationError(w, r, err)
		return
	}

	run := &store.SimulationRun{
		ID:          runUUID(res.RunID),
		Kind:        store.RunKindSingle,
		ZoneIDs:     res.ZoneIDs(),
		UseTestData: req.UseTestData,
		Runs:        1,
		StartedAt:   res.Start,
		LatestEnd:   res.LatestEndTime,
		Errors:      res.Messages(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.persist(ctx, run, taskEstimates(run.ID, res)); err != nil {
		logger.FromContext(ctx, h.logger).Error("failed to persist simulation", "run_id", res.RunID, "error", err)
		h.httpError(w, "Failed to save simulation", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, simulationResponse(run.ID, res))
}

// RunMonteCarlo handles POST /simulations/montecarlo.
func (h *Handlers) RunMonteCarlo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.MonteCarloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	runs := req.Runs
	if runs == 0 {
		runs = h.opts.DefaultRuns
	}
	if runs < 0 || runs > h.opts.MaxRuns {
		h.httpError(w, fmt.Sprintf("Runs must be between 1 and %d", h.opts.MaxRuns), http.StatusBadRequest)
		return
	}

	sum, err := h.sim.RunMonteCarlo(ctx, req.ZoneIDs, req.UseTestData, runs)
	if err != nil {
		h.simulationError(w, r, err)
		return
	}

	run := &store.SimulationRun{
		ID:          runUUID(sum.RunID),
		Kind:        store.RunKindMonteCarlo,
		ZoneIDs:     req.ZoneIDs,
		UseTestData: req.UseTestData,
		Runs:        sum.Runs,
		StartedAt:   sum.Start,
		Errors:      sum.Errors,
		CreatedAt:   time.Now().UTC(),
	}
	if sum.LatestEnd != nil {
		mean := sum.LatestEnd.Mean
		run.LatestEnd = &mean
	}
	if err := h.persist(ctx, run, nil); err != nil {
		logger.FromContext(ctx, h.logger).Error("failed to persist monte carlo run", "run_id", sum.RunID, "error", err)
		h.httpError(w, "Failed to save simulation", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, monteCarloResponse(run.ID, sum))
}

// GetSimulation handles GET /simulations/{id}.
func (h *Handlers) GetSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid simulation id", http.StatusBadRequest)
		return
	}

	run, err := h.store.GetSimulationRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Simulation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.httpError(w, "Internal database error", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.SimulationRunResponse{
		ID:          run.ID.String(),
		Kind:        string(run.Kind),
		ZoneIDs:     run.ZoneIDs,
		UseTestData: run.UseTestData,
		Runs:        run.Runs,
		StartedAt:   run.StartedAt,
		LatestEnd:   run.LatestEnd,
		Errors:      run.Errors,
		CreatedAt:   run.CreatedAt,
	})
}

func (h *Handlers) simulationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, simulation.ErrNoZones),
		errors.Is(err, simulation.ErrInvalidZone),
		errors.Is(err, simulation.ErrInvalidRuns):
		h.httpErrorDetails(w, "Invalid simulation request", http.StatusBadRequest, err)
	default:
		logger.FromContext(r.Context(), h.logger).Error("simulation failed", "error", err)
		h.httpError(w, "Simulation failed", http.StatusInternalServerError)
	}
}

func (h *Handlers) persist(ctx context.Context, run *store.SimulationRun, estimates []store.TaskEstimate) error {
	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := h.store.SaveSimulationRun(ctx, tx, run); err != nil {
		return err
	}
	if len(estimates) > 0 {
		if err := h.store.SaveTaskEstimates(ctx, tx, estimates); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// runUUID parses the engine's run id, falling back to a fresh one.
func runUUID(id string) uuid.UUID {
	if u, err := uuid.Parse(id); err == nil {
		return u
	}
	return uuid.New()
}

func taskEstimates(runID uuid.UUID, res *simulation.SimulationResult) []store.TaskEstimate {
	var out []store.TaskEstimate
	for _, zoneID := range res.ZoneIDs() {
		z := res.Zones[zoneID]
		for _, t := range z.MultiTasks {
			out = append(out, store.TaskEstimate{
				RunID:     runID,
				ZoneID:    zoneID,
				TaskID:    t.ID,
				TaskKind:  simulation.KindMulti.String(),
				WorkerIDs: t.WorkerIDs,
				Start:     t.Start,
				End:       t.End,
			})
		}
		for _, t := range z.SingleTasks {
			var workers []int64
			if t.WorkerID != nil {
				workers = []int64{*t.WorkerID}
			}
			out = append(out, store.TaskEstimate{
				RunID:     runID,
				ZoneID:    zoneID,
				TaskID:    t.ID,
				TaskKind:  simulation.KindSingle.String(),
				WorkerIDs: workers,
				Start:     t.Start,
				End:       t.End,
			})
		}
	}
	return out
}

func simulationResponse(runID uuid.UUID, res *simulation.SimulationResult) api.SimulationResponse {
	resp := api.SimulationResponse{
		RunID:     runID.String(),
		Seed:      res.Seed,
		StartedAt: res.Start,
		LatestEnd: res.LatestEndTime,
		Zones:     make([]api.ZoneResultResponse, 0, len(res.Zones)),
	}
	for _, id := range res.ZoneIDs() {
		z := res.Zones[id]
		zr := api.ZoneResultResponse{
			ZoneID:       id,
			IsPickerZone: z.IsPickerZone,
			Scheduled:    z.Count(simulation.StateScheduled),
			Failed:       z.Count(simulation.StateFailed),
			Partial:      z.Partial,
			Messages:     z.Errors,
			Tasks:        make([]api.TaskTimeResponse, 0, z.TaskCount()),
		}
		if z.Err != nil {
			zr.Error = z.Err.Error()
		}
		if last, ok, err := z.LastEndTime(); err == nil && ok {
			zr.LastEnd = &last
		}
		for _, t := range z.MultiTasks {
			zr.Tasks = append(zr.Tasks, api.TaskTimeResponse{
				TaskID:    t.ID,
				Kind:      simulation.KindMulti.String(),
				State:     t.State.String(),
				WorkerIDs: t.WorkerIDs,
				Start:     t.Start,
				End:       t.End,
			})
		}
		for _, t := range z.SingleTasks {
			tr := api.TaskTimeResponse{
				TaskID: t.ID,
				Kind:   simulation.KindSingle.String(),
				State:  t.State.String(),
				Start:  t.Start,
				End:    t.End,
			}
			if t.WorkerID != nil {
				tr.WorkerIDs = []int64{*t.WorkerID}
			}
			zr.Tasks = append(zr.Tasks, tr)
		}
		resp.Zones = append(resp.Zones, zr)
	}
	return resp
}

func monteCarloResponse(runID uuid.UUID, sum *simulation.MonteCarloSummary) api.MonteCarloResponse {
	resp := api.MonteCarloResponse{
		RunID:     runID.String(),
		Seed:      sum.Seed,
		Runs:      sum.Runs,
		Completed: sum.Completed,
		StartedAt: sum.Start,
		Curve:     make([]api.CurvePoint, 0, len(sum.Curve)),
		Errors:    sum.Errors,
	}
	if sum.LatestEnd != nil {
		resp.LatestEnd = &api.LatestEndStats{
			P50:  sum.LatestEnd.P50,
			P90:  sum.LatestEnd.P90,
			Mean: sum.LatestEnd.Mean,
		}
	}

	zoneIDs := make(map[int64]struct{})
	for id := range sum.ZoneAverageEnd {
		zoneIDs[id] = struct{}{}
	}
	for id := range sum.BestCase {
		zoneIDs[id] = struct{}{}
	}
	for id := range zoneIDs {
		zr := api.ZoneEndResponse{ZoneID: id}
		if avg, ok := sum.ZoneAverageEnd[id]; ok {
			zr.AverageEnd = &avg
		}
		if best, ok := sum.BestCase[id]; ok {
			end := best.End
			zr.BestEnd = &end
			zr.BestRun = best.Run
		}
		resp.Zones = append(resp.Zones, zr)
	}
	slices.SortFunc(resp.Zones, func(a, b api.ZoneEndResponse) int { return cmp.Compare(a.ZoneID, b.ZoneID) })

	for _, p := range sum.Curve {
		resp.Curve = append(resp.Curve, api.CurvePoint{At: p.At, Completed: p.Completed})
	}
	return resp
}
