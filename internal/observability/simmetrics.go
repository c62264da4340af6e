package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// TracerName and MeterName identify the simulation engine's instrumentation scope.
const (
	TracerName = "warehousesim/simulation"
	MeterName  = "warehousesim/simulation"
)

// SimMetrics are the instruments recorded by the simulation engine.
type SimMetrics struct {
	tasksScheduled metric.Int64Counter
	tasksDeferred  metric.Int64Counter
	tasksFailed    metric.Int64Counter
	zoneDuration   metric.Float64Histogram
	runs           metric.Int64Counter
	modelsTrained  metric.Int64Counter
}

// NewSimMetrics registers the simulation instruments on meter.
func NewSimMetrics(meter metric.Meter) (*SimMetrics, error) {
	var (
		m   SimMetrics
		err error
	)

	if m.tasksScheduled, err = meter.Int64Counter("warehousesim.tasks.scheduled",
		metric.WithDescription("Tasks that were staffed and given simulated times")); err != nil {
		return nil, fmt.Errorf("failed to create scheduled counter: %w", err)
	}
	if m.tasksDeferred, err = meter.Int64Counter("warehousesim.tasks.deferred",
		metric.WithDescription("Allocation attempts that left the task for a later pass")); err != nil {
		return nil, fmt.Errorf("failed to create deferred counter: %w", err)
	}
	if m.tasksFailed, err = meter.Int64Counter("warehousesim.tasks.failed",
		metric.WithDescription("Tasks that could never be staffed")); err != nil {
		return nil, fmt.Errorf("failed to create failed counter: %w", err)
	}
	if m.zoneDuration, err = meter.Float64Histogram("warehousesim.zone.duration",
		metric.WithDescription("Wall-clock time spent simulating one zone"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create zone duration histogram: %w", err)
	}
	if m.runs, err = meter.Int64Counter("warehousesim.runs",
		metric.WithDescription("Simulation runs by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}
	if m.modelsTrained, err = meter.Int64Counter("warehousesim.models.trained",
		metric.WithDescription("Duration-model retraining attempts by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create models counter: %w", err)
	}
	return &m, nil
}

// NopSimMetrics returns instruments that record nothing.
func NopSimMetrics() *SimMetrics {
	m, _ := NewSimMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

func zoneAttr(zoneID int64) metric.MeasurementOption {
	return metric.WithAttributes(attribute.Int64("zone.id", zoneID))
}

func (m *SimMetrics) TaskScheduled(ctx context.Context, zoneID int64) {
	m.tasksScheduled.Add(ctx, 1, zoneAttr(zoneID))
}

func (m *SimMetrics) TaskDeferred(ctx context.Context, zoneID int64, kind string) {
	m.tasksDeferred.Add(ctx, 1, metric.WithAttributes(attribute.Int64("zone.id", zoneID), attribute.String("reason", kind)))
}

func (m *SimMetrics) TaskFailed(ctx context.Context, zoneID int64, kind string) {
	m.tasksFailed.Add(ctx, 1, metric.WithAttributes(attribute.Int64("zone.id", zoneID), attribute.String("reason", kind)))
}

func (m *SimMetrics) ZoneFinished(ctx context.Context, zoneID int64, seconds float64, partial bool) {
	m.zoneDuration.Record(ctx, seconds, metric.WithAttributes(attribute.Int64("zone.id", zoneID), attribute.Bool("partial", partial)))
}

// RunFinished counts a finished run; outcome is "ok", "zone_error" or "invalid".
func (m *SimMetrics) RunFinished(ctx context.Context, kind, outcome string) {
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind), attribute.String("outcome", outcome)))
}

// ModelTrained counts a retraining attempt; outcome is "ok", "unavailable" or "error".
func (m *SimMetrics) ModelTrained(ctx context.Context, category, outcome string) {
	m.modelsTrained.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category), attribute.String("outcome", outcome)))
}
