package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestSimMetrics_ExportedThroughPrometheus(t *testing.T) {
	ctx := context.Background()

	handler, shutdown, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	m, err := NewSimMetrics(otel.Meter(MeterName))
	if err != nil {
		t.Fatalf("NewSimMetrics failed: %v", err)
	}

	m.TaskScheduled(ctx, 7)
	m.TaskScheduled(ctx, 7)
	m.TaskDeferred(ctx, 7, "NoWorkerAvailable")
	m.TaskFailed(ctx, 7, "NoLicensedWorker")
	m.ZoneFinished(ctx, 7, 0.25, false)
	m.RunFinished(ctx, "single", "ok")
	m.ModelTrained(ctx, "dry", "ok")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	body := rr.Body.String()
	for _, name := range []string{
		"warehousesim_tasks_scheduled",
		"warehousesim_tasks_deferred",
		"warehousesim_tasks_failed",
		"warehousesim_zone_duration",
		"warehousesim_runs",
		"warehousesim_models_trained",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in output", name)
		}
	}
	if !strings.Contains(body, `reason="NoLicensedWorker"`) {
		t.Errorf("expected failure reason label in output, got:\n%s", body)
	}
}

func TestNopSimMetrics(t *testing.T) {
	m := NopSimMetrics()
	if m == nil {
		t.Fatal("NopSimMetrics returned nil")
	}
	m.TaskScheduled(context.Background(), 1)
	m.RunFinished(context.Background(), "single", "ok")
}
