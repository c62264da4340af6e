package observability

import (
	"context"
	"testing"
	"time"
)

func TestInitTracer_InvalidEndpoint(t *testing.T) {
	// gRPC dials lazily, so an unreachable endpoint usually succeeds here.
	shutdown, err := InitTracer(context.Background(), "test-service", "invalid-endpoint:9999")
	if err != nil {
		t.Logf("InitTracer failed in this environment: %v", err)
		return
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function to be non-nil")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}

func TestTracer_RecordsSpans(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "warehousesim-test", "localhost:4317")
	if err != nil {
		t.Logf("InitTracer returned error (may be expected in test environment): %v", err)
		return
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	_, span := Tracer().Start(context.Background(), "simulation.zone")
	defer span.End()

	if !span.SpanContext().IsValid() {
		t.Error("expected a valid span context from the installed provider")
	}
}
