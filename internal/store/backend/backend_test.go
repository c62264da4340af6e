package backend

import (
	"context"
	"testing"

	"warehousesim/internal/config"
	"warehousesim/internal/store/memory"
)

func TestOpen_Memory(t *testing.T) {
	cfg := &config.Config{StoreBackend: config.BackendMemory, FixturePath: "../memory/testdata/warehouse.yaml"}

	st, err := Open(context.Background(), cfg, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer st.Close()

	if _, ok := st.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", st)
	}
	zones, err := st.ListZones(context.Background())
	if err != nil || len(zones) != 3 {
		t.Errorf("expected 3 zones, got %d (%v)", len(zones), err)
	}
}

func TestOpen_MissingFixture(t *testing.T) {
	cfg := &config.Config{StoreBackend: config.BackendMemory, FixturePath: "does-not-exist.yaml"}

	if _, err := Open(context.Background(), cfg, false); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}
