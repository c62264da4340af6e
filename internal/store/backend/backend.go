// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"warehousesim/internal/config"
	"warehousesim/internal/store"
	"warehousesim/internal/store/memory"
	"warehousesim/internal/store/postgres"
)

// Open returns the memory store loaded from the fixture, or a postgres store.
// migrate applies pending migrations to postgres before returning.
func Open(ctx context.Context, cfg *config.Config, migrate bool) (store.Store, error) {
	if cfg.StoreBackend == config.BackendMemory {
		st, err := memory.LoadFixture(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if migrate {
		if err := postgres.Migrate(pg.DB()); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return pg, nil
}
