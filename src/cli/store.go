package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/assafrot/api-keys-app/src/config"
	"github.com/assafrot/api-keys-app/src/database"
	"github.com/assafrot/api-keys-app/src/repositories"
	"github.com/assafrot/api-keys-app/src/repositories/memory"
	"github.com/assafrot/api-keys-app/src/repositories/postgres"
)

// backend is an opened store. Close also releases the pool when the store
// is Postgres-backed.
type backend struct {
	repositories.Store
	kind string
	db   *database.Database
}

// Close shuts the store down followed by its pool
func (b *backend) Close() {
	b.Store.Close()
	if b.db != nil {
		b.db.Close()
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.Store == config.StoreMemory {
		return &backend{Store: memory.NewStore(), kind: config.StoreMemory}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return &backend{Store: postgres.NewStore(db), kind: config.StorePostgres, db: db}, nil
}
