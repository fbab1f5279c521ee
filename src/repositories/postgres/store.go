// Package postgres implements repositories.Store on top of pgx. The change
// feed is driven by the api_keys NOTIFY trigger.
package postgres

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/assafrot/api-keys-app/src/database"
	"github.com/assafrot/api-keys-app/src/realtime"
	"github.com/assafrot/api-keys-app/src/repositories"
)

// Store is the Postgres-backed repositories.Store
type Store struct {
	db  *database.Database
	hub *realtime.Hub

	listenOnce sync.Once
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewStore wraps an initialized database
func NewStore(db *database.Database) *Store {
	return &Store{
		db:   db,
		hub:  realtime.NewHub(),
		done: make(chan struct{}),
	}
}

// Health pings the database
func (s *Store) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

// Close stops the listener and closes the hub. The pool is owned by the caller.
func (s *Store) Close() {
	// Claim the once so a later Subscribe cannot start the listener
	s.listenOnce.Do(func() { close(s.done) })
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.hub.Close()
}

// translateError maps pgx errors onto the repository error model
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repositories.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &repositories.StoreError{
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Message:    pgErr.Message,
		}
	}
	return err
}

var _ repositories.Store = (*Store)(nil)
