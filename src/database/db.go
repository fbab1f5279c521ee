package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assafrot/api-keys-app/src/logging"
)

// ChangeChannel is the NOTIFY channel the api_keys trigger publishes on
const ChangeChannel = "api_key_changes"

//go:embed schema.sql
var schemaSQL string

// Database holds the PostgreSQL connection pool
type Database struct {
	pool *pgxpool.Pool
}

// New creates a new database connection
func New(ctx context.Context, databaseURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Configure connection pool
	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	db := &Database{pool: pool}

	if err := db.initializeSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// GetPool returns the connection pool
func (db *Database) GetPool() *pgxpool.Pool {
	return db.pool
}

// initializeSchema executes the embedded schema and migrations
func (db *Database) initializeSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := db.runMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger := logging.NewLogger("database")
	logger.Info().Msg("database schema initialized")
	return nil
}

// runMigrations brings tables created by older deployments up to date
func (db *Database) runMigrations(ctx context.Context) error {
	logger := logging.NewLogger("database")

	// Migration 1: tables created before usage tracking have no last_used column
	if _, err := db.pool.Exec(ctx, `
		ALTER TABLE api_keys
		ADD COLUMN IF NOT EXISTS last_used TIMESTAMPTZ;
	`); err != nil {
		return fmt.Errorf("failed to add last_used column: %w", err)
	}

	// Migration 2: older rows may carry NULL counters
	result, err := db.pool.Exec(ctx, `
		UPDATE api_keys
		SET
			usage = COALESCE(usage, 0),
			monthly_limit = COALESCE(NULLIF(monthly_limit, 0), 1000),
			is_active = COALESCE(is_active, true)
		WHERE usage IS NULL OR monthly_limit IS NULL OR monthly_limit = 0 OR is_active IS NULL
	`)
	if err != nil {
		logger.Warn().Err(err).Msg("migration: failed to normalize api_keys counters")
	} else if result.RowsAffected() > 0 {
		logger.Info().Int64("rows", result.RowsAffected()).Msg("migration: normalized api_keys counters")
	}

	return nil
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	if db == nil || db.pool == nil {
		return fmt.Errorf("database connection not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return db.pool.Ping(ctx)
}

// QueryRow executes a query and returns a single row
func (db *Database) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// Query executes a query and returns rows
func (db *Database) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

// Exec executes a query without returning rows
func (db *Database) Exec(ctx context.Context, sql string, args ...interface{}) error {
	_, err := db.pool.Exec(ctx, sql, args...)
	return err
}

// Acquire checks out a dedicated connection, used for LISTEN
func (db *Database) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	if db == nil || db.pool == nil {
		return nil, fmt.Errorf("database connection not initialized")
	}
	return db.pool.Acquire(ctx)
}
