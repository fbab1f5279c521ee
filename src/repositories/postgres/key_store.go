package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/repositories"
)

const keyColumns = "id::text, name, key, user_id, is_active, usage, monthly_limit, created_at, last_used"

func scanKey(row pgx.Row) (*models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(
		&k.ID,
		&k.Name,
		&k.Key,
		&k.OwnerID,
		&k.IsActive,
		&k.Usage,
		&k.MonthlyLimit,
		&k.CreatedAt,
		&k.LastUsed,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// GetByKey looks a key up by its full value
func (s *Store) GetByKey(ctx context.Context, key string) (*models.APIKey, error) {
	row := s.db.QueryRow(ctx, "SELECT "+keyColumns+" FROM api_keys WHERE key = $1", key)
	k, err := scanKey(row)
	if err != nil {
		return nil, translateError(err)
	}
	return k, nil
}

// GetByID returns a key owned by ownerID
func (s *Store) GetByID(ctx context.Context, ownerID, id string) (*models.APIKey, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repositories.ErrNotFound
	}
	row := s.db.QueryRow(ctx,
		"SELECT "+keyColumns+" FROM api_keys WHERE id = $1 AND user_id = $2",
		id, ownerID,
	)
	k, err := scanKey(row)
	if err != nil {
		return nil, translateError(err)
	}
	return k, nil
}

// ListByOwner returns the owner's keys, newest first
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+keyColumns+" FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		ownerID,
	)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	keys := make([]models.APIKey, 0)
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, translateError(err)
		}
		keys = append(keys, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return keys, nil
}

// Insert stores a new key, filling in ID and CreatedAt from the database
func (s *Store) Insert(ctx context.Context, key *models.APIKey) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO api_keys (name, key, user_id, is_active, usage, monthly_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`, key.Name, key.Key, key.OwnerID, key.IsActive, key.Usage, key.MonthlyLimit,
	).Scan(&key.ID, &key.CreatedAt)
	return translateError(err)
}

// Update applies patch to the key (id, ownerID) and returns the stored row
func (s *Store) Update(ctx context.Context, ownerID, id string, patch models.APIKeyPatch) (*models.APIKey, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repositories.ErrNotFound
	}
	if patch.IsEmpty() {
		return s.GetByID(ctx, ownerID, id)
	}

	sets := make([]string, 0, 4)
	args := []interface{}{id, ownerID}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.Usage != nil {
		add("usage", *patch.Usage)
	}
	if patch.MonthlyLimit != nil {
		add("monthly_limit", *patch.MonthlyLimit)
	}

	query := "UPDATE api_keys SET " + strings.Join(sets, ", ") +
		" WHERE id = $1 AND user_id = $2 RETURNING " + keyColumns
	k, err := scanKey(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translateError(err)
	}
	return k, nil
}

// Delete removes the key (id, ownerID)
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repositories.ErrNotFound
	}
	result, err := s.db.GetPool().Exec(ctx,
		"DELETE FROM api_keys WHERE id = $1 AND user_id = $2",
		id, ownerID,
	)
	if err != nil {
		return translateError(err)
	}
	if result.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// IncrementUsage bumps usage by one and records the time of use
func (s *Store) IncrementUsage(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repositories.ErrNotFound
	}
	result, err := s.db.GetPool().Exec(ctx,
		"UPDATE api_keys SET usage = usage + 1, last_used = NOW() WHERE id = $1",
		id,
	)
	if err != nil {
		return translateError(err)
	}
	if result.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// ResetAllUsage zeroes usage on every key that has any
func (s *Store) ResetAllUsage(ctx context.Context) (int64, error) {
	result, err := s.db.GetPool().Exec(ctx, "UPDATE api_keys SET usage = 0 WHERE usage > 0")
	if err != nil {
		return 0, translateError(err)
	}
	return result.RowsAffected(), nil
}
