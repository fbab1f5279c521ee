package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/assafrot/api-keys-app/src/models"
)

// CreateOwner inserts a new owner account
func (s *Store) CreateOwner(ctx context.Context, owner *models.Owner) error {
	if owner.ID == uuid.Nil {
		owner.ID = uuid.New()
	}
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = time.Now().UTC()
	}
	err := s.db.Exec(ctx, `
		INSERT INTO owners (id, username, password_hash, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, owner.ID, owner.Username, owner.PasswordHash, owner.CreatedAt, owner.IsActive)
	return translateError(err)
}

// GetOwnerByUsername loads an owner by login name
func (s *Store) GetOwnerByUsername(ctx context.Context, username string) (*models.Owner, error) {
	var o models.Owner
	err := s.db.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at, last_login, is_active
		FROM owners
		WHERE username = $1
	`, username).Scan(&o.ID, &o.Username, &o.PasswordHash, &o.CreatedAt, &o.LastLogin, &o.IsActive)
	if err != nil {
		return nil, translateError(err)
	}
	return &o, nil
}

// UpdateLastLogin stamps the owner's last successful login
func (s *Store) UpdateLastLogin(ctx context.Context, ownerID string) error {
	return translateError(s.db.Exec(ctx,
		"UPDATE owners SET last_login = NOW() WHERE id = $1",
		ownerID,
	))
}

// CountOwners returns the number of owner accounts
func (s *Store) CountOwners(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM owners").Scan(&n); err != nil {
		return 0, translateError(err)
	}
	return n, nil
}
