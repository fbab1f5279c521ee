package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/assafrot/api-keys-app/src/logging"
	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/repositories"
)

// OwnerService handles owner account operations
type OwnerService struct {
	repo   repositories.OwnerStore
	cost   int
	logger zerolog.Logger
}

// NewOwnerService creates a new owner service
func NewOwnerService(repo repositories.OwnerStore) *OwnerService {
	return &OwnerService{
		repo:   repo,
		cost:   bcrypt.DefaultCost,
		logger: logging.NewLogger("owners"),
	}
}

// WithBcryptCost sets the hashing cost; tests use bcrypt.MinCost
func (s *OwnerService) WithBcryptCost(cost int) *OwnerService {
	s.cost = cost
	return s
}

// Create creates a new owner with a hashed password
func (s *OwnerService) Create(ctx context.Context, username, password string) (*models.Owner, error) {
	// Validate input
	if len(username) < 1 || len(username) > 255 {
		return nil, errors.New("username must be between 1 and 255 characters")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	owner := &models.Owner{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
	}

	if err := s.repo.CreateOwner(ctx, owner); err != nil {
		if repositories.HasCode(err, repositories.CodeUniqueViolation) {
			return nil, ErrOwnerExists
		}
		return nil, fmt.Errorf("failed to create owner: %w", err)
	}

	s.logger.Info().Str("username", username).Msg("owner created")
	return owner, nil
}

// HasOwners checks if any owner accounts exist
func (s *OwnerService) HasOwners(ctx context.Context) (bool, error) {
	n, err := s.repo.CountOwners(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check owners: %w", err)
	}
	return n > 0, nil
}

// EnsureOwner creates the owner on first run when no account exists yet.
// It reports whether an account was created.
func (s *OwnerService) EnsureOwner(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	exists, err := s.HasOwners(ctx)
	if err != nil || exists {
		return false, err
	}
	if _, err := s.Create(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate verifies username and password
func (s *OwnerService) Authenticate(ctx context.Context, username, password string) (*models.Owner, error) {
	owner, err := s.repo.GetOwnerByUsername(ctx, username)
	if err != nil || !owner.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLogin(ctx, owner.ID.String()); err != nil {
		s.logger.Warn().Err(err).Str("username", owner.Username).Msg("failed to update last_login")
	}

	now := time.Now().UTC()
	owner.LastLogin = &now
	return owner, nil
}
