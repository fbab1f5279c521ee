package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/assafrot/api-keys-app/src/logging"
	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/repositories"
)

// KeyService handles owner-scoped key management
type KeyService struct {
	store        repositories.KeyStore
	defaultLimit int
	generate     func() (string, error)
	logger       zerolog.Logger
}

// NewKeyService creates a new key service
func NewKeyService(store repositories.KeyStore) *KeyService {
	return &KeyService{
		store:        store,
		defaultLimit: models.DefaultMonthlyLimit,
		generate:     GenerateAPIKey,
		logger:       logging.NewLogger("keys"),
	}
}

// WithDefaultLimit overrides the limit used when none is supplied
func (ks *KeyService) WithDefaultLimit(limit int) *KeyService {
	if limit > 0 {
		ks.defaultLimit = limit
	}
	return ks
}

// DefaultLimit returns the limit applied when a create request carries none
func (ks *KeyService) DefaultLimit() int {
	return ks.defaultLimit
}

// ParseMonthlyLimit resolves a requested limit. Absent, non-numeric and zero
// values fall back to def; negative values and values above
// models.MaxCounter are rejected.
func ParseMonthlyLimit(raw interface{}, def int) (int, error) {
	var n int64
	switch v := raw.(type) {
	case nil:
		return def, nil
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return def, nil
		}
		if v < 0 || v > models.MaxCounter {
			return 0, ErrInvalidLimit
		}
		n = int64(v)
	case json.Number:
		return ParseMonthlyLimit(string(v), def)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrInvalidLimit
		}
		if err != nil {
			return def, nil
		}
		n = parsed
	default:
		return def, nil
	}

	switch {
	case n < 0, n > models.MaxCounter:
		return 0, ErrInvalidLimit
	case n == 0:
		return def, nil
	}
	return int(n), nil
}

// List returns the owner's keys, newest first
func (ks *KeyService) List(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	keys, err := ks.store.ListByOwner(ctx, ownerID)
	if err != nil {
		ks.logger.Error().Err(err).Str("owner_id", ownerID).Msg("failed to list keys")
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	if keys == nil {
		keys = []models.APIKey{}
	}
	return keys, nil
}

// Get returns one of the owner's keys
func (ks *KeyService) Get(ctx context.Context, ownerID, id string) (*models.APIKey, error) {
	key, err := ks.store.GetByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFoundOrForbidden
		}
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return key, nil
}

// Create issues a new key for ownerID
func (ks *KeyService) Create(ctx context.Context, ownerID, name string, limit interface{}) (*models.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	monthlyLimit, err := ParseMonthlyLimit(limit, ks.defaultLimit)
	if err != nil {
		return nil, err
	}

	value, err := ks.generate()
	if err != nil {
		ks.logger.Error().Err(err).Msg("key generation failed")
		return nil, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	key := &models.APIKey{
		Name:         name,
		Key:          value,
		OwnerID:      ownerID,
		IsActive:     true,
		Usage:        0,
		MonthlyLimit: monthlyLimit,
	}
	if err := ks.store.Insert(ctx, key); err != nil {
		return nil, ks.mapCreateError(err, ownerID)
	}

	ks.logger.Info().Str("owner_id", ownerID).Str("key_id", key.ID).Msg("api key created")
	return key, nil
}

func (ks *KeyService) mapCreateError(err error, ownerID string) error {
	if se, ok := repositories.AsStoreError(err); ok {
		switch se.Code {
		case repositories.CodeUniqueViolation:
			if strings.Contains(se.Constraint, "name") {
				return ErrDuplicateName
			}
			return ErrKeyConflict
		case repositories.CodeInsufficientPrivilege:
			return ErrPermissionDenied
		case repositories.CodeNumericOutOfRange:
			return ErrInvalidLimit
		}
	}
	ks.logger.Error().Err(err).Str("owner_id", ownerID).Msg("failed to insert key")
	return fmt.Errorf("%w: %w", ErrCreateFailed, err)
}

// Update applies patch to the key (id, ownerID)
func (ks *KeyService) Update(ctx context.Context, ownerID, id string, patch models.APIKeyPatch) (*models.APIKey, error) {
	if patch.IsEmpty() {
		return nil, ErrInvalidUpdate
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: %w", ErrInvalidUpdate, ErrNameRequired)
		}
		patch.Name = &trimmed
	}
	if patch.Usage != nil && (*patch.Usage < 0 || *patch.Usage > models.MaxCounter) {
		return nil, fmt.Errorf("%w: usage must be between 0 and %d", ErrInvalidUpdate, models.MaxCounter)
	}
	if patch.MonthlyLimit != nil && (*patch.MonthlyLimit <= 0 || *patch.MonthlyLimit > models.MaxCounter) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpdate, ErrInvalidLimit)
	}

	key, err := ks.store.Update(ctx, ownerID, id, patch)
	if err != nil {
		return nil, ks.mapUpdateError(err, ownerID, id)
	}
	return key, nil
}

func (ks *KeyService) mapUpdateError(err error, ownerID, id string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFoundOrForbidden
	}
	if se, ok := repositories.AsStoreError(err); ok {
		switch se.Code {
		case repositories.CodeUniqueViolation:
			return ErrDuplicateName
		case repositories.CodeInsufficientPrivilege:
			return ErrPermissionDenied
		case repositories.CodeCheckViolation, repositories.CodeNumericOutOfRange:
			return fmt.Errorf("%w: %s", ErrInvalidUpdate, se.Message)
		}
	}
	ks.logger.Error().Err(err).Str("owner_id", ownerID).Str("key_id", id).Msg("failed to update key")
	return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
}

// Toggle flips the active flag of the key (id, ownerID)
func (ks *KeyService) Toggle(ctx context.Context, ownerID, id string) (*models.APIKey, error) {
	current, err := ks.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	active := !current.IsActive
	return ks.Update(ctx, ownerID, id, models.APIKeyPatch{IsActive: &active})
}

// ResetUsage sets usage back to zero
func (ks *KeyService) ResetUsage(ctx context.Context, ownerID, id string) (*models.APIKey, error) {
	zero := 0
	return ks.Update(ctx, ownerID, id, models.APIKeyPatch{Usage: &zero})
}

// Delete removes the key (id, ownerID)
func (ks *KeyService) Delete(ctx context.Context, ownerID, id string) error {
	err := ks.store.Delete(ctx, ownerID, id)
	if err == nil {
		ks.logger.Info().Str("owner_id", ownerID).Str("key_id", id).Msg("api key deleted")
		return nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFoundOrForbidden
	}
	if se, ok := repositories.AsStoreError(err); ok {
		switch se.Code {
		case repositories.CodeInsufficientPrivilege:
			return ErrPermissionDenied
		case repositories.CodeForeignKeyViolation:
			return ErrConflictingReference
		}
	}
	ks.logger.Error().Err(err).Str("owner_id", ownerID).Str("key_id", id).Msg("failed to delete key")
	return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
}

// GetByKey looks a key up by value for validation. Store errors are passed
// through unchanged so the validator can tell a miss from an outage.
func (ks *KeyService) GetByKey(ctx context.Context, key string) (*models.APIKey, error) {
	return ks.store.GetByKey(ctx, key)
}

var _ KeyLookup = (*KeyService)(nil)

// RecordUsage counts one request against the key and stamps last_used
func (ks *KeyService) RecordUsage(ctx context.Context, id string) error {
	if err := ks.store.IncrementUsage(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// TotalUsage sums usage over the owner's keys
func (ks *KeyService) TotalUsage(ctx context.Context, ownerID string) (int, error) {
	keys, err := ks.List(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return SumUsage(keys), nil
}

// SumUsage adds up usage across keys
func SumUsage(keys []models.APIKey) int {
	total := 0
	for _, k := range keys {
		total += k.Usage
	}
	return total
}

// Subscribe returns the owner's change feed
func (ks *KeyService) Subscribe(ctx context.Context, ownerID string) (<-chan models.ChangeEvent, error) {
	ch, err := ks.store.Subscribe(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to key changes: %w", err)
	}
	return ch, nil
}
