package repositories

import (
	"context"

	"github.com/assafrot/api-keys-app/src/models"
)

// KeyStore defines the interface for API key data access.
// Every method except GetByKey and IncrementUsage is scoped by owner.
type KeyStore interface {
	// Validation lookup, scoped only by the key string
	GetByKey(ctx context.Context, key string) (*models.APIKey, error)

	// Owner-scoped reads
	GetByID(ctx context.Context, ownerID, id string) (*models.APIKey, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error)

	// Mutations. Update and Delete return ErrNotFound when no row matched (id, owner).
	Insert(ctx context.Context, key *models.APIKey) error
	Update(ctx context.Context, ownerID, id string, patch models.APIKeyPatch) (*models.APIKey, error)
	Delete(ctx context.Context, ownerID, id string) error
	IncrementUsage(ctx context.Context, id string) error

	// Change feed. INSERT/UPDATE are filtered by owner, DELETE is not.
	Subscribe(ctx context.Context, ownerID string) (<-chan models.ChangeEvent, error)
}

// OwnerStore defines the interface for owner account data access
type OwnerStore interface {
	CreateOwner(ctx context.Context, owner *models.Owner) error
	GetOwnerByUsername(ctx context.Context, username string) (*models.Owner, error)
	UpdateLastLogin(ctx context.Context, ownerID string) error
	CountOwners(ctx context.Context) (int, error)
}

// UsageResetter zeroes usage on every key at the start of a billing period
type UsageResetter interface {
	ResetAllUsage(ctx context.Context) (int64, error)
}

// Store is a complete backing store for the service
type Store interface {
	KeyStore
	OwnerStore
	UsageResetter
	Health(ctx context.Context) error
	Close()
}
