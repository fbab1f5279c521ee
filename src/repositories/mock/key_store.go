package mock

import (
	"context"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/repositories"
)

// KeyStore is a mock implementation of repositories.KeyStore
type KeyStore struct {
	// Function stubs that can be overridden in tests
	GetByKeyFunc       func(ctx context.Context, key string) (*models.APIKey, error)
	GetByIDFunc        func(ctx context.Context, ownerID, id string) (*models.APIKey, error)
	ListByOwnerFunc    func(ctx context.Context, ownerID string) ([]models.APIKey, error)
	InsertFunc         func(ctx context.Context, key *models.APIKey) error
	UpdateFunc         func(ctx context.Context, ownerID, id string, patch models.APIKeyPatch) (*models.APIKey, error)
	DeleteFunc         func(ctx context.Context, ownerID, id string) error
	IncrementUsageFunc func(ctx context.Context, id string) error
	SubscribeFunc      func(ctx context.Context, ownerID string) (<-chan models.ChangeEvent, error)
	ResetAllUsageFunc  func(ctx context.Context) (int64, error)

	// Call tracking
	Calls map[string][]interface{}
}

// NewKeyStore creates a new mock key store
func NewKeyStore() *KeyStore {
	return &KeyStore{
		Calls: make(map[string][]interface{}),
	}
}

func (m *KeyStore) GetByKey(ctx context.Context, key string) (*models.APIKey, error) {
	m.Calls["GetByKey"] = append(m.Calls["GetByKey"], key)
	if m.GetByKeyFunc != nil {
		return m.GetByKeyFunc(ctx, key)
	}
	return nil, repositories.ErrNotFound
}

func (m *KeyStore) GetByID(ctx context.Context, ownerID, id string) (*models.APIKey, error) {
	m.Calls["GetByID"] = append(m.Calls["GetByID"], []interface{}{ownerID, id})
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, ownerID, id)
	}
	return nil, repositories.ErrNotFound
}

func (m *KeyStore) ListByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	m.Calls["ListByOwner"] = append(m.Calls["ListByOwner"], ownerID)
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, ownerID)
	}
	return nil, nil
}

func (m *KeyStore) Insert(ctx context.Context, key *models.APIKey) error {
	m.Calls["Insert"] = append(m.Calls["Insert"], key)
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, key)
	}
	return nil
}

func (m *KeyStore) Update(ctx context.Context, ownerID, id string, patch models.APIKeyPatch) (*models.APIKey, error) {
	m.Calls["Update"] = append(m.Calls["Update"], []interface{}{ownerID, id, patch})
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, ownerID, id, patch)
	}
	return nil, repositories.ErrNotFound
}

func (m *KeyStore) Delete(ctx context.Context, ownerID, id string) error {
	m.Calls["Delete"] = append(m.Calls["Delete"], []interface{}{ownerID, id})
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, ownerID, id)
	}
	return nil
}

func (m *KeyStore) IncrementUsage(ctx context.Context, id string) error {
	m.Calls["IncrementUsage"] = append(m.Calls["IncrementUsage"], id)
	if m.IncrementUsageFunc != nil {
		return m.IncrementUsageFunc(ctx, id)
	}
	return nil
}

func (m *KeyStore) Subscribe(ctx context.Context, ownerID string) (<-chan models.ChangeEvent, error) {
	m.Calls["Subscribe"] = append(m.Calls["Subscribe"], ownerID)
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, ownerID)
	}
	ch := make(chan models.ChangeEvent)
	close(ch)
	return ch, nil
}

func (m *KeyStore) ResetAllUsage(ctx context.Context) (int64, error) {
	m.Calls["ResetAllUsage"] = append(m.Calls["ResetAllUsage"], nil)
	if m.ResetAllUsageFunc != nil {
		return m.ResetAllUsageFunc(ctx)
	}
	return 0, nil
}

// Ensure KeyStore implements the interfaces
var (
	_ repositories.KeyStore      = (*KeyStore)(nil)
	_ repositories.UsageResetter = (*KeyStore)(nil)
)
