package mock

import (
	"context"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/repositories"
)

// OwnerStore is a mock implementation of repositories.OwnerStore
type OwnerStore struct {
	// Function stubs that can be overridden in tests
	CreateOwnerFunc        func(ctx context.Context, owner *models.Owner) error
	GetOwnerByUsernameFunc func(ctx context.Context, username string) (*models.Owner, error)
	UpdateLastLoginFunc    func(ctx context.Context, ownerID string) error
	CountOwnersFunc        func(ctx context.Context) (int, error)

	// Call tracking
	Calls map[string][]interface{}
}

// NewOwnerStore creates a new mock owner store
func NewOwnerStore() *OwnerStore {
	return &OwnerStore{
		Calls: make(map[string][]interface{}),
	}
}

func (m *OwnerStore) CreateOwner(ctx context.Context, owner *models.Owner) error {
	m.Calls["CreateOwner"] = append(m.Calls["CreateOwner"], owner)
	if m.CreateOwnerFunc != nil {
		return m.CreateOwnerFunc(ctx, owner)
	}
	return nil
}

func (m *OwnerStore) GetOwnerByUsername(ctx context.Context, username string) (*models.Owner, error) {
	m.Calls["GetOwnerByUsername"] = append(m.Calls["GetOwnerByUsername"], username)
	if m.GetOwnerByUsernameFunc != nil {
		return m.GetOwnerByUsernameFunc(ctx, username)
	}
	return nil, repositories.ErrNotFound
}

func (m *OwnerStore) UpdateLastLogin(ctx context.Context, ownerID string) error {
	m.Calls["UpdateLastLogin"] = append(m.Calls["UpdateLastLogin"], ownerID)
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(ctx, ownerID)
	}
	return nil
}

func (m *OwnerStore) CountOwners(ctx context.Context) (int, error) {
	m.Calls["CountOwners"] = append(m.Calls["CountOwners"], nil)
	if m.CountOwnersFunc != nil {
		return m.CountOwnersFunc(ctx)
	}
	return 0, nil
}

// Ensure OwnerStore implements the interface
var _ repositories.OwnerStore = (*OwnerStore)(nil)
