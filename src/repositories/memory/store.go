// Package memory is an in-process Store used by tests and by `serve --memory`.
// It enforces the same uniqueness and ownership rules as the Postgres schema.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/realtime"
	"github.com/assafrot/api-keys-app/src/repositories"
)

// Constraint names mirror the Postgres schema
const (
	constraintKey       = "api_keys_key_key"
	constraintOwnerName = "api_keys_user_id_name_key"
	constraintUsername  = "owners_username_key"
)

type entry struct {
	key models.APIKey
	seq uint64
}

// Store keeps keys and owners in memory
type Store struct {
	mu     sync.RWMutex
	keys   map[string]*entry
	owners map[string]*models.Owner
	seq    uint64
	hub    *realtime.Hub
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		keys:   make(map[string]*entry),
		owners: make(map[string]*models.Owner),
		hub:    realtime.NewHub(),
	}
}

func uniqueViolation(constraint string) error {
	return &repositories.StoreError{
		Code:       repositories.CodeUniqueViolation,
		Constraint: constraint,
		Message:    "duplicate key value violates unique constraint",
	}
}

func checkViolation(msg string) error {
	return &repositories.StoreError{Code: repositories.CodeCheckViolation, Message: msg}
}

func validateRow(k *models.APIKey) error {
	switch {
	case strings.TrimSpace(k.Name) == "":
		return checkViolation("name must not be blank")
	case k.Usage < 0:
		return checkViolation("usage must not be negative")
	case k.MonthlyLimit <= 0:
		return checkViolation("monthly_limit must be positive")
	case k.Usage > models.MaxCounter || k.MonthlyLimit > models.MaxCounter:
		return &repositories.StoreError{Code: repositories.CodeNumericOutOfRange, Message: "integer out of range"}
	case len(k.Key) <= len(models.KeyPrefix) || !models.HasKeyPrefix(k.Key):
		return checkViolation("key has invalid format")
	}
	return nil
}

// conflict checks the unique constraints against every row except skipID.
// Callers hold s.mu.
func (s *Store) conflict(k *models.APIKey, skipID string) error {
	for id, e := range s.keys {
		if id == skipID {
			continue
		}
		if e.key.Key == k.Key {
			return uniqueViolation(constraintKey)
		}
		if e.key.OwnerID == k.OwnerID && strings.EqualFold(e.key.Name, k.Name) {
			return uniqueViolation(constraintOwnerName)
		}
	}
	return nil
}

func (s *Store) GetByKey(ctx context.Context, key string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.keys {
		if e.key.Key == key {
			k := e.key
			return &k, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *Store) GetByID(ctx context.Context, ownerID, id string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.keys[id]
	if !ok || e.key.OwnerID != ownerID {
		return nil, repositories.ErrNotFound
	}
	k := e.key
	return &k, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	s.mu.RLock()
	rows := make([]entry, 0)
	for _, e := range s.keys {
		if e.key.OwnerID == ownerID {
			rows = append(rows, *e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.key.CreatedAt.Equal(b.key.CreatedAt) {
			return a.key.CreatedAt.After(b.key.CreatedAt)
		}
		return a.seq > b.seq
	})

	keys := make([]models.APIKey, len(rows))
	for i, e := range rows {
		keys[i] = e.key
	}
	return keys, nil
}

// Mutations publish while still holding s.mu so subscribers see changes in
// commit order. Publish never blocks.

func (s *Store) Insert(ctx context.Context, key *models.APIKey) error {
	if err := validateRow(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if _, exists := s.keys[key.ID]; exists {
		return uniqueViolation("api_keys_pkey")
	}
	if err := s.conflict(key, ""); err != nil {
		return err
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	s.seq++
	s.keys[key.ID] = &entry{key: *key, seq: s.seq}
	row := *key

	s.hub.Publish(models.ChangeEvent{Type: models.ChangeInsert, New: &row})
	return nil
}

func (s *Store) Update(ctx context.Context, ownerID, id string, patch models.APIKeyPatch) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.keys[id]
	if !ok || e.key.OwnerID != ownerID {
		return nil, repositories.ErrNotFound
	}

	next := e.key
	patch.ApplyTo(&next)
	if err := validateRow(&next); err != nil {
		return nil, err
	}
	if err := s.conflict(&next, id); err != nil {
		return nil, err
	}
	old := e.key
	e.key = next

	published := next
	s.hub.Publish(models.ChangeEvent{Type: models.ChangeUpdate, New: &published, Old: &old})
	return &next, nil
}

func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.keys[id]
	if !ok || e.key.OwnerID != ownerID {
		return repositories.ErrNotFound
	}
	delete(s.keys, id)
	old := e.key

	s.hub.Publish(models.ChangeEvent{Type: models.ChangeDelete, Old: &old})
	return nil
}

func (s *Store) IncrementUsage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.keys[id]
	if !ok {
		return repositories.ErrNotFound
	}
	old := e.key
	now := time.Now().UTC()
	e.key.Usage++
	e.key.LastUsed = &now
	next := e.key

	s.hub.Publish(models.ChangeEvent{Type: models.ChangeUpdate, New: &next, Old: &old})
	return nil
}

// Subscribers returns the number of live change-feed subscriptions
func (s *Store) Subscribers() int {
	return s.hub.Subscribers()
}

// ResetAllUsage zeroes usage on every key that has any
func (s *Store) ResetAllUsage(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reset int64
	for _, e := range s.keys {
		if e.key.Usage == 0 {
			continue
		}
		old := e.key
		e.key.Usage = 0
		next := e.key
		s.hub.Publish(models.ChangeEvent{Type: models.ChangeUpdate, New: &next, Old: &old})
		reset++
	}
	return reset, nil
}

func (s *Store) Subscribe(ctx context.Context, ownerID string) (<-chan models.ChangeEvent, error) {
	return s.hub.Subscribe(ctx, ownerID), nil
}

func (s *Store) CreateOwner(ctx context.Context, owner *models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.owners {
		if o.Username == owner.Username {
			return uniqueViolation(constraintUsername)
		}
	}
	if owner.ID == uuid.Nil {
		owner.ID = uuid.New()
	}
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = time.Now().UTC()
	}
	stored := *owner
	s.owners[owner.ID.String()] = &stored
	return nil
}

func (s *Store) GetOwnerByUsername(ctx context.Context, username string) (*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.owners {
		if o.Username == username {
			found := *o
			return &found, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *Store) UpdateLastLogin(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.owners[ownerID]
	if !ok {
		return repositories.ErrNotFound
	}
	now := time.Now().UTC()
	o.LastLogin = &now
	return nil
}

func (s *Store) CountOwners(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.owners), nil
}

// Health always succeeds for the in-memory store
func (s *Store) Health(ctx context.Context) error {
	return nil
}

// Close ends every change-feed subscription
func (s *Store) Close() {
	s.hub.Close()
}

var _ repositories.Store = (*Store)(nil)
