package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(owner, name, key string) *models.APIKey {
	return &models.APIKey{Name: name, Key: key, OwnerID: owner, IsActive: true, MonthlyLimit: 1000}
}

func TestInsertAndGetByKey(t *testing.T) {
	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	k := newKey("alice", "Production", "rot-abc123")
	require.NoError(t, s.Insert(ctx, k))
	assert.NotEmpty(t, k.ID)
	assert.False(t, k.CreatedAt.IsZero())

	got, err := s.GetByKey(ctx, "rot-abc123")
	require.NoError(t, err)
	assert.Equal(t, k.ID, got.ID)

	_, err = s.GetByKey(ctx, "rot-missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestInsert_DuplicateNameCaseInsensitive(t *testing.T) {
	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newKey("alice", "Production", "rot-1")))

	err := s.Insert(ctx, newKey("alice", "PRODUCTION", "rot-2"))
	se, ok := repositories.AsStoreError(err)
	require.True(t, ok)
	assert.Equal(t, repositories.CodeUniqueViolation, se.Code)
	assert.Contains(t, se.Constraint, "name")

	// a different owner may reuse the name
	assert.NoError(t, s.Insert(ctx, newKey("bob", "production", "rot-3")))
}

func TestInsert_DuplicateKey(t *testing.T) {
	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newKey("alice", "a", "rot-same")))
	err := s.Insert(ctx, newKey("bob", "b", "rot-same"))

	se, ok := repositories.AsStoreError(err)
	require.True(t, ok)
	assert.Equal(t, constraintKey, se.Constraint)
}

func TestListByOwner_NewestFirst(t *testing.T) {
	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"one", "two", "three"} {
		k := newKey("alice", name, "rot-"+name)
		k.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.Insert(ctx, k))
	}
	require.NoError(t, s.Insert(ctx, newKey("bob", "other", "rot-other")))

	keys, err := s.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, "three", keys[0].Name)
	assert.Equal(t, "one", keys[2].Name)
}

func TestUpdateAndDelete_ScopedByOwner(t *testing.T) {
	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	k := newKey("alice", "Production", "rot-abc")
	require.NoError(t, s.Insert(ctx, k))

	name := "hijacked"
	_, err := s.Update(ctx, "mallory", k.ID, models.APIKeyPatch{Name: &name})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "mallory", k.ID), repositories.ErrNotFound)

	got, err := s.GetByID(ctx, "alice", k.ID)
	require.NoError(t, err)
	assert.Equal(t, "Production", got.Name)

	require.NoError(t, s.Delete(ctx, "alice", k.ID))
	_, err = s.GetByID(ctx, "alice", k.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestUpdate_RejectsInvalidRow(t *testing.T) {
	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	k := newKey("alice", "Production", "rot-abc")
	require.NoError(t, s.Insert(ctx, k))

	zero := 0
	_, err := s.Update(ctx, "alice", k.ID, models.APIKeyPatch{MonthlyLimit: &zero})
	assert.True(t, repositories.HasCode(err, repositories.CodeCheckViolation))
}

func TestIncrementUsage(t *testing.T) {
	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	k := newKey("alice", "Production", "rot-abc")
	require.NoError(t, s.Insert(ctx, k))
	require.NoError(t, s.IncrementUsage(ctx, k.ID))

	got, err := s.GetByKey(ctx, "rot-abc")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Usage)
	assert.NotNil(t, got.LastUsed)
}

func TestSubscribe_ReceivesOwnEvents(t *testing.T) {
	s := NewStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, s.Insert(ctx, newKey("bob", "b", "rot-b")))
	k := newKey("alice", "a", "rot-a")
	require.NoError(t, s.Insert(ctx, k))

	select {
	case ev := <-ch:
		assert.Equal(t, models.ChangeInsert, ev.Type)
		assert.Equal(t, k.ID, ev.New.ID)
	case <-time.After(time.Second):
		t.Fatal("expected insert event")
	}
}

func TestOwners(t *testing.T) {
	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	o := &models.Owner{Username: "alice", PasswordHash: "x", IsActive: true}
	require.NoError(t, s.CreateOwner(ctx, o))
	assert.True(t, repositories.HasCode(s.CreateOwner(ctx, &models.Owner{Username: "alice"}), repositories.CodeUniqueViolation))

	n, err := s.CountOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetOwnerByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	require.NoError(t, s.UpdateLastLogin(ctx, o.ID.String()))
	got, _ = s.GetOwnerByUsername(ctx, "alice")
	assert.NotNil(t, got.LastLogin)
}

func TestResetAllUsage(t *testing.T) {
	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	used := &models.APIKey{Name: "used", Key: "rot-used", OwnerID: "alice", IsActive: true, Usage: 7, MonthlyLimit: 10}
	fresh := &models.APIKey{Name: "fresh", Key: "rot-fresh", OwnerID: "alice", IsActive: true, MonthlyLimit: 10}
	require.NoError(t, s.Insert(ctx, used))
	require.NoError(t, s.Insert(ctx, fresh))

	n, err := s.ResetAllUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetByKey(ctx, "rot-used")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Usage)
}

func TestListByOwner_ConcurrentWithIncrement(t *testing.T) {
	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	k := newKey("alice", "Production", "rot-abc")
	require.NoError(t, s.Insert(ctx, k))
	require.NoError(t, s.Insert(ctx, newKey("alice", "Staging", "rot-def")))

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementUsage(ctx, k.ID))
		}()
		go func() {
			defer wg.Done()
			keys, err := s.ListByOwner(ctx, "alice")
			assert.NoError(t, err)
			assert.Len(t, keys, 2)
		}()
	}
	wg.Wait()

	got, err := s.GetByKey(ctx, "rot-abc")
	require.NoError(t, err)
	assert.Equal(t, 200, got.Usage)
}

func TestSubscribe_EventsInCommitOrder(t *testing.T) {
	s := NewStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k := newKey("alice", "Production", "rot-abc")
	require.NoError(t, s.Insert(ctx, k))

	ch, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementUsage(ctx, k.ID))
		}()
	}
	wg.Wait()

	for want := 1; want <= writers; want++ {
		select {
		case ev := <-ch:
			require.Equal(t, models.ChangeUpdate, ev.Type)
			assert.Equal(t, want, ev.New.Usage)
			assert.Equal(t, want-1, ev.Old.Usage)
		case <-time.After(time.Second):
			t.Fatalf("missing update %d", want)
		}
	}
}
