package services

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/repositories"
	"github.com/assafrot/api-keys-app/src/repositories/memory"
	"github.com/assafrot/api-keys-app/src/repositories/mock"
)

func newTestOwnerService(t *testing.T) *OwnerService {
	t.Helper()
	store := memory.NewStore()
	t.Cleanup(store.Close)
	return NewOwnerService(store).WithBcryptCost(bcrypt.MinCost)
}

func TestOwnerService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("hashes password", func(t *testing.T) {
		svc := newTestOwnerService(t)
		owner, err := svc.Create(ctx, "alice", "correct-horse")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if owner.PasswordHash == "correct-horse" {
			t.Error("password stored in plain text")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte("correct-horse")); err != nil {
			t.Errorf("hash does not match password: %v", err)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		svc := newTestOwnerService(t)
		if _, err := svc.Create(ctx, "", "correct-horse"); err == nil {
			t.Error("expected error for empty username")
		}
		if _, err := svc.Create(ctx, "alice", "short"); err == nil {
			t.Error("expected error for short password")
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc := newTestOwnerService(t)
		_, _ = svc.Create(ctx, "alice", "correct-horse")
		if _, err := svc.Create(ctx, "alice", "another-pass"); !errors.Is(err, ErrOwnerExists) {
			t.Errorf("expected ErrOwnerExists, got %v", err)
		}
	})
}

func TestOwnerService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestOwnerService(t)
	created, _ := svc.Create(ctx, "alice", "correct-horse")

	owner, err := svc.Authenticate(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if owner.ID != created.ID || owner.LastLogin == nil {
		t.Errorf("unexpected owner %+v", owner)
	}

	if _, err := svc.Authenticate(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestOwnerService_AuthenticateInactive(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	repo := mock.NewOwnerStore()
	repo.GetOwnerByUsernameFunc = func(ctx context.Context, username string) (*models.Owner, error) {
		return &models.Owner{Username: username, PasswordHash: string(hash), IsActive: false}, nil
	}

	svc := NewOwnerService(repo)
	if _, err := svc.Authenticate(context.Background(), "alice", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(repo.Calls["UpdateLastLogin"]) != 0 {
		t.Error("last_login should not be touched for a rejected login")
	}
}

func TestOwnerService_EnsureOwner(t *testing.T) {
	ctx := context.Background()
	svc := newTestOwnerService(t)

	created, err := svc.EnsureOwner(ctx, "", "")
	if err != nil || created {
		t.Fatalf("expected no-op without credentials, got %v, %v", created, err)
	}

	created, err = svc.EnsureOwner(ctx, "admin", "correct-horse")
	if err != nil || !created {
		t.Fatalf("expected owner to be seeded, got %v, %v", created, err)
	}

	created, err = svc.EnsureOwner(ctx, "other", "correct-horse")
	if err != nil || created {
		t.Errorf("expected no second seed, got %v, %v", created, err)
	}
}

func TestOwnerService_HasOwnersError(t *testing.T) {
	repo := mock.NewOwnerStore()
	repo.CountOwnersFunc = func(ctx context.Context) (int, error) {
		return 0, &repositories.StoreError{Code: "08006", Message: "connection failure"}
	}
	if _, err := NewOwnerService(repo).HasOwners(context.Background()); err == nil {
		t.Error("expected error")
	}
}
