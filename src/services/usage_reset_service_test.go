package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/assafrot/api-keys-app/src/repositories/mock"
)

func TestUsageResetService_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := mock.NewKeyStore()
	store.ResetAllUsageFunc = func(ctx context.Context) (int64, error) { return 3, nil }

	now := time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)
	svc := NewUsageResetService(store, true)
	svc.now = func() time.Time { return now }

	if svc.RunOnce(ctx) {
		t.Fatal("first run should only record the period")
	}
	if svc.RunOnce(ctx) {
		t.Fatal("same month should not reset")
	}

	now = now.Add(2 * time.Hour)
	if !svc.RunOnce(ctx) {
		t.Fatal("expected reset on month rollover")
	}
	if svc.RunOnce(ctx) {
		t.Error("reset must only happen once per month")
	}
	if n := len(store.Calls["ResetAllUsage"]); n != 1 {
		t.Errorf("expected 1 reset call, got %d", n)
	}
}

func TestUsageResetService_RetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	fail := true
	store := mock.NewKeyStore()
	store.ResetAllUsageFunc = func(ctx context.Context) (int64, error) {
		if fail {
			return 0, errors.New("database unavailable")
		}
		return 1, nil
	}

	now := time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)
	svc := NewUsageResetService(store, true)
	svc.now = func() time.Time { return now }
	svc.RunOnce(ctx)

	now = now.Add(2 * time.Hour)
	if svc.RunOnce(ctx) {
		t.Fatal("failed reset should not report success")
	}
	fail = false
	if !svc.RunOnce(ctx) {
		t.Error("expected retry to reset")
	}
}

func TestUsageResetService_Disabled(t *testing.T) {
	store := mock.NewKeyStore()
	svc := NewUsageResetService(store, false)
	svc.Start(context.Background())
	svc.Stop()
	svc.Stop()

	if len(store.Calls["ResetAllUsage"]) != 0 {
		t.Error("disabled service should not touch the store")
	}
}
