package services

import (
	"context"
	"errors"
	"testing"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/repositories"
	"github.com/assafrot/api-keys-app/src/repositories/mock"
)

func storeWith(records ...models.APIKey) *mock.KeyStore {
	m := mock.NewKeyStore()
	m.GetByKeyFunc = func(ctx context.Context, key string) (*models.APIKey, error) {
		for i := range records {
			if records[i].Key == key {
				r := records[i]
				return &r, nil
			}
		}
		return nil, repositories.ErrNotFound
	}
	return m
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	store := storeWith(
		models.APIKey{ID: "k1", Name: "almost", Key: "rot-abc123", IsActive: true, Usage: 999, MonthlyLimit: 1000},
		models.APIKey{ID: "k2", Name: "full", Key: "rot-full", IsActive: true, Usage: 1000, MonthlyLimit: 1000},
		models.APIKey{ID: "k3", Name: "over", Key: "rot-over", IsActive: true, Usage: 1500, MonthlyLimit: 1000},
		models.APIKey{ID: "k4", Name: "off", Key: "rot-off", IsActive: false, Usage: 0, MonthlyLimit: 1000},
		models.APIKey{ID: "k5", Name: "off-and-full", Key: "rot-offfull", IsActive: false, Usage: 1000, MonthlyLimit: 1000},
	)
	vs := NewValidationService(store)

	tests := []struct {
		name      string
		candidate string
		want      Outcome
		err       error
	}{
		{"empty", "", OutcomeMissingKey, ErrMissingKey},
		{"whitespace only", "   \t", OutcomeMissingKey, ErrMissingKey},
		{"no prefix", "xyz", OutcomeInvalidFormat, ErrInvalidFormat},
		{"wrong case prefix", "ROT-abc123", OutcomeInvalidFormat, ErrInvalidFormat},
		{"unknown key", "rot-doesnotexist", OutcomeKeyNotFound, ErrKeyNotFound},
		{"disabled", "rot-off", OutcomeKeyDisabled, ErrKeyDisabled},
		{"disabled wins over quota", "rot-offfull", OutcomeKeyDisabled, ErrKeyDisabled},
		{"usage equals limit", "rot-full", OutcomeQuotaExceeded, ErrQuotaExceeded},
		{"usage above limit", "rot-over", OutcomeQuotaExceeded, ErrQuotaExceeded},
		{"valid", "rot-abc123", OutcomeValid, nil},
		{"valid with surrounding whitespace", "  rot-abc123\n", OutcomeValid, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := vs.Validate(ctx, tt.candidate)
			if v.Outcome != tt.want {
				t.Fatalf("expected outcome %s, got %s", tt.want, v.Outcome)
			}
			if !errors.Is(v.Err(), tt.err) || (tt.err == nil && v.Err() != nil) {
				t.Errorf("expected error %v, got %v", tt.err, v.Err())
			}
		})
	}
}

func TestValidate_SuccessCarriesCounters(t *testing.T) {
	store := storeWith(models.APIKey{ID: "k1", Name: "almost", Key: "rot-abc123", IsActive: true, Usage: 999, MonthlyLimit: 1000})
	v := NewValidationService(store).Validate(context.Background(), "rot-abc123")

	if !v.Valid() {
		t.Fatalf("expected valid verdict, got %s", v.Outcome)
	}
	if v.KeyID != "k1" || v.KeyName != "almost" {
		t.Errorf("unexpected identity %q/%q", v.KeyID, v.KeyName)
	}
	if v.Usage != 999 || v.MonthlyLimit != 1000 || v.Remaining != 1 {
		t.Errorf("expected 999/1000 remaining 1, got %d/%d remaining %d", v.Usage, v.MonthlyLimit, v.Remaining)
	}
}

func TestValidate_LooksUpTrimmedKey(t *testing.T) {
	store := storeWith()
	NewValidationService(store).Validate(context.Background(), "  rot-abc  ")

	calls := store.Calls["GetByKey"]
	if len(calls) != 1 || calls[0] != "rot-abc" {
		t.Errorf("expected one lookup of trimmed key, got %v", calls)
	}
}

func TestValidate_FormatFailureSkipsLookup(t *testing.T) {
	store := storeWith()
	NewValidationService(store).Validate(context.Background(), "xyz")

	if len(store.Calls["GetByKey"]) != 0 {
		t.Errorf("expected no store lookup for malformed key")
	}
}

func TestValidate_UnstorableKeySkipsLookup(t *testing.T) {
	store := mock.NewKeyStore()
	store.GetByKeyFunc = func(ctx context.Context, key string) (*models.APIKey, error) {
		return nil, &repositories.StoreError{Code: "22021", Message: "invalid byte sequence for encoding \"UTF8\": 0x00"}
	}
	vs := NewValidationService(store)

	for _, candidate := range []string{"rot-\x00abc", "rot-ab\x1bc", "rot-\xff\xfe", "rot-a\u0085b"} {
		v := vs.Validate(context.Background(), candidate)
		if v.Outcome != OutcomeKeyNotFound {
			t.Errorf("%q: expected key_not_found, got %s", candidate, v.Outcome)
		}
	}
	if len(store.Calls["GetByKey"]) != 0 {
		t.Errorf("expected no store lookup, got %d", len(store.Calls["GetByKey"]))
	}
}

func TestValidate_StoreFaultIsNotNotFound(t *testing.T) {
	store := mock.NewKeyStore()
	store.GetByKeyFunc = func(ctx context.Context, key string) (*models.APIKey, error) {
		return nil, errors.New("connection refused")
	}

	v := NewValidationService(store).Validate(context.Background(), "rot-abc")
	if v.Outcome != OutcomeStoreUnavailable {
		t.Fatalf("expected store_unavailable, got %s", v.Outcome)
	}
	if !errors.Is(v.Err(), ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", v.Err())
	}
}

func TestValidateValue_NonString(t *testing.T) {
	vs := NewValidationService(storeWith())
	for _, raw := range []interface{}{nil, 42.0, true, []interface{}{"rot-abc"}, map[string]interface{}{}} {
		if v := vs.ValidateValue(context.Background(), raw); v.Outcome != OutcomeMissingKey {
			t.Errorf("value %#v: expected missing_key, got %s", raw, v.Outcome)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeQuotaExceeded.String() != "quota_exceeded" {
		t.Errorf("unexpected name %q", OutcomeQuotaExceeded.String())
	}
	if Outcome(99).String() != "unknown" {
		t.Errorf("expected unknown for out-of-range outcome")
	}
}
