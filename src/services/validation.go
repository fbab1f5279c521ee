package services

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/assafrot/api-keys-app/src/logging"
	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/repositories"
)

// Outcome is the result class of a validation
type Outcome int

const (
	OutcomeValid Outcome = iota
	OutcomeMissingKey
	OutcomeInvalidFormat
	OutcomeKeyNotFound
	OutcomeKeyDisabled
	OutcomeQuotaExceeded
	OutcomeStoreUnavailable
)

var outcomeNames = map[Outcome]string{
	OutcomeValid:            "valid",
	OutcomeMissingKey:       "missing_key",
	OutcomeInvalidFormat:    "invalid_format",
	OutcomeKeyNotFound:      "key_not_found",
	OutcomeKeyDisabled:      "key_disabled",
	OutcomeQuotaExceeded:    "quota_exceeded",
	OutcomeStoreUnavailable: "store_unavailable",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

var outcomeErrors = map[Outcome]error{
	OutcomeMissingKey:       ErrMissingKey,
	OutcomeInvalidFormat:    ErrInvalidFormat,
	OutcomeKeyNotFound:      ErrKeyNotFound,
	OutcomeKeyDisabled:      ErrKeyDisabled,
	OutcomeQuotaExceeded:    ErrQuotaExceeded,
	OutcomeStoreUnavailable: ErrStoreUnavailable,
}

// Verdict is the tagged result of validating one key.
// The counters are only set when a record was found.
type Verdict struct {
	Outcome      Outcome
	KeyID        string
	KeyName      string
	Usage        int
	MonthlyLimit int
	Remaining    int
}

// Valid reports whether the key passed every check
func (v Verdict) Valid() bool {
	return v.Outcome == OutcomeValid
}

// Err returns the sentinel error for a failing verdict, nil when valid
func (v Verdict) Err() error {
	return outcomeErrors[v.Outcome]
}

// KeyLookup is the read side the validator needs from a key store
type KeyLookup interface {
	GetByKey(ctx context.Context, key string) (*models.APIKey, error)
}

// ValidationService checks presented keys against the store
type ValidationService struct {
	keys   KeyLookup
	logger zerolog.Logger
}

// NewValidationService creates a new validation service
func NewValidationService(keys KeyLookup) *ValidationService {
	return &ValidationService{
		keys:   keys,
		logger: logging.NewLogger("validation"),
	}
}

// ValidateValue validates a raw decoded value. Anything that is not a string
// is treated as a missing key.
func (vs *ValidationService) ValidateValue(ctx context.Context, raw interface{}) Verdict {
	s, ok := raw.(string)
	if !ok {
		return Verdict{Outcome: OutcomeMissingKey}
	}
	return vs.Validate(ctx, s)
}

// Validate runs the ordered checks; the first failing check decides the verdict
func (vs *ValidationService) Validate(ctx context.Context, candidate string) Verdict {
	key := strings.TrimSpace(candidate)
	if key == "" {
		return Verdict{Outcome: OutcomeMissingKey}
	}
	if !models.HasKeyPrefix(key) {
		return Verdict{Outcome: OutcomeInvalidFormat}
	}
	if !storable(key) {
		return Verdict{Outcome: OutcomeKeyNotFound}
	}

	record, err := vs.keys.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Verdict{Outcome: OutcomeKeyNotFound}
		}
		vs.logger.Error().Err(err).Msg("key lookup failed")
		return Verdict{Outcome: OutcomeStoreUnavailable}
	}

	v := Verdict{
		KeyID:        record.ID,
		KeyName:      record.Name,
		Usage:        record.Usage,
		MonthlyLimit: record.MonthlyLimit,
	}
	switch {
	case !record.IsActive:
		v.Outcome = OutcomeKeyDisabled
	case record.QuotaExhausted():
		v.Outcome = OutcomeQuotaExceeded
	default:
		v.Outcome = OutcomeValid
		v.Remaining = record.MonthlyLimit - record.Usage
	}
	return v
}

// storable reports whether key could be held in a text column. Invalid UTF-8
// and control characters never match an issued key, and Postgres rejects NUL
// outright.
func storable(key string) bool {
	if !utf8.ValidString(key) {
		return false
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
