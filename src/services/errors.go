package services

import "errors"

// Sentinel errors for explicit error handling
// These errors allow callers to distinguish between different failure modes
// using errors.Is() instead of string matching

// Validation path
var (
	// ErrMissingKey indicates no key, a blank key or a non-string key was presented
	ErrMissingKey = errors.New("api key is required")

	// ErrInvalidFormat indicates the key does not carry the rot- prefix
	ErrInvalidFormat = errors.New("invalid api key format")

	// ErrKeyNotFound indicates the requested key does not exist
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyDisabled indicates the key exists but is switched off
	ErrKeyDisabled = errors.New("api key is disabled")

	// ErrQuotaExceeded indicates usage has reached the monthly limit
	ErrQuotaExceeded = errors.New("api key usage limit exceeded")

	// ErrStoreUnavailable indicates the lookup failed for a reason other than "no rows"
	ErrStoreUnavailable = errors.New("key store unavailable")
)

// Management path
var (
	ErrDuplicateName        = errors.New("a key with this name already exists")
	ErrKeyConflict          = errors.New("api key value already exists")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrConflictingReference = errors.New("key is referenced by other data")
	ErrNotFoundOrForbidden  = errors.New("key not found or not owned by caller")

	ErrCreateFailed = errors.New("failed to create api key")
	ErrUpdateFailed = errors.New("failed to update api key")
	ErrDeleteFailed = errors.New("failed to delete api key")

	ErrNameRequired  = errors.New("key name is required")
	ErrInvalidLimit  = errors.New("monthly limit must be a positive integer")
	ErrInvalidUpdate = errors.New("invalid key update")
)

// Owner accounts
var (
	// ErrInvalidCredentials indicates authentication failed
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrOwnerExists indicates the username is already taken
	ErrOwnerExists = errors.New("owner already exists")
)
