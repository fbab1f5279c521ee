package repositories

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup matches no row, or a scoped
// mutation affects zero rows
var ErrNotFound = errors.New("record not found")

// Store error codes. They follow the SQLSTATE values Postgres reports so the
// pgx store can pass them through unchanged.
const (
	CodeUniqueViolation       = "23505"
	CodeForeignKeyViolation   = "23503"
	CodeCheckViolation        = "23514"
	CodeInsufficientPrivilege = "42501"
	CodeNumericOutOfRange     = "22003"
)

// StoreError is a constraint or authorization failure reported by a store
type StoreError struct {
	Code       string
	Constraint string
	Message    string
}

func (e *StoreError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("store error %s on %s: %s", e.Code, e.Constraint, e.Message)
	}
	return fmt.Sprintf("store error %s: %s", e.Code, e.Message)
}

// AsStoreError unwraps err into a *StoreError
func AsStoreError(err error) (*StoreError, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasCode reports whether err is a StoreError with the given code
func HasCode(err error, code string) bool {
	se, ok := AsStoreError(err)
	return ok && se.Code == code
}
