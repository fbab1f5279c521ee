package models

import (
	"strings"
	"time"
)

// APIKey is an issued key together with its quota counters
type APIKey struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Key          string     `json:"key"`
	OwnerID      string     `json:"user_id"`
	IsActive     bool       `json:"is_active"`
	Usage        int        `json:"usage"`
	MonthlyLimit int        `json:"monthly_limit"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
}

// Remaining returns how many requests are left this month, never below zero
func (k *APIKey) Remaining() int {
	if k.Usage >= k.MonthlyLimit {
		return 0
	}
	return k.MonthlyLimit - k.Usage
}

// QuotaExhausted reports whether usage has reached the monthly limit
func (k *APIKey) QuotaExhausted() bool {
	return k.Usage >= k.MonthlyLimit
}

// APIKeyPatch lists the mutable fields of a key. Nil fields are left untouched.
type APIKeyPatch struct {
	Name         *string `json:"name,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
	Usage        *int    `json:"usage,omitempty"`
	MonthlyLimit *int    `json:"monthly_limit,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p APIKeyPatch) IsEmpty() bool {
	return p.Name == nil && p.IsActive == nil && p.Usage == nil && p.MonthlyLimit == nil
}

// ApplyTo copies the set fields of the patch onto key
func (p APIKeyPatch) ApplyTo(key *APIKey) {
	if p.Name != nil {
		key.Name = *p.Name
	}
	if p.IsActive != nil {
		key.IsActive = *p.IsActive
	}
	if p.Usage != nil {
		key.Usage = *p.Usage
	}
	if p.MonthlyLimit != nil {
		key.MonthlyLimit = *p.MonthlyLimit
	}
}

// HasKeyPrefix reports whether s carries the issued-key prefix
func HasKeyPrefix(s string) bool {
	return strings.HasPrefix(s, KeyPrefix)
}

// MaskKey hides everything but the first few characters of a key for display
func MaskKey(key string) string {
	if len(key) <= maskedPrefixLen {
		return key
	}
	return key[:maskedPrefixLen] + strings.Repeat("*", len(key)-maskedPrefixLen)
}
