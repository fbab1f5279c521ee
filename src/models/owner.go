package models

import (
	"time"

	"github.com/google/uuid"
)

// Owner is the authenticated principal that administers a set of API keys
type Owner struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // never expose
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login"`
	IsActive     bool       `json:"is_active"`
}
