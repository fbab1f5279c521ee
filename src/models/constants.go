package models

const (
	// KeyPrefix marks a string as an API key issued by this service
	KeyPrefix = "rot-"

	// DefaultMonthlyLimit is applied when a key is created without a usable limit
	DefaultMonthlyLimit = 1000

	// MaxCounter bounds usage and monthly_limit, which are INTEGER columns
	MaxCounter = 1<<31 - 1

	// maskedPrefixLen is how many leading characters MaskKey leaves visible
	maskedPrefixLen = 5
)

// ChangeType is the kind of row-level change carried by a ChangeEvent.
// Values match Postgres TG_OP so trigger payloads decode directly.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)
