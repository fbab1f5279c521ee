package models

// ChangeEvent is a row-level change on the api_keys table.
// INSERT and UPDATE carry New; DELETE carries Old.
type ChangeEvent struct {
	Type ChangeType `json:"type"`
	New  *APIKey    `json:"new,omitempty"`
	Old  *APIKey    `json:"old,omitempty"`
}

// Record returns the row the event is about
func (e ChangeEvent) Record() *APIKey {
	if e.Type == ChangeDelete {
		return e.Old
	}
	return e.New
}

// OwnerID returns the owner of the affected row, or "" when the event carries no row
func (e ChangeEvent) OwnerID() string {
	if r := e.Record(); r != nil {
		return r.OwnerID
	}
	return ""
}
