package realtime

import (
	"strings"
	"sync"

	"github.com/assafrot/api-keys-app/src/models"
)

// Visible reports whether ev concerns a record owned by viewer
func Visible(ev models.ChangeEvent, viewer string) bool {
	switch ev.Type {
	case models.ChangeInsert, models.ChangeUpdate:
		return ev.New != nil && ev.New.OwnerID == viewer
	case models.ChangeDelete:
		return ev.Old != nil && ev.Old.OwnerID == viewer
	default:
		return false
	}
}

// Reduce merges a change event into viewer's key list and returns the result.
// keys is newest first and is never modified in place.
func Reduce(keys []models.APIKey, ev models.ChangeEvent, viewer string) []models.APIKey {
	if !Visible(ev, viewer) {
		return keys
	}

	switch ev.Type {
	case models.ChangeInsert:
		if indexOf(keys, ev.New.ID) >= 0 {
			return keys
		}
		out := make([]models.APIKey, 0, len(keys)+1)
		out = append(out, *ev.New)
		return append(out, keys...)

	case models.ChangeUpdate:
		i := indexOf(keys, ev.New.ID)
		if i < 0 {
			return keys
		}
		out := append([]models.APIKey(nil), keys...)
		out[i] = *ev.New
		return out

	case models.ChangeDelete:
		return without(keys, ev.Old.ID)
	}

	return keys
}

func indexOf(keys []models.APIKey, id string) int {
	for i := range keys {
		if keys[i].ID == id {
			return i
		}
	}
	return -1
}

func without(keys []models.APIKey, id string) []models.APIKey {
	i := indexOf(keys, id)
	if i < 0 {
		return keys
	}
	out := make([]models.APIKey, 0, len(keys)-1)
	out = append(out, keys[:i]...)
	return append(out, keys[i+1:]...)
}

// Name validation messages shown before a create request is sent
const (
	msgNameRequired  = "Key name is required"
	msgNameDuplicate = "A key with this name already exists"
)

// Mirror is one viewer's local copy of their keys. Local mutations are
// applied optimistically; the change feed reconciles it through Reduce.
type Mirror struct {
	mu      sync.RWMutex
	ownerID string
	keys    []models.APIKey
}

// NewMirror creates an empty mirror for ownerID
func NewMirror(ownerID string) *Mirror {
	return &Mirror{ownerID: ownerID}
}

// OwnerID returns the viewer the mirror belongs to
func (m *Mirror) OwnerID() string {
	return m.ownerID
}

// Load replaces the mirror's contents
func (m *Mirror) Load(keys []models.APIKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append([]models.APIKey(nil), keys...)
}

// Apply merges a change event from the feed
func (m *Mirror) Apply(ev models.ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = Reduce(m.keys, ev, m.ownerID)
}

// Add prepends a locally created key unless the feed already delivered it
func (m *Mirror) Add(key models.APIKey) {
	m.Apply(models.ChangeEvent{Type: models.ChangeInsert, New: &key})
}

// Patch applies a local edit to the key with the given id
func (m *Mirror) Patch(id string, patch models.APIKeyPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := indexOf(m.keys, id)
	if i < 0 {
		return
	}
	out := append([]models.APIKey(nil), m.keys...)
	patch.ApplyTo(&out[i])
	m.keys = out
}

// Remove drops a locally deleted key
func (m *Mirror) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = without(m.keys, id)
}

// Get returns the key with the given id
func (m *Mirror) Get(id string) (models.APIKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := indexOf(m.keys, id); i >= 0 {
		return m.keys[i], true
	}
	return models.APIKey{}, false
}

// Snapshot returns a copy of the current keys, newest first
func (m *Mirror) Snapshot() []models.APIKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.APIKey(nil), m.keys...)
}

// TotalUsage sums usage across the viewer's keys
func (m *Mirror) TotalUsage() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, k := range m.keys {
		total += k.Usage
	}
	return total
}

// ValidateName returns a user-facing message when name cannot be used for a
// new key, or "" when it can. Comparison is case-insensitive.
func (m *Mirror) ValidateName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return msgNameRequired
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, k := range m.keys {
		if strings.EqualFold(k.Name, trimmed) {
			return msgNameDuplicate
		}
	}
	return ""
}
