package services

import (
	"context"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/realtime"
)

// Dashboard is one viewer's live view of their keys. Local mutations update
// the mirror as soon as the store accepts them; Watch reconciles it with
// changes made elsewhere.
type Dashboard struct {
	keys   *KeyService
	mirror *realtime.Mirror
}

// NewDashboard creates a dashboard for ownerID
func NewDashboard(keys *KeyService, ownerID string) *Dashboard {
	return &Dashboard{
		keys:   keys,
		mirror: realtime.NewMirror(ownerID),
	}
}

// OwnerID returns the viewer
func (d *Dashboard) OwnerID() string {
	return d.mirror.OwnerID()
}

// Load replaces the mirror with the store's current list
func (d *Dashboard) Load(ctx context.Context) error {
	keys, err := d.keys.List(ctx, d.OwnerID())
	if err != nil {
		return err
	}
	d.mirror.Load(keys)
	return nil
}

// Keys returns a copy of the mirrored keys, newest first
func (d *Dashboard) Keys() []models.APIKey {
	return d.mirror.Snapshot()
}

// TotalUsage sums usage across the mirrored keys
func (d *Dashboard) TotalUsage() int {
	return d.mirror.TotalUsage()
}

// ValidateName checks a prospective key name against the mirror
func (d *Dashboard) ValidateName(name string) string {
	return d.mirror.ValidateName(name)
}

// Create issues a key and adds it to the mirror
func (d *Dashboard) Create(ctx context.Context, name string, limit interface{}) (*models.APIKey, error) {
	key, err := d.keys.Create(ctx, d.OwnerID(), name, limit)
	if err != nil {
		return nil, err
	}
	d.mirror.Add(*key)
	return key, nil
}

// Update patches a key and the mirror
func (d *Dashboard) Update(ctx context.Context, id string, patch models.APIKeyPatch) (*models.APIKey, error) {
	key, err := d.keys.Update(ctx, d.OwnerID(), id, patch)
	if err != nil {
		return nil, err
	}
	d.mirror.Apply(models.ChangeEvent{Type: models.ChangeUpdate, New: key})
	return key, nil
}

// Toggle flips a key's active flag
func (d *Dashboard) Toggle(ctx context.Context, id string) (*models.APIKey, error) {
	key, err := d.keys.Toggle(ctx, d.OwnerID(), id)
	if err != nil {
		return nil, err
	}
	d.mirror.Apply(models.ChangeEvent{Type: models.ChangeUpdate, New: key})
	return key, nil
}

// Delete removes a key and drops it from the mirror
func (d *Dashboard) Delete(ctx context.Context, id string) error {
	if err := d.keys.Delete(ctx, d.OwnerID(), id); err != nil {
		return err
	}
	d.mirror.Remove(id)
	return nil
}

// Watch subscribes to the change feed, loads the current list and then folds
// every event into the mirror until ctx ends or the feed closes. onChange, if
// set, runs after each event is applied.
func (d *Dashboard) Watch(ctx context.Context, onChange func(models.ChangeEvent)) error {
	// Subscribe before loading so nothing between the two is missed.
	// The reducer drops the duplicate inserts this can produce.
	events, err := d.keys.Subscribe(ctx, d.OwnerID())
	if err != nil {
		return err
	}
	if err := d.Load(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.mirror.Apply(ev)
			if onChange != nil {
				onChange(ev)
			}
		}
	}
}
