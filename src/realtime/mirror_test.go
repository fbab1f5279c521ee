package realtime

import (
	"testing"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewer = "demo-user-123"

func key(id, name, owner string) models.APIKey {
	return models.APIKey{ID: id, Name: name, Key: "rot-" + id, OwnerID: owner, IsActive: true, MonthlyLimit: 1000}
}

func ids(keys []models.APIKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.ID
	}
	return out
}

func TestReduce_InsertPrepends(t *testing.T) {
	keys := []models.APIKey{key("1", "first", viewer)}
	k := key("2", "second", viewer)

	out := Reduce(keys, models.ChangeEvent{Type: models.ChangeInsert, New: &k}, viewer)

	assert.Equal(t, []string{"2", "1"}, ids(out))
	assert.Equal(t, []string{"1"}, ids(keys), "input must not be modified")
}

func TestReduce_InsertDeduplicatesByID(t *testing.T) {
	keys := []models.APIKey{key("1", "first", viewer)}
	dup := key("1", "first-again", viewer)

	out := Reduce(keys, models.ChangeEvent{Type: models.ChangeInsert, New: &dup}, viewer)

	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Name)
}

func TestReduce_InsertForOtherOwnerIgnored(t *testing.T) {
	k := key("9", "theirs", "someone-else")
	out := Reduce(nil, models.ChangeEvent{Type: models.ChangeInsert, New: &k}, viewer)
	assert.Empty(t, out)
}

func TestReduce_UpdateReplaces(t *testing.T) {
	keys := []models.APIKey{key("2", "b", viewer), key("1", "a", viewer)}
	updated := key("1", "a", viewer)
	updated.Usage = 42

	out := Reduce(keys, models.ChangeEvent{Type: models.ChangeUpdate, New: &updated}, viewer)

	assert.Equal(t, []string{"2", "1"}, ids(out))
	assert.Equal(t, 42, out[1].Usage)
	assert.Equal(t, 0, keys[1].Usage)
}

func TestReduce_UpdateUnknownIDIgnored(t *testing.T) {
	keys := []models.APIKey{key("1", "a", viewer)}
	ghost := key("7", "ghost", viewer)

	out := Reduce(keys, models.ChangeEvent{Type: models.ChangeUpdate, New: &ghost}, viewer)

	assert.Equal(t, []string{"1"}, ids(out))
}

func TestReduce_DeleteRemovesOwnRecord(t *testing.T) {
	keys := []models.APIKey{key("2", "b", viewer), key("1", "a", viewer)}
	old := key("2", "b", viewer)

	out := Reduce(keys, models.ChangeEvent{Type: models.ChangeDelete, Old: &old}, viewer)

	assert.Equal(t, []string{"1"}, ids(out))
}

func TestReduce_DeleteForOtherOwnerIgnored(t *testing.T) {
	keys := []models.APIKey{key("2", "b", viewer)}
	// same id, different owner: the event is not ours
	old := key("2", "b", "intruder")

	out := Reduce(keys, models.ChangeEvent{Type: models.ChangeDelete, Old: &old}, viewer)

	assert.Equal(t, []string{"2"}, ids(out))
}

func TestReduce_DeleteWithoutOldRowIgnored(t *testing.T) {
	keys := []models.APIKey{key("2", "b", viewer)}
	out := Reduce(keys, models.ChangeEvent{Type: models.ChangeDelete}, viewer)
	assert.Equal(t, []string{"2"}, ids(out))
}

func TestReduce_UnknownTypeDropped(t *testing.T) {
	keys := []models.APIKey{key("1", "a", viewer)}
	k := key("3", "c", viewer)
	out := Reduce(keys, models.ChangeEvent{Type: "TRUNCATE", New: &k}, viewer)
	assert.Equal(t, []string{"1"}, ids(out))
}

func TestMirror_LocalMutations(t *testing.T) {
	m := NewMirror(viewer)
	m.Load([]models.APIKey{key("1", "Production", viewer)})

	m.Add(key("2", "Staging", viewer))
	m.Add(key("2", "Staging", viewer))
	assert.Equal(t, []string{"2", "1"}, ids(m.Snapshot()))

	usage := 10
	m.Patch("1", models.APIKeyPatch{Usage: &usage})
	got, ok := m.Get("1")
	require.True(t, ok)
	assert.Equal(t, 10, got.Usage)
	assert.Equal(t, 10, m.TotalUsage())

	m.Remove("2")
	assert.Equal(t, []string{"1"}, ids(m.Snapshot()))
}

func TestMirror_ValidateName(t *testing.T) {
	m := NewMirror(viewer)
	m.Load([]models.APIKey{key("1", "Production", viewer)})

	assert.Equal(t, "Key name is required", m.ValidateName("   "))
	assert.Equal(t, "A key with this name already exists", m.ValidateName("  production "))
	assert.Equal(t, "", m.ValidateName("staging"))
}
