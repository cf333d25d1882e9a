package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGeneratorMonotonic(t *testing.T) {
	now := time.UnixMilli(1000)
	g := newIDGenerator(func() time.Time { return now })

	assert.Equal(t, int64(1000), g.next())
	assert.Equal(t, int64(1001), g.next())

	now = time.UnixMilli(500)
	assert.Equal(t, int64(1002), g.next())

	now = time.UnixMilli(5000)
	assert.Equal(t, int64(5000), g.next())

	g.observe(9000)
	assert.Equal(t, int64(9001), g.next())
}

func TestJsonFileBackendExclusive(t *testing.T) {
	defer func(d time.Duration) { lockTimeout = d }(lockTimeout)
	lockTimeout = 200 * time.Millisecond

	path := filepath.Join(t.TempDir(), "items.json")
	first, err := NewJsonFileBackend(path)
	require.NoError(t, err)

	_, err = NewJsonFileBackend(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Close())
	second, err := NewJsonFileBackend(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestItemJSON(t *testing.T) {
	it := Item{ID: 42, Fields: map[string]any{"name": "A", "id": "ignored"}}
	b, err := it.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 42, "name": "A"}`, string(b))

	var back Item
	require.NoError(t, back.UnmarshalJSON([]byte(`{"id": 42, "name": "A", "n": 1.5}`)))
	assert.Equal(t, Item{ID: 42, Fields: map[string]any{"name": "A", "n": 1.5}}, back)

	require.NoError(t, back.UnmarshalJSON([]byte(`{"id": "123", "name": "A"}`)))
	assert.Zero(t, back.ID, "a quoted id is not an integer")
	require.NoError(t, back.UnmarshalJSON([]byte(`{"id": 1e3}`)))
	assert.Zero(t, back.ID)

	assert.Error(t, back.UnmarshalJSON([]byte(`[1, 2]`)))
	assert.Error(t, back.UnmarshalJSON([]byte(`null`)))
}
