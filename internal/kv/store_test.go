package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	type point struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}

	var missing point
	ok, err := store.Get("geo", &missing)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("geo", point{Lat: 40.71, Lon: -74}))

	var got point
	ok, err = store.Get("geo", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, point{Lat: 40.71, Lon: -74}, got)

	// Overwrite replaces the stored value.
	require.NoError(t, store.Set("geo", point{Lat: 51.5, Lon: 0}))
	_, err = store.Get("geo", &got)
	require.NoError(t, err)
	assert.Equal(t, point{Lat: 51.5, Lon: 0}, got)
}

func TestMemoryStoreDeleteAndClear(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.Set("a", 1))
	require.NoError(t, store.Set("b", "two"))

	// Deleting a missing key is a no-op.
	require.NoError(t, store.Delete("missing"))

	require.NoError(t, store.Delete("a"))
	var n int
	ok, err := store.Get("a", &n)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Clear())
	var s string
	ok, err = store.Get("b", &s)
	require.NoError(t, err)
	assert.False(t, ok)
}
