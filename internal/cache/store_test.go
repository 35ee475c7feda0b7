package cache_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/vvspeak/internal/cache"
)

func TestPutThenGet_RoundTrips(t *testing.T) {
	store, err := cache.New(t.TempDir(), 30, 1.0)
	require.NoError(t, err)

	payload := []byte("not really mp3 but bytes are bytes")
	store.Put("key1", payload, cache.Entry{Text: "hello", SpeakerID: 1, Speed: 1, Pitch: 0, Volume: 1})

	got, ok := store.Get("key1")
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestGet_MissingIsMiss(t *testing.T) {
	store, err := cache.New(t.TempDir(), 30, 1.0)
	require.NoError(t, err)

	_, ok := store.Get("nope")
	assert.False(t, ok)
}

func TestGet_ExpiredIsEvicted(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.New(dir, 1, 1.0)
	require.NoError(t, err)
	store.Put("key1", []byte("data"), cache.Entry{Text: "hi"})

	// Backdate the sidecar past the one-day expiration window directly,
	// simulating a run from a prior day.
	sidecarPath := filepath.Join(dir, "key1.meta.json")
	raw, err := os.ReadFile(sidecarPath)
	require.NoError(t, err)
	var entry cache.Entry
	require.NoError(t, json.Unmarshal(raw, &entry))
	entry.CreatedAt = time.Now().Add(-48 * time.Hour)
	raw, err = json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(sidecarPath, raw, 0o644))

	_, ok := store.Get("key1")
	assert.False(t, ok)
}

func TestClearAll_RemovesEverything(t *testing.T) {
	store, err := cache.New(t.TempDir(), 30, 1.0)
	require.NoError(t, err)
	store.Put("key1", []byte("data"), cache.Entry{Text: "hi"})

	require.NoError(t, store.ClearAll())
	_, ok := store.Get("key1")
	assert.False(t, ok)
}

func TestSweep_EvictsOldestBeyondSizeCap(t *testing.T) {
	dir := t.TempDir()
	// maxSizeGB of ~16 bytes: one 10-byte payload fits, two exceed it.
	store, err := cache.New(dir, 30, 0.000000015)
	require.NoError(t, err)

	store.Put("older", []byte("0123456789"), cache.Entry{Text: "older"})
	time.Sleep(10 * time.Millisecond)
	store.Put("newer", []byte("0123456789"), cache.Entry{Text: "newer"})

	_, olderStillThere := store.Get("older")
	_, newerStillThere := store.Get("newer")
	assert.False(t, olderStillThere)
	assert.True(t, newerStillThere)
}
