package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rodrigomiquilino/wwm-review/internal/cart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("  ")
	assert.Error(t, err)
}

func TestSaveLoadCart_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	entries := []cart.Entry{
		{ID: "b2", SourceText: "World", PriorText: "", Suggestion: "Mundo", LineNumber: 9, BulkApplied: true},
		{ID: "a1", SourceText: "Hello", PriorText: "Olá velho", Suggestion: "Olá", LineNumber: 2},
	}
	require.NoError(t, store.SaveCart(entries))

	loaded, err := store.LoadCart()
	require.NoError(t, err)
	// Insertion order survives persistence.
	assert.Equal(t, entries, loaded)
}

func TestSaveCart_ReplacesPreviousDraft(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveCart([]cart.Entry{{ID: "a1", Suggestion: "Olá", LineNumber: 1}}))
	require.NoError(t, store.SaveCart(nil))

	loaded, err := store.LoadCart()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestCache_SetGetDelete(t *testing.T) {
	store := newTestStore(t)

	_, _, ok, err := store.CacheGet("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.CacheSet("k", `{"v":1}`))
	data, createdAt, ok, err := store.CacheGet("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"v":1}`, data)
	assert.WithinDuration(t, time.Now().UTC(), createdAt, time.Minute)

	// Overwrite refreshes the payload in place.
	require.NoError(t, store.CacheSet("k", `{"v":2}`))
	data, _, _, err = store.CacheGet("k")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, data)

	require.NoError(t, store.CacheDelete("k"))
	_, _, ok, err = store.CacheGet("k")
	require.NoError(t, err)
	assert.False(t, ok)
}
