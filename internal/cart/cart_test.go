package cart

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	saved   [][]Entry
	initial []Entry
	loadErr error
	saveErr error
}

func (s *fakeStore) SaveCart(entries []Entry) error {
	snapshot := make([]Entry, len(entries))
	copy(snapshot, entries)
	s.saved = append(s.saved, snapshot)
	return s.saveErr
}

func (s *fakeStore) LoadCart() ([]Entry, error) {
	return s.initial, s.loadErr
}

func entry(id, suggestion string) Entry {
	return Entry{ID: id, SourceText: "Hello", PriorText: "Olá velho", Suggestion: suggestion, LineNumber: 2}
}

func TestAdd_OverwritesSameID(t *testing.T) {
	c := New(nil)

	require.NoError(t, c.Add(entry("a1", "Olá")))
	require.NoError(t, c.Add(entry("a1", "Olá!")))

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Olá!", entries[0].Suggestion)
}

func TestAdd_RejectsEmptySuggestion(t *testing.T) {
	c := New(nil)

	assert.Error(t, c.Add(entry("a1", "   ")))
	assert.Equal(t, 0, c.Len())
}

func TestAdd_RejectsSuggestionEqualToPrior(t *testing.T) {
	c := New(nil)

	e := entry("a1", "Olá velho")
	assert.Error(t, c.Add(e))
}

func TestAdd_PlaceholderPriorCountsAsEmpty(t *testing.T) {
	c := New(nil)

	e := Entry{ID: "a1", PriorText: noTranslationPlaceholder, Suggestion: "Olá", LineNumber: 1}
	require.NoError(t, c.Add(e))

	// But a suggestion equal to the placeholder-normalized prior ("") is
	// still caught by the empty check above; an actual placeholder-text
	// suggestion is allowed since it differs from empty.
	assert.Equal(t, 1, c.Len())
}

func TestAdd_PersistsEveryMutation(t *testing.T) {
	store := &fakeStore{}
	c := New(store)

	require.NoError(t, c.Add(entry("a1", "Olá")))
	require.NoError(t, c.Add(entry("b2", "Mundo")))
	c.Remove("a1")
	c.Clear()

	require.Len(t, store.saved, 4)
	assert.Len(t, store.saved[1], 2)
	assert.Len(t, store.saved[2], 1)
	assert.Empty(t, store.saved[3])
}

func TestNew_RestoresDraft(t *testing.T) {
	store := &fakeStore{initial: []Entry{entry("a1", "Olá")}}

	c := New(store)

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has("a1"))
}

func TestNew_ToleratesLoadFailure(t *testing.T) {
	store := &fakeStore{loadErr: fmt.Errorf("disk gone")}

	c := New(store)

	assert.Equal(t, 0, c.Len())
}

func TestAddBulk_FanOut(t *testing.T) {
	c := New(nil)

	group := []Entry{
		{ID: "a1", SourceText: "Sword", PriorText: "", Suggestion: "Espada", LineNumber: 1},
		{ID: "b2", SourceText: "Sword", PriorText: "", Suggestion: "Espada", LineNumber: 5},
		{ID: "c3", SourceText: "Sword", PriorText: "", Suggestion: "Espada", LineNumber: 9},
	}
	added, err := c.AddBulk(group)

	require.NoError(t, err)
	assert.Equal(t, 3, added)
	entries := c.Entries()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "Espada", e.Suggestion)
		assert.True(t, e.BulkApplied)
	}
}

func TestAddBulk_SkipsLinesAlreadyMatching(t *testing.T) {
	c := New(nil)

	group := []Entry{
		{ID: "a1", SourceText: "Sword", PriorText: "Espada", Suggestion: "Espada", LineNumber: 1},
		{ID: "b2", SourceText: "Sword", PriorText: "Lâmina", Suggestion: "Espada", LineNumber: 5},
	}
	added, err := c.AddBulk(group)

	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.False(t, c.Has("a1"))
	assert.True(t, c.Has("b2"))
}

func TestAddBulk_AllMatchingFails(t *testing.T) {
	c := New(nil)

	group := []Entry{
		{ID: "a1", PriorText: "Espada", Suggestion: "Espada", LineNumber: 1},
	}
	_, err := c.AddBulk(group)

	assert.Error(t, err)
}

func TestSerialize(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Add(entry("a1", "Olá!")))

	out := c.Serialize("pt-br.tsv")

	require.Len(t, out, 1)
	assert.Equal(t, SubmissionEntry{ID: "a1", File: "pt-br.tsv", Line: 2, Suggestion: "Olá!"}, out[0])
}

func TestRemove_Missing(t *testing.T) {
	store := &fakeStore{}
	c := New(store)

	assert.False(t, c.Remove("nope"))
	// No persistence churn for a no-op remove.
	assert.Empty(t, store.saved)
}
