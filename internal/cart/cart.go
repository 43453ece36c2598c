package cart

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rodrigomiquilino/wwm-review/pkg/log"
)

// noTranslationPlaceholder is what the listing shows for lines that have no
// translation yet. For validation it means the same as an empty prior text.
const noTranslationPlaceholder = "(sem tradução)"

// Entry is one pending, not-yet-submitted edit.
type Entry struct {
	ID          string `json:"id"`
	SourceText  string `json:"original"`
	PriorText   string `json:"current"`
	Suggestion  string `json:"suggestion"`
	LineNumber  int    `json:"lineNumber"`
	BulkApplied bool   `json:"bulkApplied,omitempty"`
}

// SubmissionEntry is the shape a cart entry takes inside a review request
// payload.
type SubmissionEntry struct {
	ID         string `json:"id"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Suggestion string `json:"suggestion"`
}

// Store persists the cart between sessions. Every mutation writes the whole
// cart; failures are logged and swallowed, losing the draft is preferable to
// failing the edit.
type Store interface {
	SaveCart(entries []Entry) error
	LoadCart() ([]Entry, error)
}

// Cart is the ordered working set of proposed edits, at most one per id.
type Cart struct {
	mu      sync.Mutex
	entries []Entry
	store   Store
}

// New creates a cart, rehydrating any persisted draft before any other cart
// operation can run.
func New(store Store) *Cart {
	c := &Cart{store: store}
	if store == nil {
		return c
	}
	entries, err := store.LoadCart()
	if err != nil {
		log.Warn("cart: could not restore draft: %v", err)
		return c
	}
	c.entries = entries
	if len(entries) > 0 {
		log.Info("cart: restored %d draft suggestion(s)", len(entries))
	}
	return c
}

// Add validates the entry and inserts it, or overwrites the suggestion of an
// existing entry with the same id.
func (c *Cart) Add(e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	e.Suggestion = strings.TrimSpace(e.Suggestion)

	c.mu.Lock()
	c.upsert(e)
	snapshot := c.snapshot()
	c.mu.Unlock()

	c.persist(snapshot)
	return nil
}

// AddBulk applies one suggestion across a whole duplicate group. Each entry
// is validated independently; entries that fail validation (the suggestion
// already matches that line) are skipped rather than failing the batch.
// Returns how many entries were inserted or overwritten.
func (c *Cart) AddBulk(entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, fmt.Errorf("nothing to add")
	}

	c.mu.Lock()
	added := 0
	for _, e := range entries {
		if err := validate(e); err != nil {
			continue
		}
		e.Suggestion = strings.TrimSpace(e.Suggestion)
		e.BulkApplied = true
		c.upsert(e)
		added++
	}
	snapshot := c.snapshot()
	c.mu.Unlock()

	if added == 0 {
		return 0, fmt.Errorf("no entry differs from its current translation")
	}
	c.persist(snapshot)
	return added, nil
}

// Remove deletes the entry for id, reporting whether it existed.
func (c *Cart) Remove(id string) bool {
	c.mu.Lock()
	found := false
	for i, e := range c.entries {
		if e.ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			found = true
			break
		}
	}
	snapshot := c.snapshot()
	c.mu.Unlock()

	if found {
		c.persist(snapshot)
	}
	return found
}

// Clear drops every entry, including the persisted draft.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
	c.persist(nil)
}

// Entries returns a snapshot of the cart in insertion order.
func (c *Cart) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Len returns the number of pending edits.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Has reports whether an edit for id is pending.
func (c *Cart) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Serialize produces the submission shape for every entry, all pointing at
// the single target corpus file.
func (c *Cart) Serialize(targetFile string) []SubmissionEntry {
	entries := c.Entries()
	out := make([]SubmissionEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, SubmissionEntry{
			ID:         e.ID,
			File:       targetFile,
			Line:       e.LineNumber,
			Suggestion: e.Suggestion,
		})
	}
	return out
}

// upsert requires c.mu held.
func (c *Cart) upsert(e Entry) {
	for i := range c.entries {
		if c.entries[i].ID == e.ID {
			c.entries[i].Suggestion = e.Suggestion
			c.entries[i].BulkApplied = e.BulkApplied
			return
		}
	}
	c.entries = append(c.entries, e)
}

// snapshot requires c.mu held.
func (c *Cart) snapshot() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Cart) persist(entries []Entry) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveCart(entries); err != nil {
		log.Warn("cart: could not persist draft: %v", err)
	}
}

func validate(e Entry) error {
	suggestion := strings.TrimSpace(e.Suggestion)
	if e.ID == "" {
		return fmt.Errorf("missing line id")
	}
	if suggestion == "" {
		return fmt.Errorf("suggestion is empty")
	}
	if suggestion == normalizePrior(e.PriorText) {
		return fmt.Errorf("suggestion is identical to the current translation")
	}
	return nil
}

// normalizePrior treats the "no translation yet" placeholder as empty.
func normalizePrior(prior string) string {
	prior = strings.TrimSpace(prior)
	if prior == noTranslationPlaceholder {
		return ""
	}
	return prior
}
