package corpus

import "strings"

// DuplicateRef points at one unit inside a duplicate group.
type DuplicateRef struct {
	ID           string `json:"id"`
	LineNumber   int    `json:"lineNumber"`
	IsTranslated bool   `json:"isTranslated"`
}

// DuplicateIndex groups unit ids sharing identical normalized source text.
// It exists to offer "apply this edit to every identical line"; ids in the
// same group stay independently addressable.
type DuplicateIndex map[string][]DuplicateRef

// BuildDuplicateIndex indexes units by trimmed, lower-cased source text.
// Rebuilt from scratch on every corpus refresh, never maintained in place.
func BuildDuplicateIndex(units []TranslationUnit) DuplicateIndex {
	index := make(DuplicateIndex)
	for _, u := range units {
		key := normalizeSource(u.SourceText)
		if key == "" {
			continue
		}
		index[key] = append(index[key], DuplicateRef{
			ID:           u.ID,
			LineNumber:   u.LineNumber,
			IsTranslated: u.IsTranslated,
		})
	}
	return index
}

// Lookup returns the group for the given source text, or nil when the text
// is unknown. A group of size 1 means no duplicates.
func (ix DuplicateIndex) Lookup(sourceText string) []DuplicateRef {
	return ix[normalizeSource(sourceText)]
}

func normalizeSource(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
