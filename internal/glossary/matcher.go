package glossary

import "strings"

// Matcher answers term lookups against one glossary snapshot. Build it once
// per snapshot; it is read-only after construction.
type Matcher struct {
	glossary *Glossary

	// excluded maps lower-cased originals and aliases of proper-noun
	// do-not-translate terms to their canonical term.
	excluded map[string]Term
}

func NewMatcher(g *Glossary) *Matcher {
	m := &Matcher{
		glossary: g,
		excluded: make(map[string]Term),
	}
	if g == nil {
		return m
	}
	for _, term := range g.Terms {
		if !term.excludedName() {
			continue
		}
		m.excluded[strings.ToLower(term.Original)] = term
		for _, alias := range term.Aliases {
			key := strings.ToLower(alias)
			if _, taken := m.excluded[key]; !taken {
				m.excluded[key] = term
			}
		}
	}
	return m
}

// FindTerms scans text for case-insensitive substring matches against each
// term's original or aliases. Each term appears at most once, in glossary
// definition order.
func (m *Matcher) FindTerms(text string) []Term {
	if m.glossary == nil || text == "" {
		return nil
	}

	textLower := strings.ToLower(text)
	var found []Term

	for _, term := range m.glossary.Terms {
		if strings.Contains(textLower, strings.ToLower(term.Original)) {
			found = append(found, term)
			continue
		}
		for _, alias := range term.Aliases {
			if strings.Contains(textLower, strings.ToLower(alias)) {
				found = append(found, term)
				break
			}
		}
	}

	return found
}

// IsExcludedName reports whether the entire trimmed text is the name of a
// proper-noun do-not-translate term. Such units need no translation work and
// are hidden from the reviewable worklist.
func (m *Matcher) IsExcludedName(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}
	_, ok := m.excluded[text]
	return ok
}

// ExcludedTerm returns the canonical term for an excluded name, matching the
// whole trimmed text only.
func (m *Matcher) ExcludedTerm(text string) (Term, bool) {
	term, ok := m.excluded[strings.ToLower(strings.TrimSpace(text))]
	return term, ok
}
