package glossary

// CategoryNPCs marks character names; together with DoNotTranslate it means
// the term must keep its original form in the localized corpus.
const CategoryNPCs = "npcs"

// Term is one canonical vocabulary entry with translation guidance.
type Term struct {
	ID             string   `json:"id"`
	Original       string   `json:"original"`
	Translation    string   `json:"translation"`
	Category       string   `json:"category"`
	DoNotTranslate bool     `json:"doNotTranslate"`
	Aliases        []string `json:"aliases,omitempty"`
	Context        string   `json:"context,omitempty"`
	Chinese        string   `json:"chinese,omitempty"`
	Pinyin         string   `json:"pinyin,omitempty"`
}

// Category describes how a term category is displayed.
type Category struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// Glossary is the published snapshot document. Edits are serialized back to
// this exact shape.
type Glossary struct {
	Terms       []Term              `json:"terms"`
	Categories  map[string]Category `json:"categories"`
	LastUpdated string              `json:"lastUpdated"`
}

// excludedName reports whether the term is a proper noun that requires no
// translation work at all.
func (t Term) excludedName() bool {
	return t.Category == CategoryNPCs && t.DoNotTranslate
}
