package corpus

// TranslationUnit is one localizable string, derived by comparing the
// source and localized corpora.
type TranslationUnit struct {
	ID            string `json:"id"`
	SourceText    string `json:"originalText"`
	LocalizedText string `json:"translatedText"`
	LineNumber    int    `json:"lineNumber"`
	IsTranslated  bool   `json:"isTranslated"`
}

// Entry is one parsed row of a corpus file.
type Entry struct {
	Text       string
	LineNumber int
}

// Corpus is an id-keyed snapshot of one TSV file, preserving file order.
type Corpus struct {
	entries map[string]Entry
	order   []string
}

func NewCorpus() *Corpus {
	return &Corpus{entries: make(map[string]Entry)}
}

// Set inserts or replaces the entry for id, keeping first-seen order.
func (c *Corpus) Set(id string, e Entry) {
	if _, exists := c.entries[id]; !exists {
		c.order = append(c.order, id)
	}
	c.entries[id] = e
}

func (c *Corpus) Get(id string) (Entry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Text returns the text for id, or empty when absent.
func (c *Corpus) Text(id string) string {
	return c.entries[id].Text
}

func (c *Corpus) Len() int {
	return len(c.order)
}

// IDs returns the ids in file order.
func (c *Corpus) IDs() []string {
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}
