package corpus

import (
	"strings"
)

// ParseTSV parses one corpus file into an id-keyed snapshot.
//
// Two layouts are accepted: an explicit header row naming an "id" column and
// one of "originaltext"/"text"/"original" (column order detected by name,
// case-insensitively), or a headerless two-column (id, text) layout. When a
// plausible header is found, data starts at row 2; otherwise at row 1.
//
// Rows whose id is the all-zero sentinel, or equals "id" case-insensitively,
// are padding noise and are dropped silently. Rows with fewer than two
// columns keep their id with empty text; a corrupted row never fails the
// whole parse.
func ParseTSV(content string) *Corpus {
	c := NewCorpus()

	content = strings.TrimSpace(content)
	if content == "" {
		return c
	}
	lines := strings.Split(content, "\n")

	header := strings.Split(lines[0], "\t")
	idIdx := -1
	textIdx := -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "id":
			if idIdx < 0 {
				idIdx = i
			}
		case "originaltext", "text", "original":
			if textIdx < 0 {
				textIdx = i
			}
		}
	}

	useIDIdx, useTextIdx := 0, 1
	if idIdx >= 0 {
		useIDIdx = idIdx
	}
	if textIdx >= 0 {
		useTextIdx = textIdx
	}

	startLine := 0
	if idIdx >= 0 || textIdx >= 0 {
		startLine = 1
	}

	for i := startLine; i < len(lines); i++ {
		cols := strings.Split(lines[i], "\t")

		var id, text string
		if useIDIdx < len(cols) {
			id = strings.TrimSpace(cols[useIDIdx])
		}
		if useTextIdx < len(cols) {
			text = strings.TrimSpace(cols[useTextIdx])
		}

		if id == "" || isZeroID(id) || strings.EqualFold(id, "id") {
			continue
		}

		// Line numbers are 1-based file positions, header row included.
		c.Set(id, Entry{Text: text, LineNumber: i + 1})
	}

	return c
}

// isZeroID reports whether id is the all-zero padding sentinel.
func isZeroID(id string) bool {
	for _, r := range id {
		if r != '0' {
			return false
		}
	}
	return len(id) > 0
}
