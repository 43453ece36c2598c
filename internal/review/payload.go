package review

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Version is the current review request payload schema version.
const Version = "2.0"

var (
	// ErrNoPayload means the issue body carries no machine-readable payload.
	ErrNoPayload = errors.New("review: no payload found in issue body")
	// ErrAmbiguousPayload means more than one candidate payload block was
	// found and none can be trusted as authoritative.
	ErrAmbiguousPayload = errors.New("review: multiple payload blocks found in issue body")
)

// Suggestion is one proposed translation inside a review request.
type Suggestion struct {
	ID               string `json:"id"`
	File             string `json:"file"`
	Line             int    `json:"line"`
	Suggestion       string `json:"suggestion"`
	EditedByReviewer bool   `json:"editedByReviewer,omitempty"`
}

// Payload is the machine-readable core of a review request. It is embedded
// in the issue body as a fenced JSON block and is what the downstream
// applier consumes once the request is approved.
type Payload struct {
	Version      string       `json:"version"`
	Timestamp    string       `json:"timestamp"`
	Total        int          `json:"total"`
	TargetRepo   string       `json:"targetRepo"`
	TargetBranch string       `json:"targetBranch"`
	Suggestions  []Suggestion `json:"suggestions"`
}

// Encode renders the payload as compact JSON. HTML escaping is off so the
// embedded block stays readable in the issue body.
func (p *Payload) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// RenderBody produces the full issue body for a new review request: a
// human-readable header and summary around the fenced payload block.
func RenderBody(p *Payload, author string) (string, error) {
	encoded, err := p.Encode()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("## 📝 Sugestões de Tradução\n\n")
	fmt.Fprintf(&b, "**Total:** %d | **Data:** %s | **Autor:** @%s\n\n", p.Total, p.Timestamp, author)
	b.WriteString("### 📋 Dados para Processamento\n\n")
	b.WriteString("```json\n")
	b.WriteString(encoded)
	b.WriteString("\n```\n\n")
	b.WriteString("### 📄 Resumo\n\n")
	b.WriteString(renderSummaryLines(p.Suggestions, nil))
	b.WriteString("\n\n---\n")
	b.WriteString("> ⚠️ Adicione a label `approved` para aplicar automaticamente.")
	return b.String(), nil
}

// Title renders the review request issue title for n suggestions.
func Title(n int) string {
	return fmt.Sprintf("[Tradução] Lote com %d sugestão(ões)", n)
}

func renderSummaryLines(suggestions []Suggestion, edited map[string]bool) string {
	lines := make([]string, 0, len(suggestions))
	for i, s := range suggestions {
		line := fmt.Sprintf("%d. `%s` → %s", i+1, s.ID, truncate(s.Suggestion, 50))
		if edited[s.ID] {
			line += " ✏️"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// bareObjectPattern greedily matches the outermost {...} span in free text,
// the fallback for hand-edited bodies that lost their code fence.
var bareObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ParseBody extracts the payload from an issue body. Fenced JSON blocks are
// authoritative; a bare JSON object anywhere in the text is the fallback.
func ParseBody(body string) (*Payload, error) {
	raw, _, _, err := locatePayload(body)
	if err != nil {
		return nil, err
	}
	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &payload, nil
}

// ReplacePayload splices a re-encoded payload into the body, preserving all
// surrounding prose. A body without any locatable payload gets a fresh
// fenced section appended instead.
func ReplacePayload(body string, p *Payload) (string, error) {
	encoded, err := p.Encode()
	if err != nil {
		return "", err
	}

	_, start, end, err := locatePayload(body)
	if err == nil {
		return body[:start] + encoded + body[end:], nil
	}
	if errors.Is(err, ErrNoPayload) {
		return body + "\n\n### 📋 Dados para Processamento\n\n```json\n" + encoded + "\n```\n", nil
	}
	return "", err
}

// locatePayload finds the payload text and its byte span within body.
func locatePayload(body string) (raw string, start, end int, err error) {
	spans := fencedJSONSpans(body)
	valid := spans[:0]
	for _, span := range spans {
		if looksLikePayload(body[span[0]:span[1]]) {
			valid = append(valid, span)
		}
	}
	if len(valid) > 1 {
		return "", 0, 0, ErrAmbiguousPayload
	}
	if len(valid) == 1 {
		start, end = valid[0][0], valid[0][1]
		// Keep the closing fence on its own line after a splice.
		for end > start && (body[end-1] == '\n' || body[end-1] == '\r') {
			end--
		}
		return strings.TrimSpace(body[start:end]), start, end, nil
	}

	if loc := bareObjectPattern.FindStringIndex(body); loc != nil {
		candidate := body[loc[0]:loc[1]]
		if looksLikePayload(candidate) {
			return candidate, loc[0], loc[1], nil
		}
	}
	return "", 0, 0, ErrNoPayload
}

// fencedJSONSpans returns the content byte spans of all json-tagged fenced
// code blocks in the markdown source.
func fencedJSONSpans(body string) [][2]int {
	source := []byte(body)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var spans [][2]int
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if lang := string(block.Language(source)); !strings.EqualFold(lang, "json") {
			return ast.WalkContinue, nil
		}
		lines := block.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		first := lines.At(0)
		last := lines.At(lines.Len() - 1)
		spans = append(spans, [2]int{first.Start, last.Stop})
		return ast.WalkContinue, nil
	})
	return spans
}

// looksLikePayload is a cheap structural check used before committing to a
// candidate block: valid JSON with a suggestions array.
func looksLikePayload(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if !gjson.Valid(candidate) {
		return false
	}
	return gjson.Get(candidate, "suggestions").IsArray()
}

// summaryPattern captures the summary section body, up to the footer rule
// or the approval hint, whichever comes first.
var summaryPattern = regexp.MustCompile(`(?s)(### 📄 Resumo\n)(.*?)(\n---|\n> ⚠️)`)

// UpdateSummary regenerates the human-readable summary section to reflect
// the adjudicated suggestion list. Edited entries get a pencil marker and
// reviewer notes record edit and rejection counts. Bodies without a summary
// section are returned untouched; the payload block is what matters.
func UpdateSummary(body string, p *Payload, edited map[string]bool, rejectedIDs []string) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(renderSummaryLines(p.Suggestions, edited))
	b.WriteString("\n")

	if len(edited) > 0 {
		fmt.Fprintf(&b, "\n✏️ **%d tradução(ões) editada(s)** pelo revisor\n", len(edited))
	}
	if len(rejectedIDs) > 0 {
		quoted := make([]string, len(rejectedIDs))
		for i, id := range rejectedIDs {
			quoted[i] = "`" + id + "`"
		}
		fmt.Fprintf(&b, "\n❌ **%d tradução(ões) rejeitada(s)** pelo revisor: %s\n", len(rejectedIDs), strings.Join(quoted, ", "))
	}

	replaced := false
	out := summaryPattern.ReplaceAllStringFunc(body, func(match string) string {
		if replaced {
			return match
		}
		replaced = true
		groups := summaryPattern.FindStringSubmatch(match)
		return groups[1] + b.String() + groups[3]
	})
	return out
}
