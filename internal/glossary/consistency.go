package glossary

import (
	"fmt"
	"strings"

	"github.com/rodrigomiquilino/wwm-review/internal/corpus"
)

// Mismatch is one unit whose source text names a do-not-translate term but
// whose localized text drifted from the canonical form.
type Mismatch struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SourceText string `json:"englishText"`
	Found      string `json:"ptbrText"`
	Expected   string `json:"expected"`
	LineNumber int    `json:"lineNumber"`
}

// CheckConsistency collects units whose source exact-matches an excluded
// name and whose localized text differs from the canonical form. The result
// is advisory, meant to seed a review issue, never to block anything.
func (m *Matcher) CheckConsistency(units []corpus.TranslationUnit) []Mismatch {
	var mismatches []Mismatch

	for _, unit := range units {
		if unit.SourceText == "" || !unit.IsTranslated {
			continue
		}
		term, ok := m.ExcludedTerm(unit.SourceText)
		if !ok {
			continue
		}
		found := strings.TrimSpace(unit.LocalizedText)
		if strings.EqualFold(found, term.Original) {
			continue
		}
		mismatches = append(mismatches, Mismatch{
			ID:         unit.ID,
			Name:       term.Original,
			SourceText: unit.SourceText,
			Found:      unit.LocalizedText,
			Expected:   term.Original,
			LineNumber: unit.LineNumber,
		})
	}

	return mismatches
}

// maxReportRows caps the rendered table; the remainder is summarized.
const maxReportRows = 50

// RenderReport formats mismatches as the review issue title and body.
func RenderReport(mismatches []Mismatch, targetFile string) (title, body string) {
	title = fmt.Sprintf("[Auto] 🔎 Revisão de Nomes de NPCs (%d diferenças)", len(mismatches))

	var b strings.Builder
	b.WriteString("## 🔎 Diferenças Detectadas em Nomes de NPCs\n\n")
	fmt.Fprintf(&b, "Os seguintes nomes de NPCs no arquivo **%s** estão diferentes do esperado:\n\n", targetFile)
	b.WriteString("| ID | NPC | Esperado | Encontrado (PT-BR) |\n")
	b.WriteString("|---|---|---|---|\n")

	rows := mismatches
	if len(rows) > maxReportRows {
		rows = rows[:maxReportRows]
	}
	for _, d := range rows {
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", d.ID, d.Name, d.Expected, d.Found)
	}
	if len(mismatches) > maxReportRows {
		fmt.Fprintf(&b, "\n*... e mais %d diferenças*\n", len(mismatches)-maxReportRows)
	}

	b.WriteString("\n---\n")
	b.WriteString("**Ação necessária:** Revisar e corrigir os nomes de NPCs para manter consistência.\n\n")
	b.WriteString("*Issue criada automaticamente pelo sistema de detecção.*")

	return title, b.String()
}
