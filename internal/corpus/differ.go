package corpus

// ComputeStatus compares the source corpus against the localized corpus and
// returns one TranslationUnit per localized id, in localized file order.
//
// The localized corpus is authoritative for which ids exist and their line
// numbers. An id missing from the source corpus is not an error; its source
// text is empty and the comparison runs without a reference.
//
// A unit counts as translated when its localized text is non-empty and
// differs from the source text. A localized string that legitimately equals
// its source (a proper noun, say) is indistinguishable from untranslated by
// this rule; the glossary's do-not-translate list is the override for those.
func ComputeStatus(source, localized *Corpus) []TranslationUnit {
	units := make([]TranslationUnit, 0, localized.Len())

	for _, id := range localized.IDs() {
		entry, _ := localized.Get(id)
		sourceText := source.Text(id)
		localizedText := entry.Text

		units = append(units, TranslationUnit{
			ID:            id,
			SourceText:    sourceText,
			LocalizedText: localizedText,
			LineNumber:    entry.LineNumber,
			IsTranslated:  localizedText != "" && localizedText != sourceText,
		})
	}

	return units
}
