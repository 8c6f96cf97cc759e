package normalize

import "strings"

// languageMarkers holds common words per language; detection scores marker
// hits against the document's word set. Coarse, but deterministic and
// sufficient for the jurisdiction-mismatch check downstream.
var languageMarkers = map[string][]string{
	"en": {"the", "and", "is", "are", "shall", "must", "tax", "rate", "income"},
	"pt": {"o", "a", "de", "da", "do", "imposto", "taxa", "alíquota", "renda"},
	"es": {"el", "la", "de", "del", "impuesto", "tasa", "renta", "gravamen"},
	"de": {"der", "die", "das", "und", "steuer", "satz", "einkommen", "betrag"},
	"fr": {"le", "la", "de", "du", "impôt", "taux", "revenu", "taxe"},
	"it": {"il", "la", "di", "del", "imposta", "tasso", "reddito", "aliquota"},
}

// languageOrder fixes the scan order so tied scores always resolve to the
// same language, with "en" winning an all-zero scan.
var languageOrder = []string{"en", "pt", "es", "de", "fr", "it"}

// DetectLanguage guesses the source language from stop-word frequency.
// Defaults to "en" when nothing scores; ties resolve to the earliest
// language in the fixed scan order.
func DetectLanguage(text string) string {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[strings.Trim(w, ".,;:()[]\"'")] = true
	}

	best, bestScore := "en", 0
	for _, lang := range languageOrder {
		score := 0
		for _, m := range languageMarkers[lang] {
			if words[m] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = lang, score
		}
	}
	return best
}
