// Package confidence scores how trustworthy an extracted tax model is.
// The score is a deterministic function of the model contents, so the same
// model always earns the same score.
package confidence

import (
	"fmt"
	"strings"

	"github.com/taxatlas/taxatlas/internal/model"
)

// Component weights. Coverage dominates: a model naming tax types and
// carrying concrete rates is worth more than the model's own self-report.
const (
	weightCoverage  = 0.50
	weightNumeric   = 0.20
	weightLanguage  = 0.15
	weightSelfScore = 0.15
)

// Result carries the synthesized score and any warnings raised while scoring.
type Result struct {
	Score    float64
	Warnings []string
}

// Synthesize computes the overall confidence for a model extracted for the
// given country. Adding a populated, well-formed entity category never lowers
// the score.
func Synthesize(m *model.CanonicalTaxModel) Result {
	var warnings []string

	coverage := coverageScore(m)
	numeric := numericScore(m)

	language := 1.0
	if official := model.OfficialLanguage(m.Country); official != "" && m.LanguageDetected != "" {
		if !strings.EqualFold(official, m.LanguageDetected) {
			language = 0.4
			warnings = append(warnings, fmt.Sprintf(
				"document language %q differs from %s's official language %q; extraction confidence reduced",
				m.LanguageDetected, m.Country, official))
		}
	}

	self := m.ExtractionConfidence
	if self < 0 {
		self = 0
	}
	if self > 1 {
		self = 1
	}

	score := weightCoverage*coverage +
		weightNumeric*numeric +
		weightLanguage*language +
		weightSelfScore*self

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return Result{Score: score, Warnings: warnings}
}

// coverageScore rewards each populated entity category. Tax types are the
// anchor; the remaining five categories share the rest evenly.
func coverageScore(m *model.CanonicalTaxModel) float64 {
	if len(m.TaxTypes) == 0 {
		return 0
	}
	score := 0.5
	categories := 0
	if len(m.Rates) > 0 {
		categories++
	}
	if len(m.Brackets) > 0 {
		categories++
	}
	if len(m.Thresholds) > 0 {
		categories++
	}
	if len(m.Deadlines) > 0 {
		categories++
	}
	if len(m.Rules) > 0 {
		categories++
	}
	score += 0.1 * float64(categories)
	return score
}

// numericScore measures how many numeric fields sit inside their expected
// ranges. An empty model scores neutral rather than zero so absence of
// numbers is not punished twice (coverage already accounts for it).
func numericScore(m *model.CanonicalTaxModel) float64 {
	total := 0
	ok := 0

	for _, r := range m.Rates {
		total++
		if r.Rate >= 0 && r.Rate <= 1 {
			ok++
		}
	}
	for _, b := range m.Brackets {
		total++
		inRange := b.Rate >= 0 && b.Rate <= 1 && b.LowerBound >= 0
		if inRange && b.UpperBound != nil && *b.UpperBound <= b.LowerBound {
			inRange = false
		}
		if inRange {
			ok++
		}
	}
	for _, r := range m.Rules {
		if r.Rate == nil {
			continue
		}
		total++
		if *r.Rate >= 0 && *r.Rate <= 1 {
			ok++
		}
	}

	if total == 0 {
		return 0.8
	}
	return float64(ok) / float64(total)
}
