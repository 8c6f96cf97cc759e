package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Normalize enforces structural invariants on a freshly-decoded model,
// in place, and returns human-readable warnings for everything it had to
// repair or could not. Violations never hard-fail here; total extraction
// failure is decided by the extractor (missing country / empty tax types).
//
// This runs exactly once, before the model is published to the renderers.
func Normalize(m *CanonicalTaxModel) []string {
	var warnings []string

	m.Country = strings.ToUpper(strings.TrimSpace(m.Country))
	if len(m.Country) != 2 {
		warnings = append(warnings, fmt.Sprintf("country code %q is not ISO-3166 alpha-2", m.Country))
	}

	warnings = append(warnings, normalizeTaxTypes(m)...)
	warnings = append(warnings, normalizeRates(m)...)
	warnings = append(warnings, normalizeBrackets(m)...)
	warnings = append(warnings, normalizeThresholds(m)...)
	warnings = append(warnings, normalizeDeadlines(m)...)
	warnings = append(warnings, normalizeRules(m)...)

	if m.ExtractionConfidence < 0 {
		m.ExtractionConfidence = 0
	}
	if m.ExtractionConfidence > 1 {
		m.ExtractionConfidence = 1
	}
	return warnings
}

func normalizeTaxTypes(m *CanonicalTaxModel) []string {
	seen := make(map[string]bool, len(m.TaxTypes))
	out := m.TaxTypes[:0]
	for _, t := range m.TaxTypes {
		label := strings.ToUpper(strings.TrimSpace(t))
		if label == "" || seen[label] {
			continue
		}
		// Jurisdiction-specific labels (ICMS, IPI, ...) pass through
		// verbatim; only the empty label is dropped.
		seen[label] = true
		out = append(out, label)
	}
	m.TaxTypes = out
	return nil
}

// normalizeRates converts percentage-looking values to fractions and flags
// out-of-range or suspicious rates.
func normalizeRates(m *CanonicalTaxModel) []string {
	var warnings []string
	names := make(map[string]bool, len(m.Rates))
	for i := range m.Rates {
		r := &m.Rates[i]
		if r.Name == "" {
			r.Name = fmt.Sprintf("rate_%d", i)
		}
		if f, changed := FractionFromPercent(r.Rate); changed {
			warnings = append(warnings, fmt.Sprintf("rate %q given as percentage %.4g, normalized to %.4g", r.Name, r.Rate, f))
			r.Rate = f
		}
		if r.Rate < 0 {
			warnings = append(warnings, fmt.Sprintf("negative rate detected: %s = %.4g", r.Name, r.Rate))
			r.Rate = 0
		}
		if r.Rate > 1 {
			warnings = append(warnings, fmt.Sprintf("rate %q = %.4g exceeds 1.0 after normalization, clamped", r.Name, r.Rate))
			r.Rate = 1
		}
		if r.Rate > 0.5 {
			warnings = append(warnings, fmt.Sprintf("unusually high rate detected: %s = %.4g", r.Name, r.Rate))
		}
		if names[r.Name] {
			warnings = append(warnings, fmt.Sprintf("duplicate rate name %q", r.Name))
		}
		names[r.Name] = true
	}
	return warnings
}

// normalizeBrackets sorts brackets by lower bound and flags overlaps, gaps
// and inverted ranges. Brackets, if present, should cover from 0 upward;
// violations warn but never fail.
func normalizeBrackets(m *CanonicalTaxModel) []string {
	var warnings []string
	for i := range m.Brackets {
		b := &m.Brackets[i]
		if f, changed := FractionFromPercent(b.Rate); changed {
			warnings = append(warnings, fmt.Sprintf("bracket %d rate given as percentage, normalized to %.4g", i, f))
			b.Rate = f
		}
		if b.UpperBound != nil && *b.UpperBound < b.LowerBound {
			warnings = append(warnings, fmt.Sprintf("invalid bracket range at position %d: upper %.2f below lower %.2f", i, *b.UpperBound, b.LowerBound))
		}
	}
	sort.SliceStable(m.Brackets, func(i, j int) bool {
		return m.Brackets[i].LowerBound < m.Brackets[j].LowerBound
	})
	if len(m.Brackets) == 0 {
		return warnings
	}
	if m.Brackets[0].LowerBound > 0 {
		warnings = append(warnings, fmt.Sprintf("brackets do not cover from 0: first lower bound is %.2f", m.Brackets[0].LowerBound))
	}
	for i := 1; i < len(m.Brackets); i++ {
		prev, cur := m.Brackets[i-1], m.Brackets[i]
		if prev.UpperBound == nil {
			warnings = append(warnings, fmt.Sprintf("bracket %d is unbounded but followed by another bracket", i-1))
			continue
		}
		switch {
		case cur.LowerBound < *prev.UpperBound:
			warnings = append(warnings, fmt.Sprintf("overlapping brackets at positions %d and %d", i-1, i))
		case cur.LowerBound > *prev.UpperBound:
			warnings = append(warnings, fmt.Sprintf("gap between brackets at positions %d and %d (%.2f to %.2f)", i-1, i, *prev.UpperBound, cur.LowerBound))
		}
	}
	return warnings
}

func normalizeThresholds(m *CanonicalTaxModel) []string {
	var warnings []string
	for i := range m.Thresholds {
		t := &m.Thresholds[i]
		if t.Name == "" {
			t.Name = fmt.Sprintf("threshold_%d", i)
		}
		t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
		if t.Currency == "" {
			t.Currency = "USD"
			warnings = append(warnings, fmt.Sprintf("threshold %q missing currency, assumed USD", t.Name))
		}
		t.Amount = strings.TrimSpace(t.Amount)
		if _, err := strconv.ParseFloat(t.Amount, 64); err != nil {
			warnings = append(warnings, fmt.Sprintf("threshold %q has non-numeric amount %q", t.Name, t.Amount))
		}
	}
	return warnings
}

func normalizeDeadlines(m *CanonicalTaxModel) []string {
	var warnings []string
	for i := range m.Deadlines {
		d := &m.Deadlines[i]
		if d.Name == "" {
			d.Name = fmt.Sprintf("deadline_%d", i)
		}
		freq := strings.ToLower(strings.TrimSpace(d.Frequency))
		switch freq {
		case FreqMonthly, FreqQuarterly, FreqAnnual:
		case "annually", "yearly", "annual_filing":
			freq = FreqAnnual
		case "":
			freq = FreqAnnual
			warnings = append(warnings, fmt.Sprintf("deadline %q missing frequency, assumed annual", d.Name))
		default:
			warnings = append(warnings, fmt.Sprintf("deadline %q has unknown frequency %q, assumed annual", d.Name, d.Frequency))
			freq = FreqAnnual
		}
		d.Frequency = freq
	}
	return warnings
}

func normalizeRules(m *CanonicalTaxModel) []string {
	var warnings []string
	ids := make(map[string]bool, len(m.Rules))
	for i := range m.Rules {
		r := &m.Rules[i]
		if r.ID == "" || ids[r.ID] {
			r.ID = fmt.Sprintf("rule_%d", i)
		}
		ids[r.ID] = true
		if r.Effect == "" {
			warnings = append(warnings, fmt.Sprintf("rule %q missing effect description", r.ID))
		}
		if r.Rate != nil {
			if f, changed := FractionFromPercent(*r.Rate); changed {
				warnings = append(warnings, fmt.Sprintf("rule %q rate given as percentage, normalized to %.4g", r.ID, f))
				*r.Rate = f
			}
		}
	}
	return warnings
}

// FractionFromPercent maps values that were plainly expressed as
// percentages (17 for 17%) onto fractions. Values already in [0,1] are
// returned unchanged; values in (1,100] are divided by 100.
func FractionFromPercent(v float64) (float64, bool) {
	if v > 1 && v <= 100 {
		return v / 100, true
	}
	return v, false
}
