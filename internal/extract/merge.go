package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/taxatlas/taxatlas/internal/model"
)

// splitChunks splits long documents on paragraph boundaries so each chunk
// stays under maxChars. A paragraph longer than the limit is cut hard, but
// never inside a UTF-8 sequence.
func splitChunks(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		for len(para) > maxChars {
			cut := maxChars
			for cut > 0 && !utf8.RuneStart(para[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxChars
			}
			chunks = append(chunks, flush(&current), para[:cut])
			para = para[cut:]
		}
		if current.Len()+len(para)+2 > maxChars && current.Len() > 0 {
			chunks = append(chunks, flush(&current))
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chunks = append(chunks, flush(&current))
	}

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func flush(b *strings.Builder) string {
	s := b.String()
	b.Reset()
	return s
}

// mergeModels folds per-chunk results into one model: tax types unique by
// label, rates/thresholds/deadlines unique by name, rules unique by id,
// brackets concatenated (ordering is restored by normalization). Confidence
// averages across chunks; the first non-empty summary wins.
func mergeModels(parts []*model.CanonicalTaxModel) *model.CanonicalTaxModel {
	if len(parts) == 1 {
		return parts[0]
	}

	merged := &model.CanonicalTaxModel{}
	seenType := map[string]bool{}
	seenRate := map[string]bool{}
	seenThreshold := map[string]bool{}
	seenDeadline := map[string]bool{}
	seenRule := map[string]bool{}

	var confSum float64
	for _, p := range parts {
		for _, t := range p.TaxTypes {
			if !seenType[t] {
				seenType[t] = true
				merged.TaxTypes = append(merged.TaxTypes, t)
			}
		}
		for _, r := range p.Rates {
			if !seenRate[r.Name] {
				seenRate[r.Name] = true
				merged.Rates = append(merged.Rates, r)
			}
		}
		merged.Brackets = append(merged.Brackets, p.Brackets...)
		for _, t := range p.Thresholds {
			if !seenThreshold[t.Name] {
				seenThreshold[t.Name] = true
				merged.Thresholds = append(merged.Thresholds, t)
			}
		}
		for _, d := range p.Deadlines {
			if !seenDeadline[d.Name] {
				seenDeadline[d.Name] = true
				merged.Deadlines = append(merged.Deadlines, d)
			}
		}
		for _, r := range p.Rules {
			if !seenRule[r.ID] {
				seenRule[r.ID] = true
				merged.Rules = append(merged.Rules, r)
			}
		}
		if merged.Summary == "" {
			merged.Summary = p.Summary
		}
		merged.Warnings = append(merged.Warnings, p.Warnings...)
		confSum += p.ExtractionConfidence
	}
	merged.ExtractionConfidence = confSum / float64(len(parts))
	return merged
}
