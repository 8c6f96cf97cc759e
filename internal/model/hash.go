package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ContentHash returns a short stable digest of the model's entity content.
// Request-scoped fields (language, confidence, warnings, summary) are
// excluded so that identical extractions hash identically; the SQL renderer
// uses this to name migrations idempotently.
func (m *CanonicalTaxModel) ContentHash() string {
	stable := struct {
		Country    string      `json:"country"`
		TaxTypes   []string    `json:"tax_types"`
		Rates      []Rate      `json:"rates"`
		Brackets   []Bracket   `json:"brackets"`
		Thresholds []Threshold `json:"thresholds"`
		Deadlines  []Deadline  `json:"deadlines"`
		Rules      []Rule      `json:"rules"`
	}{
		Country:    m.Country,
		TaxTypes:   m.TaxTypes,
		Rates:      m.Rates,
		Brackets:   m.Brackets,
		Thresholds: m.Thresholds,
		Deadlines:  m.Deadlines,
		Rules:      m.Rules,
	}
	b, _ := json.Marshal(stable)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:12]
}

// IsEmpty reports whether no entity category is populated.
func (m *CanonicalTaxModel) IsEmpty() bool {
	return len(m.Rates) == 0 && len(m.Brackets) == 0 && len(m.Thresholds) == 0 &&
		len(m.Deadlines) == 0 && len(m.Rules) == 0
}

// PrimaryTaxType returns the first extracted tax type, or OTHER.
func (m *CanonicalTaxModel) PrimaryTaxType() string {
	if len(m.TaxTypes) > 0 {
		return m.TaxTypes[0]
	}
	return TaxTypeOther
}
