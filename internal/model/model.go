// Package model defines the canonical tax entity model: the single
// structured representation of extracted tax facts, independent of any
// output format. The extractor produces one per request; renderers and the
// confidence synthesizer only read it.
package model

// Canonical tax-type labels. Jurisdiction-specific labels (ICMS, IPI, ...)
// are kept verbatim alongside these.
const (
	TaxTypeVAT         = "VAT"
	TaxTypeIncome      = "INCOME"
	TaxTypeCorporate   = "CORPORATE"
	TaxTypeSales       = "SALES"
	TaxTypeWithholding = "WITHHOLDING"
	TaxTypeCustoms     = "CUSTOMS"
	TaxTypeExcise      = "EXCISE"
	TaxTypeProperty    = "PROPERTY"
	TaxTypePayroll     = "PAYROLL"
	TaxTypeOther       = "OTHER"
)

// Deadline frequencies.
const (
	FreqMonthly   = "monthly"
	FreqQuarterly = "quarterly"
	FreqAnnual    = "annual"
)

// Rate is a named tax rate. Rate is always a fraction (0.17, never 17).
type Rate struct {
	Name        string   `json:"name"`
	Rate        float64  `json:"rate"`
	Description string   `json:"description,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
	Exemptions  []string `json:"exemptions,omitempty"`
}

// Bracket is a progressive band. A nil UpperBound means unbounded.
type Bracket struct {
	LowerBound  float64  `json:"lower_bound"`
	UpperBound  *float64 `json:"upper_bound"`
	Rate        float64  `json:"rate"`
	FixedAmount *float64 `json:"fixed_amount,omitempty"`
}

// Threshold is a named monetary limit (registration, exemption, filing).
// Amount is kept as a decimal string to avoid float drift in rendered SQL.
type Threshold struct {
	Name     string `json:"name"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Purpose  string `json:"purpose,omitempty"`
}

// Deadline is a filing/payment/reporting obligation. Either DayOfPeriod or
// FixedDate is set; FixedDate is YYYY-MM-DD.
type Deadline struct {
	Name        string `json:"name"`
	Frequency   string `json:"frequency"`
	DayOfPeriod *int   `json:"day_of_period,omitempty"`
	FixedDate   string `json:"fixed_date,omitempty"`
	Description string `json:"description,omitempty"`
}

// Rule is a free-form condition/effect pair not reducible to the structured
// fields above.
type Rule struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Conditions      []string `json:"conditions,omitempty"`
	Effect          string   `json:"effect"`
	TaxType         string   `json:"tax_type,omitempty"`
	Rate            *float64 `json:"rate,omitempty"`
	SourceReference string   `json:"source_reference,omitempty"`
}

// CanonicalTaxModel is the single source of truth passed between the
// extractor and the renderers. Immutable once produced.
type CanonicalTaxModel struct {
	Country              string      `json:"country"`
	TaxTypes             []string    `json:"tax_types"`
	Rates                []Rate      `json:"rates"`
	Brackets             []Bracket   `json:"brackets"`
	Thresholds           []Threshold `json:"thresholds"`
	Deadlines            []Deadline  `json:"deadlines"`
	Rules                []Rule      `json:"rules"`
	LanguageDetected     string      `json:"language_detected"`
	ExtractionConfidence float64     `json:"extraction_confidence"`
	Summary              string      `json:"summary,omitempty"`
	Warnings             []string    `json:"warnings"`
}

var canonicalTaxTypes = map[string]bool{
	TaxTypeVAT: true, TaxTypeIncome: true, TaxTypeCorporate: true,
	TaxTypeSales: true, TaxTypeWithholding: true, TaxTypeCustoms: true,
	TaxTypeExcise: true, TaxTypeProperty: true, TaxTypePayroll: true,
	TaxTypeOther: true,
}

// IsCanonicalTaxType reports whether label is part of the canonical enum.
// Labels outside it (jurisdiction-specific taxes, e.g. Brazil's ICMS) are
// still valid; they pass through so artifacts keep the local name.
func IsCanonicalTaxType(label string) bool {
	return canonicalTaxTypes[label]
}

// TaxTypeLabels returns the canonical enum in declaration order.
func TaxTypeLabels() []string {
	return []string{
		TaxTypeVAT, TaxTypeIncome, TaxTypeCorporate, TaxTypeSales,
		TaxTypeWithholding, TaxTypeCustoms, TaxTypeExcise, TaxTypeProperty,
		TaxTypePayroll, TaxTypeOther,
	}
}
