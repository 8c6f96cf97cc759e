package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxatlas/taxatlas/internal/model"
)

func baseModel() *model.CanonicalTaxModel {
	return &model.CanonicalTaxModel{
		Country:              "BR",
		TaxTypes:             []string{"ICMS"},
		LanguageDetected:     "pt",
		ExtractionConfidence: 0.8,
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	m := baseModel()
	m.Rates = []model.Rate{{Name: "standard_rate", Rate: 0.17}}

	a := Synthesize(m)
	b := Synthesize(m)
	assert.Equal(t, a.Score, b.Score)
	assert.GreaterOrEqual(t, a.Score, 0.0)
	assert.LessOrEqual(t, a.Score, 1.0)
}

func TestSynthesizeMonotoneInCoverage(t *testing.T) {
	sparse := baseModel()
	sparseScore := Synthesize(sparse).Score

	richer := baseModel()
	richer.Rates = []model.Rate{{Name: "standard_rate", Rate: 0.17}}
	richerScore := Synthesize(richer).Score

	richest := baseModel()
	richest.Rates = []model.Rate{{Name: "standard_rate", Rate: 0.17}}
	richest.Thresholds = []model.Threshold{{Name: "Simples Nacional", Amount: "81000", Currency: "BRL"}}
	richest.Deadlines = []model.Deadline{{Name: "monthly filing", Frequency: model.FreqMonthly}}
	richestScore := Synthesize(richest).Score

	assert.Greater(t, richerScore, sparseScore)
	assert.Greater(t, richestScore, richerScore)
}

func TestSynthesizeLanguageMismatch(t *testing.T) {
	matched := baseModel()
	matchedRes := Synthesize(matched)
	assert.Empty(t, matchedRes.Warnings)

	mismatched := baseModel()
	mismatched.LanguageDetected = "en"
	mismatchedRes := Synthesize(mismatched)

	assert.Less(t, mismatchedRes.Score, matchedRes.Score)
	require.Len(t, mismatchedRes.Warnings, 1)
	assert.Contains(t, mismatchedRes.Warnings[0], "official language")
}

func TestSynthesizeNoTaxTypesScoresLow(t *testing.T) {
	m := baseModel()
	m.TaxTypes = nil
	res := Synthesize(m)
	assert.Less(t, res.Score, 0.5)
}

func TestSynthesizePenalizesBadNumerics(t *testing.T) {
	clean := baseModel()
	clean.Rates = []model.Rate{{Name: "a", Rate: 0.2}, {Name: "b", Rate: 0.1}}
	cleanScore := Synthesize(clean).Score

	dirty := baseModel()
	dirty.Rates = []model.Rate{{Name: "a", Rate: 0.2}, {Name: "b", Rate: 40}}
	dirtyScore := Synthesize(dirty).Score

	assert.Less(t, dirtyScore, cleanScore)
}

func TestSynthesizeClampsSelfReport(t *testing.T) {
	m := baseModel()
	m.ExtractionConfidence = 5
	res := Synthesize(m)
	assert.LessOrEqual(t, res.Score, 1.0)
}
