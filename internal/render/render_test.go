package render

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/taxatlas/taxatlas/internal/model"
)

func f(v float64) *float64 { return &v }

func brModel() *model.CanonicalTaxModel {
	return &model.CanonicalTaxModel{
		Country:          "BR",
		TaxTypes:         []string{"ICMS"},
		LanguageDetected: "pt",
		Summary:          "ICMS obligations for companies in Brazil",
		Rates: []model.Rate{
			{Name: "standard_rate", Rate: 0.17, Description: "internal operations"},
		},
		Brackets: []model.Bracket{
			{LowerBound: 0, UpperBound: f(81000), Rate: 0.04},
			{LowerBound: 81000, UpperBound: nil, Rate: 0.17},
		},
		Thresholds: []model.Threshold{
			{Name: "Simples Nacional", Amount: "81000", Currency: "BRL", Purpose: "simplified regime eligibility"},
		},
		Deadlines: []model.Deadline{
			{Name: "monthly filing", Frequency: model.FreqMonthly, Description: "ICMS return"},
		},
		Rules: []model.Rule{
			{ID: "rule_0", Name: "export exemption", Effect: "exempt", Conditions: []string{"goods are exported"}},
		},
		ExtractionConfidence: 0.9,
	}
}

func TestJSONConfigIdempotent(t *testing.T) {
	m := brModel()
	a, err := JSONConfig{}.Render(m)
	require.NoError(t, err)
	b, err := JSONConfig{}.Render(m)
	require.NoError(t, err)

	assert.Equal(t, a.Content, b.Content)
	assert.Equal(t, "br_tax_config.json", a.Name)

	body := string(a.Content)
	assert.Contains(t, body, `"version": "1.0"`)
	assert.Contains(t, body, `"ICMS"`)
	assert.Contains(t, body, `"rate": 0.17`)
}

func TestSQLMigrationContents(t *testing.T) {
	m := brModel()
	mig := BuildMigration(m)

	assert.Equal(t, "br_tax_rules_"+m.ContentHash(), mig.Name)
	assert.Contains(t, mig.Up, "CREATE TABLE IF NOT EXISTS tax_rates")
	assert.Contains(t, mig.Up, "INSERT INTO tax_rates (country, name, rate, description) VALUES ('BR', 'standard_rate', 0.17, 'internal operations');")
	assert.Contains(t, mig.Up, "INSERT INTO tax_thresholds (country, name, amount, currency, purpose) VALUES ('BR', 'Simples Nacional', 81000, 'BRL', 'simplified regime eligibility');")
	assert.Contains(t, mig.Down, "DELETE FROM tax_rates WHERE country = 'BR';")
	assert.Contains(t, mig.Down, "DROP TABLE IF EXISTS tax_deadlines;")

	again := BuildMigration(m)
	assert.Equal(t, mig, again)
}

func TestSQLMigrationEscapesQuotes(t *testing.T) {
	m := brModel()
	m.Rates[0].Description = "taxpayer's standard rate"
	mig := BuildMigration(m)
	assert.Contains(t, mig.Up, "'taxpayer''s standard rate'")
}

func TestSplitStatements(t *testing.T) {
	stmts := SplitStatements("CREATE TABLE t (a TEXT);\nINSERT INTO t VALUES ('semi;colon');\n")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "semi;colon")
}

func TestPolicyDSLIdempotent(t *testing.T) {
	m := brModel()
	a, err := PolicyDSL{}.Render(m)
	require.NoError(t, err)
	b, err := PolicyDSL{}.Render(m)
	require.NoError(t, err)
	assert.Equal(t, a.Content, b.Content)

	var doc struct {
		Version      string `yaml:"version"`
		Jurisdiction string `yaml:"jurisdiction"`
		Policies     []struct {
			ID   string   `yaml:"id"`
			When []string `yaml:"when"`
		} `yaml:"policies"`
	}
	require.NoError(t, yaml.Unmarshal(a.Content, &doc))
	assert.Equal(t, "BR", doc.Jurisdiction)
	// One policy per rate, bracket, threshold and rule.
	assert.Len(t, doc.Policies, 5)
	for _, p := range doc.Policies {
		assert.Contains(t, p.When[0], `transaction.jurisdiction == "BR"`)
	}
}

func TestCodeGenGo(t *testing.T) {
	art, err := CodeGen{Target: "go"}.Render(brModel())
	require.NoError(t, err)

	src := string(art.Content)
	assert.Equal(t, "br_tax.go", art.Name)
	assert.Contains(t, src, "package brtax")
	assert.Contains(t, src, "Dependencies: none (standard library only)")
	assert.Contains(t, src, "StandardRate = 0.17")
	assert.Contains(t, src, "SimplesNacional = 81000")
	assert.Contains(t, src, "func ComputeTax(amount float64) float64")

	again, err := CodeGen{Target: "go"}.Render(brModel())
	require.NoError(t, err)
	assert.Equal(t, art.Content, again.Content)
}

func TestCodeGenPython(t *testing.T) {
	art, err := CodeGen{Target: "python"}.Render(brModel())
	require.NoError(t, err)

	src := string(art.Content)
	assert.Equal(t, "br_tax.py", art.Name)
	assert.Contains(t, src, "Dependencies: none (standard library only)")
	assert.Contains(t, src, "STANDARD_RATE = 0.17")
	assert.Contains(t, src, "SIMPLES_NACIONAL = 81000")
	assert.Contains(t, src, "def compute_tax(amount: float) -> float:")
}

func TestCodeGenDeduplicatesConstNames(t *testing.T) {
	m := brModel()
	// Both names normalize to the same identifier.
	m.Rates = []model.Rate{
		{Name: "standard rate", Rate: 0.17},
		{Name: "Standard-Rate", Rate: 0.12},
	}

	goArt, err := CodeGen{Target: "go"}.Render(m)
	require.NoError(t, err)
	goSrc := string(goArt.Content)
	assert.Contains(t, goSrc, "StandardRate = 0.17")
	assert.Contains(t, goSrc, "StandardRate2 = 0.12")

	pyArt, err := CodeGen{Target: "python"}.Render(m)
	require.NoError(t, err)
	pySrc := string(pyArt.Content)
	assert.Contains(t, pySrc, "STANDARD_RATE = 0.17")
	assert.Contains(t, pySrc, "STANDARD_RATE_2 = 0.12")
}

func TestCodeGenUnknownTarget(t *testing.T) {
	_, err := CodeGen{Target: "rust"}.Render(brModel())
	assert.Error(t, err)
}

func TestWorkbookRenders(t *testing.T) {
	art, err := Workbook{}.Render(brModel())
	require.NoError(t, err)
	assert.Equal(t, "br_tax_review.xlsx", art.Name)
	assert.NotEmpty(t, art.Content)
}

type failingRenderer struct{}

func (failingRenderer) Kind() Kind { return KindPolicyDSL }
func (failingRenderer) Render(*model.CanonicalTaxModel) (Artifact, error) {
	return Artifact{}, errors.New("boom")
}

type panickyRenderer struct{}

func (panickyRenderer) Kind() Kind { return KindCode }
func (panickyRenderer) Render(*model.CanonicalTaxModel) (Artifact, error) {
	panic("unexpected nil")
}

func TestSafeDegradesFailures(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := brModel()

	art := Safe(failingRenderer{}, m, logger)
	assert.Equal(t, KindPolicyDSL, art.Kind)
	require.Len(t, art.Warnings, 1)
	assert.Contains(t, art.Warnings[0], "degraded")
	assert.Contains(t, string(art.Content), `"country": "BR"`)

	art = Safe(panickyRenderer{}, m, logger)
	assert.Equal(t, KindCode, art.Kind)
	require.Len(t, art.Warnings, 1)
	assert.Contains(t, art.Warnings[0], "degraded")
}

func TestSafePassesThroughSuccess(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	art := Safe(JSONConfig{}, brModel(), logger)
	assert.Equal(t, KindJSONConfig, art.Kind)
	assert.Empty(t, art.Warnings)
	assert.True(t, strings.HasSuffix(art.Name, ".json"))
}
