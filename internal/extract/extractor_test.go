package extract

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxatlas/taxatlas/internal/common"
	"github.com/taxatlas/taxatlas/internal/llm"
	"github.com/taxatlas/taxatlas/internal/model"
)

// stubGen replays canned responses and records the prompts it saw.
type stubGen struct {
	responses []string
	requests  []llm.GenerateRequest
}

func (s *stubGen) Generate(_ context.Context, req llm.GenerateRequest) ([]byte, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return []byte(s.responses[i]), nil
}

// blockingGen waits out the call deadline, like a stalled upstream.
type blockingGen struct{}

func (blockingGen) Generate(ctx context.Context, _ llm.GenerateRequest) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

const brazilResponse = `{
	"summary": "ICMS obligations for companies in Brazil",
	"tax_types": ["ICMS"],
	"rates": [{"name": "standard_rate", "rate": 17, "description": "internal operations"}],
	"thresholds": [{"name": "Simples Nacional", "amount": 81000, "currency": "BRL", "purpose": "simplified regime eligibility"}],
	"confidence_score": 0.9
}`

func TestExtractBrazilianICMSDocument(t *testing.T) {
	gen := &stubGen{responses: []string{brazilResponse}}
	e := New(Config{}, gen, nil)

	m, err := e.Extract(context.Background(), Input{
		Text:     "A alíquota do ICMS é de 17% para operações internas.",
		Country:  "br",
		Language: "pt",
	})
	require.NoError(t, err)

	assert.Equal(t, "BR", m.Country)
	assert.Contains(t, m.TaxTypes, "ICMS")
	require.Len(t, m.Rates, 1)
	assert.Equal(t, "standard_rate", m.Rates[0].Name)
	assert.InDelta(t, 0.17, m.Rates[0].Rate, 1e-9)
	require.Len(t, m.Thresholds, 1)
	assert.Equal(t, "Simples Nacional", m.Thresholds[0].Name)
	assert.Equal(t, "81000", m.Thresholds[0].Amount)
	assert.Equal(t, "BRL", m.Thresholds[0].Currency)
	assert.Equal(t, "pt", m.LanguageDetected)
	assert.Contains(t, strings.Join(m.Warnings, "\n"), "percentage")
}

func TestExtractEmptyTextFails(t *testing.T) {
	e := New(Config{}, &stubGen{responses: []string{brazilResponse}}, nil)
	_, err := e.Extract(context.Background(), Input{Text: "   ", Country: "BR"})
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractionFailed, common.CodeOf(err))
}

func TestExtractRetriesWithCorrectiveInstruction(t *testing.T) {
	gen := &stubGen{responses: []string{
		`{"summary": "missing tax_types"}`,
		brazilResponse,
	}}
	e := New(Config{}, gen, nil)

	m, err := e.Extract(context.Background(), Input{Text: "some document", Country: "BR", Language: "pt"})
	require.NoError(t, err)
	assert.Contains(t, m.TaxTypes, "ICMS")

	require.Len(t, gen.requests, 2)
	assert.NotContains(t, gen.requests[0].User, "previous response")
	assert.Contains(t, gen.requests[1].User, "previous response")
}

func TestExtractGivesUpAfterMaxAttempts(t *testing.T) {
	gen := &stubGen{responses: []string{`not json at all`}}
	e := New(Config{MaxAttempts: 3}, gen, nil)

	_, err := e.Extract(context.Background(), Input{Text: "doc", Country: "BR"})
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractionFailed, common.CodeOf(err))
	assert.Len(t, gen.requests, 3)
}

func TestExtractNoEntitiesIsFailure(t *testing.T) {
	gen := &stubGen{responses: []string{`{"summary": "nothing here", "tax_types": []}`}}
	e := New(Config{}, gen, nil)

	_, err := e.Extract(context.Background(), Input{Text: "unrelated text", Country: "BR"})
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractionFailed, common.CodeOf(err))
}

func TestExtractTimeout(t *testing.T) {
	e := New(Config{CallTimeout: 20 * time.Millisecond}, blockingGen{}, nil)

	_, err := e.Extract(context.Background(), Input{Text: "doc", Country: "BR"})
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractionTimeout, common.CodeOf(err))
}

func TestExtractSanitizesSloppyResponse(t *testing.T) {
	gen := &stubGen{responses: []string{`{
		"summary": "ok",
		"tax_types": ["VAT"],
		"reasoning": "chain of thought the schema forbids",
		"brackets": null
	}`}}
	e := New(Config{}, gen, nil)

	m, err := e.Extract(context.Background(), Input{Text: "doc", Country: "DE", Language: "de"})
	require.NoError(t, err)
	assert.Equal(t, []string{"VAT"}, m.TaxTypes)
	assert.Len(t, gen.requests, 1)
}

func TestSplitChunksPreservesContent(t *testing.T) {
	para := strings.Repeat("tax law paragraph. ", 50)
	text := strings.Join([]string{para, para, para, para}, "\n\n")

	chunks := splitChunks(text, 1200)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 1200)
	}
	joined := strings.Join(chunks, "\n\n")
	assert.Equal(t, strings.ReplaceAll(text, "\n\n", ""), strings.ReplaceAll(joined, "\n\n", ""))
}

func TestSplitChunksRespectsRuneBoundaries(t *testing.T) {
	// One oversized paragraph of multi-byte text forces hard cuts; no cut
	// may land inside a UTF-8 sequence.
	para := strings.Repeat("tributação ", 200)

	chunks := splitChunks(para, 101)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk cut inside a rune: %q", c)
	}
	assert.Equal(t, para, strings.Join(chunks, ""))
}

func TestSplitChunksShortText(t *testing.T) {
	chunks := splitChunks("short", 1000)
	assert.Equal(t, []string{"short"}, chunks)
}

func TestMergeModels(t *testing.T) {
	a := &model.CanonicalTaxModel{
		TaxTypes:             []string{"ICMS"},
		Rates:                []model.Rate{{Name: "standard_rate", Rate: 0.17}},
		Summary:              "part one",
		ExtractionConfidence: 0.8,
	}
	b := &model.CanonicalTaxModel{
		TaxTypes:             []string{"ICMS", "IPI"},
		Rates:                []model.Rate{{Name: "standard_rate", Rate: 0.17}, {Name: "reduced_rate", Rate: 0.07}},
		Rules:                []model.Rule{{ID: "r1", Name: "export exemption", Effect: "exempt"}},
		ExtractionConfidence: 0.6,
	}

	m := mergeModels([]*model.CanonicalTaxModel{a, b})
	assert.Equal(t, []string{"ICMS", "IPI"}, m.TaxTypes)
	assert.Len(t, m.Rates, 2)
	assert.Len(t, m.Rules, 1)
	assert.Equal(t, "part one", m.Summary)
	assert.InDelta(t, 0.7, m.ExtractionConfidence, 1e-9)
}
