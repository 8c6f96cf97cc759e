package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxatlas/taxatlas/internal/common"
	"github.com/taxatlas/taxatlas/internal/extract"
	"github.com/taxatlas/taxatlas/internal/model"
	"github.com/taxatlas/taxatlas/internal/normalize"
	"github.com/taxatlas/taxatlas/internal/render"
)

type stubNormalizer struct {
	err error
}

func (s stubNormalizer) Normalize(_ context.Context, content []byte, filename string) (normalize.Result, error) {
	if s.err != nil {
		return normalize.Result{}, s.err
	}
	if _, err := normalize.Detect(filename); err != nil {
		return normalize.Result{}, err
	}
	return normalize.Result{Text: string(content), Language: "pt", Format: normalize.FormatTXT, Method: "text", Pages: 1}, nil
}

func (s stubNormalizer) NormalizeString(text string) (normalize.Result, error) {
	return normalize.Result{Text: normalize.CleanText(text), Language: "pt", Format: normalize.FormatTXT, Method: "direct", Pages: 1}, nil
}

type stubExtractor struct {
	errs  []error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, in extract.Input) (*model.CanonicalTaxModel, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return nil, s.errs[s.calls-1]
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, common.NewAppError(common.CodeExtractionFailed, "document text is empty", common.ErrExtractionFailed)
	}
	m := &model.CanonicalTaxModel{
		Country:          strings.ToUpper(in.Country),
		TaxTypes:         []string{"ICMS"},
		Rates:            []model.Rate{{Name: "standard_rate", Rate: 0.17}},
		Thresholds:       []model.Threshold{{Name: "Simples Nacional", Amount: "81000", Currency: "BRL"}},
		LanguageDetected: in.Language,
		Summary:          "ICMS obligations",
	}
	m.ExtractionConfidence = 0.9
	return m, nil
}

func testConfig() common.PipelineConfig {
	return common.PipelineConfig{
		NormalizeTimeout: time.Second,
		ExtractTimeout:   time.Second,
		RenderTimeout:    time.Second,
		SafetyMargin:     time.Second,
		CodeTarget:       "go",
	}
}

func newTestOrchestrator(n Normalizer, e Extractor) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(testConfig(), n, e, DefaultRenderers("go"), logger)
}

func TestProcessComplete(t *testing.T) {
	o := newTestOrchestrator(stubNormalizer{}, &stubExtractor{})

	res, err := o.Process(context.Background(), Request{
		Text:    "A alíquota do ICMS é de 17%.",
		Country: "BR",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, "BR", res.Country)
	assert.Equal(t, "Brazil", res.CountryName)
	assert.Equal(t, "pt", res.LanguageDetected)
	assert.Greater(t, res.ConfidenceScore, 0.5)
	require.NotNil(t, res.Entities)
	assert.Contains(t, res.Entities.TaxTypes, "ICMS")
	assert.Len(t, res.Artifacts, 5)
	for _, a := range res.Artifacts {
		assert.NotEmpty(t, a.Name, a.Kind)
		assert.NotEmpty(t, a.Content, a.Kind)
	}
}

func TestProcessArtifactFilter(t *testing.T) {
	o := newTestOrchestrator(stubNormalizer{}, &stubExtractor{})

	res, err := o.Process(context.Background(), Request{
		Text:      "document",
		Country:   "BR",
		Artifacts: []render.Kind{render.KindJSONConfig, render.KindSQLMigration},
	})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, string(render.KindJSONConfig), res.Artifacts[0].Kind)
	assert.Equal(t, string(render.KindSQLMigration), res.Artifacts[1].Kind)
}

func TestProcessEmptyInputFailsOnce(t *testing.T) {
	ext := &stubExtractor{}
	o := newTestOrchestrator(stubNormalizer{}, ext)

	_, err := o.Process(context.Background(), Request{Text: "   ", Country: "BR"})
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractionFailed, common.CodeOf(err))
	assert.Equal(t, 1, ext.calls)
}

func TestProcessRetriesExtractionTimeoutOnce(t *testing.T) {
	timeoutErr := common.NewAppError(common.CodeExtractionTimeout, "model call exceeded 30s", common.ErrExtractionTimeout)

	ext := &stubExtractor{errs: []error{timeoutErr}}
	o := newTestOrchestrator(stubNormalizer{}, ext)

	res, err := o.Process(context.Background(), Request{Text: "document", Country: "BR"})
	require.NoError(t, err)
	assert.Equal(t, 2, ext.calls)
	assert.Equal(t, StateComplete, res.State)
}

func TestProcessTimeoutNotRetriedTwice(t *testing.T) {
	timeoutErr := common.NewAppError(common.CodeExtractionTimeout, "model call exceeded 30s", common.ErrExtractionTimeout)

	ext := &stubExtractor{errs: []error{timeoutErr, timeoutErr}}
	o := newTestOrchestrator(stubNormalizer{}, ext)

	_, err := o.Process(context.Background(), Request{Text: "document", Country: "BR"})
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractionTimeout, common.CodeOf(err))
	assert.Equal(t, 2, ext.calls)
}

func TestProcessUnsupportedFormat(t *testing.T) {
	o := newTestOrchestrator(stubNormalizer{}, &stubExtractor{})

	_, err := o.Process(context.Background(), Request{
		Content:  []byte("fake bytes"),
		Filename: "slides.pptx",
		Country:  "BR",
	})
	require.Error(t, err)
	assert.Equal(t, common.CodeUnsupportedFormat, common.CodeOf(err))
}

func TestProcessNormalizeFailurePropagates(t *testing.T) {
	boom := errors.New("disk on fire")
	o := newTestOrchestrator(stubNormalizer{err: boom}, &stubExtractor{})

	_, err := o.Process(context.Background(), Request{
		Content:  []byte("x"),
		Filename: "doc.pdf",
		Country:  "BR",
	})
	assert.ErrorIs(t, err, boom)
}

func TestProcessDegradedRendererStillCompletes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderers := []render.Renderer{render.JSONConfig{}, render.CodeGen{Target: "rust"}}
	o := New(testConfig(), stubNormalizer{}, &stubExtractor{}, renderers, logger)

	res, err := o.Process(context.Background(), Request{Text: "document", Country: "BR"})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 2)
	assert.Contains(t, strings.Join(res.Warnings, "\n"), "degraded")
}

func TestParseArtifactKinds(t *testing.T) {
	kinds, err := ParseArtifactKinds([]string{"json_config", " SQL_MIGRATION "})
	require.NoError(t, err)
	assert.Equal(t, []render.Kind{render.KindJSONConfig, render.KindSQLMigration}, kinds)

	_, err = ParseArtifactKinds([]string{"hologram"})
	require.Error(t, err)
	assert.Equal(t, common.CodeInvalidInput, common.CodeOf(err))
}
