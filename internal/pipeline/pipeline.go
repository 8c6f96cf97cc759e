// Package pipeline orchestrates one document's trip from raw bytes to
// rendered artifacts. The pipeline is stateless across requests; each run
// carries its own state machine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taxatlas/taxatlas/internal/common"
	"github.com/taxatlas/taxatlas/internal/confidence"
	"github.com/taxatlas/taxatlas/internal/extract"
	"github.com/taxatlas/taxatlas/internal/model"
	"github.com/taxatlas/taxatlas/internal/normalize"
	"github.com/taxatlas/taxatlas/internal/render"
)

// Normalizer is the document intake stage.
type Normalizer interface {
	Normalize(ctx context.Context, content []byte, filename string) (normalize.Result, error)
	NormalizeString(text string) (normalize.Result, error)
}

// Extractor is the entity extraction stage.
type Extractor interface {
	Extract(ctx context.Context, in extract.Input) (*model.CanonicalTaxModel, error)
}

// Request is one processing job. Exactly one of Content or Text is set.
type Request struct {
	RequestID string
	Content   []byte
	Filename  string
	Text      string
	Country   string
	Context   string
	Artifacts []render.Kind // empty requests every registered renderer
}

// ArtifactOut is a rendered artifact in the response envelope. Content is
// base64 in JSON for binary kinds; text kinds are valid UTF-8 throughout.
type ArtifactOut struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Result is the response envelope for a completed request.
type Result struct {
	RequestID        string                   `json:"request_id"`
	State            State                    `json:"state"`
	Country          string                   `json:"country"`
	CountryName      string                   `json:"country_name"`
	LanguageDetected string                   `json:"language_detected"`
	ProcessingTimeMS int64                    `json:"processing_time_ms"`
	ConfidenceScore  float64                  `json:"confidence_score"`
	Summary          string                   `json:"summary"`
	Warnings         []string                 `json:"warnings"`
	Entities         *model.CanonicalTaxModel `json:"entities"`
	Artifacts        []ArtifactOut            `json:"artifacts"`
}

// Orchestrator wires the stages together.
type Orchestrator struct {
	cfg        common.PipelineConfig
	normalizer Normalizer
	extractor  Extractor
	renderers  []render.Renderer
	logger     *slog.Logger
}

func New(cfg common.PipelineConfig, n Normalizer, e Extractor, renderers []render.Renderer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, normalizer: n, extractor: e, renderers: renderers, logger: logger}
}

// DefaultRenderers returns the full artifact set for a code target.
func DefaultRenderers(codeTarget string) []render.Renderer {
	return []render.Renderer{
		render.JSONConfig{},
		render.SQLMigration{},
		render.PolicyDSL{},
		render.CodeGen{Target: codeTarget},
		render.Workbook{},
	}
}

// Process runs the full pipeline for one request under a deadline derived
// from the per-stage budgets.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	ctx = common.WithRequestID(ctx, req.RequestID)
	log := o.logger.With("req_id", req.RequestID, "country", req.Country)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout())
	defer cancel()

	state := StateReceived
	fail := func(err error) (*Result, error) {
		log.Error("pipeline.failed",
			"state", string(state),
			"err", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	log.Info("pipeline.start", "filename", req.Filename, "text_bytes", len(req.Text)+len(req.Content))

	state = StateNormalizing
	norm, err := o.normalizeStage(ctx, req)
	if err != nil {
		return fail(err)
	}
	log.Info("pipeline.normalized", "format", string(norm.Format), "method", norm.Method, "language", norm.Language)

	state = StateExtracting
	m, err := o.extractStage(ctx, req, norm, log)
	if err != nil {
		return fail(err)
	}

	// The model is immutable from here on: the synthesizer and every
	// renderer read it concurrently.
	state = StateSynthesizing
	conf, artifacts, renderWarnings := o.fanOut(req, m, log)

	res := &Result{
		RequestID:        req.RequestID,
		State:            StateComplete,
		Country:          m.Country,
		CountryName:      model.CountryName(m.Country),
		LanguageDetected: m.LanguageDetected,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		ConfidenceScore:  conf.Score,
		Summary:          m.Summary,
		Warnings:         collectWarnings(m, conf, renderWarnings),
		Entities:         m,
		Artifacts:        artifacts,
	}
	log.Info("pipeline.complete",
		"confidence", res.ConfidenceScore,
		"artifacts", len(res.Artifacts),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.ProcessingTimeMS,
	)
	return res, nil
}

func (o *Orchestrator) normalizeStage(ctx context.Context, req Request) (normalize.Result, error) {
	if len(req.Content) == 0 {
		// Empty direct text is not an intake error: it flows on so the
		// extraction stage reports the single ExtractionFailed response.
		if strings.TrimSpace(req.Text) == "" {
			return normalize.Result{Language: "en"}, nil
		}
		return o.normalizer.NormalizeString(req.Text)
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.NormalizeTimeout)
	defer cancel()
	return o.normalizer.Normalize(ctx, req.Content, req.Filename)
}

// extractStage runs extraction under its stage budget. A timed-out
// extraction gets exactly one fresh retry before the failure is surfaced.
func (o *Orchestrator) extractStage(ctx context.Context, req Request, norm normalize.Result, log *slog.Logger) (*model.CanonicalTaxModel, error) {
	in := extract.Input{
		Text:     norm.Text,
		Country:  req.Country,
		Language: norm.Language,
		Context:  req.Context,
	}
	for attempt := 1; ; attempt++ {
		stageCtx, cancel := context.WithTimeout(ctx, o.cfg.ExtractTimeout)
		m, err := o.extractor.Extract(stageCtx, in)
		cancel()
		if err == nil {
			return m, nil
		}
		if common.CodeOf(err) == common.CodeExtractionTimeout && attempt == 1 && ctx.Err() == nil {
			log.Warn("pipeline.extract_timeout_retry", "attempt", attempt)
			continue
		}
		return nil, err
	}
}

// fanOut runs the confidence synthesizer and the requested renderers
// concurrently over the finished model, each writing into its own slot.
func (o *Orchestrator) fanOut(req Request, m *model.CanonicalTaxModel, log *slog.Logger) (confidence.Result, []ArtifactOut, []string) {
	renderers := o.selectRenderers(req.Artifacts)

	var conf confidence.Result
	arts := make([]render.Artifact, len(renderers))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conf = confidence.Synthesize(m)
	}()
	for i, r := range renderers {
		wg.Add(1)
		go func(i int, r render.Renderer) {
			defer wg.Done()
			arts[i] = render.Safe(r, m, log)
		}(i, r)
	}
	wg.Wait()

	out := make([]ArtifactOut, 0, len(arts))
	var warnings []string
	for _, a := range arts {
		out = append(out, ArtifactOut{
			Kind:        string(a.Kind),
			Name:        a.Name,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
		warnings = append(warnings, a.Warnings...)
	}
	return conf, out, warnings
}

func (o *Orchestrator) selectRenderers(kinds []render.Kind) []render.Renderer {
	if len(kinds) == 0 {
		return o.renderers
	}
	wanted := make(map[render.Kind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}
	var selected []render.Renderer
	for _, r := range o.renderers {
		if wanted[r.Kind()] {
			selected = append(selected, r)
		}
	}
	return selected
}

func collectWarnings(m *model.CanonicalTaxModel, conf confidence.Result, renderWarnings []string) []string {
	warnings := append([]string{}, m.Warnings...)
	warnings = append(warnings, conf.Warnings...)
	warnings = append(warnings, renderWarnings...)
	seen := make(map[string]bool, len(warnings))
	out := warnings[:0]
	for _, w := range warnings {
		w = strings.TrimSpace(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// ParseArtifactKinds maps request strings to renderer kinds, rejecting
// unknown names up front.
func ParseArtifactKinds(names []string) ([]render.Kind, error) {
	known := map[string]render.Kind{
		"json_config":     render.KindJSONConfig,
		"sql_migration":   render.KindSQLMigration,
		"policy_dsl":      render.KindPolicyDSL,
		"generated_code":  render.KindCode,
		"review_workbook": render.KindReport,
	}
	var kinds []render.Kind
	for _, n := range names {
		k, ok := known[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, common.NewAppError(common.CodeInvalidInput,
				fmt.Sprintf("unknown artifact kind %q", n), errors.New("invalid artifact kind"))
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
