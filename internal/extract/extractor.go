// Package extract turns normalized document text into a CanonicalTaxModel
// through schema-constrained language-model calls.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taxatlas/taxatlas/internal/common"
	"github.com/taxatlas/taxatlas/internal/llm"
	"github.com/taxatlas/taxatlas/internal/model"
)

// Config holds retry and chunking bounds for the extractor.
type Config struct {
	MaxAttempts int           // per chunk, including the first call; default 3
	CallTimeout time.Duration // per model call; default 30s
	Temperature float32
	MaxTokens   int
	ChunkChars  int // documents above this split into chunks; default 24000
}

func (c *Config) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.ChunkChars <= 0 {
		c.ChunkChars = 24000
	}
}

// Input is one extraction request.
type Input struct {
	Text     string
	Country  string
	Language string
	Context  string
}

// Extractor drives the Generator and owns response repair, validation and
// post-hoc invariant normalization.
type Extractor struct {
	cfg    Config
	gen    llm.Generator
	logger *slog.Logger
}

func New(cfg Config, gen llm.Generator, logger *slog.Logger) *Extractor {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, gen: gen, logger: logger}
}

// Extract produces the canonical model for a document. Missing entity
// categories come back as empty collections; only failure to establish a
// country and at least one tax type is fatal.
func (e *Extractor) Extract(ctx context.Context, in Input) (*model.CanonicalTaxModel, error) {
	start := time.Now()
	country := strings.ToUpper(strings.TrimSpace(in.Country))

	if strings.TrimSpace(in.Text) == "" {
		return nil, common.NewAppError(common.CodeExtractionFailed, "document text is empty", common.ErrExtractionFailed)
	}

	chunks := splitChunks(in.Text, e.cfg.ChunkChars)
	e.logger.Info("extract.start",
		"country", country,
		"language", in.Language,
		"text_bytes", len(in.Text),
		"chunks", len(chunks),
	)

	parts := make([]*model.CanonicalTaxModel, 0, len(chunks))
	for i, chunk := range chunks {
		chunkCtx := in.Context
		if len(chunks) > 1 {
			chunkCtx = strings.TrimSpace(fmt.Sprintf("%s [Chunk %d of %d]", in.Context, i+1, len(chunks)))
		}
		part, err := e.extractChunk(ctx, llm.PromptInput{
			Text:        chunk,
			Country:     country,
			CountryName: model.CountryName(country),
			Language:    in.Language,
			Context:     chunkCtx,
		})
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	m := mergeModels(parts)
	m.Country = country
	m.LanguageDetected = in.Language
	m.Warnings = append(m.Warnings, model.Normalize(m)...)

	if len(m.Country) != 2 || len(m.TaxTypes) == 0 {
		return nil, common.NewAppError(common.CodeExtractionFailed,
			"extraction produced no usable tax entities", common.ErrExtractionFailed)
	}

	e.logger.Info("extract.ok",
		"country", m.Country,
		"tax_types", len(m.TaxTypes),
		"rates", len(m.Rates),
		"brackets", len(m.Brackets),
		"thresholds", len(m.Thresholds),
		"deadlines", len(m.Deadlines),
		"rules", len(m.Rules),
		"confidence", m.ExtractionConfidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return m, nil
}

// extractChunk runs one schema-enforced generation with bounded corrective
// retries: a response that fails validation earns a retry carrying the
// validation error; a timed-out call surfaces immediately so the
// orchestrator can decide whether to retry the whole extraction.
func (e *Extractor) extractChunk(ctx context.Context, in llm.PromptInput) (*model.CanonicalTaxModel, error) {
	schema := llm.BuildTaxModelJSONSchema()
	system := llm.BuildExtractionSystemPrompt()
	user := llm.BuildExtractionUserPrompt(in)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		raw, err := e.gen.Generate(callCtx, llm.GenerateRequest{
			System:      system,
			User:        user,
			Schema:      schema,
			Temperature: e.cfg.Temperature,
			MaxTokens:   e.cfg.MaxTokens,
		})
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, common.NewAppError(common.CodeExtractionTimeout,
					fmt.Sprintf("model call exceeded %s", e.cfg.CallTimeout), common.ErrExtractionTimeout)
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			e.logger.Warn("extract.call_failed", "attempt", attempt, "err", err)
			continue
		}

		doc, err := e.repairAndValidate(schema, raw)
		if err != nil {
			lastErr = err
			e.logger.Warn("extract.schema_invalid", "attempt", attempt, "err", err)
			user = llm.BuildExtractionUserPrompt(in) + llm.CorrectiveInstruction(err)
			continue
		}

		part, err := decodeWire(doc)
		if err != nil {
			lastErr = err
			e.logger.Warn("extract.decode_failed", "attempt", attempt, "err", err)
			user = llm.BuildExtractionUserPrompt(in) + llm.CorrectiveInstruction(err)
			continue
		}
		return part, nil
	}

	return nil, common.NewAppError(common.CodeExtractionFailed,
		fmt.Sprintf("no schema-valid response after %d attempts", e.cfg.MaxAttempts),
		errors.Join(common.ErrExtractionFailed, lastErr))
}

// repairAndValidate locates the JSON object in the raw response, validates
// strictly, and falls back to a sanitize-and-revalidate pass before giving up.
func (e *Extractor) repairAndValidate(schema map[string]any, raw []byte) ([]byte, error) {
	doc, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	strictErr := llm.ValidateJSONAgainstSchema(schema, doc)
	if strictErr == nil {
		return doc, nil
	}
	cleaned, dropped, err := llm.SanitizeResponse(schema, doc)
	if err != nil {
		return nil, strictErr
	}
	if err := llm.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		e.logger.Warn("extract.sanitize_applied", "dropped", dropped)
	}
	return cleaned, nil
}

// wire shapes tolerate the looser typing models produce (numeric or string
// threshold amounts) before conversion into the canonical model.
type wireThreshold struct {
	Name     string      `json:"name"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	Purpose  string      `json:"purpose"`
}

type wireResponse struct {
	Summary         string           `json:"summary"`
	TaxTypes        []string         `json:"tax_types"`
	Rates           []model.Rate     `json:"rates"`
	Brackets        []model.Bracket  `json:"brackets"`
	Thresholds      []wireThreshold  `json:"thresholds"`
	Deadlines       []model.Deadline `json:"deadlines"`
	Rules           []model.Rule     `json:"rules"`
	ConfidenceScore float64          `json:"confidence_score"`
	Warnings        []string         `json:"warnings"`
}

func decodeWire(doc []byte) (*model.CanonicalTaxModel, error) {
	var w wireResponse
	dec := json.NewDecoder(strings.NewReader(string(doc)))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	thresholds := make([]model.Threshold, 0, len(w.Thresholds))
	for _, t := range w.Thresholds {
		thresholds = append(thresholds, model.Threshold{
			Name:     t.Name,
			Amount:   t.Amount.String(),
			Currency: t.Currency,
			Purpose:  t.Purpose,
		})
	}

	return &model.CanonicalTaxModel{
		TaxTypes:             w.TaxTypes,
		Rates:                w.Rates,
		Brackets:             w.Brackets,
		Thresholds:           thresholds,
		Deadlines:            w.Deadlines,
		Rules:                w.Rules,
		Summary:              w.Summary,
		ExtractionConfidence: w.ConfidenceScore,
		Warnings:             w.Warnings,
	}, nil
}
