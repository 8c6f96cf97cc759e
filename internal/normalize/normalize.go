// Package normalize converts raw document bytes (PDF, TXT, DOCX) into plain
// text and detects the source language. It is the first pipeline stage and
// keeps nothing after the call returns.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/taxatlas/taxatlas/internal/common"
)

// Format identifies a supported document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatTXT  Format = "txt"
	FormatDOCX Format = "docx"
)

// Result is the normalizer output: recovered plain text plus how it was
// recovered.
type Result struct {
	Text     string
	Language string
	Format   Format
	Method   string // "pdf", "pdf+ocr", "text", "docx", "direct"
	Pages    int
}

// Config for the normalizer.
type Config struct {
	TesseractBin string // default "tesseract"
	PdftoppmBin  string // default "pdftoppm"
	TessdataDir  string
	OCRDPI       int // default 300
	MaxOCRPages  int // default 25
}

func (c *Config) defaults() {
	if c.TesseractBin == "" {
		c.TesseractBin = "tesseract"
	}
	if c.PdftoppmBin == "" {
		c.PdftoppmBin = "pdftoppm"
	}
	if c.OCRDPI <= 0 {
		c.OCRDPI = 300
	}
	if c.MaxOCRPages <= 0 {
		c.MaxOCRPages = 25
	}
}

// Normalizer turns document bytes into plain text.
type Normalizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Normalizer {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{cfg: cfg, runner: execRunner{}, logger: logger}
}

// WithRunner swaps the external-command runner; tests use this to stub OCR.
func (n *Normalizer) WithRunner(r Runner) *Normalizer {
	n.runner = r
	return n
}

// Detect returns the document format for a filename.
func Detect(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".txt", ".text":
		return FormatTXT, nil
	case ".docx", ".doc":
		return FormatDOCX, nil
	default:
		return "", common.NewAppError(common.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			common.ErrUnsupportedFormat)
	}
}

// Normalize extracts plain text from content and detects its language.
func (n *Normalizer) Normalize(ctx context.Context, content []byte, filename string) (Result, error) {
	start := time.Now()
	if len(content) == 0 {
		return Result{}, common.NewAppError(common.CodeInvalidInput, "empty file provided", common.ErrInvalidInput)
	}

	format, err := Detect(filename)
	if err != nil {
		return Result{}, err
	}

	var res Result
	switch format {
	case FormatPDF:
		res, err = n.normalizePDF(ctx, content)
	case FormatTXT:
		res, err = normalizeText(content)
	case FormatDOCX:
		res, err = normalizeDocx(content)
	}
	if err != nil {
		return Result{}, err
	}

	res.Format = format
	res.Text = CleanText(res.Text)
	if strings.TrimSpace(res.Text) == "" {
		return Result{}, common.NewAppError(common.CodeExtractionError,
			fmt.Sprintf("no text recovered from %s document", format), common.ErrExtraction)
	}
	res.Language = DetectLanguage(res.Text)

	n.logger.Info("normalize.ok",
		"format", string(format),
		"method", res.Method,
		"pages", res.Pages,
		"text_bytes", len(res.Text),
		"language", res.Language,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// NormalizeString wraps raw text input (the process-text path).
func (n *Normalizer) NormalizeString(text string) (Result, error) {
	cleaned := CleanText(text)
	if cleaned == "" {
		return Result{}, common.NewAppError(common.CodeInvalidInput, "empty text provided", common.ErrInvalidInput)
	}
	return Result{
		Text:     cleaned,
		Language: DetectLanguage(cleaned),
		Format:   FormatTXT,
		Method:   "direct",
		Pages:    1,
	}, nil
}
