// Command taxatlas processes one document from the command line and writes
// the rendered artifacts to a directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/taxatlas/taxatlas/internal/common"
	"github.com/taxatlas/taxatlas/internal/extract"
	"github.com/taxatlas/taxatlas/internal/llm/openai"
	"github.com/taxatlas/taxatlas/internal/normalize"
	"github.com/taxatlas/taxatlas/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	var (
		input     = flag.String("input", "", "path to the source document (pdf, txt, docx)")
		country   = flag.String("country", "", "2-letter ISO 3166-1 country code")
		docCtx    = flag.String("context", "", "additional document context for extraction")
		outDir    = flag.String("out", "out", "directory for rendered artifacts")
		artifacts = flag.String("artifacts", "", "comma-separated artifact filter (default all)")
		verbose   = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *input == "" || len(*country) != 2 {
		fmt.Fprintln(os.Stderr, "usage: taxatlas -input doc.pdf -country BR [-context ...] [-out dir]")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	content, err := os.ReadFile(*input)
	if err != nil {
		fatal(err)
	}

	var kinds []string
	if *artifacts != "" {
		kinds = strings.Split(*artifacts, ",")
	}
	parsed, err := pipeline.ParseArtifactKinds(kinds)
	if err != nil {
		fatal(err)
	}

	orch := buildOrchestrator(cfg, logger)
	res, err := orch.Process(context.Background(), pipeline.Request{
		Content:   content,
		Filename:  filepath.Base(*input),
		Country:   *country,
		Context:   *docCtx,
		Artifacts: parsed,
	})
	if err != nil {
		fatal(err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatal(err)
	}
	for _, a := range res.Artifacts {
		path := filepath.Join(*outDir, a.Name)
		if err := os.WriteFile(path, a.Content, 0o644); err != nil {
			fatal(err)
		}
		fmt.Println(path)
	}

	envelope := *res
	envelope.Artifacts = nil
	out, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		fatal(err)
	}
	envelopePath := filepath.Join(*outDir, "result.json")
	if err := os.WriteFile(envelopePath, append(out, '\n'), 0o644); err != nil {
		fatal(err)
	}
	fmt.Println(envelopePath)

	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "taxatlas:", err)
	os.Exit(1)
}

func buildOrchestrator(cfg *common.Config, logger *slog.Logger) *pipeline.Orchestrator {
	normalizer := normalize.New(normalize.Config{
		TesseractBin: cfg.OCR.TesseractBin,
		TessdataDir:  cfg.OCR.TessdataDir,
	}, logger)

	gen := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger)

	extractor := extract.New(extract.Config{
		CallTimeout: cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, gen, logger)

	return pipeline.New(cfg.Pipeline, normalizer, extractor,
		pipeline.DefaultRenderers(cfg.Pipeline.CodeTarget), logger)
}
