// Command taxatlasd serves the document-to-artifacts pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taxatlas/taxatlas/internal/common"
	"github.com/taxatlas/taxatlas/internal/extract"
	"github.com/taxatlas/taxatlas/internal/llm/openai"
	"github.com/taxatlas/taxatlas/internal/normalize"
	"github.com/taxatlas/taxatlas/internal/pipeline"
	"github.com/taxatlas/taxatlas/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "err", err)
		os.Exit(1)
	}

	orch := buildOrchestrator(cfg, logger)
	srv := server.New(cfg.Server, orch, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server.listen", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server.listen_failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server.shutdown.start")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server.shutdown.error", "err", err)
	}
	logger.Info("server.shutdown.done")
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
