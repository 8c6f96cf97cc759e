package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/taxatlas/taxatlas/internal/common"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		slog.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	}
	return []byte(out.String()), []byte(errb.String()), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// ocrPDF renders each page to PNG (pdftoppm) and runs tesseract over the
// images. Used only for PDFs whose content streams carry no text.
func (n *Normalizer) ocrPDF(ctx context.Context, content []byte) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "taxatlas-ocr-*")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(tmpDir)

	src := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		return Result{}, err
	}

	prefix := filepath.Join(tmpDir, "page")
	if _, errb, err := n.runner.Run(ctx, n.cfg.PdftoppmBin, "-r", fmt.Sprintf("%d", n.cfg.OCRDPI), "-png", src, prefix); err != nil {
		return Result{}, common.NewAppError(common.CodeExtractionError,
			fmt.Sprintf("pdftoppm failed: %s", truncate(string(errb), 512)), err)
	}

	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if len(pages) > n.cfg.MaxOCRPages {
		pages = pages[:n.cfg.MaxOCRPages]
	}
	if len(pages) == 0 {
		return Result{}, common.NewAppError(common.CodeExtractionError, "pdftoppm produced no images", common.ErrExtraction)
	}

	var sb strings.Builder
	for _, img := range pages {
		text, err := n.tesseract(ctx, img)
		if err != nil {
			n.logger.Warn("normalize.ocr.page_failed", "image", filepath.Base(img), "err", err)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return Result{Text: sb.String(), Method: "pdf+ocr", Pages: len(pages)}, nil
}

func (n *Normalizer) tesseract(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout"}
	if n.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", n.cfg.TessdataDir)
	}
	out, errb, err := n.runner.Run(ctx, n.cfg.TesseractBin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %s: %w", truncate(string(errb), 512), err)
	}
	return string(out), nil
}
