package normalize

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/taxatlas/taxatlas/internal/common"
)

// normalizePDF extracts text from PDF content streams. When a PDF yields no
// text but carries image streams (scanned document), it falls back to OCR.
func (n *Normalizer) normalizePDF(ctx context.Context, content []byte) (Result, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), conf)
	if err != nil {
		return Result{}, common.NewAppError(common.CodeExtractionError, "corrupted or unreadable PDF", err)
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		pageText := pdfPageText(pdfCtx, pageNr)
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(pageText)
	}

	if strings.TrimSpace(sb.String()) != "" {
		return Result{Text: sb.String(), Method: "pdf", Pages: pdfCtx.PageCount}, nil
	}

	// Image-only PDF: hand the original bytes to the OCR fallback.
	if hasImageStreams(pdfCtx) {
		n.logger.Info("normalize.pdf.ocr_fallback", "pages", pdfCtx.PageCount)
		return n.ocrPDF(ctx, content)
	}
	return Result{}, common.NewAppError(common.CodeExtractionError, "PDF contains no extractable text", common.ErrExtraction)
}

// pdfPageText pulls text-showing operators out of one page's content stream.
func pdfPageText(pdfCtx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return scanContentStream(data)
}

// scanContentStream walks a content stream line by line and collects the
// string literals shown by Tj, TJ and ' operators. Positioning operators
// become separators so words do not run together.
func scanContentStream(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
			continue
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			writeLiterals(&sb, line, "")
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			writeLiterals(&sb, line, "\n")
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// writeLiterals appends every parenthesized string literal on the line.
func writeLiterals(sb *strings.Builder, line []byte, prefix string) {
	for {
		open := bytes.IndexByte(line, '(')
		if open < 0 {
			return
		}
		line = line[open+1:]
		end := literalEnd(line)
		if end < 0 {
			return
		}
		if text := decodeLiteral(line[:end]); text != "" {
			sb.WriteString(prefix)
			sb.WriteString(text)
		}
		line = line[end+1:]
	}
}

// literalEnd finds the closing parenthesis, honoring backslash escapes.
func literalEnd(s []byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case ')':
			return i
		}
	}
	return -1
}

// decodeLiteral resolves PDF string escapes, including octal sequences.
func decodeLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch e := raw[i]; e {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(e)
		default:
			if e >= '0' && e <= '7' {
				val := int(e - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(e)
			}
		}
	}
	return sb.String()
}

// hasImageStreams reports whether the PDF contains image XObjects.
func hasImageStreams(pdfCtx *model.Context) bool {
	if pdfCtx.Optimize != nil {
		for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(pdfCtx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range pdfCtx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}
