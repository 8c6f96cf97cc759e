package normalize

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/taxatlas/taxatlas/internal/common"
)

// normalizeDocx reads word/document.xml out of the DOCX archive and
// flattens paragraphs and table cells into plain text.
func normalizeDocx(content []byte) (Result, error) {
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Result{}, common.NewAppError(common.CodeExtractionError, "not a valid DOCX archive", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return Result{}, common.NewAppError(common.CodeExtractionError, "word/document.xml missing from archive", common.ErrExtraction)
	}

	rc, err := docFile.Open()
	if err != nil {
		return Result{}, common.NewAppError(common.CodeExtractionError, "open document.xml", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var (
		out       strings.Builder
		paragraph strings.Builder
		inCell    bool
	)

	flush := func() {
		text := strings.TrimSpace(paragraph.String())
		paragraph.Reset()
		if text == "" {
			return
		}
		if out.Len() > 0 {
			if inCell {
				out.WriteString(" | ")
			} else {
				out.WriteByte('\n')
			}
		}
		out.WriteString(text)
	}

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tc":
				inCell = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br":
				paragraph.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				flush()
			case "tc":
				flush()
				inCell = false
			}
		case xml.CharData:
			paragraph.Write(t)
		}
	}
	flush()

	return Result{Text: out.String(), Method: "docx", Pages: 1}, nil
}
