package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reHorizWS  = regexp.MustCompile(`[ \t]+`)
	reBlankRun = regexp.MustCompile(`\n{3,}`)
)

// normalizeText decodes a plain-text document. UTF-8 is preferred; invalid
// byte sequences fall back to a Latin-1 read so legacy uploads still yield
// usable text.
func normalizeText(content []byte) (Result, error) {
	var text string
	if utf8.Valid(content) {
		text = string(content)
	} else {
		var sb strings.Builder
		sb.Grow(len(content))
		for _, b := range content {
			sb.WriteRune(rune(b))
		}
		text = sb.String()
	}
	return Result{Text: text, Method: "text", Pages: 1}, nil
}

// CleanText normalizes line endings, collapses horizontal whitespace runs
// and squeezes blank-line runs down to a single separator.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = reHorizWS.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = reBlankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
