package llm

import (
	"fmt"
	"strings"
)

// PromptInput carries everything the extraction prompts need.
type PromptInput struct {
	Text        string
	Country     string
	CountryName string
	Language    string
	Context     string
}

// BuildExtractionSystemPrompt composes the analyst instruction with the
// entity catalogue and formatting rules.
func BuildExtractionSystemPrompt() string {
	parts := []string{
		"You are an expert tax law analyst and data extraction specialist.",
		"Extract structured tax information from the document you are given and return ONLY JSON that matches the provided JSON Schema.",
		"Entity catalogue: tax rates (standard, reduced, special), progressive tax brackets, registration/exemption/filing thresholds, filing and payment deadlines, and free-form rules for anything not reducible to those.",
		"Express every rate as a decimal fraction (0.17 for 17%).",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Currency must be a 3-letter ISO 4217 code.",
		"If an entity category is not present in the document, return it as an empty array; never invent entries.",
		"Report your own confidence in 'confidence_score' and list any ambiguity you noticed in 'warnings'.",
		"Never output null for a missing field; omit the field instead.",
	}
	return strings.Join(parts, " ")
}

// BuildExtractionUserPrompt packages the document with its jurisdiction
// context. Text beyond maxPromptChars is handled upstream by chunking.
func BuildExtractionUserPrompt(in PromptInput) string {
	ctx := strings.TrimSpace(in.Context)
	if ctx == "" {
		ctx = "No additional context provided"
	}

	var b strings.Builder
	b.WriteString("Analyze the following tax document and extract all relevant tax entities.\n\n")
	b.WriteString("DOCUMENT CONTEXT:\n")
	fmt.Fprintf(&b, "- Country: %s (%s)\n", in.Country, in.CountryName)
	fmt.Fprintf(&b, "- Language: %s\n", in.Language)
	fmt.Fprintf(&b, "- Additional Context: %s\n\n", ctx)
	b.WriteString("DOCUMENT CONTENT:\n")
	b.WriteString(in.Text)
	b.WriteString("\n\nRespond ONLY with the JSON object, no additional text.")
	return b.String()
}

// CorrectiveInstruction is appended to the user prompt on a retry after the
// previous response failed schema validation.
func CorrectiveInstruction(validationErr error) string {
	return fmt.Sprintf(
		"\n\nYour previous response did not match the required JSON Schema (%v). "+
			"Return a corrected JSON object that strictly matches the schema. "+
			"Do not include any text outside the JSON object.", validationErr)
}
