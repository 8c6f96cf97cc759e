package llm

import "context"

// GenerateRequest is one structured-generation call: a prompt pair plus the
// JSON schema the response must satisfy.
type GenerateRequest struct {
	System      string
	User        string
	Schema      map[string]any
	Temperature float32
	MaxTokens   int
}

// Generator is the language-model capability the extractor depends on.
// Implementations return the raw response content; sanitation and schema
// validation happen in the caller so a deterministic stub can drive tests.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]byte, error)
}
