package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxatlas/taxatlas/internal/llm"
)

func TestGenerate(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "  {\"summary\": \"ok\", \"tax_types\": []}  "}}]}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: ts.URL, Model: "gpt-4o-mini"}, nil)
	out, err := c.Generate(context.Background(), llm.GenerateRequest{
		System: "system prompt",
		User:   "user prompt",
		Schema: map[string]any{"type": "object"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.JSONEq(t, `{"summary": "ok", "tax_types": []}`, string(out))

	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	rf := gotBody["response_format"].(map[string]any)
	assert.Equal(t, "json_object", rf["type"])
	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 3)
	last := messages[2].(map[string]any)
	assert.Equal(t, "system", last["role"])
	assert.Contains(t, last["content"], "JSON Schema:")
}

func TestGenerateHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL}, nil)
	_, err := c.Generate(context.Background(), llm.GenerateRequest{User: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGenerateNoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL}, nil)
	_, err := c.Generate(context.Background(), llm.GenerateRequest{User: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
