package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxatlas/taxatlas/internal/llm"
)

// Generate implements llm.Generator using text-only chat/completions with
// response_format json_object and the JSON Schema embedded as a system
// message. The raw message content is returned unparsed; the extractor owns
// sanitation, validation and retries.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	temp := req.Temperature
	if temp <= 0 {
		temp = c.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	c.log.Info("llm.generate.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", temp,
		"prompt_len", len(req.System)+len(req.User),
	)

	messages := []map[string]any{
		{"role": "system", "content": req.System},
		{"role": "user", "content": req.User},
	}
	if req.Schema != nil {
		messages = append(messages, map[string]any{
			"role":    "system",
			"content": "JSON Schema:\n" + mustJSON(req.Schema),
		})
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     temp,
		"max_tokens":      maxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.generate.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.generate.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.generate.no_choices", "req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("no choices in openai response")
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.log.Info("llm.generate.ok",
		"req_id", rid,
		"content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return []byte(content), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
