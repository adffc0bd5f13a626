package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1"
	defaultOpenAIModel    = "gpt-4o-mini"
)

// openAIClient talks to any OpenAI-compatible chat-completions endpoint.
type openAIClient struct {
	apiKey string
	model  string
	base   string
	client *http.Client
}

func newOpenAI(cfg Config) *openAIClient {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	base := strings.TrimRight(cfg.Endpoint, "/")
	if base == "" {
		base = defaultOpenAIEndpoint
	}
	return &openAIClient{
		apiKey: cfg.APIKey,
		model:  model,
		base:   base,
		client: pickHTTPClient(cfg.HTTPClient),
	}
}

func (c *openAIClient) name() string {
	return fmt.Sprintf("OpenAI (%s)", c.model)
}

func (c *openAIClient) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are an expert research assistant."},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/chat/completions", c.base)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai API returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
