// Package assistant wraps a generative-text service for summarization,
// grounded question answering, and structured note generation.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vualidon/DailyDigestAI/internal/retry"
)

// Summary is a parsed summarize response: the markdown body with the
// Questions section stripped, plus the extracted follow-up questions.
type Summary struct {
	Text      string
	Questions []string
}

// StatusError reports a non-2xx response from the text-generation service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("assistant API error: status %d (%s)", e.Code, e.Body)
}

// IsRateLimited reports whether err is an HTTP 429 from the service.
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests
}

// generator is the one-shot prompt-completion boundary each provider
// implements. No streaming, no conversation state.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
	name() string
}

// Client exposes the three assistant operations over a provider backend,
// retrying rate-limited calls with capped exponential backoff.
type Client struct {
	backend generator
	policy  retry.Policy
	now     func() time.Time
}

// Config selects and credentials a provider backend.
type Config struct {
	// Provider is "gemini" (default) or "openai" for any
	// OpenAI-compatible chat-completions endpoint.
	Provider string
	APIKey   string
	Model    string
	Endpoint string

	HTTPClient  *http.Client
	RetryPolicy *retry.Policy
	Now         func() time.Time
}

// ErrMissingAPIKey is returned at construction when no credential is
// configured; callers degrade to a disabled assistant, not a crash.
var ErrMissingAPIKey = errors.New("assistant API key is missing")

// New builds a Client for the configured provider.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	var backend generator
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini":
		backend = newGemini(cfg)
	case "openai", "openai-compatible":
		backend = newOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Provider)
	}

	policy := retry.Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   8 * time.Second,
	}
	if cfg.RetryPolicy != nil {
		policy = *cfg.RetryPolicy
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{backend: backend, policy: policy, now: now}, nil
}

// Name identifies the active provider for status lines and logs.
func (c *Client) Name() string { return c.backend.name() }

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	return retry.Do(ctx, c.policy, IsRateLimited, func(ctx context.Context) (string, error) {
		return c.backend.generate(ctx, prompt)
	})
}

// Summarize reviews the paper and returns the summary body plus up to
// three suggested follow-up questions.
func (c *Client) Summarize(ctx context.Context, title, abstract, content string) (Summary, error) {
	raw, err := c.generate(ctx, buildSummaryPrompt(title, abstract, content))
	if err != nil {
		return Summary{}, err
	}
	return parseSummary(raw), nil
}

// Chat answers a single question grounded in the supplied text. Only the
// latest question travels; the transcript is a client-side record.
func (c *Client) Chat(ctx context.Context, title, abstract, content, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question cannot be empty")
	}
	return c.generate(ctx, buildChatPrompt(title, abstract, content, question))
}

// GenerateNote produces a structured markdown note. Malformed upstream
// output is repaired locally, and a failed call degrades to the bare
// template, so the result is always well-formed.
func (c *Client) GenerateNote(ctx context.Context, meta NoteMeta, content string) (string, error) {
	now := c.now()
	raw, err := c.generate(ctx, buildNotePrompt(meta, content, now))
	if err != nil {
		return noteTemplate(meta, now), nil
	}
	return repairNote(strings.TrimSpace(raw), meta, now), nil
}
