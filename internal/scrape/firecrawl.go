// Package scrape retrieves a paper's full text, preferring the Firecrawl
// scraping API and falling back to local PDF extraction.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the Firecrawl scrape API.
	DefaultEndpoint = "https://api.firecrawl.dev/v1/scrape"

	// MissingKeyNotice is stored as regular content when no credential is
	// configured. It is a user-visible fallback, not a failure.
	MissingKeyNotice = "PDF content could not be loaded. The Firecrawl API key is missing."

	scrapeTimeout = 30 * time.Second
)

// ScrapeError reports a scrape attempt that produced no usable text.
type ScrapeError struct {
	PaperID string
	Err     error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scraping paper %s: %v", e.PaperID, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// Scraper fetches the full text of a paper by its arXiv-style identifier.
type Scraper interface {
	Scrape(ctx context.Context, paperID string) (string, error)
}

// Firecrawl scrapes the HTML rendering of a paper via the Firecrawl API.
type Firecrawl struct {
	endpoint string
	apiKey   string
	http     *http.Client
	sourceFn func(paperID string) string
}

// FirecrawlOption tweaks a Firecrawl client.
type FirecrawlOption func(*Firecrawl)

// WithEndpoint overrides the scrape API endpoint.
func WithEndpoint(endpoint string) FirecrawlOption {
	return func(f *Firecrawl) {
		if endpoint != "" {
			f.endpoint = endpoint
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) FirecrawlOption {
	return func(f *Firecrawl) {
		if httpClient != nil {
			f.http = httpClient
		}
	}
}

// WithSourceURL overrides how a paper id becomes a source-document URL.
func WithSourceURL(fn func(paperID string) string) FirecrawlOption {
	return func(f *Firecrawl) {
		if fn != nil {
			f.sourceFn = fn
		}
	}
}

// NewFirecrawl builds a Firecrawl scraper. An empty API key is allowed:
// every Scrape call then returns MissingKeyNotice as successful content.
func NewFirecrawl(apiKey string, opts ...FirecrawlOption) *Firecrawl {
	f := &Firecrawl{
		endpoint: DefaultEndpoint,
		apiKey:   strings.TrimSpace(apiKey),
		http:     &http.Client{Timeout: scrapeTimeout},
		sourceFn: func(paperID string) string {
			return fmt.Sprintf("https://arxiv.org/html/%s", paperID)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

// Scrape returns the markdown text of the paper's source document.
func (f *Firecrawl) Scrape(ctx context.Context, paperID string) (string, error) {
	if f.apiKey == "" {
		return MissingKeyNotice, nil
	}

	payload, err := json.Marshal(scrapeRequest{
		URL:     f.sourceFn(paperID),
		Formats: []string{"markdown"},
	})
	if err != nil {
		return "", &ScrapeError{PaperID: paperID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &ScrapeError{PaperID: paperID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.http.Do(req)
	if err != nil {
		return "", &ScrapeError{PaperID: paperID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &ScrapeError{
			PaperID: paperID,
			Err:     fmt.Errorf("firecrawl API error: %s (%s)", resp.Status, string(body)),
		}
	}

	var parsed scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &ScrapeError{PaperID: paperID, Err: fmt.Errorf("failed to decode scrape response: %w", err)}
	}
	if !parsed.Success {
		return "", &ScrapeError{PaperID: paperID, Err: fmt.Errorf("firecrawl reported failure for %s", f.sourceFn(paperID))}
	}
	return parsed.Data.Markdown, nil
}

// Chain tries each scraper in order and returns the first usable text.
// A scraper returning the MissingKeyNotice counts as unusable when a later
// scraper is still available, so a configured fallback gets its turn.
type Chain []Scraper

// Scrape walks the chain. The last error (or the last diagnostic notice)
// wins when every scraper fails.
func (c Chain) Scrape(ctx context.Context, paperID string) (string, error) {
	var lastText string
	var lastErr error
	for i, scraper := range c {
		text, err := scraper.Scrape(ctx, paperID)
		if err == nil {
			if text != MissingKeyNotice || i == len(c)-1 {
				return text, nil
			}
			lastText = text
			continue
		}
		lastErr = err
	}
	if lastText != "" {
		return lastText, nil
	}
	if lastErr == nil {
		lastErr = &ScrapeError{PaperID: paperID, Err: fmt.Errorf("no scraper configured")}
	}
	return "", lastErr
}
