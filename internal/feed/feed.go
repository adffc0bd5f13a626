// Package feed fetches the Hugging Face daily-papers digest.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/vualidon/DailyDigestAI/internal/retry"
)

// DefaultURL is the public daily digest endpoint; no auth, no pagination.
const DefaultURL = "https://huggingface.co/api/daily_papers"

const defaultHTTPTimeout = 30 * time.Second

// Author is one credited author of a paper.
type Author struct {
	Name   string `json:"name"`
	Hidden bool   `json:"hidden"`
	User   *struct {
		AvatarURL string `json:"avatarUrl"`
		FullName  string `json:"fullname"`
		User      string `json:"user"`
	} `json:"user,omitempty"`
}

// PaperMeta is the inner record carrying the arXiv-style identifier.
type PaperMeta struct {
	ID           string    `json:"id"`
	Authors      []Author  `json:"authors"`
	PublishedAt  time.Time `json:"publishedAt"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Upvotes      int       `json:"upvotes"`
	DiscussionID string    `json:"discussionId"`
}

// Paper is one entry of the daily digest. The listing is re-fetched
// wholesale and entries are immutable once decoded.
type Paper struct {
	Paper       PaperMeta `json:"paper"`
	PublishedAt time.Time `json:"publishedAt"`
	Title       string    `json:"title"`
	Thumbnail   string    `json:"thumbnail"`
	NumComments int       `json:"numComments"`
	SubmittedBy struct {
		AvatarURL string `json:"avatarUrl"`
		FullName  string `json:"fullname"`
		Name      string `json:"name"`
	} `json:"submittedBy"`
}

// AuthorNames flattens the author list, preferring account full names.
func (p Paper) AuthorNames() []string {
	names := make([]string, 0, len(p.Paper.Authors))
	for _, author := range p.Paper.Authors {
		name := author.Name
		if author.User != nil && author.User.FullName != "" {
			name = author.User.FullName
		}
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// NetworkError reports a listing fetch that failed after the retry budget.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching daily papers from %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// statusError marks a response that arrived but carried an error status.
// Responses that arrived are the retryable class for the listing path.
type statusError struct {
	status string
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("daily papers API error: %s (%s)", e.status, e.body)
}

// Client fetches the digest with uncapped exponential backoff.
type Client struct {
	url    string
	http   *http.Client
	policy retry.Policy
}

// Option tweaks a Client.
type Option func(*Client)

// WithURL points the client at a different listing endpoint.
func WithURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithRetryPolicy overrides the default backoff policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) { c.policy = policy }
}

// NewClient builds a digest client with the default retry budget:
// base 1s, doubling without a cap, three retries.
func NewClient(opts ...Option) *Client {
	c := &Client{
		url:  DefaultURL,
		http: &http.Client{Timeout: defaultHTTPTimeout},
		policy: retry.Policy{
			MaxRetries: 3,
			BaseDelay:  time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the full current digest. Error statuses are retried under
// the client policy; transport failures (no response at all) fail fast.
// Exhausted retries surface as a NetworkError.
func (c *Client) Fetch(ctx context.Context) ([]Paper, error) {
	papers, err := retry.Do(ctx, c.policy, isRetryableListing, func(ctx context.Context) ([]Paper, error) {
		return c.fetchOnce(ctx)
	})
	if err != nil {
		return nil, &NetworkError{URL: c.url, Err: err}
	}
	return papers, nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]Paper, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{status: resp.Status, body: string(body)}
	}

	var papers []Paper
	if err := json.NewDecoder(resp.Body).Decode(&papers); err != nil {
		return nil, fmt.Errorf("failed to decode daily papers response: %w", err)
	}
	return papers, nil
}

func isRetryableListing(err error) bool {
	var statusErr *statusError
	return errors.As(err, &statusErr)
}

// SortOption selects the list ordering.
type SortOption string

const (
	SortByDate    SortOption = "date"
	SortByUpvotes SortOption = "upvotes"
)

// Sort returns a new slice ordered by the given option, most recent or
// most upvoted first. Unknown options leave the order untouched.
func Sort(papers []Paper, by SortOption) []Paper {
	sorted := append([]Paper(nil), papers...)
	switch by {
	case SortByDate:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
		})
	case SortByUpvotes:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Paper.Upvotes > sorted[j].Paper.Upvotes
		})
	}
	return sorted
}

// Filter keeps papers whose title or abstract contains the term,
// case-insensitively. An empty term keeps everything.
func Filter(papers []Paper, term string) []Paper {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return papers
	}
	filtered := make([]Paper, 0, len(papers))
	for _, paper := range papers {
		if strings.Contains(strings.ToLower(paper.Title), term) ||
			strings.Contains(strings.ToLower(paper.Paper.Summary), term) {
			filtered = append(filtered, paper)
		}
	}
	return filtered
}
