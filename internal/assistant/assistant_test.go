package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vualidon/DailyDigestAI/internal/retry"
)

func geminiResponse(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	policy := retry.Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   8 * time.Second,
		Sleep:      func(ctx context.Context, d time.Duration) error { return nil },
	}
	client, err := New(Config{
		Provider:    "gemini",
		APIKey:      "test-key",
		Endpoint:    server.URL,
		HTTPClient:  server.Client(),
		RetryPolicy: &policy,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewWithoutKeyDegradesGracefully(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Provider: "gemini"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSummarizeRetriesRateLimits(t *testing.T) {
	t.Parallel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits <= 2 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(geminiResponse("## Summary\nGood paper.\n\n## Questions\n1. Why?\n2. How?\n3. When?")))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server)
	summary, err := client.Summarize(context.Background(), "T", "A", "C")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if hits != 3 {
		t.Fatalf("expected 2 retries then success, got %d hits", hits)
	}
	if len(summary.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %v", summary.Questions)
	}
}

func TestSummarizeFailsFastOnNonRateLimitErrors(t *testing.T) {
	t.Parallel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server)
	_, err := client.Summarize(context.Background(), "T", "A", "C")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 StatusError, got %v", err)
	}
	if hits != 1 {
		t.Fatalf("400 must not retry, got %d hits", hits)
	}
}

func TestRateLimitExhaustionPropagates(t *testing.T) {
	t.Parallel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "still busy", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server)
	_, err := client.Chat(context.Background(), "T", "A", "C", "Why?")
	if !IsRateLimited(err) {
		t.Fatalf("expected rate-limit error after exhaustion, got %v", err)
	}
	if hits != 4 {
		t.Fatalf("expected MaxRetries+1 = 4 hits, got %d", hits)
	}
}

func TestChatSendsOnlyLatestQuestion(t *testing.T) {
	t.Parallel()

	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Contents) == 1 && len(req.Contents[0].Parts) == 1 {
			prompt = req.Contents[0].Parts[0].Text
		}
		_, _ = w.Write([]byte(geminiResponse("An answer.")))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server)
	answer, err := client.Chat(context.Background(), "Title", "Abstract", "Content", "What is new here?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "An answer." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if !strings.Contains(prompt, "What is new here?") {
		t.Fatal("prompt should carry the latest question")
	}
	if strings.Contains(prompt, "Previous question") || strings.Count(prompt, "Question:") != 1 {
		t.Fatalf("prompt must be single-turn, got:\n%s", prompt)
	}
}

func TestChatRejectsEmptyQuestion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty question")
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server)
	if _, err := client.Chat(context.Background(), "T", "A", "C", "  "); err == nil {
		t.Fatal("expected an error for an empty question")
	}
}

func TestGenerateNoteFallsBackToTemplateOnFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server)
	note, err := client.GenerateNote(context.Background(), noteMetaFixture(), "")
	if err != nil {
		t.Fatalf("GenerateNote must not fail, got %v", err)
	}
	if !strings.HasPrefix(note, "---") || !strings.Contains(note, linksHeading) {
		t.Fatalf("expected well-formed template fallback, got:\n%s", note)
	}
}

func TestGenerateNoteRepairsMalformedUpstream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(geminiResponse("---\nid: 2401.12345\n---\n\n# Note without links")))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server)
	note, err := client.GenerateNote(context.Background(), noteMetaFixture(), "full text")
	if err != nil {
		t.Fatalf("GenerateNote: %v", err)
	}
	if !strings.Contains(note, linksHeading) {
		t.Fatalf("missing Links section should be appended, got:\n%s", note)
	}
}

func TestOpenAIBackendParsesChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello from openai"}}]}`))
	}))
	t.Cleanup(server.Close)

	policy := retry.Policy{MaxRetries: 0, BaseDelay: time.Second}
	client, err := New(Config{
		Provider:    "openai",
		APIKey:      "test-key",
		Endpoint:    server.URL,
		HTTPClient:  server.Client(),
		RetryPolicy: &policy,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := client.Chat(context.Background(), "T", "A", "", "Q?")
	if err != nil || got != "hello from openai" {
		t.Fatalf("unexpected result %q (%v)", got, err)
	}
}
