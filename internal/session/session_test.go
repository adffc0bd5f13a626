package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vualidon/DailyDigestAI/internal/assistant"
	"github.com/vualidon/DailyDigestAI/internal/feed"
	"github.com/vualidon/DailyDigestAI/internal/scrape"
	"github.com/vualidon/DailyDigestAI/internal/store"
)

type memBackend struct {
	mu     sync.Mutex
	states map[string]store.PaperState
}

func (b *memBackend) Load() (map[string]store.PaperState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states, nil
}

func (b *memBackend) Save(states map[string]store.PaperState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = states
	return nil
}

type stubScraper struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (s *stubScraper) Scrape(ctx context.Context, paperID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.text, s.err
}

func (s *stubScraper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubAssistant struct {
	mu             sync.Mutex
	summarizeCalls int
	chatCalls      int
	noteCalls      int
	lastContent    string

	summary    assistant.Summary
	summaryErr error
	answer     string
	chatErr    error
	note       string
	noteErr    error
}

func (a *stubAssistant) Summarize(ctx context.Context, title, abstract, content string) (assistant.Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summarizeCalls++
	a.lastContent = content
	return a.summary, a.summaryErr
}

func (a *stubAssistant) Chat(ctx context.Context, title, abstract, content, question string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chatCalls++
	a.lastContent = content
	return a.answer, a.chatErr
}

func (a *stubAssistant) GenerateNote(ctx context.Context, meta assistant.NoteMeta, content string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.noteCalls++
	a.lastContent = content
	return a.note, a.noteErr
}

func samplePaper(id string) feed.Paper {
	p := feed.Paper{
		Title:       "Scaling Laws Revisited",
		PublishedAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	p.Paper = feed.PaperMeta{
		ID:          id,
		Title:       p.Title,
		Summary:     "We revisit scaling laws for language models.",
		PublishedAt: p.PublishedAt,
	}
	return p
}

func newTestSession(scraper scrape.Scraper, asst Assistant) (*Session, *store.Store) {
	st := store.Open(&memBackend{})
	return New(st, scraper, asst, nil), st
}

func TestOpenFetchesOnceThenServesCache(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{text: "full paper text"}
	s, _ := newTestSession(scraper, &stubAssistant{})
	paper := samplePaper("2401.00001")

	state, err := s.Open(context.Background(), paper)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if state.PDFContent != "full paper text" {
		t.Fatalf("content = %q", state.PDFContent)
	}
	if _, err := s.Open(context.Background(), paper); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if got := scraper.callCount(); got != 1 {
		t.Fatalf("scraper called %d times, want 1", got)
	}
	if s.Stage(paper.Paper.ID) != StageContentReady {
		t.Fatalf("stage = %v, want content ready", s.Stage(paper.Paper.ID))
	}
}

func TestCachedDiagnosticSuppressesRescrape(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{text: "should never be fetched"}
	s, st := newTestSession(scraper, &stubAssistant{})
	paper := samplePaper("2401.00002")

	if _, err := st.Apply(paper.Paper.ID, store.Patch{PDFContent: store.String(ScrapeFailureNotice)}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	state, err := s.Open(context.Background(), paper)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if state.PDFContent != ScrapeFailureNotice {
		t.Fatalf("content = %q, want the stored diagnostic preserved", state.PDFContent)
	}
	if got := scraper.callCount(); got != 0 {
		t.Fatalf("scraper called %d times, want 0 for cached diagnostic", got)
	}
}

func TestScrapeFailureDegradesToDiagnostic(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{err: errors.New("upstream down")}
	s, _ := newTestSession(scraper, &stubAssistant{})
	paper := samplePaper("2401.00003")

	state, err := s.Open(context.Background(), paper)
	if err != nil {
		t.Fatalf("Open should absorb scrape failures, got %v", err)
	}
	if state.PDFContent != ScrapeFailureNotice {
		t.Fatalf("content = %q, want diagnostic notice", state.PDFContent)
	}
	// The diagnostic now counts as cached.
	if _, err := s.Open(context.Background(), paper); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if got := scraper.callCount(); got != 1 {
		t.Fatalf("scraper called %d times, want 1", got)
	}
}

func TestConcurrentOpensShareOneFetch(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{text: "text"}
	s, _ := newTestSession(scraper, &stubAssistant{})
	paper := samplePaper("2401.00004")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Open(context.Background(), paper)
		}()
	}
	wg.Wait()

	if got := scraper.callCount(); got != 1 {
		t.Fatalf("scraper called %d times, want exactly 1", got)
	}
}

func TestActivateChatSummarizesOnceAtomically(t *testing.T) {
	t.Parallel()

	asst := &stubAssistant{summary: assistant.Summary{
		Text:      "## Overview\nA solid paper.",
		Questions: []string{"Q1?", "Q2?", "Q3?", "Q4?"},
	}}
	s, _ := newTestSession(&stubScraper{text: "text"}, asst)
	paper := samplePaper("2401.00005")

	state, err := s.ActivateChat(context.Background(), paper)
	if err != nil {
		t.Fatalf("ActivateChat: %v", err)
	}
	if len(state.Messages) != 2 {
		t.Fatalf("messages = %d, want summary plus suggestions in one update", len(state.Messages))
	}
	if state.Messages[0].Role != store.RoleAssistant || state.Messages[0].Content != asst.summary.Text {
		t.Fatalf("first message = %+v", state.Messages[0])
	}
	if state.Messages[1].Role != store.RoleSuggestions || len(state.Messages[1].Questions) != 3 {
		t.Fatalf("suggestions should cap at three questions, got %+v", state.Messages[1])
	}

	if _, err := s.ActivateChat(context.Background(), paper); err != nil {
		t.Fatalf("second ActivateChat: %v", err)
	}
	if asst.summarizeCalls != 1 {
		t.Fatalf("summarize called %d times, want 1", asst.summarizeCalls)
	}
}

func TestActivateChatSkipsWhenTranscriptPersisted(t *testing.T) {
	t.Parallel()

	asst := &stubAssistant{}
	s, st := newTestSession(&stubScraper{text: "text"}, asst)
	paper := samplePaper("2401.00006")

	_, _ = st.Apply(paper.Paper.ID, store.Patch{
		PDFContent: store.String("text"),
		Messages:   []store.Message{{Role: store.RoleAssistant, Content: "earlier summary"}},
	})

	state, err := s.ActivateChat(context.Background(), paper)
	if err != nil {
		t.Fatalf("ActivateChat: %v", err)
	}
	if asst.summarizeCalls != 0 {
		t.Fatalf("persisted transcript must suppress summarize, called %d times", asst.summarizeCalls)
	}
	if len(state.Messages) != 1 || state.Messages[0].Content != "earlier summary" {
		t.Fatalf("transcript changed: %+v", state.Messages)
	}
}

func TestActivateChatSummaryFailureWritesApology(t *testing.T) {
	t.Parallel()

	asst := &stubAssistant{summaryErr: errors.New("quota exhausted")}
	s, _ := newTestSession(&stubScraper{text: "text"}, asst)
	paper := samplePaper("2401.00007")

	state, err := s.ActivateChat(context.Background(), paper)
	if err != nil {
		t.Fatalf("summary failure must degrade locally, got %v", err)
	}
	if len(state.Messages) != 1 || state.Messages[0].Content != summaryApology {
		t.Fatalf("messages = %+v, want single apology", state.Messages)
	}

	// The apology counts as the session summary; no retry on re-entry.
	if _, err := s.ActivateChat(context.Background(), paper); err != nil {
		t.Fatalf("second ActivateChat: %v", err)
	}
	if asst.summarizeCalls != 1 {
		t.Fatalf("summarize called %d times, want 1", asst.summarizeCalls)
	}
}

func TestActivateChatSkipsSummaryOverDiagnosticContent(t *testing.T) {
	t.Parallel()

	asst := &stubAssistant{}
	scraper := &stubScraper{err: errors.New("no scrape path")}
	s, _ := newTestSession(scraper, asst)
	paper := samplePaper("2401.00008")

	state, err := s.ActivateChat(context.Background(), paper)
	if err != nil {
		t.Fatalf("ActivateChat: %v", err)
	}
	if asst.summarizeCalls != 0 {
		t.Fatal("diagnostic content must not be summarized")
	}
	if len(state.Messages) != 0 {
		t.Fatalf("transcript should stay empty, got %+v", state.Messages)
	}
}

func TestAskAppendsQuestionThenAnswer(t *testing.T) {
	t.Parallel()

	asst := &stubAssistant{answer: "Because attention is quadratic."}
	s, st := newTestSession(&stubScraper{text: "text"}, asst)
	paper := samplePaper("2401.00009")
	_, _ = st.Apply(paper.Paper.ID, store.Patch{PDFContent: store.String("text")})

	state, err := s.Ask(context.Background(), paper, "Why is it slow?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(state.Messages) != 2 {
		t.Fatalf("messages = %d, want question and answer", len(state.Messages))
	}
	if state.Messages[0].Role != store.RoleUser || state.Messages[0].Content != "Why is it slow?" {
		t.Fatalf("first message = %+v", state.Messages[0])
	}
	if state.Messages[1].Role != store.RoleAssistant || state.Messages[1].Content != asst.answer {
		t.Fatalf("second message = %+v", state.Messages[1])
	}
}

func TestAskFailureKeepsQuestionAndApologizes(t *testing.T) {
	t.Parallel()

	asst := &stubAssistant{chatErr: errors.New("timeout")}
	s, _ := newTestSession(&stubScraper{text: "text"}, asst)
	paper := samplePaper("2401.00010")

	state, err := s.Ask(context.Background(), paper, "Anything?")
	if err != nil {
		t.Fatalf("chat failure must degrade locally, got %v", err)
	}
	if len(state.Messages) != 2 {
		t.Fatalf("messages = %d, want question plus apology", len(state.Messages))
	}
	if state.Messages[1].Content != chatApology {
		t.Fatalf("got %q, want apology", state.Messages[1].Content)
	}
}

func TestAskWithoutAssistantErrors(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(&stubScraper{text: "text"}, nil)
	if _, err := s.Ask(context.Background(), samplePaper("2401.00011"), "Hi?"); !errors.Is(err, ErrAssistantUnavailable) {
		t.Fatalf("err = %v, want ErrAssistantUnavailable", err)
	}
	if _, err := s.GenerateNote(context.Background(), samplePaper("2401.00011")); !errors.Is(err, ErrAssistantUnavailable) {
		t.Fatalf("err = %v, want ErrAssistantUnavailable", err)
	}
}

func TestGenerateNoteFetchesContentAndOverwrites(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{text: "text"}
	asst := &stubAssistant{note: "---\ngenerated note"}
	s, st := newTestSession(scraper, asst)
	paper := samplePaper("2401.00012")
	_, _ = st.Apply(paper.Paper.ID, store.Patch{Notes: store.String("old scribbles")})

	state, err := s.GenerateNote(context.Background(), paper)
	if err != nil {
		t.Fatalf("GenerateNote: %v", err)
	}
	if state.Notes != asst.note {
		t.Fatalf("notes = %q, want wholesale overwrite", state.Notes)
	}
	if scraper.callCount() != 1 {
		t.Fatalf("note generation should fetch missing content, calls = %d", scraper.callCount())
	}
	if s.NoteStage(paper.Paper.ID) != NoteReady {
		t.Fatalf("note stage = %v", s.NoteStage(paper.Paper.ID))
	}
}

func TestGenerateNoteOmitsDiagnosticContent(t *testing.T) {
	t.Parallel()

	asst := &stubAssistant{note: "note"}
	s, st := newTestSession(&stubScraper{}, asst)
	paper := samplePaper("2401.00013")
	_, _ = st.Apply(paper.Paper.ID, store.Patch{PDFContent: store.String(scrape.MissingKeyNotice)})

	if _, err := s.GenerateNote(context.Background(), paper); err != nil {
		t.Fatalf("GenerateNote: %v", err)
	}
	if asst.lastContent != "" {
		t.Fatalf("diagnostic text leaked into the note prompt: %q", asst.lastContent)
	}
}

func TestMountRestoresSummaryGuardAndNoteStage(t *testing.T) {
	t.Parallel()

	backend := &memBackend{states: map[string]store.PaperState{
		"2401.00014": {
			ID:         "2401.00014",
			PDFContent: "text",
			Notes:      "saved note",
			Messages:   []store.Message{{Role: store.RoleAssistant, Content: "old summary"}},
		},
	}}
	st := store.Open(backend)
	asst := &stubAssistant{}
	s := New(st, &stubScraper{}, asst, nil)
	paper := samplePaper("2401.00014")

	if _, err := s.ActivateChat(context.Background(), paper); err != nil {
		t.Fatalf("ActivateChat: %v", err)
	}
	if asst.summarizeCalls != 0 {
		t.Fatal("restored transcript must suppress summarize")
	}
	if s.NoteStage(paper.Paper.ID) != NoteReady {
		t.Fatal("saved note should restore the note stage")
	}
	if s.Stage(paper.Paper.ID) != StageChatReady {
		t.Fatalf("stage = %v, want chat ready", s.Stage(paper.Paper.ID))
	}
}
