// Package session orchestrates the per-paper flow: preload content,
// summarize, chat, and generate notes, against the shared state store.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vualidon/DailyDigestAI/internal/assistant"
	"github.com/vualidon/DailyDigestAI/internal/feed"
	"github.com/vualidon/DailyDigestAI/internal/scrape"
	"github.com/vualidon/DailyDigestAI/internal/store"
)

// Stage is the per-paper content/chat state machine.
type Stage int

const (
	StageIdle Stage = iota
	StagePreloadingContent
	StageContentReady
	StageSummarizing
	StageChatReady
)

// NoteStage tracks note generation independently of the chat flow.
type NoteStage int

const (
	NoteIdle NoteStage = iota
	NoteGenerating
	NoteReady
)

const (
	// ScrapeFailureNotice is stored as content when every scrape path
	// fails; like the missing-key notice it then counts as cached.
	ScrapeFailureNotice = "Error loading PDF content. Please try again later."

	chatApology    = "Sorry, I encountered an error. Please try again."
	summaryApology = "I encountered an error generating the summary. Please feel free to ask questions about the paper."

	suggestionsHeader = "### Here are some questions you might want to ask:"

	maxSuggestedQuestions = 3
)

// ErrAssistantUnavailable is returned when a chat or note action runs
// without a configured assistant. It is one of the two failure modes
// allowed to reach the user directly.
var ErrAssistantUnavailable = errors.New("assistant is not configured")

// Assistant is the generative boundary the orchestrator drives.
type Assistant interface {
	Summarize(ctx context.Context, title, abstract, content string) (assistant.Summary, error)
	Chat(ctx context.Context, title, abstract, content, question string) (string, error)
	GenerateNote(ctx context.Context, meta assistant.NoteMeta, content string) (string, error)
}

// Session coordinates scraper, assistant, and store for every opened
// paper. Independent papers orchestrate concurrently; per-paper content
// fetches are coalesced.
type Session struct {
	store     *store.Store
	scraper   scrape.Scraper
	assistant Assistant
	logger    *zap.Logger

	mu         sync.Mutex
	stages     map[string]Stage
	noteStages map[string]NoteStage
	summaries  map[string]string

	fetches singleflight.Group
}

// New wires a Session. The assistant may be nil when no credential is
// configured; chat and note actions then fail with ErrAssistantUnavailable.
func New(st *store.Store, scraper scrape.Scraper, asst Assistant, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		store:      st,
		scraper:    scraper,
		assistant:  asst,
		logger:     logger,
		stages:     map[string]Stage{},
		noteStages: map[string]NoteStage{},
		summaries:  map[string]string{},
	}
}

// AssistantAvailable reports whether chat and note generation can run.
func (s *Session) AssistantAvailable() bool { return s.assistant != nil }

// State returns the stored state for the paper.
func (s *Session) State(paperID string) store.PaperState {
	return s.store.Get(paperID)
}

// Stage returns the current content/chat stage for the paper.
func (s *Session) Stage(paperID string) Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages[paperID]
}

// NoteStage returns the note-generation stage for the paper.
func (s *Session) NoteStage(paperID string) NoteStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noteStages[paperID]
}

func (s *Session) setStage(paperID string, stage Stage) {
	s.mu.Lock()
	s.stages[paperID] = stage
	s.mu.Unlock()
}

func (s *Session) setNoteStage(paperID string, stage NoteStage) {
	s.mu.Lock()
	s.noteStages[paperID] = stage
	s.mu.Unlock()
}

// Open mounts a paper's detail view: the summary guard is repopulated
// from the persisted transcript and content preloading starts unless any
// non-empty string (diagnostic text included) is already cached.
func (s *Session) Open(ctx context.Context, paper feed.Paper) (store.PaperState, error) {
	id := paper.Paper.ID
	s.mount(id)
	if _, err := s.ensureContent(ctx, id); err != nil {
		return s.store.Get(id), err
	}
	return s.store.Get(id), nil
}

// mount rebuilds the session-local guards from persisted state, so a
// reloaded session with a stored transcript does not re-summarize.
func (s *Session) mount(paperID string) {
	state := s.store.Get(paperID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.stages[paperID]; seen {
		return
	}
	switch {
	case len(state.Messages) > 0:
		s.stages[paperID] = StageChatReady
		if first := state.Messages[0]; first.Role == store.RoleAssistant {
			s.summaries[paperID] = first.Content
		}
	case state.PDFContent != "":
		s.stages[paperID] = StageContentReady
	default:
		s.stages[paperID] = StageIdle
	}
	if state.Notes != "" {
		s.noteStages[paperID] = NoteReady
	}
}

// ensureContent returns the paper's cached text, fetching it once when
// absent. Concurrent callers for the same id share one outbound call.
// Scrape failures degrade to a stored diagnostic string, never an error.
func (s *Session) ensureContent(ctx context.Context, paperID string) (string, error) {
	if cached := s.store.Get(paperID).PDFContent; cached != "" {
		return cached, nil
	}

	result, err, _ := s.fetches.Do(paperID, func() (any, error) {
		if cached := s.store.Get(paperID).PDFContent; cached != "" {
			return cached, nil
		}
		s.setStage(paperID, StagePreloadingContent)
		s.logger.Info("preloading paper content", zap.String("paper", paperID))

		content, scrapeErr := s.scraper.Scrape(ctx, paperID)
		if scrapeErr != nil {
			s.logger.Warn("scrape failed, storing diagnostic",
				zap.String("paper", paperID), zap.Error(scrapeErr))
			content = ScrapeFailureNotice
		}
		if _, applyErr := s.store.Apply(paperID, store.Patch{PDFContent: store.String(content)}); applyErr != nil {
			s.logger.Warn("persisting content failed", zap.String("paper", paperID), zap.Error(applyErr))
		}
		s.setStage(paperID, StageContentReady)
		return content, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// isDiagnostic reports whether stored content is one of the fallback
// notices rather than real paper text.
func isDiagnostic(content string) bool {
	return content == ScrapeFailureNotice || content == scrape.MissingKeyNotice
}

// ActivateChat runs when the discussion surface is first shown. It
// summarizes at most once per paper per session: a non-empty transcript
// or a held summary skips the call entirely. The summary and suggestion
// messages land as one atomic update.
func (s *Session) ActivateChat(ctx context.Context, paper feed.Paper) (store.PaperState, error) {
	id := paper.Paper.ID
	s.mount(id)

	content, err := s.ensureContent(ctx, id)
	if err != nil {
		return s.store.Get(id), err
	}

	state := s.store.Get(id)
	s.mu.Lock()
	alreadySummarized := len(state.Messages) > 0 || s.summaries[id] != ""
	s.mu.Unlock()
	if alreadySummarized {
		s.setStage(id, StageChatReady)
		return state, nil
	}
	if isDiagnostic(content) {
		// No full text to ground a summary on; leave the transcript
		// empty so the user can still read the diagnostic.
		return state, nil
	}
	if s.assistant == nil {
		return state, ErrAssistantUnavailable
	}

	s.setStage(id, StageSummarizing)
	s.logger.Info("generating summary", zap.String("paper", id))

	summary, err := s.assistant.Summarize(ctx, paper.Title, paper.Paper.Summary, content)
	if err != nil {
		s.logger.Warn("summary failed, storing apology", zap.String("paper", id), zap.Error(err))
		state, _ = s.store.Apply(id, store.Patch{
			Messages: []store.Message{{Role: store.RoleAssistant, Content: summaryApology}},
		})
		s.setSummary(id, summaryApology)
		s.setStage(id, StageChatReady)
		return state, nil
	}

	questions := summary.Questions
	if len(questions) > maxSuggestedQuestions {
		questions = questions[:maxSuggestedQuestions]
	}
	messages := []store.Message{
		{Role: store.RoleAssistant, Content: summary.Text},
	}
	messages = append(messages, store.Message{
		Role:      store.RoleSuggestions,
		Content:   suggestionsHeader,
		Questions: questions,
	})
	state, _ = s.store.Apply(id, store.Patch{Messages: messages})
	s.setSummary(id, summary.Text)
	s.setStage(id, StageChatReady)
	return state, nil
}

func (s *Session) setSummary(paperID, summary string) {
	s.mu.Lock()
	s.summaries[paperID] = summary
	s.mu.Unlock()
}

// Ask appends the user's question immediately, then the assistant's
// answer. A failed turn degrades to a fixed apology in the transcript;
// chat failures are never fatal.
func (s *Session) Ask(ctx context.Context, paper feed.Paper, question string) (store.PaperState, error) {
	if s.assistant == nil {
		return s.store.Get(paper.Paper.ID), ErrAssistantUnavailable
	}
	id := paper.Paper.ID
	s.mount(id)

	state := s.store.Get(id)
	withQuestion := append(state.Messages, store.Message{Role: store.RoleUser, Content: question})
	state, _ = s.store.Apply(id, store.Patch{Messages: withQuestion})

	content := state.PDFContent
	if isDiagnostic(content) {
		content = ""
	}
	answer, err := s.assistant.Chat(ctx, paper.Title, paper.Paper.Summary, content, question)
	if err != nil {
		s.logger.Warn("chat turn failed", zap.String("paper", id), zap.Error(err))
		answer = chatApology
	}
	// Re-read before appending: another turn may have landed meanwhile.
	latest := s.store.Get(id)
	final := append(latest.Messages, store.Message{Role: store.RoleAssistant, Content: answer})
	state, _ = s.store.Apply(id, store.Patch{Messages: final})
	s.setStage(id, StageChatReady)
	return state, nil
}

// GenerateNote builds a structured note, fetching content first when
// none is cached (sharing the deduplicated fetch path), and overwrites
// the stored notes wholesale.
func (s *Session) GenerateNote(ctx context.Context, paper feed.Paper) (store.PaperState, error) {
	if s.assistant == nil {
		return s.store.Get(paper.Paper.ID), ErrAssistantUnavailable
	}
	id := paper.Paper.ID
	s.mount(id)
	s.setNoteStage(id, NoteGenerating)

	content, err := s.ensureContent(ctx, id)
	if err != nil {
		s.setNoteStage(id, NoteIdle)
		return s.store.Get(id), err
	}
	if isDiagnostic(content) {
		content = ""
	}

	meta := assistant.NoteMeta{
		ID:          id,
		Title:       paper.Title,
		Authors:     paper.AuthorNames(),
		PublishedAt: paper.PublishedAt,
		Abstract:    paper.Paper.Summary,
	}
	note, err := s.assistant.GenerateNote(ctx, meta, content)
	if err != nil {
		s.setNoteStage(id, NoteIdle)
		return s.store.Get(id), err
	}
	state, _ := s.store.Apply(id, store.Patch{Notes: store.String(note)})
	s.setNoteStage(id, NoteReady)
	s.logger.Info("note generated", zap.String("paper", id))
	return state, nil
}

// SetNotes records a direct user edit of the note text.
func (s *Session) SetNotes(paperID, text string) (store.PaperState, error) {
	state, err := s.store.Apply(paperID, store.Patch{Notes: store.String(text)})
	if err != nil {
		return state, err
	}
	s.mu.Lock()
	if text != "" {
		s.noteStages[paperID] = NoteReady
	} else {
		s.noteStages[paperID] = NoteIdle
	}
	s.mu.Unlock()
	return state, nil
}
