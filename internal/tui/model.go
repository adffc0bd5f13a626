// Package tui renders the daily digest reader: a browsable paper list
// and a per-paper detail view with discussion and notes.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/vualidon/DailyDigestAI/internal/feed"
	"github.com/vualidon/DailyDigestAI/internal/session"
	"github.com/vualidon/DailyDigestAI/internal/store"
)

// Lister fetches the current daily digest.
type Lister interface {
	Fetch(ctx context.Context) ([]feed.Paper, error)
}

// Orchestrator drives the per-paper flow behind the detail view.
type Orchestrator interface {
	Open(ctx context.Context, paper feed.Paper) (store.PaperState, error)
	ActivateChat(ctx context.Context, paper feed.Paper) (store.PaperState, error)
	Ask(ctx context.Context, paper feed.Paper, question string) (store.PaperState, error)
	GenerateNote(ctx context.Context, paper feed.Paper) (store.PaperState, error)
	AssistantAvailable() bool
}

// Config wires runtime options into the TUI program.
type Config struct {
	Lister        Lister
	Orchestrator  Orchestrator
	Prefs         *store.Prefs
	NotesDir      string
	AssistantName string
	Logger        *zap.Logger
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	searchInput := textinput.New()
	searchInput.Placeholder = searchPlaceholder
	searchInput.CharLimit = 120
	searchInput.Width = 50

	questionInput := textinput.New()
	questionInput.Placeholder = questionPlaceholder
	questionInput.CharLimit = 400
	questionInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	theme := store.ThemeLight
	if config.Prefs != nil {
		theme = config.Prefs.Theme()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &model{
		config:        config,
		stage:         stageList,
		sortBy:        feed.SortByUpvotes,
		searchInput:   searchInput,
		questionInput: questionInput,
		spinner:       spin,
		viewport:      vp,
		styles:        newStyles(theme),
		jobs:          newJobBus(config.Logger),
		listLoading:   true,
		infoMessage:   "Fetching today's papers…",
	}
}

type model struct {
	config Config
	stage  stage
	styles styles
	jobs   *jobBus

	searchInput   textinput.Model
	questionInput textinput.Model
	spinner       spinner.Model
	viewport      viewport.Model

	windowWidth  int
	windowHeight int

	papers  []feed.Paper
	visible []feed.Paper
	cursor  int
	sortBy  feed.SortOption

	current      *feed.Paper
	state        store.PaperState
	tab          detailTab
	viewportFor  detailTab
	viewportID   string
	openLoading  bool
	chatLoading  bool
	noteLoading  bool
	listLoading  bool
	runningJobs  map[string]jobSnapshot
	infoMessage  string
	errorMessage string
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.jobs.Start(jobKindListing, fetchListingJob(m.config.Lister)),
	)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.anyLoading() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		width := msg.Width - viewportHorizontalPadding
		if width < minViewportWidth {
			width = minViewportWidth
		}
		m.viewport.Width = width
		height := msg.Height - 10
		if height < 5 {
			height = 5
		}
		m.viewport.Height = height
		m.viewportID = ""
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.stage == stageDetail {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil

	case jobSignalMsg:
		if m.runningJobs == nil {
			m.runningJobs = map[string]jobSnapshot{}
		}
		m.runningJobs[msg.Snapshot.ID] = msg.Snapshot
		return m, nil

	case jobResultEnvelope:
		delete(m.runningJobs, msg.Snapshot.ID)
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)

	case listingResultMsg:
		return m.handleListingResult(msg)
	case openResultMsg:
		return m.handleOpenResult(msg)
	case chatResultMsg:
		return m.handleChatResult(msg)
	case answerResultMsg:
		return m.handleAnswerResult(msg)
	case noteResultMsg:
		return m.handleNoteResult(msg)
	case exportResultMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
		} else {
			m.errorMessage = ""
			m.infoMessage = fmt.Sprintf("Note exported to %s", msg.path)
		}
		return m, nil
	}
	return m, nil
}

func (m *model) anyLoading() bool {
	return m.listLoading || m.openLoading || m.chatLoading || m.noteLoading
}

func (m *model) handleListingResult(msg listingResultMsg) (tea.Model, tea.Cmd) {
	m.listLoading = false
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		m.infoMessage = "Press r to retry."
		return m, nil
	}
	m.papers = msg.papers
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("%d papers today. Enter opens, / filters, s toggles sort.", len(m.papers))
	m.applyListing()
	return m, nil
}

func (m *model) handleOpenResult(msg openResultMsg) (tea.Model, tea.Cmd) {
	if m.current == nil || m.current.Paper.ID != msg.paperID {
		return m, nil
	}
	m.openLoading = false
	m.state = msg.state
	m.viewportID = ""
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		return m, nil
	}
	m.errorMessage = ""
	return m, nil
}

func (m *model) handleChatResult(msg chatResultMsg) (tea.Model, tea.Cmd) {
	if m.current == nil || m.current.Paper.ID != msg.paperID {
		return m, nil
	}
	m.chatLoading = false
	m.state = msg.state
	m.viewportID = ""
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		return m, nil
	}
	m.errorMessage = ""
	m.infoMessage = "Discussion ready. Press a to ask a question."
	return m, nil
}

func (m *model) handleAnswerResult(msg answerResultMsg) (tea.Model, tea.Cmd) {
	if m.current == nil || m.current.Paper.ID != msg.paperID {
		return m, nil
	}
	m.chatLoading = false
	m.state = msg.state
	m.viewportID = ""
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		return m, nil
	}
	m.errorMessage = ""
	m.infoMessage = "Answer stored. Ask another with a."
	return m, nil
}

func (m *model) handleNoteResult(msg noteResultMsg) (tea.Model, tea.Cmd) {
	if m.current == nil || m.current.Paper.ID != msg.paperID {
		return m, nil
	}
	m.noteLoading = false
	m.state = msg.state
	m.viewportID = ""
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		m.infoMessage = "Note generation failed. Press n to retry."
		return m, nil
	}
	m.tab = tabNotes
	m.errorMessage = ""
	m.infoMessage = "Note ready. Press e to export it as markdown."
	return m, nil
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.stage {
	case stageList:
		return m.handleListKey(key)
	case stageDetail:
		return m.handleDetailKey(key)
	}
	return m, nil
}

func (m *model) handleListKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchInput.Focused() {
		switch key.Type {
		case tea.KeyEnter, tea.KeyEsc:
			if key.Type == tea.KeyEsc {
				m.searchInput.SetValue("")
			}
			m.searchInput.Blur()
			m.applyListing()
			return m, nil
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(key)
		m.applyListing()
		return m, cmd
	}

	switch key.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "/":
		m.searchInput.Focus()
		return m, textinput.Blink
	case "s":
		if m.sortBy == feed.SortByUpvotes {
			m.sortBy = feed.SortByDate
		} else {
			m.sortBy = feed.SortByUpvotes
		}
		m.applyListing()
	case "t":
		m.toggleTheme()
	case "r":
		if !m.listLoading {
			m.listLoading = true
			m.infoMessage = "Refreshing today's papers…"
			return m, tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindListing, fetchListingJob(m.config.Lister)))
		}
	case "enter":
		return m.openSelected()
	}
	return m, nil
}

func (m *model) openSelected() (tea.Model, tea.Cmd) {
	paper, ok := m.selectedPaper()
	if !ok {
		return m, nil
	}
	m.current = &paper
	m.stage = stageDetail
	m.tab = tabAbstract
	m.state = store.PaperState{ID: paper.Paper.ID}
	m.viewportID = ""
	m.openLoading = true
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Opening %s…", trimmedTitle(paper.Title))
	return m, tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindOpen, openPaperJob(m.config.Orchestrator, paper)))
}

func (m *model) handleDetailKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.questionInput.Focused() {
		switch key.Type {
		case tea.KeyEsc:
			m.questionInput.SetValue("")
			m.questionInput.Blur()
			return m, nil
		case tea.KeyEnter:
			question := strings.TrimSpace(m.questionInput.Value())
			if question == "" {
				return m, nil
			}
			m.questionInput.SetValue("")
			m.questionInput.Blur()
			return m.askQuestion(question)
		}
		var cmd tea.Cmd
		m.questionInput, cmd = m.questionInput.Update(key)
		return m, cmd
	}

	switch key.String() {
	case "esc":
		m.stage = stageList
		m.current = nil
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("%d papers today. Enter opens, / filters, s toggles sort.", len(m.visible))
		return m, nil
	case "q":
		return m, tea.Quit
	case "tab", "]":
		return m.switchTab(1)
	case "shift+tab", "[":
		return m.switchTab(-1)
	case "up", "k":
		m.viewport.LineUp(1)
	case "down", "j":
		m.viewport.LineDown(1)
	case "g":
		m.viewport.GotoTop()
	case "G":
		m.viewport.GotoBottom()
	case "t":
		m.toggleTheme()
	case "a":
		if m.tab == tabDiscussion {
			return m.focusQuestion()
		}
	case "n":
		return m.generateNote()
	case "e":
		if m.current != nil {
			return m, m.jobs.Start(jobKindExport, exportNoteJob(m.config.NotesDir, *m.current, m.state.Notes))
		}
	}
	return m, nil
}

func (m *model) switchTab(delta int) (tea.Model, tea.Cmd) {
	next := (int(m.tab) + delta + len(tabSequence)) % len(tabSequence)
	m.tab = tabSequence[next]
	m.viewport.GotoTop()
	if m.tab == tabDiscussion {
		return m.activateDiscussion()
	}
	return m, nil
}

// activateDiscussion triggers the one-time summary when the tab first
// opens; repeat visits are a no-op handled downstream.
func (m *model) activateDiscussion() (tea.Model, tea.Cmd) {
	if m.current == nil || m.chatLoading {
		return m, nil
	}
	if !m.config.Orchestrator.AssistantAvailable() {
		m.errorMessage = "No assistant API key configured; discussion is unavailable."
		return m, nil
	}
	m.chatLoading = true
	m.infoMessage = "Preparing the discussion…"
	return m, tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindSummary, activateChatJob(m.config.Orchestrator, *m.current)))
}

func (m *model) focusQuestion() (tea.Model, tea.Cmd) {
	if !m.config.Orchestrator.AssistantAvailable() {
		m.errorMessage = "No assistant API key configured; discussion is unavailable."
		return m, nil
	}
	m.questionInput.Focus()
	return m, textinput.Blink
}

func (m *model) askQuestion(question string) (tea.Model, tea.Cmd) {
	if m.current == nil {
		return m, nil
	}
	// Echo the question locally before the round trip completes.
	m.state.Messages = append(m.state.Messages, store.Message{Role: store.RoleUser, Content: question})
	m.viewportID = ""
	m.chatLoading = true
	m.infoMessage = "Thinking…"
	return m, tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindAnswer, askQuestionJob(m.config.Orchestrator, *m.current, question)))
}

func (m *model) generateNote() (tea.Model, tea.Cmd) {
	if m.current == nil || m.noteLoading {
		return m, nil
	}
	if !m.config.Orchestrator.AssistantAvailable() {
		m.errorMessage = "No assistant API key configured; note generation is unavailable."
		return m, nil
	}
	m.noteLoading = true
	m.infoMessage = "Generating a structured note…"
	return m, tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindNote, generateNoteJob(m.config.Orchestrator, *m.current)))
}

func (m *model) toggleTheme() {
	next := store.ThemeDark
	if m.styles.theme == store.ThemeDark {
		next = store.ThemeLight
	}
	m.styles = newStyles(next)
	m.viewportID = ""
	if m.config.Prefs != nil {
		if err := m.config.Prefs.SetTheme(next); err != nil {
			m.config.Logger.Warn("persisting theme failed", zap.Error(err))
		}
	}
}

// applyListing recomputes the visible slice from the full listing, the
// active sort, and the filter term, clamping the cursor.
func (m *model) applyListing() {
	filtered := feed.Filter(m.papers, m.searchInput.Value())
	m.visible = feed.Sort(filtered, m.sortBy)
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) selectedPaper() (feed.Paper, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return feed.Paper{}, false
	}
	return m.visible[m.cursor], true
}

var _ Orchestrator = (*session.Session)(nil)
