package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vualidon/DailyDigestAI/internal/feed"
	"github.com/vualidon/DailyDigestAI/internal/store"
)

type listingResultMsg struct {
	papers []feed.Paper
	err    error
}

type openResultMsg struct {
	paperID string
	state   store.PaperState
	err     error
}

type chatResultMsg struct {
	paperID string
	state   store.PaperState
	err     error
}

type answerResultMsg struct {
	paperID string
	state   store.PaperState
	err     error
}

type noteResultMsg struct {
	paperID string
	state   store.PaperState
	err     error
}

type exportResultMsg struct {
	path string
	err  error
}

func fetchListingJob(lister Lister) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 35*time.Second)
		defer cancel()
		papers, err := lister.Fetch(ctx)
		return listingResultMsg{papers: papers, err: err}, err
	}
}

func openPaperJob(orch Orchestrator, paper feed.Paper) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		state, err := orch.Open(ctx, paper)
		return openResultMsg{paperID: paper.Paper.ID, state: state, err: err}, err
	}
}

func activateChatJob(orch Orchestrator, paper feed.Paper) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 3*time.Minute)
		defer cancel()
		state, err := orch.ActivateChat(ctx, paper)
		return chatResultMsg{paperID: paper.Paper.ID, state: state, err: err}, err
	}
}

func askQuestionJob(orch Orchestrator, paper feed.Paper, question string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 3*time.Minute)
		defer cancel()
		state, err := orch.Ask(ctx, paper, question)
		return answerResultMsg{paperID: paper.Paper.ID, state: state, err: err}, err
	}
}

func generateNoteJob(orch Orchestrator, paper feed.Paper) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 3*time.Minute)
		defer cancel()
		state, err := orch.GenerateNote(ctx, paper)
		return noteResultMsg{paperID: paper.Paper.ID, state: state, err: err}, err
	}
}

func exportNoteJob(dir string, paper feed.Paper, note string) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		if strings.TrimSpace(note) == "" {
			err := fmt.Errorf("no note to export for %s", paper.Paper.ID)
			return exportResultMsg{err: err}, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportResultMsg{err: err}, err
		}
		path := filepath.Join(dir, noteFileName(paper))
		if err := os.WriteFile(path, []byte(note), 0o644); err != nil {
			return exportResultMsg{err: err}, err
		}
		return exportResultMsg{path: path}, nil
	}
}

func noteFileName(paper feed.Paper) string {
	title := strings.TrimSpace(paper.Title)
	if title == "" {
		title = paper.Paper.ID
	}
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = strings.ReplaceAll(paper.Paper.ID, "/", "-")
	}
	if len(name) > 80 {
		name = name[:80]
	}
	return name + ".md"
}

func trimmedTitle(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 60 {
		return value
	}
	return fmt.Sprintf("%s…", strings.TrimSpace(value[:57]))
}
