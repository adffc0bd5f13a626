package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/vualidon/DailyDigestAI/internal/assistant"
	"github.com/vualidon/DailyDigestAI/internal/config"
	"github.com/vualidon/DailyDigestAI/internal/feed"
	"github.com/vualidon/DailyDigestAI/internal/scrape"
	"github.com/vualidon/DailyDigestAI/internal/session"
	"github.com/vualidon/DailyDigestAI/internal/store"
	"github.com/vualidon/DailyDigestAI/internal/tui"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the YAML config file")
	notesDir := flag.String("notes-dir", "notes", "directory for exported markdown notes")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Println("logger error:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	backend, closeBackend, err := openBackend(cfg.Store)
	if err != nil {
		fmt.Println("store error:", err)
		os.Exit(1)
	}
	defer closeBackend()

	st := store.Open(backend)
	prefs := store.NewPrefs(cfg.PrefsPath())

	assistantName, orch := buildOrchestrator(cfg, st, logger)
	tuiCfg := tui.Config{
		Lister:        feed.NewClient(feed.WithURL(cfg.Feed.URL)),
		Orchestrator:  orch,
		Prefs:         prefs,
		NotesDir:      *notesDir,
		AssistantName: assistantName,
		Logger:        logger,
	}

	opts := []tea.ProgramOption{}
	if !*noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(tui.New(tuiCfg), opts...)

	logger.Info("starting dailydigest",
		zap.String("store", cfg.Store.Backend),
		zap.String("assistant", assistantName))
	if _, err := program.Run(); err != nil {
		logger.Error("program error", zap.Error(err))
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	zapCfg := zap.NewProductionConfig()
	// The terminal belongs to the TUI; everything goes to the log file.
	zapCfg.OutputPaths = []string{cfg.Path}
	zapCfg.ErrorOutputPaths = []string{cfg.Path}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zapCfg.Level = level
	}
	return zapCfg.Build()
}

func openBackend(cfg config.StoreConfig) (store.Backend, func(), error) {
	if cfg.Backend == "sqlite" {
		backend, err := store.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { _ = backend.Close() }, nil
	}
	return store.NewFileBackend(cfg.Path), func() {}, nil
}

// buildOrchestrator wires the scraper chain and the assistant into a
// session. A missing assistant key degrades to a disabled assistant.
func buildOrchestrator(cfg config.Config, st *store.Store, logger *zap.Logger) (string, *session.Session) {
	var firecrawlOpts []scrape.FirecrawlOption
	if cfg.Firecrawl.Endpoint != "" {
		firecrawlOpts = append(firecrawlOpts, scrape.WithEndpoint(cfg.Firecrawl.Endpoint))
	}
	scrapers := scrape.Chain{scrape.NewFirecrawl(cfg.Firecrawl.APIKey, firecrawlOpts...)}
	if local, err := scrape.NewPDFText(&http.Client{Timeout: 2 * time.Minute}); err == nil {
		scrapers = append(scrapers, local)
	} else {
		logger.Warn("local pdf fallback unavailable", zap.Error(err))
	}

	name := "disabled"
	var asst session.Assistant
	client, err := assistant.New(assistant.Config{
		Provider: cfg.Assistant.Provider,
		APIKey:   cfg.Assistant.APIKey,
		Model:    cfg.Assistant.Model,
		Endpoint: cfg.Assistant.Endpoint,
	})
	switch {
	case err == nil:
		asst = client
		name = client.Name()
	case errors.Is(err, assistant.ErrMissingAPIKey):
		logger.Warn("assistant disabled: no API key configured")
	default:
		logger.Warn("assistant disabled", zap.Error(err))
	}

	return name, session.New(st, scrapers, asst, logger)
}
