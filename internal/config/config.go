// Package config loads runtime configuration from YAML with
// environment-variable overrides for credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when --config is not provided.
const DefaultConfigPath = "config.yml"

const (
	defaultProvider     = "gemini"
	defaultStoreBackend = "file"
)

// Config holds everything the application needs at startup. Every field
// has a working default; a missing config file is not an error.
type Config struct {
	Feed      FeedConfig      `yaml:"feed"`
	Assistant AssistantConfig `yaml:"assistant"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
}

// FeedConfig points at the daily-papers listing.
type FeedConfig struct {
	URL string `yaml:"url"`
}

// AssistantConfig selects and credentials the text-generation provider.
type AssistantConfig struct {
	Provider string `yaml:"provider"` // "gemini" | "openai"
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

// FirecrawlConfig credentials the scraping service. An empty key is
// valid; scraping then degrades to its diagnostic path.
type FirecrawlConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// StoreConfig selects where paper state persists.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "file" | "sqlite"
	Path    string `yaml:"path"`
}

// LogConfig controls the log file location and verbosity.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"` // zap level names; empty means info
}

// Load reads the file at path, fills defaults, then applies environment
// overrides. A missing file at the default path yields a pure-default
// config; an explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Config{}

	explicit := path != "" && path != DefaultConfigPath
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Defaults only.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && strings.ToLower(c.Assistant.Provider) != "openai" {
		c.Assistant.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && strings.ToLower(c.Assistant.Provider) == "openai" {
		c.Assistant.APIKey = v
	}
	if v := os.Getenv("FIRECRAWL_API_KEY"); v != "" {
		c.Firecrawl.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Assistant.Provider == "" {
		c.Assistant.Provider = defaultProvider
	}
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath(c.Store.Backend)
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(dataDir(), "dailydigest.log")
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q (want file or sqlite)", c.Store.Backend)
	}
	return nil
}

// PrefsPath is where the theme preference lives, next to the state store.
func (c Config) PrefsPath() string {
	return filepath.Join(filepath.Dir(c.Store.Path), "prefs.json")
}

func defaultStorePath(backend string) string {
	name := "paper_states.json"
	if strings.ToLower(backend) == "sqlite" {
		name = "paper_states.db"
	}
	return filepath.Join(dataDir(), name)
}

func dataDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "dailydigest")
	}
	return "."
}
