// Package config provides configuration loading for the classics CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "classics.yaml"

// Environment variables that override credentials from the file.
const (
	EnvGoogleBooksKey     = "GOOGLE_BOOKS_API_KEY"
	EnvGoogleTranslateKey = "GOOGLE_TRANSLATE_API_KEY"
	EnvGeminiKey          = "GEMINI_API_KEY"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Storage     StorageConfig     `yaml:"storage"`
	Search      SearchConfig      `yaml:"search"`
	Libraries   LibrariesConfig   `yaml:"libraries"`
	Download    DownloadConfig    `yaml:"download"`
	Translation TranslationConfig `yaml:"translation"`
}

// StorageConfig holds the catalog database and corpus directory paths.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	CorpusDir    string `yaml:"corpus_dir"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	MaxResults int `yaml:"max_results"`
}

// LibrariesConfig holds per-connector settings.
type LibrariesConfig struct {
	GoogleBooks GoogleBooksConfig `yaml:"google_books"`
	Gutenberg   GutenbergConfig   `yaml:"gutenberg"`
}

// GoogleBooksConfig configures the Google Books connector.
type GoogleBooksConfig struct {
	APIKey     string   `yaml:"api_key"`
	Endpoint   string   `yaml:"endpoint"`
	Extensions []string `yaml:"extensions"`
}

// GutenbergConfig configures the Project Gutenberg connector.
type GutenbergConfig struct {
	BaseURL string `yaml:"base_url"`
}

// DownloadConfig holds ranked batch settings.
type DownloadConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

// TranslationConfig holds the backend and chunking settings.
type TranslationConfig struct {
	Backend        string        `yaml:"backend"`
	Target         string        `yaml:"target"`
	Source         string        `yaml:"source"`
	ChunkBytes     int           `yaml:"chunk_bytes"`
	MaxRetries     *int          `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	GoogleAPIKey   string        `yaml:"google_api_key"`
	GoogleEndpoint string        `yaml:"google_endpoint"`
	GeminiAPIKey   string        `yaml:"gemini_api_key"`
	GeminiModel    string        `yaml:"gemini_model"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads and parses the config file at path, resolves relative storage
// paths against the file's directory, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.CorpusDir = expandPath(cfg.Storage.CorpusDir, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path when the file exists and falls back to Default
// otherwise. An explicitly named file must exist.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Load(path)
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Download.Workers < 0 {
		return fmt.Errorf("download.workers must not be negative, got %d", c.Download.Workers)
	}
	if c.Translation.ChunkBytes < 0 {
		return fmt.Errorf("translation.chunk_bytes must not be negative, got %d", c.Translation.ChunkBytes)
	}
	if c.Translation.MaxRetries != nil && *c.Translation.MaxRetries < 0 {
		return fmt.Errorf("translation.max_retries must not be negative, got %d", *c.Translation.MaxRetries)
	}
	switch c.Translation.Backend {
	case "google", "gemini":
	default:
		return fmt.Errorf("translation.backend must be google or gemini, got %q", c.Translation.Backend)
	}
	return nil
}

// ApplyEnv overrides credentials with non-empty values from getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvGoogleBooksKey)); v != "" {
		c.Libraries.GoogleBooks.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvGoogleTranslateKey)); v != "" {
		c.Translation.GoogleAPIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvGeminiKey)); v != "" {
		c.Translation.GeminiAPIKey = v
	}
}

// expandPath makes a relative path relative to configDir.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}
