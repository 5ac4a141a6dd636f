package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "classics.db"
	}
	if cfg.Storage.CorpusDir == "" {
		cfg.Storage.CorpusDir = "corpus"
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 10
	}
	if cfg.Libraries.GoogleBooks.Extensions == nil {
		cfg.Libraries.GoogleBooks.Extensions = []string{".txt", ".epub", ".pdf"}
	}
	if cfg.Download.Workers == 0 {
		cfg.Download.Workers = 1
	}
	if cfg.Download.Timeout == 0 {
		cfg.Download.Timeout = 5 * time.Minute
	}
	cfg.Translation.Backend = strings.ToLower(strings.TrimSpace(cfg.Translation.Backend))
	if cfg.Translation.Backend == "" {
		cfg.Translation.Backend = "google"
	}
	if cfg.Translation.Target == "" {
		cfg.Translation.Target = "ko"
	}
	if cfg.Translation.Source == "" {
		cfg.Translation.Source = "auto"
	}
	if cfg.Translation.ChunkBytes == 0 {
		cfg.Translation.ChunkBytes = 90 * 1024
	}
	// Zero retries is a valid choice, so only an absent value is defaulted.
	if cfg.Translation.MaxRetries == nil {
		n := 3
		cfg.Translation.MaxRetries = &n
	}
	if cfg.Translation.RetryDelay == 0 {
		cfg.Translation.RetryDelay = time.Second
	}
	if cfg.Translation.GeminiModel == "" {
		cfg.Translation.GeminiModel = "gemini-2.0-flash"
	}
}
