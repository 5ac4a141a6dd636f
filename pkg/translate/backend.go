package translate

import (
	"context"
	"fmt"
	"strings"
)

// Backend names accepted by NewBackend.
const (
	BackendGoogle = "google"
	BackendGemini = "gemini"
)

// BackendConfig selects and authenticates a translation backend.
type BackendConfig struct {
	Name           string
	GoogleAPIKey   string
	GoogleEndpoint string
	GeminiAPIKey   string
	GeminiModel    string
}

// NewBackend creates the backend named by cfg.Name, Google when empty.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", BackendGoogle:
		return NewGoogleBackend(ctx, cfg.GoogleAPIKey, cfg.GoogleEndpoint, nil)
	case BackendGemini:
		return NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown translation backend %q", cfg.Name)
	}
}
