package translate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"google.golang.org/api/option"
	gtranslate "google.golang.org/api/translate/v2"
)

// GoogleBackend calls the Google Cloud Translation v2 API.
type GoogleBackend struct {
	svc *gtranslate.Service
}

var _ Backend = (*GoogleBackend)(nil)

// NewGoogleBackend creates a client authenticated with apiKey. endpoint and
// client may be empty to use the public API.
func NewGoogleBackend(ctx context.Context, apiKey, endpoint string, client *http.Client) (*GoogleBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("google translate api key not configured")
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}
	svc, err := gtranslate.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create translate service: %w", err)
	}
	return &GoogleBackend{svc: svc}, nil
}

func (g *GoogleBackend) Translate(ctx context.Context, text, target, source string) (string, error) {
	req := &gtranslate.TranslateTextRequest{
		Q:      []string{text},
		Target: target,
		Format: "text",
	}
	if source != "" && !strings.EqualFold(source, "auto") {
		req.Source = source
	}
	resp, err := g.svc.Translations.Translate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google translate: %w", err)
	}
	if len(resp.Translations) == 0 {
		return "", errors.New("google translate: empty response")
	}
	// Entities can appear even in text format.
	return html.UnescapeString(resp.Translations[0].TranslatedText), nil
}
