package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiBackend translates with a Gemini model.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

var _ Backend = (*GeminiBackend)(nil)

// NewGeminiBackend creates a Gemini client authenticated with apiKey.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key not configured")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

// Close releases the underlying client.
func (g *GeminiBackend) Close() error { return g.client.Close() }

func (g *GeminiBackend) Translate(ctx context.Context, text, target, source string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx, genai.Text(translationPrompt(text, target, source)))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("no candidates returned from Gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("empty content returned from Gemini")
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("unexpected response format from Gemini")
	}
	return strings.TrimSpace(b.String()), nil
}

func translationPrompt(text, target, source string) string {
	from := "the source language (detect it)"
	if tag, err := ParseLanguage(source); err == nil && tag != language.Und {
		from = languageName(tag)
	}
	to := target
	if tag, err := ParseLanguage(target); err == nil && tag != language.Und {
		to = languageName(tag)
	}
	return fmt.Sprintf("Translate the following text from %s into %s. "+
		"Preserve paragraph breaks. Reply with the translation only.\n\n%s", from, to, text)
}

func languageName(tag language.Tag) string {
	if name := display.English.Tags().Name(tag); name != "" {
		return fmt.Sprintf("%s (%s)", name, tag)
	}
	return tag.String()
}
