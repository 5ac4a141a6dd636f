// Package translate translates long texts by splitting them into
// sentence-aligned chunks that fit a backend's request size limit.
package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const (
	// DefaultMaxRetries is how often a failed chunk is retried.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the wait before the first retry. It doubles on
	// every further attempt.
	DefaultRetryDelay = time.Second
)

// ErrStaleProgress is returned when Request.Completed holds more chunks than
// the text splits into, which means it was produced from a different split.
var ErrStaleProgress = errors.New("completed chunks do not match the text")

// Backend translates one chunk. An empty source or "auto" asks the backend
// to detect the source language.
type Backend interface {
	Translate(ctx context.Context, text, target, source string) (string, error)
}

// Request describes one translation.
type Request struct {
	Text   string
	Target string
	Source string

	// Chunks, when set, replaces segmenting Text. It must come from Chunks
	// with the same text and source.
	Chunks []string

	// Completed holds translations of the leading chunks from an earlier,
	// interrupted run. They are reused instead of sent again.
	Completed []string

	// OnChunk is called after each chunk is translated. A returned error
	// stops the translation.
	OnChunk func(index int, translated string) error
}

// ChunkError reports the chunk a translation stopped at.
type ChunkError struct {
	Index     int
	Total     int
	Completed []string
	Err       error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("translate chunk %d of %d: %v", e.Index+1, e.Total, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Option configures a Translator.
type Option func(*Translator)

// WithSegmenter fixes the segmenter instead of choosing one by source
// language.
func WithSegmenter(s Segmenter) Option {
	return func(t *Translator) { t.segmenter = s }
}

// WithChunkBytes sets the chunk budget in UTF-8 bytes.
func WithChunkBytes(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.budget = n
		}
	}
}

// WithRetry sets the retry count and initial delay for failed chunks.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(t *Translator) {
		if maxRetries >= 0 {
			t.maxRetries = maxRetries
		}
		if delay >= 0 {
			t.retryDelay = delay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l
		}
	}
}

// Translator segments, chunks and translates texts one chunk at a time.
type Translator struct {
	backend    Backend
	segmenter  Segmenter
	budget     int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// New creates a Translator over backend.
func New(backend Backend, opts ...Option) *Translator {
	t := &Translator{
		backend:    backend,
		budget:     DefaultChunkBytes,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Close releases the backend when it holds resources, such as the Gemini
// client.
func (t *Translator) Close() error {
	if c, ok := t.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Chunks splits text into the chunks Translate would send.
func (t *Translator) Chunks(text, source string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	seg := t.segmenter
	if seg == nil {
		tag, err := ParseLanguage(source)
		if err != nil {
			return nil, err
		}
		if tag == language.Und {
			tag = GuessLanguage(text)
		}
		if seg, err = SegmenterFor(tag); err != nil {
			return nil, err
		}
	}
	sentences := seg.Split(text)
	for _, s := range sentences {
		if len(s) > t.budget {
			t.logger.Debug("sentence exceeds chunk budget, sending alone",
				zap.Int("bytes", len(s)), zap.Int("budget", t.budget))
		}
	}
	return Chunk(sentences, t.budget), nil
}

// Translate translates req.Text into req.Target. Chunks are sent in order,
// one at a time, and their translations are joined with single spaces.
// Empty input returns "" without calling the backend. When a chunk still
// fails after retries the error is a *ChunkError.
func (t *Translator) Translate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Target) == "" {
		return "", errors.New("target language required")
	}
	chunks := req.Chunks
	if chunks == nil {
		var err error
		if chunks, err = t.Chunks(req.Text, req.Source); err != nil {
			return "", err
		}
	}
	if len(chunks) == 0 {
		return "", nil
	}

	done := len(req.Completed)
	if done > len(chunks) {
		return "", fmt.Errorf("%w: %d completed, %d chunks", ErrStaleProgress, done, len(chunks))
	}
	out := make([]string, 0, len(chunks))
	out = append(out, req.Completed[:done]...)
	if done > 0 {
		t.logger.Info("resuming translation", zap.Int("completed", done), zap.Int("chunks", len(chunks)))
	}

	for i := done; i < len(chunks); i++ {
		translated, err := t.translateChunk(ctx, chunks[i], req.Target, req.Source, i)
		if err == nil && req.OnChunk != nil {
			err = req.OnChunk(i, translated)
		}
		if err != nil {
			return "", &ChunkError{Index: i, Total: len(chunks), Completed: out, Err: err}
		}
		out = append(out, translated)
		t.logger.Debug("chunk translated", zap.Int("index", i), zap.Int("chunks", len(chunks)), zap.Int("bytes", len(chunks[i])))
	}
	return strings.Join(out, " "), nil
}

// translateChunk calls the backend, retrying with exponential backoff.
func (t *Translator) translateChunk(ctx context.Context, text, target, source string, index int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		translated, err := t.backend.Translate(ctx, text, target, source)
		if err == nil {
			return translated, nil
		}
		lastErr = err
		if attempt == t.maxRetries {
			break
		}
		wait := t.retryDelay << attempt
		t.logger.Warn("chunk failed, retrying",
			zap.Int("index", index), zap.Int("attempt", attempt+1), zap.Duration("wait", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}
