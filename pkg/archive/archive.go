// Package archive wires the catalog, the content store, the connectors and
// the translator into the fetch, download and translate workflows.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/japaniel/classics/pkg/connector"
	"github.com/japaniel/classics/pkg/content"
	"github.com/japaniel/classics/pkg/db"
	"github.com/japaniel/classics/pkg/download"
	"github.com/japaniel/classics/pkg/extract"
	"github.com/japaniel/classics/pkg/translate"
	"go.uber.org/zap"
)

var (
	// ErrNothingRanked is returned when the corpus holds no rank-1 download.
	ErrNothingRanked = errors.New("no ranked download to translate")
	// ErrNoTranslator is returned by TranslateTop when no backend is configured.
	ErrNoTranslator = errors.New("translation backend not configured")
)

// Archive runs the catalog workflows.
type Archive struct {
	catalog    *db.Store
	corpus     *content.Store
	connectors *connector.Registry
	translator *translate.Translator
	dlOpts     []download.Option
	logger     *zap.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithTranslator enables TranslateTop.
func WithTranslator(t *translate.Translator) Option {
	return func(a *Archive) { a.translator = t }
}

// WithDownloadOptions passes options to every download batch.
func WithDownloadOptions(opts ...download.Option) Option {
	return func(a *Archive) { a.dlOpts = append(a.dlOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Archive) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Archive.
func New(catalog *db.Store, corpus *content.Store, connectors *connector.Registry, opts ...Option) *Archive {
	a := &Archive{
		catalog:    catalog,
		corpus:     corpus,
		connectors: connectors,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchResult counts the candidates of one search.
type FetchResult struct {
	Library string
	Query   string
	Found   int
	Added   int
}

// Fetch searches library for query and catalogs every new candidate. An
// empty search is not an error.
func (a *Archive) Fetch(ctx context.Context, library, query string, maxResults int) (FetchResult, error) {
	res := FetchResult{Library: library, Query: query}
	if strings.TrimSpace(query) == "" {
		return res, errors.New("search query required")
	}
	conn, err := a.connectors.Get(library)
	if err != nil {
		return res, err
	}

	candidates := conn.Search(ctx, query, maxResults)
	res.Found = len(candidates)
	for _, c := range candidates {
		w := &db.Work{
			Title:           c.Title,
			Author:          c.Author,
			PublicationYear: c.PublicationYear,
			SourceLibrary:   c.Library,
			SourceURL:       c.SourceURL,
			Summary:         c.Summary,
		}
		added, err := a.catalog.InsertIfAbsent(ctx, w)
		if err != nil {
			return res, fmt.Errorf("catalog %q: %w", c.Title, err)
		}
		if added {
			res.Added++
		}
	}
	a.logger.Info("fetch finished",
		zap.String("library", library), zap.String("query", query),
		zap.Int("found", res.Found), zap.Int("added", res.Added))
	return res, nil
}

// Download runs one ranked download batch over the whole catalog.
func (a *Archive) Download(ctx context.Context) (download.Report, error) {
	opts := append([]download.Option{download.WithLogger(a.logger)}, a.dlOpts...)
	return download.New(a.catalog, a.connectors, a.corpus, opts...).Run(ctx)
}

// TranslateResult describes a finished translation.
type TranslateResult struct {
	SourcePath string
	OutputPath string
	WorkID     int64 // 0 when the file is not cataloged
	Chunks     int
	Resumed    int
}

// TranslateTop translates the current rank-1 download into target. Each
// translated chunk of a cataloged work is checkpointed, so a failed run
// resumes at the failing chunk next time.
func (a *Archive) TranslateTop(ctx context.Context, target, source string) (TranslateResult, error) {
	var res TranslateResult
	if a.translator == nil {
		return res, ErrNoTranslator
	}
	path, err := a.corpus.FindRanked(1)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return res, ErrNothingRanked
		}
		return res, err
	}
	res.SourcePath = path
	log := a.logger.With(zap.String("path", path), zap.String("target", target))

	work, err := a.catalog.GetByLocalPath(ctx, path)
	switch {
	case errors.Is(err, db.ErrNotFound):
		log.Warn("ranked file is not cataloged; translation will not be recorded")
		work = nil
	case err != nil:
		return res, err
	}

	text, err := extract.File(path)
	if err != nil {
		return res, fmt.Errorf("extract %s: %w", path, err)
	}
	chunks, err := a.translator.Chunks(text, source)
	if err != nil {
		return res, err
	}
	res.Chunks = len(chunks)
	hash := checkpointHash(chunks)

	req := translate.Request{Text: text, Target: target, Source: source, Chunks: chunks}
	if work != nil {
		res.WorkID = work.ID
		done, err := a.catalog.LoadChunks(ctx, work.ID, target, hash)
		if err != nil {
			return res, err
		}
		req.Completed = done
		res.Resumed = len(done)
		req.OnChunk = func(i int, translated string) error {
			return a.catalog.SaveChunk(ctx, work.ID, target, hash, i, translated)
		}
	}
	log.Info("translating", zap.Int("chunks", res.Chunks), zap.Int("resumed", res.Resumed))

	translated, err := a.translator.Translate(ctx, req)
	if err != nil {
		return res, err
	}

	out, _, err := a.corpus.Write(content.TranslationName(path, target), strings.NewReader(translated))
	if err != nil {
		return res, fmt.Errorf("store translation: %w", err)
	}
	res.OutputPath = out

	if work != nil {
		if _, err := a.catalog.SetTranslatedPath(ctx, work.ID, out); err != nil {
			return res, err
		}
		if err := a.catalog.ClearChunks(ctx, work.ID, target); err != nil {
			return res, err
		}
	}
	log.Info("translation stored", zap.String("output", out))
	return res, nil
}

// checkpointHash identifies the exact chunk sequence a translation is built
// from.
func checkpointHash(chunks []string) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(strconv.Itoa(len(c))))
		h.Write([]byte{0})
		h.Write([]byte(c))
	}
	return hex.EncodeToString(h.Sum(nil))
}
