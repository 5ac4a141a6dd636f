package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/japaniel/classics/pkg/archive"
	"github.com/japaniel/classics/pkg/config"
	"github.com/japaniel/classics/pkg/connector"
	"github.com/japaniel/classics/pkg/content"
	"github.com/japaniel/classics/pkg/db"
	"github.com/japaniel/classics/pkg/download"
	"github.com/japaniel/classics/pkg/logging"
	"github.com/japaniel/classics/pkg/translate"
	"go.uber.org/zap"
)

// commandContext carries flag values and the lazily opened stores shared by
// all subcommands of one invocation.
type commandContext struct {
	configPath string
	dbPath     string
	corpusDir  string
	debug      bool

	cfg     *config.Config
	logger  *zap.Logger
	catalog *db.Store
	corpus  *content.Store
	tr      *translate.Translator
}

func (c *commandContext) load() error {
	path := strings.TrimSpace(c.configPath)
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath
	}
	cfg, err := config.LoadOrDefault(path, explicit)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv)
	if c.dbPath != "" {
		cfg.Storage.DatabasePath = c.dbPath
	}
	if c.corpusDir != "" {
		cfg.Storage.CorpusDir = c.corpusDir
	}
	if c.debug {
		cfg.Debug = true
	}
	c.cfg = cfg

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	c.logger = logger
	return nil
}

func (c *commandContext) close() {
	if c.tr != nil {
		if err := c.tr.Close(); err != nil && c.logger != nil {
			c.logger.Warn("close translation backend", zap.Error(err))
		}
		c.tr = nil
	}
	if c.catalog != nil {
		_ = c.catalog.Close()
		c.catalog = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func (c *commandContext) openCatalog() (*db.Store, error) {
	if c.catalog != nil {
		return c.catalog, nil
	}
	s, err := db.Open(c.cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	c.catalog = s
	return s, nil
}

func (c *commandContext) openCorpus() (*content.Store, error) {
	if c.corpus != nil {
		return c.corpus, nil
	}
	s, err := content.New(c.cfg.Storage.CorpusDir)
	if err != nil {
		return nil, err
	}
	c.corpus = s
	return s, nil
}

func (c *commandContext) connectors(corpus *content.Store) (*connector.Registry, error) {
	libs := c.cfg.Libraries
	books := connector.NewGoogleBooks(connector.GoogleBooksConfig{
		APIKey:     libs.GoogleBooks.APIKey,
		Endpoint:   libs.GoogleBooks.Endpoint,
		Extensions: libs.GoogleBooks.Extensions,
	}, corpus, connector.WithLogger(c.logger))
	gutenberg, err := connector.NewGutenberg(libs.Gutenberg.BaseURL, corpus, connector.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	return connector.NewRegistry(books, gutenberg), nil
}

func (c *commandContext) translator(ctx context.Context) (*translate.Translator, error) {
	if c.tr != nil {
		return c.tr, nil
	}
	tc := c.cfg.Translation
	backend, err := translate.NewBackend(ctx, translate.BackendConfig{
		Name:           tc.Backend,
		GoogleAPIKey:   tc.GoogleAPIKey,
		GoogleEndpoint: tc.GoogleEndpoint,
		GeminiAPIKey:   tc.GeminiAPIKey,
		GeminiModel:    tc.GeminiModel,
	})
	if err != nil {
		return nil, err
	}
	c.tr = translate.New(backend,
		translate.WithChunkBytes(tc.ChunkBytes),
		translate.WithRetry(*tc.MaxRetries, tc.RetryDelay),
		translate.WithLogger(c.logger),
	)
	return c.tr, nil
}

// archive opens both stores and builds the workflow runner. The translator
// is only created when withTranslator is set, so commands that never
// translate do not need translation credentials.
func (c *commandContext) archive(ctx context.Context, withTranslator bool, workers int) (*archive.Archive, error) {
	catalog, err := c.openCatalog()
	if err != nil {
		return nil, err
	}
	corpus, err := c.openCorpus()
	if err != nil {
		return nil, err
	}
	reg, err := c.connectors(corpus)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = c.cfg.Download.Workers
	}
	opts := []archive.Option{
		archive.WithLogger(c.logger),
		archive.WithDownloadOptions(
			download.WithWorkers(workers),
			download.WithTimeout(c.cfg.Download.Timeout),
		),
	}
	if withTranslator {
		tr, err := c.translator(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, archive.WithTranslator(tr))
	}
	return archive.New(catalog, corpus, reg, opts...), nil
}
