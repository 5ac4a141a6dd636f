// Package download fetches the full text of every cataloged work in
// priority order and records each successful download.
package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/japaniel/classics/pkg/connector"
	"github.com/japaniel/classics/pkg/content"
	"github.com/japaniel/classics/pkg/db"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single work's download.
const DefaultTimeout = 5 * time.Minute

// ErrBatchRunning is returned when another batch holds the corpus lock.
var ErrBatchRunning = errors.New("another download batch is running")

// Catalog is the part of the catalog store a batch reads and updates.
type Catalog interface {
	ListByViews(ctx context.Context) ([]db.Work, error)
	RecordDownload(ctx context.Context, id int64, path string) (bool, error)
}

// Connectors resolves a work's source library to its connector.
type Connectors interface {
	Get(name string) (connector.Connector, error)
}

// Locker guards the corpus directory against concurrent batches.
type Locker interface {
	Lock() error
	Unlock() error
}

// Outcome is the result of one work in a batch.
type Outcome struct {
	Rank      int
	WorkID    int64
	Title     string
	Library   string
	SourceURL string
	Path      string
	Err       error
}

// OK reports whether the work was downloaded and recorded.
func (o Outcome) OK() bool { return o.Err == nil && o.Path != "" }

// Report summarizes a batch. Items are ordered by rank.
type Report struct {
	RunID      string
	Items      []Outcome
	Downloaded int
	Failed     int
	Elapsed    time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets how many works download at once. Values below 2 keep the
// batch sequential.
func WithWorkers(n int) Option {
	return func(s *Scheduler) { s.workers = n }
}

// WithTimeout sets the per-work download timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the batch logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler downloads works ranked by views, highest first.
type Scheduler struct {
	catalog    Catalog
	connectors Connectors
	lock       Locker
	workers    int
	timeout    time.Duration
	logger     *zap.Logger
	inFlight   *keyedMutex
}

// New creates a scheduler. lock may be nil when the caller serializes
// batches itself.
func New(catalog Catalog, connectors Connectors, lock Locker, opts ...Option) *Scheduler {
	s := &Scheduler{
		catalog:    catalog,
		connectors: connectors,
		lock:       lock,
		workers:    1,
		timeout:    DefaultTimeout,
		logger:     zap.NewNop(),
		inFlight:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run downloads every cataloged work once. Ranks are the 1-based positions
// of a single ListByViews snapshot taken at the start. A failed work is
// logged and skipped; only a failed snapshot or a cancelled ctx stops the
// batch, in which case the partial report is returned with the error.
func (s *Scheduler) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", report.RunID))

	if s.lock != nil {
		if err := s.lock.Lock(); err != nil {
			if errors.Is(err, content.ErrLocked) {
				return report, ErrBatchRunning
			}
			return report, fmt.Errorf("lock corpus: %w", err)
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				log.Warn("release corpus lock", zap.Error(err))
			}
		}()
	}

	works, err := s.catalog.ListByViews(ctx)
	if err != nil {
		return report, fmt.Errorf("rank works: %w", err)
	}
	log.Info("download batch started", zap.Int("works", len(works)), zap.Int("workers", s.workers))

	items := make([]Outcome, len(works))
	done := make([]bool, len(works))
	if s.workers > 1 {
		s.runParallel(ctx, log, works, items, done)
	} else {
		for i := range works {
			if ctx.Err() != nil {
				break
			}
			items[i] = s.downloadOne(ctx, log, i+1, works[i])
			done[i] = true
		}
	}

	for i := range items {
		if !done[i] {
			continue
		}
		report.Items = append(report.Items, items[i])
		if items[i].OK() {
			report.Downloaded++
		} else {
			report.Failed++
		}
	}
	report.Elapsed = time.Since(start)
	log.Info("download batch finished",
		zap.Int("downloaded", report.Downloaded),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.Elapsed),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("download batch interrupted: %w", err)
	}
	return report, nil
}

func (s *Scheduler) runParallel(ctx context.Context, log *zap.Logger, works []db.Work, items []Outcome, done []bool) {
	pool := newWorkerPool(s.workers, len(works))
	pool.start(ctx)

	var mu sync.Mutex
	for i := range works {
		rank, w := i+1, works[i]
		err := pool.submit(func(ctx context.Context) {
			if ctx.Err() != nil {
				return
			}
			out := s.downloadOne(ctx, log, rank, w)
			mu.Lock()
			items[rank-1] = out
			done[rank-1] = true
			mu.Unlock()
		})
		if err != nil {
			log.Error("submit download", zap.Int("rank", rank), zap.Error(err))
		}
	}
	pool.close()
}

func (s *Scheduler) downloadOne(ctx context.Context, log *zap.Logger, rank int, w db.Work) Outcome {
	out := Outcome{
		Rank:      rank,
		WorkID:    w.ID,
		Title:     w.Title,
		Library:   w.SourceLibrary,
		SourceURL: w.SourceURL,
	}
	log = log.With(zap.Int("rank", rank), zap.Int64("work_id", w.ID), zap.String("title", w.Title))

	conn, err := s.connectors.Get(w.SourceLibrary)
	if err != nil {
		log.Warn("skipping work", zap.Error(err))
		out.Err = err
		return out
	}

	release := s.inFlight.lock(w.SourceURL)
	defer release()

	itemCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	path, err := conn.FetchFullText(itemCtx, w.SourceURL, w.Title, rank)
	if err != nil {
		log.Warn("download failed", zap.Error(err))
		out.Err = err
		return out
	}
	if path == "" {
		out.Err = connector.ErrNoText
		log.Warn("download failed", zap.Error(out.Err))
		return out
	}

	if _, err := s.catalog.RecordDownload(ctx, w.ID, path); err != nil {
		log.Error("record download", zap.String("path", path), zap.Error(err))
		out.Err = fmt.Errorf("record download: %w", err)
		return out
	}
	out.Path = path
	log.Info("downloaded", zap.String("path", path))
	return out
}
