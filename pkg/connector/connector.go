// Package connector searches external libraries for public-domain works and
// downloads their full text into the content store.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Candidate is a normalized search hit, ready to be cataloged.
type Candidate struct {
	Title           string
	Author          string
	PublicationYear *int
	Library         string
	SourceURL       string
	Summary         string
}

// Connector is one external origin of works.
//
// Search never fails: transport and parse errors are logged and an empty
// result is returned. FetchFullText stores the text under a name derived from
// title (prefixed with the rank when rank > 0) and returns the stored path;
// any error means "no text", callers should not branch on its type.
type Connector interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) []Candidate
	FetchFullText(ctx context.Context, sourceURL, title string, rank int) (string, error)
}

// ContentWriter is the part of the content store connectors write into.
type ContentWriter interface {
	Write(name string, r io.Reader) (string, int64, error)
}

// DefaultMaxResults is used when a search asks for a non-positive result count.
const DefaultMaxResults = 10

const (
	userAgent       = "classics/0.1 (+https://github.com/japaniel/classics)"
	maxPageBodySize = 10 * 1024 * 1024 // 10 MB limit for HTML and JSON pages
)

var (
	// ErrUnknownLibrary is returned by Registry.Get for unregistered names.
	ErrUnknownLibrary = errors.New("unsupported library")
	// ErrNoText is returned when a source exposes no downloadable text.
	ErrNoText = errors.New("no downloadable text found")
)

// Option configures the HTTP and logging plumbing shared by connectors.
type Option func(*base)

// WithHTTPClient overrides the default HTTP client for pages and downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(b *base) {
		if client != nil {
			b.pageClient = client
			b.downloadClient = client
		}
	}
}

// WithLogger sets the logger failures are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// base holds what both connector variants share.
type base struct {
	name           string
	store          ContentWriter
	pageClient     *http.Client
	downloadClient *http.Client
	logger         *zap.Logger
}

func newBase(name string, store ContentWriter, opts []Option) base {
	b := base{
		name:       name,
		store:      store,
		pageClient: &http.Client{Timeout: 30 * time.Second},
		// Full texts can be large; the caller's context bounds the transfer.
		downloadClient: &http.Client{},
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.With(zap.String("library", name))
	return b
}

func (b *base) Name() string { return b.name }

// get issues a GET and returns the response when the status is 200 OK.
func get(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %s", rawURL, resp.Status)
	}
	return resp, nil
}

// download streams rawURL into the content store under name.
func (b *base) download(ctx context.Context, rawURL, name string) (string, error) {
	resp, err := get(ctx, b.downloadClient, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	path, n, err := b.store.Write(name, resp.Body)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	b.logger.Info("full text stored",
		zap.String("url", rawURL),
		zap.String("path", path),
		zap.String("size", humanize.Bytes(uint64(n))),
	)
	return path, nil
}

func limitBody(r io.Reader) io.Reader {
	return io.LimitReader(r, maxPageBodySize)
}

func normalizeMax(maxResults int) int {
	if maxResults <= 0 {
		return DefaultMaxResults
	}
	return maxResults
}

// Registry resolves connectors by library name.
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry registers the given connectors under their names.
func NewRegistry(cs ...Connector) *Registry {
	r := &Registry{connectors: make(map[string]Connector, len(cs))}
	for _, c := range cs {
		r.connectors[c.Name()] = c
	}
	return r
}

// Get returns the connector registered as name.
func (r *Registry) Get(name string) (Connector, error) {
	c, ok := r.connectors[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLibrary, name)
	}
	return c, nil
}

// Names lists registered library names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.connectors))
	for n := range r.connectors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
