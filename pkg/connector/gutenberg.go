package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/japaniel/classics/pkg/content"
	"go.uber.org/zap"
)

// GutenbergName is the library name of the Project Gutenberg connector.
const GutenbergName = "gutenberg"

// DefaultGutenbergURL is the Project Gutenberg site root.
const DefaultGutenbergURL = "https://www.gutenberg.org"

// Gutenberg scrapes Project Gutenberg search results and downloads plain
// text by catalog number.
type Gutenberg struct {
	base
	baseURL *url.URL
}

var _ Connector = (*Gutenberg)(nil)

// NewGutenberg creates the scrape-backed connector rooted at baseURL
// (DefaultGutenbergURL when empty).
func NewGutenberg(baseURL string, store ContentWriter, opts ...Option) (*Gutenberg, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultGutenbergURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gutenberg base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gutenberg base url must be absolute, got %q", baseURL)
	}
	return &Gutenberg{
		base:    newBase(GutenbergName, store, opts),
		baseURL: u,
	}, nil
}

// Search parses the "booklink" blocks of the search results page. The site
// does not expose publication years, so PublicationYear is always nil.
func (g *Gutenberg) Search(ctx context.Context, query string, maxResults int) []Candidate {
	maxResults = normalizeMax(maxResults)
	searchURL := g.baseURL.String() + "/ebooks/search/?query=" + url.QueryEscape(query)

	resp, err := get(ctx, g.pageClient, searchURL)
	if err != nil {
		g.logger.Warn("search request failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(limitBody(resp.Body))
	if err != nil {
		g.logger.Warn("search page unreadable", zap.String("query", query), zap.Error(err))
		return nil
	}

	var out []Candidate
	doc.Find("li.booklink").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Find("a[href]").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}
		link, err := g.baseURL.Parse(strings.TrimSpace(href))
		if err != nil {
			g.logger.Debug("skipping result with bad link", zap.String("href", href), zap.Error(err))
			return true
		}
		out = append(out, Candidate{
			Title:     textOr(s.Find("span.title").First(), "N/A"),
			Author:    textOr(s.Find("span.subtitle").First(), "N/A"),
			Library:   g.name,
			SourceURL: link.String(),
		})
		return len(out) < maxResults
	})
	return out
}

func textOr(s *goquery.Selection, fallback string) string {
	if s.Length() == 0 {
		return fallback
	}
	if t := strings.TrimSpace(s.Text()); t != "" {
		return t
	}
	return fallback
}

// FetchFullText downloads the UTF-8 plain text of the book whose catalog
// number is the last path segment of sourceURL.
func (g *Gutenberg) FetchFullText(ctx context.Context, sourceURL, title string, rank int) (string, error) {
	id, err := catalogID(sourceURL)
	if err != nil {
		g.logger.Warn("no catalog number", zap.String("source_url", sourceURL), zap.Error(err))
		return "", err
	}
	link := fmt.Sprintf("%s/files/%s/%s-0.txt", g.baseURL.String(), id, id)
	stored, err := g.download(ctx, link, content.FileName(title, rank, ".txt"))
	if err != nil {
		g.logger.Warn("download failed", zap.String("source_url", sourceURL), zap.String("link", link), zap.Error(err))
		return "", err
	}
	return stored, nil
}

// catalogID returns the trailing "/" segment of ref when it is all digits.
func catalogID(ref string) (string, error) {
	id := ref[strings.LastIndex(ref, "/")+1:]
	if !isDigits(id) {
		return "", fmt.Errorf("%w: no catalog number in %q", ErrNoText, ref)
	}
	return id, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
