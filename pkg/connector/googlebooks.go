package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/japaniel/classics/pkg/content"
	"go.uber.org/zap"
)

// GoogleBooksName is the library name of the Google Books connector.
const GoogleBooksName = "google_books"

// DefaultGoogleBooksURL is the public volumes endpoint.
const DefaultGoogleBooksURL = "https://www.googleapis.com/books/v1/volumes"

// DefaultExtensions are the file types FetchFullText looks for on an info page.
var DefaultExtensions = []string{".txt", ".epub", ".pdf"}

// GoogleBooks searches the Google Books API and downloads texts linked from
// a volume's info page.
type GoogleBooks struct {
	base
	apiKey     string
	endpoint   string
	extensions []string
}

var _ Connector = (*GoogleBooks)(nil)

// GoogleBooksConfig holds the explicit settings of the connector.
type GoogleBooksConfig struct {
	APIKey     string
	Endpoint   string
	Extensions []string
}

// NewGoogleBooks creates the API-backed connector. An empty API key is
// accepted; Search then reports the problem and returns nothing.
func NewGoogleBooks(cfg GoogleBooksConfig, store ContentWriter, opts ...Option) *GoogleBooks {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultGoogleBooksURL
	}
	exts := make([]string, 0, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return &GoogleBooks{
		base:       newBase(GoogleBooksName, store, opts),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		endpoint:   endpoint,
		extensions: exts,
	}
}

type volumesResponse struct {
	Items []struct {
		VolumeInfo struct {
			Title         string   `json:"title"`
			Authors       []string `json:"authors"`
			PublishedDate string   `json:"publishedDate"`
			InfoLink      string   `json:"infoLink"`
			Description   string   `json:"description"`
		} `json:"volumeInfo"`
		AccessInfo struct {
			PublicDomain bool `json:"publicDomain"`
		} `json:"accessInfo"`
	} `json:"items"`
}

// Search queries free e-books and keeps public-domain volumes only.
func (g *GoogleBooks) Search(ctx context.Context, query string, maxResults int) []Candidate {
	if g.apiKey == "" {
		g.logger.Warn("google books api key not configured; skipping search")
		return nil
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", g.apiKey)
	params.Set("maxResults", strconv.Itoa(normalizeMax(maxResults)))
	params.Set("filter", "free-ebooks")

	resp, err := get(ctx, g.pageClient, g.endpoint+"?"+params.Encode())
	if err != nil {
		g.logger.Warn("search request failed", zap.String("query", query), zap.Error(redactKey(err, g.apiKey)))
		return nil
	}
	defer resp.Body.Close()

	var payload volumesResponse
	if err := json.NewDecoder(limitBody(resp.Body)).Decode(&payload); err != nil {
		g.logger.Warn("search response unreadable", zap.String("query", query), zap.Error(err))
		return nil
	}

	var out []Candidate
	for _, item := range payload.Items {
		info := item.VolumeInfo
		if !item.AccessInfo.PublicDomain || strings.TrimSpace(info.InfoLink) == "" {
			continue
		}
		title := strings.TrimSpace(info.Title)
		if title == "" {
			title = "N/A"
		}
		out = append(out, Candidate{
			Title:           title,
			Author:          strings.Join(info.Authors, ", "),
			PublicationYear: parseYear(info.PublishedDate),
			Library:         g.name,
			SourceURL:       info.InfoLink,
			Summary:         info.Description,
		})
	}
	return out
}

// parseYear reads the leading year of a date like "1818", "1818-01" or
// "1818-01-01". Anything unparsable yields nil.
func parseYear(date string) *int {
	token, _, _ := strings.Cut(strings.TrimSpace(date), "-")
	if token == "" {
		return nil
	}
	y, err := strconv.Atoi(token)
	if err != nil {
		return nil
	}
	return &y
}

// FetchFullText follows the volume's info page and downloads the first
// linked file whose extension is configured.
func (g *GoogleBooks) FetchFullText(ctx context.Context, sourceURL, title string, rank int) (string, error) {
	link, ext, err := g.findTextLink(ctx, sourceURL)
	if err != nil {
		g.logger.Warn("no text link", zap.String("source_url", sourceURL), zap.Error(err))
		return "", err
	}
	path, err := g.download(ctx, link, content.FileName(title, rank, ext))
	if err != nil {
		g.logger.Warn("download failed", zap.String("source_url", sourceURL), zap.String("link", link), zap.Error(err))
		return "", err
	}
	return path, nil
}

func (g *GoogleBooks) findTextLink(ctx context.Context, pageURL string) (string, string, error) {
	resp, err := get(ctx, g.pageClient, pageURL)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(limitBody(resp.Body))
	if err != nil {
		return "", "", fmt.Errorf("parse info page: %w", err)
	}
	pageBase := resp.Request.URL

	var link, ext string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		u, err := pageBase.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		e := strings.ToLower(path.Ext(u.Path))
		for _, want := range g.extensions {
			if e == want {
				link, ext = u.String(), e
				return false
			}
		}
		return true
	})
	if link == "" {
		return "", "", fmt.Errorf("%w on %s", ErrNoText, pageURL)
	}
	return link, ext, nil
}

// redactKey keeps the API key out of logged request URLs.
func redactKey(err error, key string) error {
	if err == nil || key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
