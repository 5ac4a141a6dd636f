// Package extract turns downloaded files into plain text ready for
// segmentation.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnsupportedFormat is returned for files whose text cannot be extracted.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var (
	reStart = regexp.MustCompile(`(?mi)^\*\*\*\s*START OF[^\n]*\n`)
	reEnd   = regexp.MustCompile(`(?mi)^\*\*\*\s*END OF`)

	// (?s) lets dot match newlines, (?i) ignores case
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// File reads path and returns its text. The format is chosen by extension.
func File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return Bytes(data, filepath.Ext(path))
}

// Bytes extracts text from data in the format named by ext (".txt",
// ".html", ...).
func Bytes(data []byte, ext string) (string, error) {
	data, err := stripBOM(data)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(ext) {
	case ".txt", "":
		return normalize(StripBoilerplate(string(data))), nil
	case ".html", ".htm", ".xhtml":
		return html(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// stripBOM drops a leading byte order mark and decodes UTF-16 input
// announced by one. Input without a BOM passes through untouched.
func stripBOM(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}
	return out, nil
}

// StripBoilerplate keeps only the body between Project Gutenberg's
// "*** START OF" and "*** END OF" marker lines. Text without markers is
// returned unchanged.
func StripBoilerplate(text string) string {
	if loc := reStart.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}
	if loc := reEnd.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return text
}

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses
// (<rp>...</rp>) so furigana is not duplicated into the extracted text.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, nil)
	return reRP.ReplaceAll(cleaned, nil)
}

func html(data []byte) (string, error) {
	pageURL, _ := url.Parse("http://localhost/")
	article, err := readability.FromReader(bytes.NewReader(SanitizeRuby(data)), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}
	return normalize(article.TextContent), nil
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}
