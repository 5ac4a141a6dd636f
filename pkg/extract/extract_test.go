package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const gutenbergText = "\ufeffThe Project Gutenberg eBook of Emma\r\n" +
	"This eBook is for the use of anyone anywhere.\r\n" +
	"*** START OF THE PROJECT GUTENBERG EBOOK EMMA ***\r\n" +
	"Emma Woodhouse, handsome, clever, and rich.\r\n" +
	"*** END OF THE PROJECT GUTENBERG EBOOK EMMA ***\r\n" +
	"Updated editions will replace the previous one.\r\n"

func TestBytesStripsBOMAndBoilerplate(t *testing.T) {
	got, err := Bytes([]byte(gutenbergText), ".txt")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != "Emma Woodhouse, handsome, clever, and rich." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestStripBoilerplateWithoutMarkers(t *testing.T) {
	in := "A plain text without any markers.\n"
	if got := StripBoilerplate(in); got != in {
		t.Fatalf("expected text unchanged, got %q", got)
	}
}

func TestBytesUnsupported(t *testing.T) {
	for _, ext := range []string{".epub", ".pdf"} {
		if _, err := Bytes([]byte("PK"), ext); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%s: expected ErrUnsupportedFormat, got %v", ext, err)
		}
	}
}

func TestSanitizeRuby(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "<ruby>漢字<rt>かんじ</rt></ruby>", "<ruby>漢字</ruby>"},
		{"with rp", "<ruby>漢<rp>(</rp><rt>かん</rt><rp>)</rp></ruby>", "<ruby>漢</ruby>"},
		{"attributes and case", `<ruby>字<RT class="f">じ</RT></ruby>`, "<ruby>字</ruby>"},
		{"no ruby", "<p>plain</p>", "<p>plain</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(SanitizeRuby([]byte(tt.input))); got != tt.expected {
				t.Fatalf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFileHTMLDropsFurigana(t *testing.T) {
	para := "<p>吾輩は<ruby>猫<rt>ねこ</rt></ruby>である。名前はまだ無い。どこで生れたかとんと見当がつかぬ。" +
		"何でも薄暗いじめじめした所でニャーニャー泣いていた事だけは記憶している。</p>\n"
	page := "<html><head><title>吾輩は猫である</title></head><body><article>" +
		strings.Repeat(para, 6) + "</article></body></html>"

	path := filepath.Join(t.TempDir(), "rank1-neko.html")
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := File(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(got, "吾輩は猫である。") {
		t.Fatalf("expected body text, got %q", got)
	}
	if strings.Contains(got, "猫ねこ") {
		t.Fatalf("furigana leaked into text: %q", got)
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
