package translate

import (
	"strings"
	"testing"

	"golang.org/x/text/language"
)

func TestKagomeSegmenter(t *testing.T) {
	seg, err := NewKagomeSegmenter()
	if err != nil {
		t.Fatalf("new segmenter: %v", err)
	}
	text := "吾輩は猫である。名前はまだ無い。\n「行くぞ。」彼は言った。\n\n本当か？"
	got := seg.Split(text)
	want := []string{"吾輩は猫である。", "名前はまだ無い。", "「行くぞ。」", "彼は言った。", "本当か？"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestKagomeSegmenterKeepsUnterminatedTail(t *testing.T) {
	seg, err := NewKagomeSegmenter()
	if err != nil {
		t.Fatalf("new segmenter: %v", err)
	}
	got := seg.Split("雨が降る。傘がない")
	if len(got) != 2 || got[1] != "傘がない" {
		t.Fatalf("unexpected split %q", got)
	}
}

func TestPunktSegmenter(t *testing.T) {
	seg, err := NewPunktSegmenter()
	if err != nil {
		t.Fatalf("new segmenter: %v", err)
	}
	got := seg.Split("Mr. Smith went to Washington. He arrived on time.")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %q", got)
	}
	if got[0] != "Mr. Smith went to Washington." {
		t.Fatalf("unexpected first sentence %q", got[0])
	}
}

func TestSegmenterFor(t *testing.T) {
	ja, err := SegmenterFor(language.Japanese)
	if err != nil {
		t.Fatalf("japanese: %v", err)
	}
	if _, ok := ja.(*KagomeSegmenter); !ok {
		t.Fatalf("expected kagome segmenter for Japanese, got %T", ja)
	}
	for _, tag := range []language.Tag{language.English, language.French, language.Und} {
		s, err := SegmenterFor(tag)
		if err != nil {
			t.Fatalf("%s: %v", tag, err)
		}
		if _, ok := s.(*PunktSegmenter); !ok {
			t.Fatalf("expected punkt segmenter for %s, got %T", tag, s)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	for _, in := range []string{"", "auto", "AUTO"} {
		tag, err := ParseLanguage(in)
		if err != nil || tag != language.Und {
			t.Fatalf("ParseLanguage(%q) = %v, %v", in, tag, err)
		}
	}
	tag, err := ParseLanguage("ja")
	if err != nil || tag != language.Japanese {
		t.Fatalf("ParseLanguage(ja) = %v, %v", tag, err)
	}
	if _, err := ParseLanguage("not a tag!"); err == nil {
		t.Fatalf("expected error for invalid tag")
	}
}

func TestTranslationPrompt(t *testing.T) {
	p := translationPrompt("Call me Ishmael.", "ko", "en")
	if !strings.Contains(p, "English") || !strings.Contains(p, "Korean") || !strings.HasSuffix(p, "Call me Ishmael.") {
		t.Fatalf("unexpected prompt %q", p)
	}
	if p := translationPrompt("x", "ko", "auto"); !strings.Contains(p, "detect") {
		t.Fatalf("expected auto-detect wording, got %q", p)
	}
}

func TestGuessLanguage(t *testing.T) {
	if got := GuessLanguage("吾輩は猫である。名前はまだ無い。"); got != language.Japanese {
		t.Errorf("expected Japanese, got %v", got)
	}
	for _, in := range []string{"It was a dark and stormy night.", "", "東京 Tokyo"} {
		if got := GuessLanguage(in); got != language.Und {
			t.Errorf("GuessLanguage(%q) = %v, want und", in, got)
		}
	}
}
