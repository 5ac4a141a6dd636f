package translate

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"golang.org/x/text/language"
)

// Segmenter splits text into sentences. Joining the result with single
// spaces reproduces the text up to whitespace.
type Segmenter interface {
	Split(text string) []string
}

// PunktSegmenter uses a trained punkt model for Latin-script text.
type PunktSegmenter struct {
	t *sentences.DefaultSentenceTokenizer
}

// NewPunktSegmenter loads the bundled English punkt model.
func NewPunktSegmenter() (*PunktSegmenter, error) {
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load punkt model: %w", err)
	}
	return &PunktSegmenter{t: t}, nil
}

func (p *PunktSegmenter) Split(text string) []string {
	var out []string
	for _, s := range p.t.Tokenize(text) {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// KagomeSegmenter splits Japanese text using morphological analysis.
type KagomeSegmenter struct {
	t *tokenizer.Tokenizer
}

// NewKagomeSegmenter creates a segmenter backed by the IPA dictionary.
func NewKagomeSegmenter() (*KagomeSegmenter, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}
	return &KagomeSegmenter{t: t}, nil
}

// Split ends a sentence at 句点 and exclamation or question marks, keeping
// closing brackets such as 」 with the sentence they close. Line breaks
// always end a sentence.
func (k *KagomeSegmenter) Split(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, k.splitLine(line)...)
	}
	return out
}

func (k *KagomeSegmenter) splitLine(line string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}

	tokens := k.t.Tokenize(line)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Class == tokenizer.DUMMY {
			continue
		}
		current.WriteString(tok.Surface)
		if !endsSentence(tok) {
			continue
		}
		for i+1 < len(tokens) && subPOS(tokens[i+1]) == "括弧閉" {
			i++
			current.WriteString(tokens[i].Surface)
		}
		flush()
	}
	flush()
	return out
}

func endsSentence(tok tokenizer.Token) bool {
	if subPOS(tok) == "句点" {
		return true
	}
	switch tok.Surface {
	case "！", "？", "!", "?":
		return true
	}
	return false
}

// subPOS returns the first sub part of speech of an IPA token.
func subPOS(tok tokenizer.Token) string {
	f := tok.Features()
	if len(f) > 1 {
		return f[1]
	}
	return ""
}

var (
	punktOnce sync.Once
	punkt     *PunktSegmenter
	punktErr  error

	kagomeOnce sync.Once
	kagome     *KagomeSegmenter
	kagomeErr  error
)

// SegmenterFor returns the shared segmenter for texts in tag: kagome for
// Japanese, punkt for everything else including undetermined languages.
func SegmenterFor(tag language.Tag) (Segmenter, error) {
	if base, _ := tag.Base(); base.String() == "ja" {
		kagomeOnce.Do(func() { kagome, kagomeErr = NewKagomeSegmenter() })
		if kagomeErr != nil {
			return nil, kagomeErr
		}
		return kagome, nil
	}
	punktOnce.Do(func() { punkt, punktErr = NewPunktSegmenter() })
	if punktErr != nil {
		return nil, punktErr
	}
	return punkt, nil
}

// GuessLanguage returns Japanese when kana make up a noticeable share of
// the letters in text and language.Und otherwise.
func GuessLanguage(text string) language.Tag {
	var letters, kana int
	for _, r := range text {
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			kana++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters > 0 && kana*10 >= letters {
		return language.Japanese
	}
	return language.Und
}

// ParseLanguage parses a BCP 47 code. Empty input and "auto" yield
// language.Und.
func ParseLanguage(code string) (language.Tag, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, "auto") {
		return language.Und, nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, fmt.Errorf("parse language %q: %w", code, err)
	}
	return tag, nil
}
