// Package content stores downloaded and translated texts in a corpus directory.
//
// File names are derived from work titles and, for ranked downloads, carry a
// "rank{N}-" prefix so the current top item can be found by name alone.
package content

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/gofrs/flock"
)

const lockFileName = ".classics.lock"

var (
	// ErrNotFound is returned when no stored file matches a lookup.
	ErrNotFound = errors.New("no matching file in corpus")
	// ErrLocked is returned when another process holds the corpus lock.
	ErrLocked = errors.New("corpus is locked by another process")
)

// Store writes and reads files below a single directory.
type Store struct {
	dir  string
	lock *flock.Flock
}

// New returns a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("corpus directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}
	return &Store{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

// Dir returns the corpus directory.
func (s *Store) Dir() string { return s.dir }

// SafeTitle keeps letters, digits, spaces, periods and underscores of title
// and trims trailing whitespace.
func SafeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '.' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

// RankPrefix returns the file name prefix for rank, or "" when rank <= 0.
func RankPrefix(rank int) string {
	if rank <= 0 {
		return ""
	}
	return "rank" + strconv.Itoa(rank) + "-"
}

// FileName builds the stored file name for a work title. ext includes the dot.
func FileName(title string, rank int, ext string) string {
	safe := SafeTitle(title)
	if safe == "" {
		safe = "untitled"
	}
	return RankPrefix(rank) + safe + ext
}

// Write streams r into the named file and returns its path. The data lands
// in a temporary file first and is renamed into place once complete, so a
// failed transfer never leaves a truncated file under the final name.
func (s *Store) Write(name string, r io.Reader) (string, int64, error) {
	if name == "" || name != filepath.Base(name) {
		return "", 0, fmt.Errorf("invalid file name %q", name)
	}
	tmp, err := os.CreateTemp(s.dir, ".part-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return "", n, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", n, fmt.Errorf("close %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", n, fmt.Errorf("move %s into place: %w", name, err)
	}
	return path, n, nil
}

// Read returns the content of a stored file.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return data, err
}

// FindRanked returns the path of the file carrying the given rank prefix.
// When earlier batches left several such files, the most recently written wins.
func (s *Store) FindRanked(rank int) (string, error) {
	prefix := RankPrefix(rank)
	if prefix == "" {
		return "", fmt.Errorf("rank must be positive, got %d", rank)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("read corpus dir: %w", err)
	}

	type candidate struct {
		path string
		mod  int64
	}
	var matches []candidate
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || isTranslation(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		matches = append(matches, candidate{path: filepath.Join(s.dir, name), mod: info.ModTime().UnixNano()})
	}
	if len(matches) == 0 {
		return "", ErrNotFound
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].mod > matches[j].mod })
	return matches[0].path, nil
}

// TranslationName returns the file name for the translation of a stored file.
func TranslationName(sourcePath, lang string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + translationMarker + lang + ".txt"
}

const translationMarker = ".translated."

func isTranslation(name string) bool {
	return strings.Contains(name, translationMarker)
}

// Lock takes the exclusive corpus lock without blocking. It returns ErrLocked
// when another process holds it.
func (s *Store) Lock() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire corpus lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Unlock releases the corpus lock.
func (s *Store) Unlock() error {
	return s.lock.Unlock()
}
