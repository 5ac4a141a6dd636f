package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/japaniel/classics/pkg/connector"
	"github.com/japaniel/classics/pkg/content"
	"github.com/japaniel/classics/pkg/db"
	"github.com/japaniel/classics/pkg/translate"
	_ "github.com/mattn/go-sqlite3"
)

const searchPage = `<html><body><ul>
<li class="booklink"><a href="/ebooks/84"><span class="title">Frankenstein</span><span class="subtitle">Mary Shelley</span></a></li>
<li class="booklink"><a href="/ebooks/1342"><span class="title">Pride and Prejudice</span><span class="subtitle">Jane Austen</span></a></li>
</ul></body></html>`

const frankenstein = "Header text.\n*** START OF THE PROJECT GUTENBERG EBOOK 84 ***\n" +
	"You will rejoice to hear that no disaster has accompanied the commencement.\n" +
	"I arrived here yesterday.\n" +
	"My first task is to assure my dear sister of my welfare.\n" +
	"*** END OF THE PROJECT GUTENBERG EBOOK 84 ***\nLicense text.\n"

func newGutenbergServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ebooks/search/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, searchPage)
	})
	mux.HandleFunc("/files/84/84-0.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, frankenstein)
	})
	mux.HandleFunc("/files/1342/1342-0.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "It is a truth universally acknowledged.")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupCatalog(t *testing.T) *db.Store {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if err := db.InitDB(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := db.NewStore(conn)
	t.Cleanup(func() { s.Close() })
	return s
}

// lineSegmenter treats every line as a sentence.
type lineSegmenter struct{}

func (lineSegmenter) Split(text string) []string { return strings.Split(text, "\n") }

type upperBackend struct {
	mu     sync.Mutex
	inputs []string
	failOn string
}

func (b *upperBackend) Translate(ctx context.Context, text, target, source string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs = append(b.inputs, text)
	if b.failOn != "" && strings.Contains(text, b.failOn) {
		return "", errors.New("quota exceeded")
	}
	return strings.ToUpper(text), nil
}

type fixture struct {
	archive *Archive
	catalog *db.Store
	corpus  *content.Store
	backend *upperBackend
}

func newFixture(t *testing.T, srvURL string) *fixture {
	t.Helper()
	catalog := setupCatalog(t)
	corpus, err := content.New(t.TempDir())
	if err != nil {
		t.Fatalf("content store: %v", err)
	}
	gutenberg, err := connector.NewGutenberg(srvURL, corpus)
	if err != nil {
		t.Fatalf("gutenberg: %v", err)
	}
	backend := &upperBackend{}
	tr := translate.New(backend,
		translate.WithSegmenter(lineSegmenter{}),
		translate.WithChunkBytes(80),
		translate.WithRetry(0, time.Millisecond),
	)
	a := New(catalog, corpus, connector.NewRegistry(gutenberg), WithTranslator(tr))
	return &fixture{archive: a, catalog: catalog, corpus: corpus, backend: backend}
}

func TestFetchDownloadTranslate(t *testing.T) {
	srv := newGutenbergServer(t)
	f := newFixture(t, srv.URL)
	ctx := context.Background()

	res, err := f.archive.Fetch(ctx, connector.GutenbergName, "classic", 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Found != 2 || res.Added != 2 {
		t.Fatalf("unexpected fetch result %+v", res)
	}
	again, err := f.archive.Fetch(ctx, connector.GutenbergName, "classic", 10)
	if err != nil {
		t.Fatalf("fetch again: %v", err)
	}
	if again.Found != 2 || again.Added != 0 {
		t.Fatalf("expected repeated fetch to add nothing, got %+v", again)
	}

	report, err := f.archive.Download(ctx)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if report.Downloaded != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if filepath.Base(report.Items[0].Path) != "rank1-Frankenstein.txt" {
		t.Fatalf("expected Frankenstein at rank 1, got %+v", report.Items[0])
	}

	tr, err := f.archive.TranslateTop(ctx, "ko", "en")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if tr.WorkID == 0 || tr.Chunks != 3 || tr.Resumed != 0 {
		t.Fatalf("unexpected translate result %+v", tr)
	}
	if filepath.Base(tr.OutputPath) != "rank1-Frankenstein.translated.ko.txt" {
		t.Fatalf("unexpected output path %s", tr.OutputPath)
	}
	data, err := os.ReadFile(tr.OutputPath)
	if err != nil {
		t.Fatalf("read translation: %v", err)
	}
	if !strings.HasPrefix(string(data), "YOU WILL REJOICE") || strings.Contains(string(data), "LICENSE") {
		t.Fatalf("unexpected translation %q", data)
	}

	work, err := f.catalog.Get(ctx, tr.WorkID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if work.TranslatedPath != tr.OutputPath || work.Views != 1 {
		t.Fatalf("unexpected work after translation %+v", work)
	}
}

func TestTranslateTopResumesAfterFailure(t *testing.T) {
	srv := newGutenbergServer(t)
	f := newFixture(t, srv.URL)
	ctx := context.Background()

	if _, err := f.archive.Fetch(ctx, connector.GutenbergName, "classic", 1); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := f.archive.Download(ctx); err != nil {
		t.Fatalf("download: %v", err)
	}

	f.backend.failOn = "My first task"
	_, err := f.archive.TranslateTop(ctx, "ko", "en")
	var ce *translate.ChunkError
	if !errors.As(err, &ce) || ce.Index != 2 {
		t.Fatalf("expected chunk error at index 2, got %v", err)
	}

	f.backend.failOn = ""
	f.backend.inputs = nil
	res, err := f.archive.TranslateTop(ctx, "ko", "en")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.Resumed != 2 || len(f.backend.inputs) != 1 {
		t.Fatalf("expected resume after 2 chunks with one call, got %+v and %d calls", res, len(f.backend.inputs))
	}
	var rows int
	if err := f.catalog.DB().QueryRow(`SELECT COUNT(*) FROM translation_chunks`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected checkpoints cleared, %d rows left", rows)
	}
}

func TestTranslateTopWithoutRankedFile(t *testing.T) {
	f := newFixture(t, "https://gutenberg.invalid")
	if _, err := f.archive.TranslateTop(context.Background(), "ko", ""); !errors.Is(err, ErrNothingRanked) {
		t.Fatalf("expected ErrNothingRanked, got %v", err)
	}
}

func TestTranslateTopUncatalogedFile(t *testing.T) {
	f := newFixture(t, "https://gutenberg.invalid")
	if _, _, err := f.corpus.Write("rank1-Loose.txt", strings.NewReader("A stray file.")); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := f.archive.TranslateTop(context.Background(), "ko", "")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if res.WorkID != 0 || res.OutputPath == "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTranslateTopWithoutTranslator(t *testing.T) {
	catalog := setupCatalog(t)
	corpus, err := content.New(t.TempDir())
	if err != nil {
		t.Fatalf("content store: %v", err)
	}
	a := New(catalog, corpus, connector.NewRegistry())
	if _, err := a.TranslateTop(context.Background(), "ko", ""); !errors.Is(err, ErrNoTranslator) {
		t.Fatalf("expected ErrNoTranslator, got %v", err)
	}
}

func TestFetchUnknownLibrary(t *testing.T) {
	f := newFixture(t, "https://gutenberg.invalid")
	if _, err := f.archive.Fetch(context.Background(), "hathitrust", "x", 1); !errors.Is(err, connector.ErrUnknownLibrary) {
		t.Fatalf("expected ErrUnknownLibrary, got %v", err)
	}
}

func TestCheckpointHashFollowsChunking(t *testing.T) {
	if checkpointHash([]string{"ab", "c"}) == checkpointHash([]string{"a", "bc"}) {
		t.Fatalf("hash should change with chunk boundaries")
	}
	if checkpointHash([]string{"ab c"}) == checkpointHash([]string{"ab", "c"}) {
		t.Fatalf("hash should change with the number of chunks")
	}
	if checkpointHash([]string{"ab", "c"}) != checkpointHash([]string{"ab", "c"}) {
		t.Fatalf("hash should be stable")
	}
}

func TestTranslateTopRestartsWhenSourceChangesChunking(t *testing.T) {
	ctx := context.Background()
	catalog := setupCatalog(t)
	corpus, err := content.New(t.TempDir())
	if err != nil {
		t.Fatalf("content store: %v", err)
	}
	const neko = "吾輩は猫である\n名前はまだ無い\nどこで生れたかとんと見当がつかぬ"
	path, _, err := corpus.Write("rank1-Neko.txt", strings.NewReader(neko))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	w := &db.Work{Title: "Neko", SourceLibrary: connector.GutenbergName, SourceURL: "https://library.example/ebooks/753"}
	if _, err := catalog.InsertIfAbsent(ctx, w); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := catalog.RecordDownload(ctx, w.ID, path); err != nil {
		t.Fatalf("record download: %v", err)
	}

	backend := &upperBackend{failOn: "どこで"}
	tr := translate.New(backend, translate.WithChunkBytes(30), translate.WithRetry(0, time.Millisecond))
	a := New(catalog, corpus, connector.NewRegistry(), WithTranslator(tr))

	_, err = a.TranslateTop(ctx, "ko", "ja")
	var ce *translate.ChunkError
	if !errors.As(err, &ce) || ce.Index != 2 || ce.Total != 3 {
		t.Fatalf("expected failure at the third of three chunks, got %v", err)
	}

	backend.failOn = ""
	backend.inputs = nil
	res, err := a.TranslateTop(ctx, "ko", "en")
	if err != nil {
		t.Fatalf("translate with another source: %v", err)
	}
	if res.Resumed != 0 || len(backend.inputs) != res.Chunks {
		t.Fatalf("expected a fresh run, got %+v with %d calls", res, len(backend.inputs))
	}
	data, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatalf("read translation: %v", err)
	}
	for _, line := range strings.Split(neko, "\n") {
		if !strings.Contains(string(data), line) {
			t.Fatalf("translation lost %q: %q", line, data)
		}
	}
}
