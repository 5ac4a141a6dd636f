package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested work does not exist.
var ErrNotFound = errors.New("work not found")

// ErrEmptyUpdate is returned when Update is called without any field to change.
var ErrEmptyUpdate = errors.New("no fields to update")

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const workColumns = `id, title, author, publication_year, source_library, source_url, status,
	summary, notes, local_path, views, translated_path, added_at, updated_at`

// Store is the catalog of works backed by SQLite.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already migrated connection.
func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// DB exposes the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertIfAbsent stores w unless a work with the same source URL already exists.
// It reports whether a row was inserted; on insert w.ID is set.
func InsertIfAbsent(ctx context.Context, db DBExecutor, w *Work) (bool, error) {
	title := strings.TrimSpace(w.Title)
	if title == "" {
		return false, fmt.Errorf("title must be non-empty")
	}
	sourceURL := strings.TrimSpace(w.SourceURL)
	if sourceURL == "" {
		return false, fmt.Errorf("source url must be non-empty")
	}
	status := w.Status
	if status == "" {
		status = StatusCandidate
	}
	if !status.Valid() {
		return false, fmt.Errorf("invalid status %q", status)
	}

	var year interface{}
	if w.PublicationYear != nil {
		year = *w.PublicationYear
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO works (title, author, publication_year, source_library, source_url, status, summary, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_url) DO NOTHING`,
		title, nullableString(w.Author), year, w.SourceLibrary, sourceURL, string(status),
		nullableString(w.Summary), nullableString(w.Notes),
	)
	if err != nil {
		return false, fmt.Errorf("insert work: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return true, fmt.Errorf("last insert id: %w", err)
	}
	w.ID = id
	w.Status = status
	return true, nil
}

// ListByViews returns every work ordered by views descending. Ties keep
// insertion order.
func ListByViews(ctx context.Context, db DBExecutor) ([]Work, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+workColumns+` FROM works ORDER BY views DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	return scanWorks(rows)
}

// Find returns works matching every non-zero field of f, oldest first.
func Find(ctx context.Context, db DBExecutor, f Filter) ([]Work, error) {
	var (
		where []string
		args  []interface{}
	)
	if t := strings.TrimSpace(f.Title); t != "" {
		where = append(where, `title LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(t))
	}
	if a := strings.TrimSpace(f.Author); a != "" {
		where = append(where, `author LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(a))
	}
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + workColumns + ` FROM works`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find works: %w", err)
	}
	return scanWorks(rows)
}

// Get returns the work with the given id or ErrNotFound.
func Get(ctx context.Context, db DBExecutor, id int64) (*Work, error) {
	row := db.QueryRowContext(ctx, `SELECT `+workColumns+` FROM works WHERE id = ?`, id)
	w, err := scanWork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get work: %w", err)
	}
	return w, nil
}

// GetByLocalPath returns the most recently inserted work stored at path or ErrNotFound.
func GetByLocalPath(ctx context.Context, db DBExecutor, path string) (*Work, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+workColumns+` FROM works WHERE local_path = ? ORDER BY id DESC LIMIT 1`, path)
	w, err := scanWork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get work by path: %w", err)
	}
	return w, nil
}

// Update applies the non-nil fields of u to the work with id and reports
// whether a row was affected.
func Update(ctx context.Context, db DBExecutor, id int64, u WorkUpdate) (bool, error) {
	if u.empty() {
		return false, ErrEmptyUpdate
	}
	var (
		sets []string
		args []interface{}
	)
	if u.LocalPath != nil {
		sets = append(sets, `local_path = ?`)
		args = append(args, nullableString(*u.LocalPath))
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return false, fmt.Errorf("invalid status %q", *u.Status)
		}
		sets = append(sets, `status = ?`)
		args = append(args, string(*u.Status))
	}
	if u.Notes != nil {
		sets = append(sets, `notes = ?`)
		args = append(args, nullableString(*u.Notes))
	}
	sets = append(sets, `updated_at = CURRENT_TIMESTAMP`)
	args = append(args, id)

	res, err := db.ExecContext(ctx, `UPDATE works SET `+strings.Join(sets, `, `)+` WHERE id = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("update work: %w", err)
	}
	return affected(res)
}

// RecordDownload stores the local path of a successful download and bumps
// the view counter by exactly one in the same statement.
func RecordDownload(ctx context.Context, db DBExecutor, id int64, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, fmt.Errorf("path must be non-empty")
	}
	res, err := db.ExecContext(ctx,
		`UPDATE works SET local_path = ?, views = views + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		path, id)
	if err != nil {
		return false, fmt.Errorf("record download: %w", err)
	}
	return affected(res)
}

// SetTranslatedPath records where the translated text of a work was written.
func SetTranslatedPath(ctx context.Context, db DBExecutor, id int64, path string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE works SET translated_path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullableString(path), id)
	if err != nil {
		return false, fmt.Errorf("set translated path: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWork(row rowScanner) (*Work, error) {
	var (
		w                                               Work
		author, summary, notes, localPath, translatedTo sql.NullString
		year                                            sql.NullInt64
		status                                          string
	)
	if err := row.Scan(&w.ID, &w.Title, &author, &year, &w.SourceLibrary, &w.SourceURL, &status,
		&summary, &notes, &localPath, &w.Views, &translatedTo, &w.AddedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Status = Status(status)
	w.Author = author.String
	w.Summary = summary.String
	w.Notes = notes.String
	w.LocalPath = localPath.String
	w.TranslatedPath = translatedTo.String
	if year.Valid {
		y := int(year.Int64)
		w.PublicationYear = &y
	}
	return &w, nil
}

func scanWorks(rows *sql.Rows) ([]Work, error) {
	defer rows.Close()
	var out []Work
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work: %w", err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// likePattern wraps s for a substring LIKE match, escaping LIKE wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// nullableString returns nil for "" so optional columns stay NULL.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// InsertIfAbsent stores w unless its source URL is already cataloged.
func (s *Store) InsertIfAbsent(ctx context.Context, w *Work) (bool, error) {
	return InsertIfAbsent(ctx, s.db, w)
}

// ListByViews returns every work, highest view count first.
func (s *Store) ListByViews(ctx context.Context) ([]Work, error) {
	return ListByViews(ctx, s.db)
}

// Find returns works matching f.
func (s *Store) Find(ctx context.Context, f Filter) ([]Work, error) {
	return Find(ctx, s.db, f)
}

// Get returns a single work by id.
func (s *Store) Get(ctx context.Context, id int64) (*Work, error) {
	return Get(ctx, s.db, id)
}

// GetByLocalPath returns the work downloaded to path.
func (s *Store) GetByLocalPath(ctx context.Context, path string) (*Work, error) {
	return GetByLocalPath(ctx, s.db, path)
}

// Update changes curation fields of a work.
func (s *Store) Update(ctx context.Context, id int64, u WorkUpdate) (bool, error) {
	return Update(ctx, s.db, id, u)
}

// RecordDownload persists a successful download.
func (s *Store) RecordDownload(ctx context.Context, id int64, path string) (bool, error) {
	return RecordDownload(ctx, s.db, id, path)
}

// SetTranslatedPath persists the translated output location.
func (s *Store) SetTranslatedPath(ctx context.Context, id int64, path string) (bool, error) {
	return SetTranslatedPath(ctx, s.db, id, path)
}
