package db

import (
	"context"
	"fmt"
)

// SaveChunk records the translation of one chunk so an interrupted
// translation can resume from the next chunk.
func SaveChunk(ctx context.Context, db DBExecutor, workID int64, language, sourceHash string, index int, text string) error {
	if index < 0 {
		return fmt.Errorf("chunk index must be non-negative, got %d", index)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO translation_chunks (work_id, language, source_hash, chunk_index, text)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(work_id, language, source_hash, chunk_index) DO UPDATE SET text = excluded.text`,
		workID, language, sourceHash, index, text)
	if err != nil {
		return fmt.Errorf("save chunk %d: %w", index, err)
	}
	return nil
}

// LoadChunks returns the contiguous run of translated chunks starting at
// index 0. A gap ends the run; later chunks are ignored.
func LoadChunks(ctx context.Context, db DBExecutor, workID int64, language, sourceHash string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT chunk_index, text FROM translation_chunks
		 WHERE work_id = ? AND language = ? AND source_hash = ?
		 ORDER BY chunk_index ASC`,
		workID, language, sourceHash)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			idx  int
			text string
		)
		if err := rows.Scan(&idx, &text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if idx != len(out) {
			break
		}
		out = append(out, text)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearChunks removes every checkpoint of a work in a language, whatever its source hash.
func ClearChunks(ctx context.Context, db DBExecutor, workID int64, language string) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM translation_chunks WHERE work_id = ? AND language = ?`, workID, language); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	return nil
}

// SaveChunk checkpoints one translated chunk.
func (s *Store) SaveChunk(ctx context.Context, workID int64, language, sourceHash string, index int, text string) error {
	return SaveChunk(ctx, s.db, workID, language, sourceHash, index, text)
}

// LoadChunks returns previously checkpointed chunks.
func (s *Store) LoadChunks(ctx context.Context, workID int64, language, sourceHash string) ([]string, error) {
	return LoadChunks(ctx, s.db, workID, language, sourceHash)
}

// ClearChunks drops checkpoints once a translation is complete.
func (s *Store) ClearChunks(ctx context.Context, workID int64, language string) error {
	return ClearChunks(ctx, s.db, workID, language)
}
