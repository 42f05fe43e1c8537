// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vector

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const vectorsFile = "vectors.db"

// SQLiteIndex keeps every vector in a SQLite table and serves queries from
// an in-memory copy loaded at open time. Writes go to the table first.
type SQLiteIndex struct {
	db  *sql.DB
	mem *MemoryIndex
}

// OpenSQLite opens or creates dir/vectors.db and loads its records.
func OpenSQLite(ctx context.Context, dir string) (*SQLiteIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating vector directory: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, vectorsFile)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening vector database: %w", err)
	}

	idx := &SQLiteIndex{db: db, mem: NewMemoryIndex()}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS vectors (
		id TEXT PRIMARY KEY,
		paper_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		label TEXT,
		dim INTEGER NOT NULL,
		vector BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vectors table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_vectors_paper_id ON vectors(paper_id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vectors index: %w", err)
	}
	if err := idx.load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (s *SQLiteIndex) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, paper_id, kind, COALESCE(label, ''), dim, vector FROM vectors`)
	if err != nil {
		return fmt.Errorf("loading vectors: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var (
			r    Record
			dim  int
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.PaperID, &r.Kind, &r.Label, &dim, &blob); err != nil {
			return fmt.Errorf("scanning vector row: %w", err)
		}
		if r.Vector, err = Decode(blob); err != nil {
			return fmt.Errorf("decoding vector %s: %w", r.ID, err)
		}
		if len(r.Vector) != dim {
			return fmt.Errorf("vector %s: stored dim %d, blob holds %d", r.ID, dim, len(r.Vector))
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return s.mem.Upsert(ctx, recs...)
}

// Upsert writes records in one transaction, then updates the memory copy.
func (s *SQLiteIndex) Upsert(ctx context.Context, recs ...Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors (id, paper_id, kind, label, dim, vector)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			paper_id=excluded.paper_id, kind=excluded.kind, label=excluded.label,
			dim=excluded.dim, vector=excluded.vector`)
	if err != nil {
		return fmt.Errorf("preparing vector upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if len(r.Vector) == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.PaperID, r.Kind, r.Label, len(r.Vector), Encode(r.Vector)); err != nil {
			return fmt.Errorf("upserting vector %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vectors: %w", err)
	}
	return s.mem.Upsert(ctx, recs...)
}

// Delete removes records from the table and the memory copy.
func (s *SQLiteIndex) Delete(ctx context.Context, ids ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting vector %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector delete: %w", err)
	}
	return s.mem.Delete(ctx, ids...)
}

// Query searches the in-memory copy.
func (s *SQLiteIndex) Query(ctx context.Context, vec []float32, k int, kind string) ([]Match, error) {
	return s.mem.Query(ctx, vec, k, kind)
}

// Get returns a loaded record by id.
func (s *SQLiteIndex) Get(id string) (Record, bool) { return s.mem.Get(id) }

// Len returns the number of loaded records.
func (s *SQLiteIndex) Len() int { return s.mem.Len() }

// Close releases the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
