// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists parsed papers and question history in SQLite.
// Section text is indexed with FTS5 for keyword search; vectors live in the
// vector index, not here.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrNotFound is returned for unknown paper ids.
var ErrNotFound = errors.New("paper not found")

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the metadata SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// Open opens or creates the database at path, creating its directory and
// schema as needed.
func Open(path string, maxResults int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if maxResults <= 0 {
		maxResults = 20
	}
	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			keywords TEXT,
			venue TEXT,
			year INTEGER,
			doi TEXT,
			arxiv_id TEXT,
			page_count INTEGER,
			source_path TEXT,
			full_text TEXT,
			bibliography TEXT,
			processed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sections (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			level INTEGER,
			page_start INTEGER,
			page_end INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sections_paper_id ON sections(paper_id)`,
		`CREATE TABLE IF NOT EXISTS figures (
			paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			caption TEXT,
			image_path TEXT,
			page_number INTEGER,
			figure_number TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS paper_tables (
			paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			caption TEXT,
			content TEXT,
			page_number INTEGER,
			table_number TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS refs (
			paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS qa_history (
			id TEXT PRIMARY KEY,
			paper_id TEXT,
			question TEXT NOT NULL,
			section TEXT,
			answer TEXT,
			confidence REAL,
			answer_type TEXT,
			asked_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_qa_history_paper_id ON qa_history(paper_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='sections_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE sections_fts USING fts5(title, content, content=sections, content_rowid=rowid)`,
			`CREATE TRIGGER sections_ai AFTER INSERT ON sections BEGIN
				INSERT INTO sections_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
			END`,
			`CREATE TRIGGER sections_ad AFTER DELETE ON sections BEGIN
				INSERT INTO sections_fts(sections_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
			END`,
			`CREATE TRIGGER sections_au AFTER UPDATE ON sections BEGIN
				INSERT INTO sections_fts(sections_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
				INSERT INTO sections_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// childTables are cleared before a paper is rewritten or deleted. Sections
// are deleted row by row so the FTS triggers fire.
var childTables = []string{"sections", "figures", "paper_tables", "refs"}

// SavePaper writes a paper and its sections, figures, tables and references
// in one transaction. An existing paper with the same id is replaced.
func (s *Store) SavePaper(ctx context.Context, paper *types.ParsedPaper) error {
	if paper.ID == "" {
		return errors.New("saving paper: empty id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	m := paper.Metadata
	authorsJSON, _ := json.Marshal(m.Authors)
	keywordsJSON, _ := json.Marshal(m.Keywords)
	bibJSON, _ := json.Marshal(paper.Bibliography)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO papers (id, title, authors, abstract, keywords, venue, year, doi, arxiv_id,
			page_count, source_path, full_text, bibliography, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, authors=excluded.authors, abstract=excluded.abstract,
			keywords=excluded.keywords, venue=excluded.venue, year=excluded.year,
			doi=excluded.doi, arxiv_id=excluded.arxiv_id, page_count=excluded.page_count,
			source_path=excluded.source_path, full_text=excluded.full_text,
			bibliography=excluded.bibliography, processed_at=excluded.processed_at`,
		paper.ID, m.Title, string(authorsJSON), m.Abstract, string(keywordsJSON), m.Venue, m.Year,
		m.DOI, m.ArxivID, paper.PageCount, paper.SourcePath, paper.FullText, string(bibJSON),
		paper.ProcessedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting paper: %w", err)
	}

	if err := deleteChildren(ctx, tx, paper.ID); err != nil {
		return err
	}

	for i, sec := range paper.Sections {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sections (paper_id, position, title, content, level, page_start, page_end)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			paper.ID, i, sec.Title, sec.Content, sec.Level, sec.PageStart, sec.PageEnd,
		); err != nil {
			return fmt.Errorf("inserting section %d: %w", i, err)
		}
	}
	for i, f := range paper.Figures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO figures (paper_id, position, caption, image_path, page_number, figure_number)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			paper.ID, i, f.Caption, f.ImagePath, f.PageNumber, f.FigureNumber,
		); err != nil {
			return fmt.Errorf("inserting figure %d: %w", i, err)
		}
	}
	for i, t := range paper.Tables {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO paper_tables (paper_id, position, caption, content, page_number, table_number)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			paper.ID, i, t.Caption, t.Content, t.PageNumber, t.TableNumber,
		); err != nil {
			return fmt.Errorf("inserting table %d: %w", i, err)
		}
	}
	for i, ref := range paper.References {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO refs (paper_id, position, text) VALUES (?, ?, ?)`,
			paper.ID, i, ref,
		); err != nil {
			return fmt.Errorf("inserting reference %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func deleteChildren(ctx context.Context, tx *sql.Tx, paperID string) error {
	for _, table := range childTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE paper_id = ?`, paperID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// DeletePaper removes a paper, its children and its question history.
func (s *Store) DeletePaper(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteChildren(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM qa_history WHERE paper_id = ?`, id); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting paper: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

// Count returns the number of stored papers.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting papers: %w", err)
	}
	return n, nil
}

// ftsQuery quotes each word of a free-text query so FTS5 operators and
// punctuation are matched literally. Words are ANDed.
func ftsQuery(q string) string {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '"'
	})
	for i, f := range fields {
		fields[i] = `"` + f + `"`
	}
	return strings.Join(fields, " ")
}
