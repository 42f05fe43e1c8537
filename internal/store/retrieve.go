// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const paperColumns = `id, title, authors, abstract, keywords, venue, year, doi, arxiv_id,
	page_count, source_path, full_text, bibliography, processed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*types.ParsedPaper, error) {
	var (
		p                                types.ParsedPaper
		title, abstract, venue, doi, arx sql.NullString
		source, fullText, processedAt    sql.NullString
		authorsJSON, keywordsJSON, bib   sql.NullString
		year, pages                      sql.NullInt64
	)
	if err := row.Scan(&p.ID, &title, &authorsJSON, &abstract, &keywordsJSON, &venue, &year,
		&doi, &arx, &pages, &source, &fullText, &bib, &processedAt); err != nil {
		return nil, err
	}
	p.Metadata = types.PaperMetadata{
		Title:    title.String,
		Abstract: abstract.String,
		Venue:    venue.String,
		Year:     int(year.Int64),
		DOI:      doi.String,
		ArxivID:  arx.String,
	}
	if authorsJSON.Valid {
		json.Unmarshal([]byte(authorsJSON.String), &p.Metadata.Authors)
	}
	if keywordsJSON.Valid {
		json.Unmarshal([]byte(keywordsJSON.String), &p.Metadata.Keywords)
	}
	if bib.Valid {
		json.Unmarshal([]byte(bib.String), &p.Bibliography)
	}
	p.PageCount = int(pages.Int64)
	p.SourcePath = source.String
	p.FullText = fullText.String
	if processedAt.Valid {
		p.ProcessedAt, _ = time.Parse(timeLayout, processedAt.String)
	}
	return &p, nil
}

// GetPaper loads a paper with all its parts.
func (s *Store) GetPaper(ctx context.Context, id string) (*types.ParsedPaper, error) {
	p, err := scanPaper(s.db.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up paper: %w", err)
	}
	if err := s.loadChildren(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AllPapers loads every stored paper, oldest first.
func (s *Store) AllPapers(ctx context.Context) ([]*types.ParsedPaper, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paperColumns+` FROM papers ORDER BY processed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	var papers []*types.ParsedPaper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		papers = append(papers, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range papers {
		if err := s.loadChildren(ctx, p); err != nil {
			return nil, err
		}
	}
	return papers, nil
}

// ListPapers returns listing rows ordered by processing time, then id.
func (s *Store) ListPapers(ctx context.Context) ([]types.PaperListing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, authors, year, page_count FROM papers ORDER BY processed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	var out []types.PaperListing
	for rows.Next() {
		var (
			l           types.PaperListing
			title       sql.NullString
			authorsJSON sql.NullString
			year, pages sql.NullInt64
		)
		if err := rows.Scan(&l.PaperID, &title, &authorsJSON, &year, &pages); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		l.Title = title.String
		l.Year = int(year.Int64)
		l.PageCount = int(pages.Int64)
		if authorsJSON.Valid {
			json.Unmarshal([]byte(authorsJSON.String), &l.Authors)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) loadChildren(ctx context.Context, p *types.ParsedPaper) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, content, level, page_start, page_end FROM sections WHERE paper_id = ? ORDER BY position`, p.ID)
	if err != nil {
		return fmt.Errorf("loading sections: %w", err)
	}
	for rows.Next() {
		var sec types.PaperSection
		if err := rows.Scan(&sec.Title, &sec.Content, &sec.Level, &sec.PageStart, &sec.PageEnd); err != nil {
			rows.Close()
			return fmt.Errorf("scanning section: %w", err)
		}
		p.Sections = append(p.Sections, sec)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT caption, COALESCE(image_path, ''), page_number, COALESCE(figure_number, '') FROM figures WHERE paper_id = ? ORDER BY position`, p.ID)
	if err != nil {
		return fmt.Errorf("loading figures: %w", err)
	}
	for rows.Next() {
		var f types.PaperFigure
		if err := rows.Scan(&f.Caption, &f.ImagePath, &f.PageNumber, &f.FigureNumber); err != nil {
			rows.Close()
			return fmt.Errorf("scanning figure: %w", err)
		}
		p.Figures = append(p.Figures, f)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT caption, content, page_number, COALESCE(table_number, '') FROM paper_tables WHERE paper_id = ? ORDER BY position`, p.ID)
	if err != nil {
		return fmt.Errorf("loading tables: %w", err)
	}
	for rows.Next() {
		var t types.PaperTable
		if err := rows.Scan(&t.Caption, &t.Content, &t.PageNumber, &t.TableNumber); err != nil {
			rows.Close()
			return fmt.Errorf("scanning table: %w", err)
		}
		p.Tables = append(p.Tables, t)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT text FROM refs WHERE paper_id = ? ORDER BY position`, p.ID)
	if err != nil {
		return fmt.Errorf("loading references: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return fmt.Errorf("scanning reference: %w", err)
		}
		p.References = append(p.References, ref)
	}
	return rows.Err()
}

// SearchSections runs a full-text query over section titles and content,
// best matches first. limit <= 0 uses the store default.
func (s *Store) SearchSections(ctx context.Context, query string, limit int) ([]types.SectionHit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.maxResults
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sec.paper_id, sec.title, snippet(sections_fts, 1, '[', ']', '...', 12),
			sec.page_start, sections_fts.rank
		FROM sections_fts
		JOIN sections sec ON sec.rowid = sections_fts.rowid
		WHERE sections_fts MATCH ?
		ORDER BY sections_fts.rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("searching sections: %w", err)
	}
	defer rows.Close()

	var hits []types.SectionHit
	for rows.Next() {
		var h types.SectionHit
		if err := rows.Scan(&h.PaperID, &h.Title, &h.Snippet, &h.PageStart, &h.Rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// RecordAnswer appends an entry to the question history.
func (s *Store) RecordAnswer(ctx context.Context, e types.HistoryEntry) error {
	var paperID any
	if e.PaperID != "" {
		paperID = e.PaperID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO qa_history (id, paper_id, question, section, answer, confidence, answer_type, asked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, paperID, e.Question, e.Section, e.Answer, e.Confidence, string(e.AnswerType),
		e.AskedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("recording answer: %w", err)
	}
	return nil
}

// History returns recorded answers, newest first. An empty paperID returns
// history across all papers. limit <= 0 uses the store default.
func (s *Store) History(ctx context.Context, paperID string, limit int) ([]types.HistoryEntry, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	q := `SELECT id, COALESCE(paper_id, ''), question, COALESCE(section, ''), COALESCE(answer, ''),
			COALESCE(confidence, 0), COALESCE(answer_type, ''), asked_at
		FROM qa_history`
	args := []any{}
	if paperID != "" {
		q += ` WHERE paper_id = ?`
		args = append(args, paperID)
	}
	q += ` ORDER BY asked_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []types.HistoryEntry
	for rows.Next() {
		var (
			e       types.HistoryEntry
			kind    string
			askedAt string
		)
		if err := rows.Scan(&e.ID, &e.PaperID, &e.Question, &e.Section, &e.Answer,
			&e.Confidence, &kind, &askedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		e.AnswerType = types.QuestionType(kind)
		e.AskedAt, _ = time.Parse(timeLayout, askedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
