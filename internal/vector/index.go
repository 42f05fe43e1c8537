// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vector provides embedding encoding, similarity math and the
// vector indexes papers are searched through: an in-memory brute-force
// index, a SQLite-backed index and a Weaviate sidecar client.
package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Record kinds.
const (
	KindTitle    = "title"
	KindAbstract = "abstract"
	KindSection  = "section"
)

// Record is one stored vector and the paper it belongs to.
type Record struct {
	ID      string
	PaperID string
	Kind    string
	Label   string
	Vector  []float32
}

// Match is a query result. Higher Score is more similar.
type Match struct {
	ID      string
	PaperID string
	Kind    string
	Label   string
	Score   float64
}

// Index stores vectors and answers nearest-neighbour queries.
type Index interface {
	Upsert(ctx context.Context, recs ...Record) error
	Delete(ctx context.Context, ids ...string) error
	// Query returns at most k matches of the given kind ("" for any),
	// best first. k <= 0 returns every match.
	Query(ctx context.Context, vec []float32, k int, kind string) ([]Match, error)
	Close() error
}

// RecordID builds the id of a paper's title or abstract vector.
func RecordID(paperID, kind string) string {
	return paperID + "/" + kind
}

// SectionRecordID builds the id of a paper's n-th section vector.
func SectionRecordID(paperID string, n int) string {
	return fmt.Sprintf("%s/%s/%d", paperID, KindSection, n)
}

type memEntry struct {
	rec Record
	mag float64
}

// MemoryIndex is a brute-force cosine index. It is safe for concurrent use.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]memEntry)}
}

// Upsert adds or replaces records. Records without a vector are ignored.
func (m *MemoryIndex) Upsert(_ context.Context, recs ...Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		if r.ID == "" {
			return fmt.Errorf("vector: record without id")
		}
		if len(r.Vector) == 0 {
			continue
		}
		r.Vector = append([]float32(nil), r.Vector...)
		m.entries[r.ID] = memEntry{rec: r, mag: magnitude(r.Vector)}
	}
	return nil
}

// Delete removes records. Unknown ids are ignored.
func (m *MemoryIndex) Delete(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

// Query scores every record of the requested kind against vec. Records of
// another dimension and zero vectors are skipped. Ties are broken by id.
func (m *MemoryIndex) Query(_ context.Context, vec []float32, k int, kind string) ([]Match, error) {
	qm := magnitude(vec)
	if qm == 0 {
		return nil, nil
	}

	m.mu.RLock()
	matches := make([]Match, 0, len(m.entries))
	for _, e := range m.entries {
		if kind != "" && e.rec.Kind != kind {
			continue
		}
		if len(e.rec.Vector) != len(vec) || e.mag == 0 {
			continue
		}
		matches = append(matches, Match{
			ID:      e.rec.ID,
			PaperID: e.rec.PaperID,
			Kind:    e.rec.Kind,
			Label:   e.rec.Label,
			Score:   dot(vec, e.rec.Vector) / (qm * e.mag),
		})
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].ID < matches[b].ID
	})
	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Get returns a stored record.
func (m *MemoryIndex) Get(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e.rec, ok
}

// Len returns the number of stored records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op.
func (m *MemoryIndex) Close() error { return nil }
