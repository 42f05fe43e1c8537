// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vector

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestEncodeDecode(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, float32(math.Pi)}
	got, err := Decode(Encode(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	assert.Nil(t, Encode(nil))
	empty, err := Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = Decode([]byte{1, 2, 3})
	assert.ErrorContains(t, err, "not multiple of 4")
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := Cosine([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestL2AndNormalize(t *testing.T) {
	d, err := L2([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5, d, 1e-9)

	_, err = L2([]float32{0}, []float32{3, 4})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func seed(t *testing.T, idx Index) {
	t.Helper()
	require.NoError(t, idx.Upsert(context.Background(),
		Record{ID: RecordID("p1", KindAbstract), PaperID: "p1", Kind: KindAbstract, Vector: []float32{1, 0, 0}},
		Record{ID: RecordID("p2", KindAbstract), PaperID: "p2", Kind: KindAbstract, Vector: []float32{0.8, 0.6, 0}},
		Record{ID: RecordID("p3", KindAbstract), PaperID: "p3", Kind: KindAbstract, Vector: []float32{0, 0, 1}},
		Record{ID: SectionRecordID("p1", 0), PaperID: "p1", Kind: KindSection, Label: "Introduction", Vector: []float32{1, 0, 0}},
		Record{ID: RecordID("p4", KindTitle), PaperID: "p4", Kind: KindTitle},
	))
}

func TestMemoryIndexQuery(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	seed(t, idx)

	assert.Equal(t, 4, idx.Len(), "records without vectors are skipped")

	got, err := idx.Query(ctx, []float32{1, 0, 0}, 2, KindAbstract)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].PaperID)
	assert.InDelta(t, 1, got[0].Score, 1e-9)
	assert.Equal(t, "p2", got[1].PaperID)
	assert.InDelta(t, 0.8, got[1].Score, 1e-6)

	all, err := idx.Query(ctx, []float32{1, 0, 0}, 0, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	// p1/abstract and p1/section/0 tie; ids break the tie.
	assert.Equal(t, "p1/abstract", all[0].ID)
	assert.Equal(t, "p1/section/0", all[1].ID)
	assert.Equal(t, "Introduction", all[1].Label)

	none, err := idx.Query(ctx, []float32{0, 0, 0}, 3, "")
	require.NoError(t, err)
	assert.Empty(t, none)

	wrongDim, err := idx.Query(ctx, []float32{1, 0}, 3, "")
	require.NoError(t, err)
	assert.Empty(t, wrongDim)
}

func TestMemoryIndexUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	seed(t, idx)

	vec := []float32{0, 1, 0}
	require.NoError(t, idx.Upsert(ctx, Record{ID: "p3/abstract", PaperID: "p3", Kind: KindAbstract, Vector: vec}))
	vec[1] = 5 // the index keeps its own copy

	rec, ok := idx.Get("p3/abstract")
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1, 0}, rec.Vector)

	require.NoError(t, idx.Delete(ctx, "p1/abstract", "p1/section/0", "missing"))
	assert.Equal(t, 2, idx.Len())

	assert.Error(t, idx.Upsert(ctx, Record{Vector: []float32{1}}))
}

func TestSQLiteIndexPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := OpenSQLite(ctx, dir)
	require.NoError(t, err)
	seed(t, idx)
	require.NoError(t, idx.Delete(ctx, "p3/abstract"))
	require.NoError(t, idx.Upsert(ctx, Record{ID: "p2/abstract", PaperID: "p2", Kind: KindAbstract, Label: "updated", Vector: []float32{0, 1, 0}}))
	require.NoError(t, idx.Close())

	reopened, err := OpenSQLite(ctx, dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 3, reopened.Len())
	got, err := reopened.Query(ctx, []float32{0, 1, 0}, 1, KindAbstract)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].PaperID)
	assert.Equal(t, "updated", got[0].Label)
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "ResearchPapers", className("research_papers"))
	assert.Equal(t, "Papers", className("papers"))
	assert.Equal(t, "Papers2024", className("2024"))
	assert.Equal(t, "Papers", className(""))
}

func TestObjectIDDeterministic(t *testing.T) {
	assert.Equal(t, objectID("p1/abstract"), objectID("p1/abstract"))
	assert.NotEqual(t, objectID("p1/abstract"), objectID("p1/title"))
	assert.Len(t, objectID("p1/abstract"), 36)
}

func TestParseMatches(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			"ResearchPapers": []interface{}{
				map[string]interface{}{
					"record_id": "p1/abstract", "paper_id": "p1", "kind": "abstract", "label": "",
					"_additional": map[string]interface{}{"certainty": 0.93},
				},
				"garbage",
			},
		},
	}
	got := parseMatches(data, "ResearchPapers")
	require.Len(t, got, 1)
	assert.Equal(t, Match{ID: "p1/abstract", PaperID: "p1", Kind: "abstract", Score: 0.93}, got[0])

	assert.Nil(t, parseMatches(map[string]models.JSONObject{}, "ResearchPapers"))
}
