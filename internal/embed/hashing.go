// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/pdiddy/research-assistant/internal/vector"
)

// HashEmbedder embeds text by hashing lowercase word unigrams and bigrams
// into a fixed number of signed buckets and normalising the result. It is
// deterministic and needs no model files.
type HashEmbedder struct {
	dim      int
	maxWords int
}

// NewHashEmbedder returns an embedder of the given dimension. maxWords
// truncates long inputs; 0 means no limit.
func NewHashEmbedder(dim, maxWords int) *HashEmbedder {
	if dim <= 0 {
		dim = 768
	}
	return &HashEmbedder{dim: dim, maxWords: maxWords}
}

func (h *HashEmbedder) Dimension() int { return h.dim }

func (h *HashEmbedder) Name() string { return "hash" }

// Embed never fails; the context is honoured between texts.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, h.dim)
	words := tokenize(text)
	if h.maxWords > 0 && len(words) > h.maxWords {
		words = words[:h.maxWords]
	}
	for i, w := range words {
		h.add(vec, w, 1)
		if i > 0 {
			h.add(vec, words[i-1]+" "+w, 0.5)
		}
	}
	vector.Normalize(vec)
	return vec
}

func (h *HashEmbedder) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	bucket := int(sum % uint64(h.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}

// tokenize lowercases text and splits it into letter/digit runs. Bracketed
// markers like "[TITLE]" become ordinary tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
