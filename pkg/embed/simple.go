package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultDim is the vector width of the simple embedder.
const DefaultDim = 256

// Simple is a bag-of-words hashing embedder: each word hashes to a bucket,
// the bucket counts are L2-normalized. Deterministic, offline, and good
// enough for coarse similarity over short action summaries.
type Simple struct {
	dim int
}

// NewSimple creates a simple embedder. dim <= 0 uses DefaultDim.
func NewSimple(dim int) *Simple {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &Simple{dim: dim}
}

// Name returns the backend identifier.
func (s *Simple) Name() string { return "simple" }

// Dim returns the vector width.
func (s *Simple) Dim() int { return s.dim }

// Embed hashes each word of text into a bucket and normalizes the result.
// Never fails; empty text yields the zero vector.
func (s *Simple) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dim)

	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?-=:\"'")
		if w == "" {
			continue
		}

		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32())%s.dim]++
	}

	var sumSq float32
	for _, v := range vec {
		sumSq += v * v
	}
	if sumSq > 0 {
		norm := float32(1.0 / math.Sqrt(float64(sumSq)))
		for i, v := range vec {
			vec[i] = v * norm
		}
	}

	return vec, nil
}
