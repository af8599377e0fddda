package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleIsDeterministic(t *testing.T) {
	e := NewSimple(64)

	a, err := e.Embed(context.Background(), "trust check in morning ritual")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "trust check in morning ritual")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestSimpleIsNormalized(t *testing.T) {
	e := NewSimple(0)
	assert.Equal(t, DefaultDim, e.Dim())

	vec, err := e.Embed(context.Background(), "somatic healing session body scan")
	require.NoError(t, err)

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sumSq, 1e-5)
}

func TestSimpleEmptyTextIsZeroVector(t *testing.T) {
	e := NewSimple(16)

	vec, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestSimpleSimilarTextsScoreHigher(t *testing.T) {
	e := NewSimple(256)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "trust check in evening")
	b, _ := e.Embed(ctx, "trust check in morning")
	c, _ := e.Embed(ctx, "dream interpretation symbols water")

	assert.Greater(t, dot(a, b), dot(a, c))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestHTTPEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])
		assert.Equal(t, "hello", req["prompt"])

		vec := make([]float64, 8)
		vec[0] = 1
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	defer srv.Close()

	e := NewHTTP(srv.URL, "test-model", 8)
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.InDelta(t, 1.0, float64(vec[0]), math.SmallestNonzeroFloat64)
}

func TestHTTPEmbedderWidthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 2, 3}})
	}))
	defer srv.Close()

	e := NewHTTP(srv.URL, "test-model", 8)
	_, err := e.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "width mismatch")
}

func TestHTTPEmbedderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewHTTP(srv.URL, "missing", 8)
	_, err := e.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "status 404")
}
