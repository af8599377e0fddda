package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTP calls an external embedding endpoint speaking the common
// {model, prompt} -> {embedding} JSON shape (Ollama and compatible
// services).
type HTTP struct {
	endpoint string
	model    string
	dim      int
	client   *http.Client
}

// NewHTTP creates an HTTP embedder. dim declares the expected vector width;
// a response with a different width is an error so a misconfigured model
// cannot silently corrupt the index.
func NewHTTP(endpoint, model string, dim int) *HTTP {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &HTTP{
		endpoint: endpoint,
		model:    model,
		dim:      dim,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the backend identifier.
func (e *HTTP) Name() string { return "http-" + e.model }

// Dim returns the declared vector width.
func (e *HTTP) Dim() int { return e.dim }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed posts text to the endpoint and returns the vector.
func (e *HTTP) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding endpoint returned status %d: %s", resp.StatusCode, string(msg))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Embedding) != e.dim {
		return nil, fmt.Errorf("embedding width mismatch: got %d, want %d", len(out.Embedding), e.dim)
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
