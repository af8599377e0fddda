// Package embed generates the vectors the semantic log index stores. Two
// backends: Simple, a deterministic in-process bag-of-words hasher so the
// system works with no external service, and HTTP, which calls an external
// embedding endpoint.
package embed

import "context"

// Embedder turns text into a fixed-width vector.
type Embedder interface {
	// Embed returns the vector for text. The width is constant for a given
	// embedder instance.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name identifies the backend for health output and index metadata.
	Name() string

	// Dim is the vector width.
	Dim() int
}
