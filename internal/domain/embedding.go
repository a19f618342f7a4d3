package domain

import (
	"context"
)

// EmbeddingService defines the interface for generating text embeddings.
//
// Embed must return exactly one vector per input text, in input order, and
// must be deterministic for a fixed model. Implementations document whether
// they are safe for concurrent use; the comparison engine does not serialise
// calls.
type EmbeddingService interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the underlying model; vectors from different models
	// are never compared or cached under the same key.
	Model() string
}
