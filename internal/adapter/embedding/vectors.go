package embedding

import (
	"fmt"
)

// checkVectors enforces the adapter contract: one non-empty vector per text,
// all of the same dimension.
func checkVectors(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	dim := -1
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("embedder returned an empty vector at index %d", i)
		}
		if dim == -1 {
			dim = len(v)
		} else if len(v) != dim {
			return fmt.Errorf("embedder returned mixed dimensions: %d at index 0, %d at index %d", dim, len(v), i)
		}
	}
	return nil
}
