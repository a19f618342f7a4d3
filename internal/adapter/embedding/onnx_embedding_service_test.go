package embedding

import (
	"math"
	"testing"

	"readly/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanPool_IgnoresPadding(t *testing.T) {
	// batch of 2, seqLen 3, dims 2; second row has one padded position.
	hidden := []float32{
		1, 2, 3, 4, 5, 6,
		2, 2, 4, 4, 100, 100,
	}
	mask := []int64{1, 1, 1, 1, 1, 0}

	pooled := meanPool(hidden, mask, 2, 3, 2)
	require.Len(t, pooled, 2)
	assert.Equal(t, []float32{3, 4}, pooled[0])
	assert.Equal(t, []float32{3, 3}, pooled[1])
}

func TestMeanPool_AllMasked(t *testing.T) {
	pooled := meanPool([]float32{1, 1}, []int64{0}, 1, 1, 2)
	assert.Equal(t, []float32{0, 0}, pooled[0])
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	l2Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)

	zero := []float32{0, 0}
	l2Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestTruncateKeepLast(t *testing.T) {
	assert.Equal(t, []int{101, 7, 102}, truncateKeepLast([]int{101, 7, 102}, 5))
	assert.Equal(t, []int{101, 7, 102}, truncateKeepLast([]int{101, 7, 8, 9, 102}, 3))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "ABC", normalizeText("  ＡＢＣ "))
	assert.Equal(t, "a\tb\nc", normalizeText("a\tb\nc\x00"))
}

func TestNewONNXEmbeddingService_Validation(t *testing.T) {
	_, err := NewONNXEmbeddingService(config.ONNXConfig{TokenizerPath: "t.json", Dimensions: 384})
	assert.ErrorContains(t, err, "onnx model path cannot be empty")

	_, err = NewONNXEmbeddingService(config.ONNXConfig{ModelPath: "m.onnx", Dimensions: 384})
	assert.ErrorContains(t, err, "onnx tokenizer path cannot be empty")

	_, err = NewONNXEmbeddingService(config.ONNXConfig{ModelPath: "m.onnx", TokenizerPath: "t.json"})
	assert.ErrorContains(t, err, "dimensions must be positive")
}
