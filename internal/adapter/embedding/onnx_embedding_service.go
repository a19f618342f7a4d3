package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode"

	"readly/internal/config"
	"readly/internal/domain"
	"readly/internal/logger"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

var (
	onnxInputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	onnxOutputNames = []string{"last_hidden_state"}
)

// ONNXEmbeddingService runs a sentence-transformers model (all-MiniLM-L6-v2
// by default) in-process through ONNX Runtime. Vectors are mean-pooled over
// the attention mask and L2-normalised.
type ONNXEmbeddingService struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	tk        *tokenizer.Tokenizer
	modelID   string
	maxSeqLen int
	dims      int
}

// NewONNXEmbeddingService loads the tokenizer and model described by cfg.
func NewONNXEmbeddingService(cfg config.ONNXConfig) (*ONNXEmbeddingService, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx model path cannot be empty")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx tokenizer path cannot be empty")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("onnx dimensions must be positive, got %d", cfg.Dimensions)
	}
	maxSeqLen := cfg.MaxSeqLen
	if maxSeqLen <= 0 {
		maxSeqLen = 256
	}

	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", cfg.TokenizerPath, err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, onnxInputNames, onnxOutputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session for %s: %w", cfg.ModelPath, err)
	}

	modelID := cfg.ModelID
	if modelID == "" {
		modelID = "all-MiniLM-L6-v2"
	}
	logger.Get().Info("ONNX embedding model loaded",
		zap.String("model", modelID),
		zap.Int("dimensions", cfg.Dimensions),
		zap.Int("max_seq_len", maxSeqLen))

	return &ONNXEmbeddingService{
		session:   session,
		tk:        tk,
		modelID:   modelID,
		maxSeqLen: maxSeqLen,
		dims:      cfg.Dimensions,
	}, nil
}

// Embed implements domain.EmbeddingService. All texts run through the model
// as a single padded batch.
func (s *ONNXEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, errors.New("onnx embedding service is closed")
	}

	ids, mask, types, seqLen, err := s.encode(texts)
	if err != nil {
		return nil, err
	}
	batch := int64(len(texts))
	shape := ort.NewShape(batch, int64(seqLen))

	idsT, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskT.Destroy()
	typesT, err := ort.NewTensor(shape, types)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer typesT.Destroy()
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(batch, int64(seqLen), int64(s.dims)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.session.Run([]ort.Value{idsT, maskT, typesT}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx inference failed: %w", err)
	}

	vectors := meanPool(out.GetData(), mask, len(texts), seqLen, s.dims)
	for _, v := range vectors {
		l2Normalize(v)
	}
	if err := checkVectors(texts, vectors); err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}
	return vectors, nil
}

// encode tokenizes texts and right-pads them to the longest sequence.
func (s *ONNXEmbeddingService) encode(texts []string) (ids, mask, types []int64, seqLen int, err error) {
	encoded := make([]*tokenizer.Encoding, len(texts))
	for i, text := range texts {
		enc, err := s.tk.EncodeSingle(normalizeText(text), true)
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("failed to tokenize text %d: %w", i, err)
		}
		encoded[i] = enc
		seqLen = max(seqLen, min(len(enc.Ids), s.maxSeqLen))
	}

	ids = make([]int64, len(texts)*seqLen)
	mask = make([]int64, len(texts)*seqLen)
	types = make([]int64, len(texts)*seqLen)
	for i, enc := range encoded {
		tokIDs := truncateKeepLast(enc.Ids, s.maxSeqLen)
		tokMask := truncateKeepLast(enc.AttentionMask, s.maxSeqLen)
		tokTypes := truncateKeepLast(enc.TypeIds, s.maxSeqLen)
		row := i * seqLen
		for j := range tokIDs {
			ids[row+j] = int64(tokIDs[j])
			if j < len(tokMask) {
				mask[row+j] = int64(tokMask[j])
			}
			if j < len(tokTypes) {
				types[row+j] = int64(tokTypes[j])
			}
		}
	}
	return ids, mask, types, seqLen, nil
}

// Model implements domain.EmbeddingService.
func (s *ONNXEmbeddingService) Model() string {
	return "onnx/" + s.modelID
}

// Close releases the ONNX session.
func (s *ONNXEmbeddingService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

// truncateKeepLast cuts seq to n items while keeping its final item, which
// for BERT tokenizers is the [SEP] token.
func truncateKeepLast(seq []int, n int) []int {
	if len(seq) <= n || n <= 0 {
		return seq
	}
	out := make([]int, n)
	copy(out, seq[:n-1])
	out[n-1] = seq[len(seq)-1]
	return out
}

// meanPool averages token embeddings of shape [batch, seqLen, dims] over the
// positions where mask is set.
func meanPool(hidden []float32, mask []int64, batch, seqLen, dims int) [][]float32 {
	out := make([][]float32, batch)
	for b := 0; b < batch; b++ {
		sum := make([]float64, dims)
		var count float64
		for t := 0; t < seqLen; t++ {
			if mask[b*seqLen+t] == 0 {
				continue
			}
			count++
			base := (b*seqLen + t) * dims
			for d := 0; d < dims; d++ {
				sum[d] += float64(hidden[base+d])
			}
		}
		vec := make([]float32, dims)
		if count > 0 {
			for d := range vec {
				vec[d] = float32(sum[d] / count)
			}
		}
		out[b] = vec
	}
	return out
}

func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i, v := range vec {
		vec[i] = float32(float64(v) * inv)
	}
}

// normalizeText applies NFKC and drops control characters other than
// newlines and tabs.
func normalizeText(text string) string {
	normed := strings.TrimSpace(norm.NFKC.String(text))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
}

var _ domain.EmbeddingService = (*ONNXEmbeddingService)(nil)
