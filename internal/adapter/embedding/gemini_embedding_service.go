package embedding

import (
	"context"
	"fmt"

	"readly/internal/domain"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiMaxBatch is the largest number of contents BatchEmbedContents accepts.
const geminiMaxBatch = 100

// batchFunc embeds one request-sized chunk of texts.
type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// GeminiEmbeddingService implements domain.EmbeddingService using the
// Gemini embedding API.
type GeminiEmbeddingService struct {
	client *genai.Client
	batch  batchFunc
	model  string
}

// NewGeminiEmbeddingService creates a Gemini client for the given model.
func NewGeminiEmbeddingService(ctx context.Context, apiKey, modelName string) (*GeminiEmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key cannot be empty")
	}
	if modelName == "" {
		return nil, fmt.Errorf("gemini model name cannot be empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	em := client.EmbeddingModel(modelName)

	return &GeminiEmbeddingService{
		client: client,
		model:  "gemini/" + modelName,
		batch: func(ctx context.Context, texts []string) ([][]float32, error) {
			b := em.NewBatch()
			for _, t := range texts {
				b.AddContent(genai.Text(t))
			}
			res, err := em.BatchEmbedContents(ctx, b)
			if err != nil {
				return nil, err
			}
			out := make([][]float32, 0, len(res.Embeddings))
			for _, e := range res.Embeddings {
				if e == nil {
					out = append(out, nil)
					continue
				}
				out = append(out, e.Values)
			}
			return out, nil
		},
	}, nil
}

// Embed implements domain.EmbeddingService. Texts are sent in chunks of at
// most geminiMaxBatch; the output keeps input order.
func (s *GeminiEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiMaxBatch {
		end := min(start+geminiMaxBatch, len(texts))
		chunk, err := s.batch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding using Gemini: %w", err)
		}
		if len(chunk) != end-start {
			return nil, fmt.Errorf("gemini: embedder returned %d vectors for %d texts", len(chunk), end-start)
		}
		vectors = append(vectors, chunk...)
	}

	if err := checkVectors(texts, vectors); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return vectors, nil
}

// Model implements domain.EmbeddingService.
func (s *GeminiEmbeddingService) Model() string {
	return s.model
}

// Close releases the underlying client.
func (s *GeminiEmbeddingService) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ domain.EmbeddingService = (*GeminiEmbeddingService)(nil)
