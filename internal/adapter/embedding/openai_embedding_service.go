package embedding

import (
	"context"
	"fmt"

	"readly/internal/domain"

	"github.com/tmc/langchaingo/embeddings"
	openaiLLM "github.com/tmc/langchaingo/llms/openai"
)

const defaultOpenAIEmbeddingModel = "text-embedding-3-small"

// OpenAIEmbeddingService implements the domain.EmbeddingService interface using OpenAI.
// It is safe for concurrent use.
type OpenAIEmbeddingService struct {
	embedder embeddings.Embedder
	model    string
}

// NewOpenAIEmbeddingService creates a new OpenAIEmbeddingService. baseURL is
// optional and lets the service talk to OpenAI-compatible gateways.
func NewOpenAIEmbeddingService(apiKey, modelName, baseURL string) (*OpenAIEmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key cannot be empty")
	}
	if modelName == "" {
		modelName = defaultOpenAIEmbeddingModel
	}

	opts := []openaiLLM.Option{
		openaiLLM.WithToken(apiKey),
		openaiLLM.WithEmbeddingModel(modelName),
	}
	if baseURL != "" {
		opts = append(opts, openaiLLM.WithBaseURL(baseURL))
	}

	llm, err := openaiLLM.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LangchainGo OpenAI LLM client for embedder: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create generic embedder from OpenAI LLM: %w", err)
	}

	return &OpenAIEmbeddingService{embedder: embedder, model: "openai/" + modelName}, nil
}

// Embed creates embeddings for texts with a single batched request.
func (s *OpenAIEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding using OpenAI: %w", err)
	}
	if err := checkVectors(texts, vectors); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return vectors, nil
}

// Model implements domain.EmbeddingService.
func (s *OpenAIEmbeddingService) Model() string {
	return s.model
}

var _ domain.EmbeddingService = (*OpenAIEmbeddingService)(nil)
