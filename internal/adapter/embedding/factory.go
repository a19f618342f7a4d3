package embedding

import (
	"context"
	"fmt"
	"strings"

	"readly/internal/config"
	"readly/internal/domain"
)

// NewFromConfig builds the embedding service selected by cfg.Source. The
// returned service may implement io.Closer.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingConfig) (domain.EmbeddingService, error) {
	switch strings.ToLower(cfg.Source) {
	case "ollama":
		return NewOllamaEmbeddingService(cfg.Ollama.ServerURL, cfg.Ollama.Model)
	case "openai":
		return NewOpenAIEmbeddingService(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	case "gemini":
		return NewGeminiEmbeddingService(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	case "onnx", "":
		return NewONNXEmbeddingService(cfg.ONNX)
	}
	return nil, fmt.Errorf("unsupported embedding source: %q", cfg.Source)
}
