package service

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// mockEmbedder is a mock type for domain.EmbeddingService.
type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockEmbedder) Model() string {
	return "mock"
}
