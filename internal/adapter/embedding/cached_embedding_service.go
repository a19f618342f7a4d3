package embedding

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"readly/internal/cache"
	"readly/internal/domain"
	"readly/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultSharedEmbedTimeout = 30 * time.Second

// CachedEmbeddingService decorates an EmbeddingService with a content
// addressed vector cache. Cache failures degrade to calling the inner
// service; they never fail an Embed call.
//
// Concurrent callers missing the same texts share one inner call. That call
// runs detached from every caller's cancellation, bounded by embedTimeout,
// so one caller giving up never fails the others.
type CachedEmbeddingService struct {
	inner        domain.EmbeddingService
	cache        domain.Cache
	ttl          time.Duration
	embedTimeout time.Duration
	sfGroup      singleflight.Group
}

// NewCachedEmbeddingService wraps inner. A nil cache returns inner unchanged.
// A non-positive embedTimeout uses 30s.
func NewCachedEmbeddingService(inner domain.EmbeddingService, c domain.Cache, ttl, embedTimeout time.Duration) domain.EmbeddingService {
	if c == nil {
		logger.Get().Warn("CachedEmbeddingService initialized with nil cache. Embeddings will not be cached.")
		return inner
	}
	if embedTimeout <= 0 {
		embedTimeout = defaultSharedEmbedTimeout
	}
	return &CachedEmbeddingService{inner: inner, cache: c, ttl: ttl, embedTimeout: embedTimeout}
}

func (s *CachedEmbeddingService) key(text string) string {
	return cache.GenerateCacheKey("embedding", s.inner.Model(), cache.HashText(text))
}

// Embed implements domain.EmbeddingService. Hits are served from the cache;
// all misses are embedded with one inner call.
func (s *CachedEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = s.key(t)
	}

	out := make([][]float32, len(texts))
	values, found, err := s.cache.MGet(ctx, keys)
	if err != nil {
		logger.Get().Warn("Embedding cache lookup failed, falling back to embedder", zap.Error(err))
		found = make([]bool, len(texts))
	}

	// misses maps each distinct missing text to the positions it fills.
	misses := make(map[string][]int)
	var order []string
	for i, t := range texts {
		if found[i] {
			var vec []float32
			if err := json.Unmarshal([]byte(values[i]), &vec); err == nil && len(vec) > 0 {
				out[i] = vec
				continue
			}
			logger.Get().Warn("Discarding undecodable cached embedding", zap.String("key", keys[i]))
		}
		if _, seen := misses[t]; !seen {
			order = append(order, t)
		}
		misses[t] = append(misses[t], i)
	}
	if len(order) == 0 {
		return out, nil
	}

	groupKey := s.inner.Model() + "|" + strings.Join(order, "\x00")
	ch := s.sfGroup.DoChan(groupKey, func() (interface{}, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.embedTimeout)
		defer cancel()

		vectors, err := s.inner.Embed(sharedCtx, order)
		if err != nil {
			return nil, err
		}
		if err := checkVectors(order, vectors); err != nil {
			return nil, err
		}
		s.store(sharedCtx, order, vectors)
		return vectors, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	vectors := res.Val.([][]float32)
	for j, t := range order {
		for _, i := range misses[t] {
			out[i] = vectors[j]
		}
	}
	return out, nil
}

func (s *CachedEmbeddingService) store(ctx context.Context, texts []string, vectors [][]float32) {
	for i, t := range texts {
		data, err := json.Marshal(vectors[i])
		if err != nil {
			logger.Get().Error("Failed to marshal embedding for caching", zap.Error(err))
			continue
		}
		if err := s.cache.Set(ctx, s.key(t), string(data), s.ttl); err != nil {
			logger.Get().Warn("Failed to cache embedding", zap.Error(err), zap.String("key", s.key(t)))
		}
	}
}

// Model implements domain.EmbeddingService.
func (s *CachedEmbeddingService) Model() string {
	return s.inner.Model()
}

// Close closes the inner service when it holds resources.
func (s *CachedEmbeddingService) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ domain.EmbeddingService = (*CachedEmbeddingService)(nil)
