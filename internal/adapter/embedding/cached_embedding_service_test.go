package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"readly/internal/cache"
	"readly/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCache is a mock type for domain.Cache.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) MGet(ctx context.Context, keys []string) ([]string, []bool, error) {
	args := m.Called(ctx, keys)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]string), args.Get(1).([]bool), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func embeddingKey(model, text string) string {
	return cache.GenerateCacheKey("embedding", model, cache.HashText(text))
}

func encodeVec(t *testing.T, v []float32) string {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestCachedEmbeddingService_PartialHit(t *testing.T) {
	ctx := context.Background()
	inner := new(MockEmbeddingService)
	mc := new(MockCache)
	inner.On("Model").Return("test/model")

	texts := []string{"hit", "miss", "miss"}
	keys := []string{embeddingKey("test/model", "hit"), embeddingKey("test/model", "miss"), embeddingKey("test/model", "miss")}
	hitVec := []float32{1, 0}
	missVec := []float32{0, 1}

	mc.On("MGet", ctx, keys).Return([]string{encodeVec(t, hitVec), "", ""}, []bool{true, false, false}, nil).Once()
	inner.On("Embed", mock.Anything, []string{"miss"}).Return([][]float32{missVec}, nil).Once()
	mc.On("Set", mock.Anything, keys[1], encodeVec(t, missVec), time.Hour).Return(nil).Once()

	svc := NewCachedEmbeddingService(inner, mc, time.Hour, time.Second)
	got, err := svc.Embed(ctx, texts)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{hitVec, missVec, missVec}, got)
	inner.AssertExpectations(t)
	mc.AssertExpectations(t)
}

func TestCachedEmbeddingService_AllHits(t *testing.T) {
	ctx := context.Background()
	inner := new(MockEmbeddingService)
	mc := new(MockCache)
	inner.On("Model").Return("m")

	keys := []string{embeddingKey("m", "a")}
	mc.On("MGet", ctx, keys).Return([]string{"[0.5,0.5]"}, []bool{true}, nil).Once()

	got, err := NewCachedEmbeddingService(inner, mc, 0, 0).Embed(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.5}}, got)
	inner.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestCachedEmbeddingService_CacheDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	inner := new(MockEmbeddingService)
	mc := new(MockCache)
	inner.On("Model").Return("m")

	mc.On("MGet", ctx, mock.Anything).Return(nil, nil, errors.New("connection refused")).Once()
	inner.On("Embed", mock.Anything, []string{"a", "b"}).Return([][]float32{{1}, {2}}, nil).Once()
	mc.On("Set", mock.Anything, mock.Anything, mock.Anything, time.Minute).Return(errors.New("connection refused"))

	got, err := NewCachedEmbeddingService(inner, mc, time.Minute, time.Second).Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, got)
}

func TestCachedEmbeddingService_InnerError(t *testing.T) {
	ctx := context.Background()
	inner := new(MockEmbeddingService)
	mc := new(MockCache)
	inner.On("Model").Return("m")
	boom := errors.New("model unavailable")

	mc.On("MGet", ctx, mock.Anything).Return([]string{""}, []bool{false}, nil).Once()
	inner.On("Embed", mock.Anything, []string{"a"}).Return(nil, boom).Once()

	_, err := NewCachedEmbeddingService(inner, mc, time.Minute, time.Second).Embed(ctx, []string{"a"})
	assert.ErrorIs(t, err, boom)
	mc.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNewCachedEmbeddingService_NilCache(t *testing.T) {
	inner := new(MockEmbeddingService)
	assert.Same(t, domain.EmbeddingService(inner), NewCachedEmbeddingService(inner, nil, time.Minute, time.Second))
}

// slowEmbedder blocks for delay before answering and reports each start.
type slowEmbedder struct {
	delay   time.Duration
	calls   atomic.Int32
	started chan struct{}
	ctxErr  atomic.Value
}

func (s *slowEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	s.started <- struct{}{}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		s.ctxErr.Store(ctx.Err())
		return nil, ctx.Err()
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (s *slowEmbedder) Model() string { return "slow" }

func TestCachedEmbeddingService_CallerDeadlineDoesNotFailSharedCall(t *testing.T) {
	inner := &slowEmbedder{delay: 300 * time.Millisecond, started: make(chan struct{}, 2)}
	mc := new(MockCache)
	mc.On("MGet", mock.Anything, mock.Anything).Return([]string{""}, []bool{false}, nil)
	mc.On("Set", mock.Anything, mock.Anything, mock.Anything, time.Minute).Return(nil)
	svc := NewCachedEmbeddingService(inner, mc, time.Minute, 5*time.Second)

	var wg sync.WaitGroup
	var errA, errB error
	var gotB [][]float32

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, errA = svc.Embed(ctx, []string{"same text"})
	}()
	<-inner.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		gotB, errB = svc.Embed(context.Background(), []string{"same text"})
	}()
	wg.Wait()

	assert.ErrorIs(t, errA, context.DeadlineExceeded)
	require.NoError(t, errB)
	assert.Equal(t, [][]float32{{1, 0}}, gotB)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Nil(t, inner.ctxErr.Load())
}

func TestCachedEmbeddingService_SharedCallIsBoundedByEmbedTimeout(t *testing.T) {
	inner := &slowEmbedder{delay: time.Second, started: make(chan struct{}, 1)}
	mc := new(MockCache)
	mc.On("MGet", mock.Anything, mock.Anything).Return([]string{""}, []bool{false}, nil)

	_, err := NewCachedEmbeddingService(inner, mc, time.Minute, 50*time.Millisecond).
		Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	mc.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
