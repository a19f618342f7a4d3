package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"readly/internal/config"
	"readly/internal/domain"
	"readly/internal/eventlog"
	"readly/internal/logger"
	"readly/internal/middleware"
	"readly/internal/service"
	"readly/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// testEvents captures warn+ log entries emitted during handler tests.
var testEvents = eventlog.NewRingBuffer(256)

func TestMain(m *testing.M) {
	if err := logger.Initialize(config.LoggerConfig{Level: "error"}, eventlog.NewCore(testEvents, zapcore.WarnLevel)); err != nil {
		panic(err)
	}
	exitCode := m.Run()
	_ = logger.Sync()
	os.Exit(exitCode)
}

// MockComparisonService is a mock implementation of service.ComparisonService
type MockComparisonService struct {
	mock.Mock
}

func (m *MockComparisonService) Compare(ctx context.Context, q domain.Question) (*domain.ComparisonResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ComparisonResult), args.Error(1)
}

func (m *MockComparisonService) CompareBatch(ctx context.Context, b domain.Batch) (*domain.BatchResult, error) {
	args := m.Called(ctx, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchResult), args.Error(1)
}

// vectorEmbedder returns fixed vectors; unknown texts embed to {0, 0, 1}.
type vectorEmbedder map[string][]float32

func (v vectorEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, ok := v[t]
		if !ok {
			vec = []float32{0, 0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func (v vectorEmbedder) Model() string { return "vectors" }

var testComparisonConfig = config.ComparisonConfig{
	MaxConcurrency:    4,
	MaxQuestions:      10,
	MaxCorrectAnswers: 10,
	MaxTextLength:     200,
}

// newTestApp wires routes the same way cmd/api does.
func newTestApp(svc service.ComparisonService) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(true, 1024)})
	vm := middleware.NewValidationMiddleware(validation.NewValidator(testComparisonConfig))
	h := NewCompareHandler(svc)

	app.Get("/heartbeat", Heartbeat)
	app.Post("/compare", vm.ValidateCompareRequest(), h.Compare)
	app.Post("/compare/batch", vm.ValidateBatchCompareRequest(), h.CompareBatch)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func floats(t *testing.T, v interface{}) []float64 {
	t.Helper()
	items, ok := v.([]interface{})
	require.True(t, ok, "expected array, got %T", v)
	out := make([]float64, len(items))
	for i, item := range items {
		out[i] = item.(float64)
	}
	return out
}

