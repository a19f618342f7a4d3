package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"readly/internal/config"
	"readly/internal/domain"
	"readly/internal/eventlog"
	"readly/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newLoggedApp(t *testing.T, bodyLimit int) (*fiber.App, *eventlog.RingBuffer) {
	t.Helper()
	events := eventlog.NewRingBuffer(64)
	require.NoError(t, logger.Initialize(config.LoggerConfig{Level: "error"}, eventlog.NewCore(events, zapcore.InfoLevel)))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(true, bodyLimit)})
	app.Use(requestid.New())
	app.Use(RequestLogger())
	app.Post("/embed", func(c *fiber.Ctx) error {
		return domain.NewEmbeddingFailureError(errors.New("model unavailable"))
	})
	app.Post("/validate", func(c *fiber.Ctx) error {
		return domain.ValidationErrors{domain.NewMissingFieldError("user_answer")}
	})
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app, events
}

func recentEvents(t *testing.T, rb *eventlog.RingBuffer) []eventlog.Event {
	t.Helper()
	events, err := rb.Recent(context.Background(), 0)
	require.NoError(t, err)
	return events
}

func findEvents(events []eventlog.Event, message string) []eventlog.Event {
	var out []eventlog.Event
	for _, e := range events {
		if e.Message == message {
			out = append(out, e)
		}
	}
	return out
}

func TestRequestLogger_LogsStatusWrittenByErrorHandler(t *testing.T) {
	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/embed", http.StatusInternalServerError},
		{http.MethodPost, "/validate", http.StatusUnprocessableEntity},
		{http.MethodGet, "/ok", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			app, rb := newLoggedApp(t, 0)

			resp, err := app.Test(httptest.NewRequest(tt.method, tt.path, nil), -1)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			lines := findEvents(recentEvents(t, rb), "HTTP Request")
			require.Len(t, lines, 1)
			assert.Equal(t, tt.status, lines[0].Status)
			assert.Equal(t, tt.path, lines[0].Path)
		})
	}
}

func TestRequestLogger_ErrorHandledOnce(t *testing.T) {
	app, rb := newLoggedApp(t, 0)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/embed", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Len(t, findEvents(recentEvents(t, rb), "Failed to generate embeddings"), 1)
}

func TestErrorHandler_AttachesRequestBody(t *testing.T) {
	app, rb := newLoggedApp(t, 16)

	body := `{"correct_answers":["It was just a dream."]}`
	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer secret-token")
	req.Header.Set("X-Client", "grader")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()

	failures := findEvents(recentEvents(t, rb), "Request validation failed")
	require.Len(t, failures, 1)
	fields := failures[0].Fields
	assert.Equal(t, body[:16], fields[FieldBody])
	assert.Equal(t, true, fields[FieldBodyTruncated])

	headers, ok := fields[FieldHeaders].(map[string]string)
	require.True(t, ok, "headers field has type %T", fields[FieldHeaders])
	assert.Equal(t, "grader", headers["X-Client"])
	assert.NotContains(t, headers, fiber.HeaderAuthorization)
	for _, v := range headers {
		assert.False(t, strings.Contains(v, "secret-token"))
	}
}

func TestErrorHandler_BodyLoggingDisabled(t *testing.T) {
	app, rb := newLoggedApp(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/embed", bytes.NewBufferString(`{"questions":[]}`))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()

	failures := findEvents(recentEvents(t, rb), "Failed to generate embeddings")
	require.Len(t, failures, 1)
	assert.NotContains(t, failures[0].Fields, FieldBody)
	assert.NotContains(t, failures[0].Fields, FieldHeaders)
}
