package middleware

import (
	"time"

	"readly/internal/eventlog"
	"readly/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger logs one line per HTTP request. Errors from later handlers
// are passed to the app's error handler first so the logged status is the
// one the client receives.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		// Process request
		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		logger.Get().Info("HTTP Request",
			zap.String(eventlog.FieldMethod, method),
			zap.String(eventlog.FieldPath, path),
			zap.Int(eventlog.FieldStatus, c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
			zap.String(eventlog.FieldRequestID, RequestID(c)),
		)

		return nil
	}
}
