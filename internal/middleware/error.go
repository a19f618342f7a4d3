package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"readly/internal/domain"
	"readly/internal/eventlog"
	"readly/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// Log field names for the failing request's payload.
const (
	FieldBody          = "body"
	FieldBodyTruncated = "body_truncated"
	FieldHeaders       = "headers"
)

// UnknownErrorMessage is the public message of every 5xx response.
const UnknownErrorMessage = "An unknown error has occurred while processing your request."

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Detail  string                 `json:"detail,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse represents validation error response
type ValidationErrorResponse struct {
	Code    string                   `json:"code"`
	Message string                   `json:"message"`
	Status  int                      `json:"status"`
	Errors  []domain.ValidationError `json:"errors"`
}

// ErrorHandler is the centralized fiber error handler. Every failure is
// logged once with structured fields before the JSON body is written. When
// exposeDetails is set, 5xx bodies carry the underlying error text. A positive
// logBodyLimit attaches the request body (truncated to that many bytes) and
// headers to validation and 5xx events.
func ErrorHandler(exposeDetails bool, logBodyLimit int) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		log := logger.Get().With(
			zap.String(eventlog.FieldMethod, c.Method()),
			zap.String(eventlog.FieldPath, c.Path()),
			zap.String(eventlog.FieldRequestID, RequestID(c)),
		)

		// Handle validation errors
		var validationErrs domain.ValidationErrors
		var single domain.ValidationError
		switch {
		case errors.As(err, &validationErrs):
		case errors.As(err, &single):
			validationErrs = domain.ValidationErrors{single}
		}
		if validationErrs != nil {
			fields := []zap.Field{
				zap.String(eventlog.FieldCategory, "validation"),
				zap.Int(eventlog.FieldStatus, http.StatusUnprocessableEntity),
				zap.Int("error_count", len(validationErrs)),
				zap.String(eventlog.FieldError, validationErrs.Error()),
			}
			log.Warn("Request validation failed", append(fields, requestFields(c, logBodyLimit)...)...)
			return c.Status(http.StatusUnprocessableEntity).JSON(ValidationErrorResponse{
				Code:    string(domain.CodeValidation),
				Message: "Request validation failed",
				Status:  http.StatusUnprocessableEntity,
				Errors:  validationErrs,
			})
		}

		// Handle domain errors
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			status := mapDomainErrorToHTTPStatus(domainErr)
			fields := []zap.Field{
				zap.String(eventlog.FieldCategory, categoryOf(domainErr.Code)),
				zap.String("code", string(domainErr.Code)),
				zap.Int(eventlog.FieldStatus, status),
				zap.String(eventlog.FieldError, domainErr.Error()),
			}
			if idx, ok := domainErr.QuestionIndex(); ok {
				fields = append(fields, zap.Int(eventlog.FieldQuestionIndex, idx))
			}

			if status < http.StatusInternalServerError {
				log.Warn(domainErr.Message, fields...)
				return c.Status(status).JSON(ErrorResponse{
					Code:    string(domainErr.Code),
					Message: domainErr.Message,
					Status:  status,
					Details: domainErr.Context,
				})
			}

			log.Error(domainErr.Message, append(fields, requestFields(c, logBodyLimit)...)...)
			return c.Status(status).JSON(internalResponse(string(domainErr.Code), status, domainErr, domainErr.Context, exposeDetails))
		}

		// Handle fiber errors
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			if fiberErr.Code >= http.StatusInternalServerError {
				log.Error("HTTP error", append([]zap.Field{zap.String(eventlog.FieldCategory, "http"),
					zap.Int(eventlog.FieldStatus, fiberErr.Code), zap.String(eventlog.FieldError, fiberErr.Message)},
					requestFields(c, logBodyLimit)...)...)
				return c.Status(fiberErr.Code).JSON(internalResponse("HTTP_ERROR", fiberErr.Code, fiberErr, nil, exposeDetails))
			}
			log.Warn("HTTP error", zap.String(eventlog.FieldCategory, "http"),
				zap.Int(eventlog.FieldStatus, fiberErr.Code), zap.String(eventlog.FieldError, fiberErr.Message))
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Code:    "HTTP_ERROR",
				Message: fiberErr.Message,
				Status:  fiberErr.Code,
			})
		}

		// Handle unknown errors
		log.Error("Unhandled error", append([]zap.Field{
			zap.String(eventlog.FieldCategory, "internal"),
			zap.Int(eventlog.FieldStatus, http.StatusInternalServerError),
			zap.String(eventlog.FieldError, err.Error()),
		}, requestFields(c, logBodyLimit)...)...)
		return c.Status(http.StatusInternalServerError).JSON(
			internalResponse(string(domain.CodeInternal), http.StatusInternalServerError, err, nil, exposeDetails))
	}
}

// Request headers never copied into log events.
var redactedHeaders = map[string]bool{
	fiber.HeaderAuthorization:      true,
	fiber.HeaderProxyAuthorization: true,
	fiber.HeaderCookie:             true,
}

// requestFields returns the failing request's body and headers for logging.
func requestFields(c *fiber.Ctx, limit int) []zap.Field {
	if limit <= 0 {
		return nil
	}
	body := c.Body()
	truncated := len(body) > limit
	if truncated {
		body = body[:limit]
	}
	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if redactedHeaders[k] {
			return
		}
		headers[k] = string(value)
	})
	return []zap.Field{
		zap.String(FieldBody, strings.ToValidUTF8(string(body), "")),
		zap.Bool(FieldBodyTruncated, truncated),
		zap.Any(FieldHeaders, headers),
	}
}

func internalResponse(code string, status int, err error, details map[string]interface{}, exposeDetails bool) ErrorResponse {
	resp := ErrorResponse{
		Code:    code,
		Message: UnknownErrorMessage,
		Status:  status,
		Details: details,
	}
	if exposeDetails {
		resp.Detail = fmt.Sprintf("Details: %q", err.Error())
	}
	return resp
}

// mapDomainErrorToHTTPStatus maps domain errors to HTTP status codes
func mapDomainErrorToHTTPStatus(err *domain.DomainError) int {
	switch err.Code {
	case domain.CodeValidation, domain.CodeMissingField, domain.CodeInvalidFormat, domain.CodeOutOfRange:
		return http.StatusUnprocessableEntity
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func categoryOf(code domain.ErrorCode) string {
	switch code {
	case domain.CodeEmbeddingFailure:
		return "embedding"
	case domain.CodeInvariantViolation:
		return "invariant"
	case domain.CodeUnauthorized, domain.CodeForbidden:
		return "auth"
	case domain.CodeValidation, domain.CodeMissingField, domain.CodeInvalidFormat, domain.CodeOutOfRange:
		return "validation"
	default:
		return "internal"
	}
}

// RequestID returns the id assigned by the requestid middleware, if any.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
