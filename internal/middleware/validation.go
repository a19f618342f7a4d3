package middleware

import (
	"readly/internal/domain"
	"readly/internal/dto"
	"readly/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Locals keys holding validated request bodies.
const (
	CompareRequestKey      = "validated_compare_request"
	BatchCompareRequestKey = "validated_batch_compare_request"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware(validator *validation.Validator) *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validator,
	}
}

// ValidateCompareRequest parses and validates a POST /compare body of either shape.
func (vm *ValidationMiddleware) ValidateCompareRequest() fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(dto.CompareRequest)
		if err := c.BodyParser(req); err != nil {
			return malformedBody(err)
		}
		if errors := vm.validator.ValidateCompareRequest(req); len(errors) > 0 {
			return errors // This will be handled by ErrorHandler
		}
		c.Locals(CompareRequestKey, req)
		return c.Next()
	}
}

// ValidateBatchCompareRequest parses and validates a POST /compare/batch body.
func (vm *ValidationMiddleware) ValidateBatchCompareRequest() fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(dto.BatchCompareRequest)
		if err := c.BodyParser(req); err != nil {
			return malformedBody(err)
		}
		if errors := vm.validator.ValidateBatch(req.Questions); len(errors) > 0 {
			return errors
		}
		c.Locals(BatchCompareRequestKey, req)
		return c.Next()
	}
}

func malformedBody(err error) domain.ValidationErrors {
	return domain.ValidationErrors{{
		Field:   "body",
		Code:    domain.CodeInvalidFormat,
		Message: "request body is not valid JSON: " + err.Error(),
	}}
}
