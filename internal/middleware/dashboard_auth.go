package middleware

import (
	"errors"
	"strings"

	"readly/internal/domain"
	"readly/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	AuthorizationHeader = "Authorization"
	BearerSchema        = "Bearer "
	// TokenQueryParam lets browsers open the dashboard with ?token=.
	TokenQueryParam = "token"
	// SubjectKey stores the token subject in fiber.Ctx locals.
	SubjectKey = "dashboardSubject"
)

// DashboardProtected requires a valid dashboard token in the Authorization
// header or the token query parameter. A nil authService disables the check.
func DashboardProtected(authService service.DashboardAuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authService == nil {
			return c.Next()
		}

		tokenString := c.Query(TokenQueryParam)
		if authHeader := c.Get(AuthorizationHeader); authHeader != "" {
			if !strings.HasPrefix(authHeader, BearerSchema) {
				return domain.NewUnauthorizedError("Authorization scheme is not Bearer")
			}
			tokenString = strings.TrimPrefix(authHeader, BearerSchema)
		}
		if strings.TrimSpace(tokenString) == "" {
			return domain.NewUnauthorizedError("Dashboard token is missing")
		}

		claims, err := authService.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, service.ErrInsufficientScope) {
				return domain.NewForbiddenError("Token does not grant dashboard access")
			}
			return domain.NewUnauthorizedError("Dashboard token is invalid or expired")
		}

		c.Locals(SubjectKey, claims.Subject)
		return c.Next()
	}
}
