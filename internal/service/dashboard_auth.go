package service

import (
	"errors"
	"fmt"
	"time"

	"readly/internal/config"
	"readly/internal/dto"
	"readly/internal/logger"
	"readly/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const defaultDashboardTokenTTL = 24 * time.Hour

var (
	ErrInvalidJWTToken    = errors.New("invalid jwt token")
	ErrInsufficientScope  = errors.New("token does not grant dashboard access")
	ErrDashboardAuthUnset = errors.New("dashboard jwt secret is not configured")
)

// DashboardAuthService issues and checks the HS256 tokens guarding the dashboard.
type DashboardAuthService interface {
	CreateToken(subject string, ttl time.Duration) (string, error)
	ValidateToken(tokenString string) (*dto.DashboardClaims, error)
}

type dashboardAuthService struct {
	secret     []byte
	defaultTTL time.Duration
}

// NewDashboardAuthService creates a DashboardAuthService from config.
func NewDashboardAuthService(cfg config.DashboardConfig) (DashboardAuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrDashboardAuthUnset
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultDashboardTokenTTL
	}
	return &dashboardAuthService{secret: []byte(cfg.JWTSecret), defaultTTL: ttl}, nil
}

// CreateToken signs a dashboard token for subject. A non-positive ttl uses the
// configured default.
func (s *dashboardAuthService) CreateToken(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := time.Now()
	claims := dto.DashboardClaims{
		Scope: dto.ScopeDashboard,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        util.NewULID(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses tokenString and checks its signature, lifetime and scope.
func (s *dashboardAuthService) ValidateToken(tokenString string) (*dto.DashboardClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &dto.DashboardClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		snippet := tokenString[:min(len(tokenString), 20)] + "..."
		if errors.Is(err, jwt.ErrTokenExpired) {
			logger.Get().Warn("Dashboard JWT expired", zap.Error(err), zap.String("token_snippet", snippet))
		} else {
			logger.Get().Warn("Dashboard JWT validation failed", zap.Error(err), zap.String("token_snippet", snippet))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidJWTToken, err)
	}

	claims, ok := token.Claims.(*dto.DashboardClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidJWTToken
	}
	if claims.Scope != dto.ScopeDashboard {
		return nil, ErrInsufficientScope
	}
	return claims, nil
}
