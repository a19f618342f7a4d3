package dto

import "github.com/golang-jwt/jwt/v5"

// ScopeDashboard grants read access to the event dashboard.
const ScopeDashboard = "dashboard"

// DashboardClaims defines the custom claims for dashboard JWTs.
type DashboardClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}
