// Package auth provides JWT-based authentication for datagate-engine.
// It validates tokens issued by the configured auth server using JWKS
// endpoints and exposes the caller's role for permission checks.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
)

// Claims represents the JWT claims structure issued by the auth server.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the role claim that drives every permission decision.
type Claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role,omitempty"`  // Caller's role: admin, editor, or viewer
	Email string `json:"email,omitempty"` // User email address
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// ContextWithClaims returns a child context carrying the given claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}
