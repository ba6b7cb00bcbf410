// Context helpers for extracting authentication information from request
// contexts. These simplify access to JWT claims injected by the caller's
// transport layer.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/models"
)

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
// Use this when you only need the user ID and can handle empty string gracefully.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// GetRoleFromContext extracts the role from JWT claims in the context.
// Returns empty string if not authenticated or no role claim is present.
func GetRoleFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Role
}

// RequireUserIDFromContext extracts the user ID from context and returns an
// error if not found. Use this when user ID is required for the operation.
func RequireUserIDFromContext(ctx context.Context) (string, error) {
	userID := GetUserIDFromContext(ctx)
	if userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// RequireRoleFromContext extracts the role from context and validates it
// against the known roles. Returns an error when the context carries no
// claims or the role is not one the policy layer understands.
func RequireRoleFromContext(ctx context.Context) (string, error) {
	role := GetRoleFromContext(ctx)
	if role == "" {
		return "", fmt.Errorf("role not found in context")
	}
	if !models.IsValidRole(role) {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, role)
	}
	return role, nil
}

// IdentityFromContext assembles a models.Identity from the claims in the
// context. The subject must be a UUID and the role must be valid.
func IdentityFromContext(ctx context.Context) (models.Identity, error) {
	role, err := RequireRoleFromContext(ctx)
	if err != nil {
		return models.Identity{}, err
	}

	subject, err := RequireUserIDFromContext(ctx)
	if err != nil {
		return models.Identity{}, err
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return models.Identity{}, fmt.Errorf("subject is not a UUID: %w", err)
	}

	return models.Identity{UserID: userID, Role: role}, nil
}
