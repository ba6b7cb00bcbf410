package policy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/audit"
	"github.com/datagate-ai/datagate-engine/pkg/models"
	"github.com/datagate-ai/datagate-engine/pkg/sql"
)

// Enforcer applies a Policy to classified statements and audits every
// decision through the security auditor.
type Enforcer struct {
	policy  *Policy
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewEnforcer creates an enforcer over the given policy.
func NewEnforcer(policy *Policy, auditor *audit.SecurityAuditor, logger *zap.Logger) *Enforcer {
	return &Enforcer{
		policy:  policy,
		auditor: auditor,
		logger:  logger.Named("policy"),
	}
}

// Authorize admits or rejects a classified statement for the given role.
//
// Rejections come in three shapes, each a distinct sentinel:
//   - apperrors.ErrInvalidRole when the role is not one the policy knows;
//   - apperrors.ErrUnsafeQuery when the classifier refused to classify;
//   - apperrors.ErrPermissionDenied when the kind is outside the role's set.
//
// A nil return means the statement may be handed to an execution adapter.
func (e *Enforcer) Authorize(ctx context.Context, role string, classified sql.ClassifiedQuery) error {
	if !models.IsValidRole(role) {
		e.logger.Warn("rejecting unknown role", zap.String("role", role))
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, role)
	}

	if classified.Kind == sql.KindUnsafeUnknown {
		e.auditor.LogUnsafeQuery(ctx, role, classified.Query, classified.UnsafeReason)
		return fmt.Errorf("%w: %s", apperrors.ErrUnsafeQuery, classified.UnsafeReason)
	}

	if !e.policy.Permits(role, classified.Kind) {
		e.auditor.LogPermissionDenied(ctx, role, string(classified.Kind), classified.Query)
		return fmt.Errorf("%w: role %q may not run %s statements", apperrors.ErrPermissionDenied, role, classified.Kind)
	}

	e.auditor.LogQueryAllowed(ctx, role, string(classified.Kind), classified.Query)
	return nil
}

// AuthorizeQuery classifies the raw statement and authorizes it in one step.
// The returned ClassifiedQuery carries the normalized statement for
// execution when the error is nil.
func (e *Enforcer) AuthorizeQuery(ctx context.Context, role, rawQuery string) (sql.ClassifiedQuery, error) {
	classified := sql.Classify(rawQuery)
	if err := e.Authorize(ctx, role, classified); err != nil {
		return classified, err
	}
	return classified, nil
}
