// Package audit provides security audit logging for SIEM consumption.
// It logs gate decisions in structured JSON format for easy parsing and
// integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/auth"
	"github.com/datagate-ai/datagate-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventPermissionDenied is logged when a role lacks permission for a
	// statement kind.
	EventPermissionDenied SecurityEventType = "permission_denied"
	// EventUnsafeQueryBlocked is logged when a statement cannot be classified
	// into a known kind and is rejected outright.
	EventUnsafeQueryBlocked SecurityEventType = "unsafe_query_blocked"
	// EventQueryAllowed is logged when the gate admits a statement.
	EventQueryAllowed SecurityEventType = "query_allowed"
	// EventQueryExecuted is logged after a statement ran against a datasource
	// (optional, can be high volume).
	EventQueryExecuted SecurityEventType = "query_executed"
)

// SecurityEvent represents an auditable gate decision with all relevant
// context for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventID       uuid.UUID         `json:"event_id"`
	EventType     SecurityEventType `json:"event_type"`
	UserID        string            `json:"user_id,omitempty"`
	Role          string            `json:"role,omitempty"`
	StatementKind string            `json:"statement_kind,omitempty"`
	Query         string            `json:"query,omitempty"` // truncated, never logged whole
	QueryLength   int               `json:"query_length,omitempty"`
	Details       any               `json:"details,omitempty"`
	Severity      string            `json:"severity"` // info, warning, critical
}

// SecurityAuditor logs gate decisions for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace. The logger is automatically configured with "security_audit"
// namespace for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	securityLogger := logger.Named("security_audit")
	return &SecurityAuditor{logger: securityLogger}
}

// LogPermissionDenied records a role/kind mismatch. Logged at WARN level:
// the statement itself was well formed, the caller simply lacks the
// permission.
func (a *SecurityAuditor) LogPermissionDenied(ctx context.Context, role, statementKind, query string) {
	event := a.newEvent(ctx, EventPermissionDenied, role, statementKind, query, "warning", nil)
	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Permission denied",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.EventID.String()),
		zap.String("role", role),
		zap.String("statement_kind", statementKind),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// LogUnsafeQuery records a statement the classifier refused to trust.
// Logged at ERROR level with "critical" severity for immediate alerting;
// unclassifiable statements are where injection attempts surface.
func (a *SecurityAuditor) LogUnsafeQuery(ctx context.Context, role, query, reason string) {
	event := a.newEvent(ctx, EventUnsafeQueryBlocked, role, "", query, "critical", map[string]string{
		"reason": reason,
	})
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("Unsafe query blocked",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.EventID.String()),
		zap.String("role", role),
		zap.String("reason", reason),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// LogQueryAllowed records a statement the gate admitted. Logged at DEBUG
// level; admissions are the common case and only matter when tracing.
func (a *SecurityAuditor) LogQueryAllowed(ctx context.Context, role, statementKind, query string) {
	event := a.newEvent(ctx, EventQueryAllowed, role, statementKind, query, "info", nil)
	eventJSON, _ := json.Marshal(event)

	a.logger.Debug("Query allowed",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.EventID.String()),
		zap.String("role", role),
		zap.String("statement_kind", statementKind),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// LogQueryExecuted records a statement that ran against a datasource,
// with the datasource name and returned row count for the audit trail.
// Note: this can generate high log volume in production.
func (a *SecurityAuditor) LogQueryExecuted(ctx context.Context, role, datasource, query string, rowCount int) {
	event := a.newEvent(ctx, EventQueryExecuted, role, "", query, "info", map[string]any{
		"datasource": datasource,
		"row_count":  rowCount,
	})
	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Query executed",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.EventID.String()),
		zap.String("role", role),
		zap.String("datasource", datasource),
		zap.Int("row_count", rowCount),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// newEvent assembles a SecurityEvent with user attribution from the context
// and the query truncated for log hygiene.
func (a *SecurityAuditor) newEvent(
	ctx context.Context,
	eventType SecurityEventType,
	role, statementKind, query, severity string,
	details any,
) SecurityEvent {
	return SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventID:       uuid.New(),
		EventType:     eventType,
		UserID:        auth.GetUserIDFromContext(ctx),
		Role:          role,
		StatementKind: statementKind,
		Query:         logging.TruncateQuery(query),
		QueryLength:   len(query),
		Details:       details,
		Severity:      severity,
	}
}
