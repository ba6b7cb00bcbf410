package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/audit"
	"github.com/datagate-ai/datagate-engine/pkg/sql"
)

func newTestEnforcer(t *testing.T) (*Enforcer, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	auditor := audit.NewSecurityAuditor(logger)
	return NewEnforcer(Default(), auditor, logger), recorded
}

func TestAuthorize_ViewerRead(t *testing.T) {
	enforcer, recorded := newTestEnforcer(t)

	classified := sql.Classify("SELECT * FROM books")
	err := enforcer.Authorize(context.Background(), "viewer", classified)
	require.NoError(t, err)

	// The admission is audited.
	logs := recorded.FilterMessage("Query allowed").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "viewer", logs[0].ContextMap()["role"])
	assert.Equal(t, "read", logs[0].ContextMap()["statement_kind"])
}

func TestAuthorize_ViewerCannotDelete(t *testing.T) {
	enforcer, recorded := newTestEnforcer(t)

	classified := sql.Classify("DELETE FROM orders")
	require.Equal(t, sql.KindDataDeletion, classified.Kind)

	err := enforcer.Authorize(context.Background(), "viewer", classified)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	logs := recorded.FilterMessage("Permission denied").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "data-deletion", logs[0].ContextMap()["statement_kind"])
}

func TestAuthorize_EditorMatrix(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		query   string
		allowed bool
	}{
		{"select", "SELECT * FROM loans", true},
		{"insert", "INSERT INTO loans (book_id) VALUES (1)", true},
		{"update", "UPDATE loans SET returned = true WHERE id = 2", true},
		{"delete", "DELETE FROM loans WHERE id = 2", false},
		{"create table", "CREATE TABLE staging (id INT)", false},
		{"drop table", "DROP TABLE staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := enforcer.Authorize(ctx, "editor", sql.Classify(tt.query))
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
			}
		})
	}
}

func TestAuthorize_UnsafeRejectedForEveryRole(t *testing.T) {
	enforcer, recorded := newTestEnforcer(t)
	ctx := context.Background()

	for _, role := range []string{"admin", "editor", "viewer"} {
		t.Run(role, func(t *testing.T) {
			recorded.TakeAll()

			classified := sql.Classify("SELECT * FROM orders; DROP TABLE orders")
			err := enforcer.Authorize(ctx, role, classified)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrUnsafeQuery)

			logs := recorded.FilterMessage("Unsafe query blocked").All()
			require.Len(t, logs, 1)
			assert.Equal(t, role, logs[0].ContextMap()["role"])
		})
	}
}

func TestAuthorize_DropDatabaseNeverPermitted(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)

	// Even admin, who may run data-deletion, cannot drop a whole database.
	classified := sql.Classify("DROP DATABASE library")
	err := enforcer.Authorize(context.Background(), "admin", classified)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsafeQuery)
}

func TestAuthorize_InvalidRole(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)

	err := enforcer.Authorize(context.Background(), "superuser", sql.Classify("SELECT 1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRole)
}

func TestAuthorizeQuery(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	ctx := context.Background()

	classified, err := enforcer.AuthorizeQuery(ctx, "viewer", "SELECT * FROM books;")
	require.NoError(t, err)
	assert.Equal(t, sql.KindRead, classified.Kind)
	assert.Equal(t, "SELECT * FROM books", classified.Query, "normalized statement is what executes")

	_, err = enforcer.AuthorizeQuery(ctx, "viewer", "DROP TABLE books")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}
