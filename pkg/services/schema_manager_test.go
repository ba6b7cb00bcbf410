package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/audit"
	"github.com/datagate-ai/datagate-engine/pkg/models"
	"github.com/datagate-ai/datagate-engine/pkg/policy"
)

// recordingExecutor captures statements handed to Execute so tests can check
// what would reach the engine.
type recordingExecutor struct {
	statements []string
	execErr    error
}

func (f *recordingExecutor) Query(context.Context, string, int) (*datasource.QueryResult, error) {
	return &datasource.QueryResult{Columns: []string{}, Rows: []map[string]any{}}, nil
}

func (f *recordingExecutor) Execute(_ context.Context, stmt string) (*datasource.ExecResult, error) {
	f.statements = append(f.statements, stmt)
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &datasource.ExecResult{}, nil
}

func (f *recordingExecutor) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

func (f *recordingExecutor) Close() error { return nil }

type staticDescriber struct {
	tables []datasource.Table
	err    error
	calls  int
}

func (f *staticDescriber) Tables(context.Context) ([]datasource.Table, error) {
	f.calls++
	return f.tables, f.err
}

func (f *staticDescriber) Columns(context.Context, string) ([]datasource.Column, error) {
	return nil, nil
}

func (f *staticDescriber) ForeignKeys(context.Context) ([]datasource.ForeignKey, error) {
	return nil, nil
}

func (f *staticDescriber) Close() error { return nil }

func newTestSchemaManager(exec *recordingExecutor, desc *staticDescriber) SchemaManager {
	enforcer := policy.NewEnforcer(policy.Default(), audit.NewSecurityAuditor(zap.NewNop()), zap.NewNop())
	return NewSchemaManager(enforcer, exec, desc, zap.NewNop())
}

func identityWithRole(role string) models.Identity {
	return models.Identity{UserID: uuid.New(), Role: role}
}

func TestCreateTable_RendersDDL(t *testing.T) {
	exec := &recordingExecutor{}
	mgr := newTestSchemaManager(exec, &staticDescriber{})

	err := mgr.CreateTable(context.Background(), identityWithRole(models.RoleAdmin), "books", []ColumnDefinition{
		{Name: "book_id", Type: "INT", PrimaryKey: true},
		{Name: "title", Type: "VARCHAR(255)", NotNull: true},
		{Name: "isbn", Type: "VARCHAR(20)", Unique: true},
		{Name: "price", Type: "DECIMAL(10,2)"},
	})
	require.NoError(t, err)

	require.Len(t, exec.statements, 1)
	assert.Equal(t,
		`CREATE TABLE "books" ("book_id" INT PRIMARY KEY, "title" VARCHAR(255) NOT NULL, "isbn" VARCHAR(20) UNIQUE, "price" DECIMAL(10,2))`,
		exec.statements[0])
}

func TestCreateTable_RequiresColumns(t *testing.T) {
	exec := &recordingExecutor{}
	mgr := newTestSchemaManager(exec, &staticDescriber{})

	err := mgr.CreateTable(context.Background(), identityWithRole(models.RoleAdmin), "books", nil)
	require.ErrorIs(t, err, apperrors.ErrUnsafeQuery)
	assert.Empty(t, exec.statements)
}

func TestCreateTable_RejectsBadTableName(t *testing.T) {
	exec := &recordingExecutor{}
	mgr := newTestSchemaManager(exec, &staticDescriber{})

	for _, name := range []string{
		"books; DROP TABLE members",
		"books--",
		`books"`,
		"1books",
		"",
		"books members",
	} {
		err := mgr.CreateTable(context.Background(), identityWithRole(models.RoleAdmin), name, []ColumnDefinition{
			{Name: "id", Type: "INT"},
		})
		require.ErrorIs(t, err, apperrors.ErrUnsafeQuery, "table name %q", name)
	}
	assert.Empty(t, exec.statements, "no statement may be rendered for a bad identifier")
}

func TestCreateTable_RejectsBadColumnNameAndType(t *testing.T) {
	exec := &recordingExecutor{}
	mgr := newTestSchemaManager(exec, &staticDescriber{})
	admin := identityWithRole(models.RoleAdmin)

	err := mgr.CreateTable(context.Background(), admin, "books", []ColumnDefinition{
		{Name: "title'); DROP TABLE books; --", Type: "INT"},
	})
	require.ErrorIs(t, err, apperrors.ErrUnsafeQuery)

	err = mgr.CreateTable(context.Background(), admin, "books", []ColumnDefinition{
		{Name: "title", Type: "VARCHAR(255)); DROP TABLE books"},
	})
	require.ErrorIs(t, err, apperrors.ErrUnsafeQuery)

	assert.Empty(t, exec.statements)
}

func TestCreateTable_AllowsMultiWordTypes(t *testing.T) {
	exec := &recordingExecutor{}
	mgr := newTestSchemaManager(exec, &staticDescriber{})

	err := mgr.CreateTable(context.Background(), identityWithRole(models.RoleAdmin), "events", []ColumnDefinition{
		{Name: "id", Type: "INT", PrimaryKey: true},
		{Name: "occurred_at", Type: "TIMESTAMP WITH TIME ZONE"},
		{Name: "amount", Type: "DOUBLE PRECISION"},
	})
	require.NoError(t, err)
	require.Len(t, exec.statements, 1)
	assert.Contains(t, exec.statements[0], `"occurred_at" TIMESTAMP WITH TIME ZONE`)
}

func TestCreateTable_DeniedForEditorAndViewer(t *testing.T) {
	exec := &recordingExecutor{}
	mgr := newTestSchemaManager(exec, &staticDescriber{})

	for _, role := range []string{models.RoleEditor, models.RoleViewer} {
		err := mgr.CreateTable(context.Background(), identityWithRole(role), "books", []ColumnDefinition{
			{Name: "id", Type: "INT"},
		})
		require.ErrorIs(t, err, apperrors.ErrPermissionDenied, "role %s", role)
	}
	assert.Empty(t, exec.statements)
}

func TestDropTable_RendersDDLForAdmin(t *testing.T) {
	exec := &recordingExecutor{}
	mgr := newTestSchemaManager(exec, &staticDescriber{})

	err := mgr.DropTable(context.Background(), identityWithRole(models.RoleAdmin), "loans")
	require.NoError(t, err)

	require.Len(t, exec.statements, 1)
	assert.Equal(t, `DROP TABLE IF EXISTS "loans"`, exec.statements[0])
}

func TestDropTable_DeniedForEditor(t *testing.T) {
	exec := &recordingExecutor{}
	mgr := newTestSchemaManager(exec, &staticDescriber{})

	err := mgr.DropTable(context.Background(), identityWithRole(models.RoleEditor), "loans")
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Empty(t, exec.statements)
}

func TestDropTable_RejectsBadIdentifier(t *testing.T) {
	exec := &recordingExecutor{}
	mgr := newTestSchemaManager(exec, &staticDescriber{})

	err := mgr.DropTable(context.Background(), identityWithRole(models.RoleAdmin), "loans; DELETE FROM members")
	require.ErrorIs(t, err, apperrors.ErrUnsafeQuery)
	assert.Empty(t, exec.statements)
}

func TestSchemaManager_WrapsExecutionFailure(t *testing.T) {
	exec := &recordingExecutor{
		execErr: fmt.Errorf("%w: relation \"books\" already exists", apperrors.ErrExecutionFailure),
	}
	mgr := newTestSchemaManager(exec, &staticDescriber{})

	err := mgr.CreateTable(context.Background(), identityWithRole(models.RoleAdmin), "books", []ColumnDefinition{
		{Name: "id", Type: "INT"},
	})
	require.ErrorIs(t, err, apperrors.ErrExecutionFailure)
	assert.Contains(t, err.Error(), "already exists", "engine message must survive wrapping")
}

func TestListTables_UsesDescriber(t *testing.T) {
	desc := &staticDescriber{tables: []datasource.Table{
		{Schema: "public", Name: "authors"},
		{Schema: "public", Name: "books"},
	}}
	mgr := newTestSchemaManager(&recordingExecutor{}, desc)

	tables, err := mgr.ListTables(context.Background(), identityWithRole(models.RoleViewer))
	require.NoError(t, err)
	assert.Equal(t, 1, desc.calls)
	require.Len(t, tables, 2)
	assert.Equal(t, "authors", tables[0].Name)
}

func TestListTables_RejectsUnknownRole(t *testing.T) {
	desc := &staticDescriber{}
	mgr := newTestSchemaManager(&recordingExecutor{}, desc)

	_, err := mgr.ListTables(context.Background(), identityWithRole("superuser"))
	require.ErrorIs(t, err, apperrors.ErrInvalidRole)
	assert.Zero(t, desc.calls)
}
