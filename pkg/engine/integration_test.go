//go:build integration && (postgres || all_adapters)

package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/llm"
	"github.com/datagate-ai/datagate-engine/pkg/services"
	"github.com/datagate-ai/datagate-engine/pkg/testhelpers"
)

// setupRelationalEngine builds an Engine over the migrated demo library
// database.
func setupRelationalEngine(t *testing.T) *Engine {
	t.Helper()

	engineDB := testhelpers.GetEngineDB(t)

	cfg := testConfig()
	cfg.Datasource = engineDB.Datasource()

	eng, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to assemble engine: %v", err)
	}
	t.Cleanup(func() {
		eng.Close()
	})
	return eng
}

func TestIntegrationExecute_RelationalRead(t *testing.T) {
	eng := setupRelationalEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := eng.Execute(ctx, asRole("viewer"),
		"SELECT title FROM books WHERE publication_year < 1900 ORDER BY title", ModeRelational)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(result.Columns) != 1 || result.Columns[0] != "title" {
		t.Fatalf("unexpected columns: %v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 pre-1900 books, got %d", len(result.Rows))
	}
	if result.Rows[0]["title"] != "Emma" || result.Rows[1]["title"] != "Persuasion" {
		t.Errorf("unexpected titles: %v", result.Rows)
	}
}

func TestIntegrationExecute_ViewerDeniedBeforeDatabase(t *testing.T) {
	eng := setupRelationalEngine(t)
	ctx := context.Background()

	_, err := eng.Execute(ctx, asRole("viewer"), "DELETE FROM loans", ModeRelational)
	if !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	// The table is untouched.
	result, err := eng.Execute(ctx, asRole("viewer"), "SELECT COUNT(*) AS cnt FROM loans", ModeRelational)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if cnt := result.Rows[0]["cnt"]; cnt == int64(0) {
		t.Error("loans table was emptied by a denied statement")
	}
}

func TestIntegrationExecute_MutationReportsRowsAffected(t *testing.T) {
	eng := setupRelationalEngine(t)
	ctx := context.Background()
	admin := asRole("admin")

	result, err := eng.Execute(ctx, admin,
		"INSERT INTO authors (name, country) VALUES ('Integration Probe', 'ZZ')", ModeRelational)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	t.Cleanup(func() {
		eng.Execute(ctx, admin, "DELETE FROM authors WHERE name = 'Integration Probe'", ModeRelational)
	})

	if len(result.Columns) != 1 || result.Columns[0] != "rows_affected" {
		t.Fatalf("unexpected result shape: %v", result.Columns)
	}
	if affected := result.Rows[0]["rows_affected"]; affected != int64(1) {
		t.Errorf("expected 1 row affected, got %v", affected)
	}
}

func TestIntegrationSchema_CreateListDrop(t *testing.T) {
	eng := setupRelationalEngine(t)
	ctx := context.Background()
	admin := asRole("admin")

	err := eng.CreateTable(ctx, admin, "reading_rooms", []services.ColumnDefinition{
		{Name: "room_id", Type: "INT", PrimaryKey: true},
		{Name: "name", Type: "VARCHAR(80)", NotNull: true},
	})
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	t.Cleanup(func() {
		eng.DropTable(ctx, admin, "reading_rooms")
	})

	tables, err := eng.ListTables(ctx, asRole("viewer"))
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	if !containsTable(tables, "reading_rooms") {
		t.Fatalf("created table missing from listing: %v", tables)
	}

	if err := eng.DropTable(ctx, admin, "reading_rooms"); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}
	tables, err = eng.ListTables(ctx, asRole("viewer"))
	if err != nil {
		t.Fatalf("ListTables after drop failed: %v", err)
	}
	if containsTable(tables, "reading_rooms") {
		t.Error("dropped table still listed")
	}
}

func TestIntegrationSchema_EditorCannotCreate(t *testing.T) {
	eng := setupRelationalEngine(t)
	ctx := context.Background()

	err := eng.CreateTable(ctx, asRole("editor"), "editor_probe", []services.ColumnDefinition{
		{Name: "id", Type: "INT"},
	})
	if !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestIntegrationTranslate_LiveSchemaContext(t *testing.T) {
	eng := setupRelationalEngine(t)
	mock := llm.NewMockTranslator()
	eng.translator = mock
	ctx := context.Background()

	if _, err := eng.Translate(ctx, asRole("editor"), "who borrowed Dune?", "English"); err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	schema := mock.LastTranslateRequest.SchemaContext
	for _, want := range []string{
		"Database: " + eng.cfg.Datasource.Database,
		"books(",
		"loans(",
		"- books.author_id -> authors.author_id",
		"- loans.member_id -> members.member_id",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema context missing %q:\n%s", want, schema)
		}
	}
	if !mock.LastTranslateRequest.AllowMutations {
		t.Error("editor prompt should permit mutations")
	}
}

func TestIntegrationTestConnection(t *testing.T) {
	eng := setupRelationalEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := eng.TestConnection(ctx); err != nil {
		t.Fatalf("TestConnection failed: %v", err)
	}
}

func TestIntegrationTestConnection_BadCredentials(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)

	cfg := testConfig()
	cfg.Datasource = engineDB.Datasource()
	cfg.Datasource.Password = "wrong_password"
	cfg.Datasource.Engine = "postgres"

	eng, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to assemble engine: %v", err)
	}
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eng.TestConnection(ctx); err == nil {
		t.Fatal("expected connection failure with wrong password")
	}
}

func containsTable(tables []datasource.Table, name string) bool {
	for _, tbl := range tables {
		if tbl.Name == name {
			return true
		}
	}
	return false
}
