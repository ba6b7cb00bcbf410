//go:build integration && (postgres || all_adapters)

package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/testhelpers"
)

// queryExecutorTestContext holds dependencies for query executor tests.
type queryExecutorTestContext struct {
	t        *testing.T
	executor *QueryExecutor
}

// setupQueryExecutorTest creates a QueryExecutor connected to the test container.
func setupQueryExecutorTest(t *testing.T) *queryExecutorTestContext {
	t.Helper()

	testDB := testhelpers.GetTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	executor, err := NewQueryExecutor(ctx, testDB.Datasource(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create query executor: %v", err)
	}

	t.Cleanup(func() {
		executor.Close()
	})

	return &queryExecutorTestContext{
		t:        t,
		executor: executor,
	}
}

func TestQueryExecutor_Query_Simple(t *testing.T) {
	tc := setupQueryExecutorTest(t)
	ctx := context.Background()

	result, err := tc.executor.Query(ctx, "SELECT 1 AS num, 'hello' AS greeting", 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(result.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(result.Columns))
	}
	if result.Columns[0] != "num" {
		t.Errorf("expected first column 'num', got %q", result.Columns[0])
	}
	if result.Columns[1] != "greeting" {
		t.Errorf("expected second column 'greeting', got %q", result.Columns[1])
	}

	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0]["greeting"] != "hello" {
		t.Errorf("expected greeting 'hello', got %v", result.Rows[0]["greeting"])
	}
}

func TestQueryExecutor_ExecuteAndQuery_Table(t *testing.T) {
	tc := setupQueryExecutorTest(t)
	ctx := context.Background()

	if _, err := tc.executor.Execute(ctx, `CREATE TABLE executor_books (id INT PRIMARY KEY, title TEXT)`); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	t.Cleanup(func() {
		_, _ = tc.executor.Execute(context.Background(), "DROP TABLE IF EXISTS executor_books")
	})

	ins, err := tc.executor.Execute(ctx,
		`INSERT INTO executor_books (id, title) VALUES (1, 'Dune'), (2, 'Emma'), (3, 'Hamlet')`)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if ins.RowsAffected != 3 {
		t.Errorf("expected 3 rows affected, got %d", ins.RowsAffected)
	}

	// A limit below the row count truncates the result.
	result, err := tc.executor.Query(ctx, "SELECT id, title FROM executor_books ORDER BY id", 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows with limit 2, got %d", len(result.Rows))
	}
	if result.Rows[0]["title"] != "Dune" {
		t.Errorf("expected first title 'Dune', got %v", result.Rows[0]["title"])
	}

	// Limit 0 means the default cap, which is far above 3 rows.
	result, err = tc.executor.Query(ctx, "SELECT id FROM executor_books", 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(result.Rows) != 3 {
		t.Errorf("expected all 3 rows, got %d", len(result.Rows))
	}
}

func TestQueryExecutor_Query_EmptyResultKeepsColumns(t *testing.T) {
	tc := setupQueryExecutorTest(t)
	ctx := context.Background()

	result, err := tc.executor.Query(ctx, "SELECT 1 AS id, 'x' AS label WHERE false", 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(result.Rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(result.Rows))
	}
	if len(result.Columns) != 2 || result.Columns[0] != "id" || result.Columns[1] != "label" {
		t.Errorf("expected columns [id label] on empty result, got %v", result.Columns)
	}
}

func TestQueryExecutor_Query_EngineErrorPreserved(t *testing.T) {
	tc := setupQueryExecutorTest(t)
	ctx := context.Background()

	_, err := tc.executor.Query(ctx, "SELECT * FROM no_such_table_anywhere", 0)
	if err == nil {
		t.Fatal("expected an error for a missing table")
	}
	if !errors.Is(err, apperrors.ErrExecutionFailure) {
		t.Errorf("expected ErrExecutionFailure, got: %v", err)
	}
	if !strings.Contains(err.Error(), "no_such_table_anywhere") {
		t.Errorf("expected the engine message to be preserved, got: %v", err)
	}
}

func TestQueryExecutor_QuoteIdentifier(t *testing.T) {
	tc := setupQueryExecutorTest(t)

	if got := tc.executor.QuoteIdentifier("books"); got != `"books"` {
		t.Errorf("expected quoted identifier, got %s", got)
	}
	if got := tc.executor.QuoteIdentifier(`weird"name`); got != `"weird""name"` {
		t.Errorf("expected embedded quotes doubled, got %s", got)
	}
}

func TestAdapter_TestConnection(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adapter, err := NewAdapter(ctx, testDB.Datasource(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	t.Cleanup(func() { adapter.Close() })

	if err := adapter.TestConnection(ctx); err != nil {
		t.Fatalf("TestConnection failed: %v", err)
	}
}
