// Package datasource defines the execution boundary between the policy gate
// and the engines that actually run SQL: relational servers (postgres, mysql,
// mssql) and the in-memory table engine that queries uploaded datasets through
// the unified model. Engines register themselves at init time; the factory
// resolves one from configuration or from a built model.
package datasource

import "context"

// ConnectionTester tests datasource connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the datasource is reachable with valid
	// credentials and that the configured database is the one answering.
	TestConnection(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// SchemaDescriber lists tables, columns and declared references for
// translation context. The describer output is what the natural-language
// translator sees, so it must reflect the live schema, not a cached one.
type SchemaDescriber interface {
	// Tables returns all user tables, excluding system schemas.
	Tables(ctx context.Context) ([]Table, error)

	// Columns returns the columns of a specific table in ordinal order.
	Columns(ctx context.Context, table string) ([]Column, error)

	// ForeignKeys returns every declared foreign key between user tables,
	// the relationship lines of the translator's schema context.
	ForeignKeys(ctx context.Context) ([]ForeignKey, error)

	// Close releases the connection.
	Close() error
}

// Table identifies a queryable table.
type Table struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Column describes one column of a table.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// ForeignKey is one declared reference from a column to the column it joins.
type ForeignKey struct {
	Table            string `json:"table"`
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// MaxQueryLimit is the hard cap on rows returned by Query.
// This protects against unbounded machine-generated queries.
const MaxQueryLimit = 1000

// EffectiveLimit clamps a caller-requested row limit into (0, MaxQueryLimit].
// Zero and negative limits mean "no preference" and get the full cap.
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// QueryExecutor runs accepted statements against one engine.
//
// Query is for reads: each engine wraps the statement in its dialect's
// bounded form (postgres/mysql: SELECT * FROM (q) AS _limited LIMIT n,
// mssql: SELECT TOP (n) * FROM (q) AS _limited; the memtable engine truncates
// after evaluation) so results never exceed EffectiveLimit(limit) rows.
//
// Execute is for statements the policy gate admitted that are not reads:
// schema definition, data mutation, data deletion. It runs the statement
// unmodified. Routing a statement to the wrong method is a caller bug, not
// something the executor defends against.
//
// Engine failures wrap apperrors.ErrExecutionFailure with the engine's
// original message preserved, never swallowed.
//
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	// Query runs a read statement and returns bounded, normalized results.
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryResult, error)

	// Execute runs a non-read statement without modification and reports
	// how many rows it touched.
	Execute(ctx context.Context, sqlStatement string) (*ExecResult, error)

	// QuoteIdentifier quotes a table or column name in the engine's dialect
	// so generated DDL cannot be broken out of by a hostile name.
	QuoteIdentifier(name string) string

	// Close releases any resources held by the executor.
	Close() error
}

// QueryResult is the normalized result set every engine produces.
// Columns preserves the display order even when Rows is empty, because a
// zero-row answer still needs a rendered header.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// ExecResult reports the outcome of a non-read statement.
type ExecResult struct {
	RowsAffected int64 `json:"rows_affected"`
}
