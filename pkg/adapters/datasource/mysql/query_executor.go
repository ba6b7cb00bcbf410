//go:build mysql || all_adapters

package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/config"
	"github.com/datagate-ai/datagate-engine/pkg/logging"
)

// QueryExecutor provides MySQL query execution.
type QueryExecutor struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQueryExecutor creates a MySQL query executor with its own connection.
func NewQueryExecutor(ctx context.Context, ds config.DatasourceConfig, logger *zap.Logger) (*QueryExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, _, err := openDB(ds)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	return &QueryExecutor{
		db:     db,
		logger: logger.Named("mysql"),
	}, nil
}

// Query runs a read statement with bounded results; see
// datasource.QueryExecutor for the limit contract.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	effectiveLimit := datasource.EffectiveLimit(limit)
	queryToRun := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, effectiveLimit)

	e.logger.Debug("executing read",
		zap.String("query", logging.TruncateQuery(sqlQuery)),
		zap.Int("limit", effectiveLimit))

	rows, err := e.db.QueryContext(ctx, queryToRun)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: get columns: %v", apperrors.ErrExecutionFailure, err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("%w: get column types: %v", apperrors.ErrExecutionFailure, err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", apperrors.ErrExecutionFailure, err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = convertValue(values[i], columnTypes[i].DatabaseTypeName())
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
	}

	return &datasource.QueryResult{
		Columns: columns,
		Rows:    resultRows,
	}, nil
}

// Execute runs a non-read statement (DDL/DML) without modification.
func (e *QueryExecutor) Execute(ctx context.Context, sqlStatement string) (*datasource.ExecResult, error) {
	e.logger.Debug("executing statement",
		zap.String("query", logging.TruncateQuery(sqlStatement)))

	result, err := e.db.ExecContext(ctx, sqlStatement)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: get rows affected: %v", apperrors.ErrExecutionFailure, err)
	}

	return &datasource.ExecResult{
		RowsAffected: rowsAffected,
	}, nil
}

// QuoteIdentifier safely quotes a SQL identifier to prevent SQL injection.
// Uses MySQL's backtick syntax: `name`
func (e *QueryExecutor) QuoteIdentifier(name string) string {
	return quoteName(name)
}

// Close releases the database connection.
func (e *QueryExecutor) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
