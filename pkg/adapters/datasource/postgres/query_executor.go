//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/config"
	"github.com/datagate-ai/datagate-engine/pkg/logging"
)

// QueryExecutor provides PostgreSQL query execution.
type QueryExecutor struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewQueryExecutor creates a PostgreSQL query executor with its own pool.
func NewQueryExecutor(ctx context.Context, ds config.DatasourceConfig, logger *zap.Logger) (*QueryExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, _, err := newPool(ctx, ds)
	if err != nil {
		return nil, err
	}
	return &QueryExecutor{
		pool:   pool,
		logger: logger.Named("postgres"),
	}, nil
}

// Query runs a read statement with bounded results.
// The statement is always wrapped in a LIMIT subquery; see
// datasource.QueryExecutor for the limit contract.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	effectiveLimit := datasource.EffectiveLimit(limit)
	queryToRun := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, effectiveLimit)

	e.logger.Debug("executing read",
		zap.String("query", logging.TruncateQuery(sqlQuery)),
		zap.Int("limit", effectiveLimit))

	rows, err := e.pool.Query(ctx, queryToRun)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: read row values: %v", apperrors.ErrExecutionFailure, err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
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
// RETURNING output is discarded; the statement still executes.
func (e *QueryExecutor) Execute(ctx context.Context, sqlStatement string) (*datasource.ExecResult, error) {
	e.logger.Debug("executing statement",
		zap.String("query", logging.TruncateQuery(sqlStatement)))

	tag, err := e.pool.Exec(ctx, sqlStatement)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
	}

	return &datasource.ExecResult{
		RowsAffected: tag.RowsAffected(),
	}, nil
}

// QuoteIdentifier safely quotes a SQL identifier to prevent SQL injection.
// Uses PostgreSQL's standard double-quote quoting.
func (e *QueryExecutor) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Close releases the pool.
func (e *QueryExecutor) Close() error {
	if e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
