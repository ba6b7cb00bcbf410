// Package memtable executes a small SQL subset directly against the unified
// model's in-memory datasets. It is the execution engine for CSV mode: no
// external database is involved, joins follow the model's relationship edges,
// and the data is a read-only snapshot.
package memtable

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/logging"
	"github.com/datagate-ai/datagate-engine/pkg/models"
)

// QueryExecutor evaluates queries against one unified model snapshot.
type QueryExecutor struct {
	model  *models.UnifiedModel
	logger *zap.Logger
}

// NewQueryExecutor creates an executor over the given model snapshot. The
// model is read, never mutated; dataset changes produce a new model and a new
// executor.
func NewQueryExecutor(model *models.UnifiedModel, logger *zap.Logger) (*QueryExecutor, error) {
	if model == nil {
		return nil, fmt.Errorf("unified model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryExecutor{
		model:  model,
		logger: logger.Named("memtable"),
	}, nil
}

// Query parses and evaluates a read statement; see datasource.QueryExecutor
// for the limit contract. A JOIN between datasets with no relationship edge
// fails with ErrNoJoinPath; every other evaluation failure wraps
// ErrExecutionFailure the way a relational engine's error would.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
	}

	q, err := parseSelect(sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
	}

	table, err := e.bind(q)
	if err != nil {
		return nil, err
	}

	table, err = applyWhere(table, q.Where)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
	}

	if q.GroupBy != nil || hasAggregates(q) {
		table, err = aggregate(table, q)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
		}
		if err := applyOrder(table, q.OrderBy); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
		}
	} else {
		// Order before projecting so any source column can sort the result;
		// aliases only exist afterwards, so fall back to the projected table.
		ordered := false
		if q.OrderBy != nil {
			if err := applyOrder(table, q.OrderBy); err == nil {
				ordered = true
			}
		}
		table, err = project(table, q)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
		}
		if !ordered {
			if err := applyOrder(table, q.OrderBy); err != nil {
				return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
			}
		}
	}

	rows := table.rows
	if q.Limit >= 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	if maxRows := datasource.EffectiveLimit(limit); len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	e.logger.Debug("evaluated query",
		zap.String("query", logging.TruncateQuery(sqlQuery)),
		zap.Int("rows", len(rows)))

	result := &datasource.QueryResult{
		Columns: table.columns,
		Rows:    make([]map[string]any, 0, len(rows)),
	}
	for _, row := range rows {
		m := make(map[string]any, len(table.columns))
		for i, col := range table.columns {
			m[col] = row[i]
		}
		result.Rows = append(result.Rows, m)
	}
	return result, nil
}

// bind resolves the FROM (and JOIN) datasets into an evaluable table.
func (e *QueryExecutor) bind(q *selectQuery) (*boundTable, error) {
	left := e.model.Dataset(q.From)
	if left == nil {
		return nil, fmt.Errorf("%w: unknown table %q", apperrors.ErrExecutionFailure, q.From)
	}
	if q.Join == nil {
		return bindDataset(left), nil
	}

	right := e.model.Dataset(q.Join.Table)
	if right == nil {
		return nil, fmt.Errorf("%w: unknown table %q", apperrors.ErrExecutionFailure, q.Join.Table)
	}
	table, err := bindJoin(e.model, left, right, q.Join.Outer)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoJoinPath) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailure, err)
	}
	return table, nil
}

// Execute always fails: uploaded datasets are read-only snapshots.
func (e *QueryExecutor) Execute(_ context.Context, _ string) (*datasource.ExecResult, error) {
	return nil, fmt.Errorf("%w: memtable engine is read-only", apperrors.ErrExecutionFailure)
}

// QuoteIdentifier quotes an identifier with double quotes, which the query
// parser accepts for names that collide with keywords or contain dots.
func (e *QueryExecutor) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Close is a no-op; the executor holds no external resources.
func (e *QueryExecutor) Close() error {
	return nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
