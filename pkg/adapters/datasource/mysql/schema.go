//go:build mysql || all_adapters

package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// SchemaDescriber lists MySQL tables and columns for translation context.
type SchemaDescriber struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSchemaDescriber creates a MySQL schema describer with its own connection.
func NewSchemaDescriber(ctx context.Context, ds config.DatasourceConfig, logger *zap.Logger) (*SchemaDescriber, error) {
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

	return &SchemaDescriber{
		db:     db,
		logger: logger.Named("mysql-schema"),
	}, nil
}

// Tables returns all base tables in the connected database.
func (d *SchemaDescriber) Tables(ctx context.Context) ([]datasource.Table, error) {
	query := `
	SELECT table_schema, table_name
	FROM information_schema.tables
	WHERE table_type = 'BASE TABLE'
	  AND table_schema = DATABASE()
	ORDER BY table_schema, table_name
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.Table
	for rows.Next() {
		var t datasource.Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	d.logger.Debug("described tables", zap.Int("count", len(tables)))
	return tables, nil
}

// Columns returns the columns of a table in ordinal order.
// The table may be qualified ("db.table"); bare names resolve against the
// connected database.
func (d *SchemaDescriber) Columns(ctx context.Context, table string) ([]datasource.Column, error) {
	schemaName, tableName := splitQualified(table)

	query := `
	SELECT
	    column_name,
	    data_type,
	    IF(is_nullable = 'YES', 1, 0) AS is_nullable,
	    IF(column_key = 'PRI', 1, 0) AS is_primary
	FROM information_schema.columns
	WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
	  AND table_name = ?
	ORDER BY ordinal_position
	`

	rows, err := d.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var col datasource.Column
		var isNullable, isPrimary int

		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &isPrimary); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		col.IsNullable = isNullable == 1
		col.IsPrimary = isPrimary == 1
		col.DataType = mapMySQLType(col.DataType)

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	return columns, nil
}

// ForeignKeys returns every declared foreign key in the connected database.
func (d *SchemaDescriber) ForeignKeys(ctx context.Context) ([]datasource.ForeignKey, error) {
	query := `
	SELECT
	    table_name,
	    column_name,
	    referenced_table_name,
	    referenced_column_name
	FROM information_schema.key_column_usage
	WHERE referenced_table_name IS NOT NULL
	  AND table_schema = DATABASE()
	ORDER BY table_name, column_name
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var keys []datasource.ForeignKey
	for rows.Next() {
		var fk datasource.ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		keys = append(keys, fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}

	d.logger.Debug("described foreign keys", zap.Int("count", len(keys)))
	return keys, nil
}

// Close releases the database connection.
func (d *SchemaDescriber) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Ensure SchemaDescriber implements datasource.SchemaDescriber at compile time.
var _ datasource.SchemaDescriber = (*SchemaDescriber)(nil)
