//go:build mssql || all_adapters

package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// SchemaDescriber lists SQL Server tables and columns for translation context.
type SchemaDescriber struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSchemaDescriber creates a SQL Server schema describer with its own connection.
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
		logger: logger.Named("mssql-schema"),
	}, nil
}

// Tables returns all user tables, excluding system objects.
func (d *SchemaDescriber) Tables(ctx context.Context) ([]datasource.Table, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    SCHEMA_NAME(t.schema_id) AS table_schema,
	    t.name AS table_name
	FROM sys.tables t
	WHERE t.is_ms_shipped = 0
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
// The table may be qualified ("schema.table" or "[schema].[table]"); bare
// names default to dbo.
func (d *SchemaDescriber) Columns(ctx context.Context, table string) ([]datasource.Column, error) {
	schemaName, tableName := parseSchemaTable(table)

	query := `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END AS is_nullable,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`

	rows, err := d.db.QueryContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	)
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
		col.DataType = mapSQLServerType(col.DataType)

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	return columns, nil
}

// ForeignKeys returns every declared foreign key between user tables.
func (d *SchemaDescriber) ForeignKeys(ctx context.Context) ([]datasource.ForeignKey, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    tp.name AS table_name,
	    cp.name AS column_name,
	    tr.name AS referenced_table,
	    cr.name AS referenced_column
	FROM sys.foreign_key_columns fkc
	INNER JOIN sys.tables tp ON fkc.parent_object_id = tp.object_id
	INNER JOIN sys.columns cp ON fkc.parent_object_id = cp.object_id AND fkc.parent_column_id = cp.column_id
	INNER JOIN sys.tables tr ON fkc.referenced_object_id = tr.object_id
	INNER JOIN sys.columns cr ON fkc.referenced_object_id = cr.object_id AND fkc.referenced_column_id = cr.column_id
	WHERE tp.is_ms_shipped = 0
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
