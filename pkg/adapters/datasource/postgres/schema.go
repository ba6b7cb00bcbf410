//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// SchemaDescriber lists PostgreSQL tables and columns for translation context.
type SchemaDescriber struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewSchemaDescriber creates a PostgreSQL schema describer with its own pool.
func NewSchemaDescriber(ctx context.Context, ds config.DatasourceConfig, logger *zap.Logger) (*SchemaDescriber, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, _, err := newPool(ctx, ds)
	if err != nil {
		return nil, err
	}
	return &SchemaDescriber{
		pool:   pool,
		logger: logger.Named("postgres-schema"),
	}, nil
}

// Tables returns all user tables, excluding system schemas.
func (d *SchemaDescriber) Tables(ctx context.Context) ([]datasource.Table, error) {
	const query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY table_schema, table_name
	`

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.Table
	for rows.Next() {
		var t datasource.Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	d.logger.Debug("described tables", zap.Int("count", len(tables)))
	return tables, nil
}

// Columns returns the columns of a table in ordinal order.
// The table may be qualified ("schema.table"); bare names default to public.
// Uses pg_index for primary key detection, which correctly identifies primary
// keys even when created as unique indexes (common with ORMs).
func (d *SchemaDescriber) Columns(ctx context.Context, table string) ([]datasource.Column, error) {
	schemaName, tableName := splitQualified(table)

	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			COALESCE(pk.is_pk, false) AS is_primary
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname AS column_name, true AS is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary = true
			  AND n.nspname = $1
			  AND t.relname = $2
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := d.pool.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var c datasource.Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// ForeignKeys returns every declared foreign key between user tables.
// Composite keys produce one entry per column pair.
func (d *SchemaDescriber) ForeignKeys(ctx context.Context) ([]datasource.ForeignKey, error) {
	const query = `
		SELECT
			tc.table_name,
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY tc.table_name, kcu.column_name
	`

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var keys []datasource.ForeignKey
	for rows.Next() {
		var fk datasource.ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		keys = append(keys, fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}

	d.logger.Debug("described foreign keys", zap.Int("count", len(keys)))
	return keys, nil
}

// Close releases the pool.
func (d *SchemaDescriber) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// splitQualified splits "schema.table" into its parts, defaulting the schema
// to public for bare table names.
func splitQualified(table string) (string, string) {
	if schema, name, ok := strings.Cut(table, "."); ok && schema != "" && name != "" {
		return schema, name
	}
	return "public", table
}

// Ensure SchemaDescriber implements datasource.SchemaDescriber at compile time.
var _ datasource.SchemaDescriber = (*SchemaDescriber)(nil)
