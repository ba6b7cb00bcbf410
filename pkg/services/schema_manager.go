package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/models"
	"github.com/datagate-ai/datagate-engine/pkg/policy"
)

var (
	// identifierPattern is the only shape of name the schema manager will
	// place in a statement. Validation runs before rendering, so a bad name
	// never appears in DDL, not even in a refused statement.
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	// columnTypePattern accepts SQL type expressions such as INT,
	// VARCHAR(255), DECIMAL(10,2) and TIMESTAMP WITH TIME ZONE. No quotes,
	// no semicolons, nothing that could terminate the statement early.
	columnTypePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 ]*(\(\d+(,\s?\d+)?\))?$`)
)

// listTablesStatement is the statement authorized on behalf of a listing.
// The rows come from the describer's information_schema queries, but the
// operation is gated and audited as the read it is.
const listTablesStatement = "SHOW TABLES"

// ColumnDefinition describes one column of a table to be created.
type ColumnDefinition struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key"`
	NotNull    bool   `json:"not_null"`
	Unique     bool   `json:"unique"`
}

// SchemaManager is the product's table-management surface. It renders DDL
// itself, but every statement passes the same classify-then-authorize gate a
// translated query does, so the policy decides who may create or drop tables
// and the audit trail records each decision.
type SchemaManager interface {
	// CreateTable renders CREATE TABLE DDL for the given columns and runs it
	// if the caller's role permits schema-definition statements.
	CreateTable(ctx context.Context, identity models.Identity, table string, columns []ColumnDefinition) error

	// DropTable drops the table if the caller's role permits data-deletion
	// statements. Dropping a table that does not exist is not an error.
	DropTable(ctx context.Context, identity models.Identity, table string) error

	// ListTables returns the user tables visible to the engine's schema
	// describer, gated as a read.
	ListTables(ctx context.Context, identity models.Identity) ([]datasource.Table, error)
}

type schemaManager struct {
	enforcer  *policy.Enforcer
	executor  datasource.QueryExecutor
	describer datasource.SchemaDescriber
	logger    *zap.Logger
}

// NewSchemaManager creates a SchemaManager over one engine's executor and
// schema describer.
func NewSchemaManager(enforcer *policy.Enforcer, executor datasource.QueryExecutor, describer datasource.SchemaDescriber, logger *zap.Logger) SchemaManager {
	return &schemaManager{
		enforcer:  enforcer,
		executor:  executor,
		describer: describer,
		logger:    logger.Named("schema"),
	}
}

var _ SchemaManager = (*schemaManager)(nil)

func (m *schemaManager) CreateTable(ctx context.Context, identity models.Identity, table string, columns []ColumnDefinition) error {
	if err := validIdentifier(table); err != nil {
		return err
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: table %q needs at least one column", apperrors.ErrUnsafeQuery, table)
	}

	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		def, err := m.renderColumn(col)
		if err != nil {
			return err
		}
		defs = append(defs, def)
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", m.executor.QuoteIdentifier(table), strings.Join(defs, ", "))
	if err := m.run(ctx, identity, ddl); err != nil {
		return fmt.Errorf("create table %q: %w", table, err)
	}
	return nil
}

func (m *schemaManager) DropTable(ctx context.Context, identity models.Identity, table string) error {
	if err := validIdentifier(table); err != nil {
		return err
	}

	ddl := fmt.Sprintf("DROP TABLE IF EXISTS %s", m.executor.QuoteIdentifier(table))
	if err := m.run(ctx, identity, ddl); err != nil {
		return fmt.Errorf("drop table %q: %w", table, err)
	}
	return nil
}

func (m *schemaManager) ListTables(ctx context.Context, identity models.Identity) ([]datasource.Table, error) {
	if _, err := m.enforcer.AuthorizeQuery(ctx, identity.Role, listTablesStatement); err != nil {
		return nil, err
	}

	tables, err := m.describer.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	m.logger.Debug("tables listed", zap.Int("count", len(tables)))
	return tables, nil
}

// renderColumn renders one column definition, validating the name and type
// first. The identifier is quoted in the engine's dialect so names that
// collide with keywords still work.
func (m *schemaManager) renderColumn(col ColumnDefinition) (string, error) {
	if err := validIdentifier(col.Name); err != nil {
		return "", err
	}
	colType := strings.TrimSpace(col.Type)
	if !columnTypePattern.MatchString(colType) {
		return "", fmt.Errorf("%w: column %q has invalid type %q", apperrors.ErrUnsafeQuery, col.Name, col.Type)
	}

	def := m.executor.QuoteIdentifier(col.Name) + " " + colType
	if col.PrimaryKey {
		def += " PRIMARY KEY"
	}
	if col.NotNull {
		def += " NOT NULL"
	}
	if col.Unique {
		def += " UNIQUE"
	}
	return def, nil
}

// run sends rendered DDL through the gate and, if admitted, to the engine.
func (m *schemaManager) run(ctx context.Context, identity models.Identity, ddl string) error {
	classified, err := m.enforcer.AuthorizeQuery(ctx, identity.Role, ddl)
	if err != nil {
		return err
	}

	result, err := m.executor.Execute(ctx, classified.Query)
	if err != nil {
		return err
	}
	m.logger.Info("schema statement executed",
		zap.String("kind", string(classified.Kind)),
		zap.String("statement", classified.Query),
		zap.Int64("rows_affected", result.RowsAffected))
	return nil
}

func validIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid identifier %q", apperrors.ErrUnsafeQuery, name)
	}
	return nil
}
