// Package engine assembles the query gate into one facade: configuration,
// logging, the dataset store, profiling and relationship services, execution
// adapters, and the natural-language translator. Callers embed the Engine
// behind whatever transport they run; every statement, translated or not,
// passes the same classify-then-authorize gate before an adapter sees it.
package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/audit"
	"github.com/datagate-ai/datagate-engine/pkg/config"
	"github.com/datagate-ai/datagate-engine/pkg/llm"
	"github.com/datagate-ai/datagate-engine/pkg/models"
	"github.com/datagate-ai/datagate-engine/pkg/policy"
	"github.com/datagate-ai/datagate-engine/pkg/prompts"
	"github.com/datagate-ai/datagate-engine/pkg/services"
	"github.com/datagate-ai/datagate-engine/pkg/sql"
	"github.com/datagate-ai/datagate-engine/pkg/tabular"
)

// memtableEngine is the always-compiled engine that queries uploaded datasets.
const memtableEngine = "memtable"

// contextSampleRows is how many example rows each dataset contributes to the
// translator's schema context.
const contextSampleRows = 5

// ExecutionMode selects the execution target for an admitted statement.
type ExecutionMode string

const (
	// ModeRelational runs the statement against the configured relational
	// engine.
	ModeRelational ExecutionMode = "relational"

	// ModeUnifiedModel runs the statement against the unified model built
	// from uploaded datasets.
	ModeUnifiedModel ExecutionMode = "unified-model"
)

// Engine is the assembled product core. It is safe for concurrent use.
type Engine struct {
	cfg        *config.Config
	logger     *zap.Logger
	policy     *policy.Policy
	auditor    *audit.SecurityAuditor
	enforcer   *policy.Enforcer
	factory    datasource.Factory
	store      *tabular.Store
	profiler   services.ColumnProfiler
	stats      services.StatisticsService
	translator llm.Translator
	conns      *connCache
}

// New assembles an Engine from configuration. The logger is shared by every
// component; pass nil to run silently.
func New(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pol := policy.Default()
	if cfg.Policy.Path != "" {
		loaded, err := policy.LoadFile(cfg.Policy.Path)
		if err != nil {
			return nil, fmt.Errorf("load role policy: %w", err)
		}
		pol = loaded
	}

	auditor := audit.NewSecurityAuditor(logger)
	enforcer := policy.NewEnforcer(pol, auditor, logger)

	builder := services.NewRelationshipBuilder(cfg.Relationships, cfg.Profiling, logger)
	store := tabular.NewStore(builder, logger)
	stats := services.NewStatisticsService(cfg.Profiling, logger)
	store.AddInvalidator(stats)

	translator, err := llm.NewTranslator(llm.Config{
		Provider:  cfg.LLM.Provider,
		Endpoint:  cfg.LLM.Endpoint,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create translator: %w", err)
	}

	factory := datasource.NewFactory(logger)

	return &Engine{
		cfg:        cfg,
		logger:     logger.Named("engine"),
		policy:     pol,
		auditor:    auditor,
		enforcer:   enforcer,
		factory:    factory,
		store:      store,
		profiler:   services.NewColumnProfiler(logger),
		stats:      stats,
		translator: translator,
		conns:      newConnCache(factory, cfg.Datasource, logger),
	}, nil
}

// Close releases held datasource connections.
func (e *Engine) Close() error {
	return e.conns.Close()
}

// ValidateAndClassify runs the gate without executing: the statement is
// classified and checked against the caller's role, and the decision is
// audited exactly as execution would audit it. The returned ClassifiedQuery
// carries the normalized statement and inferred kind even when the decision
// is a rejection.
func (e *Engine) ValidateAndClassify(ctx context.Context, identity models.Identity, rawQuery string) (sql.ClassifiedQuery, error) {
	return e.enforcer.AuthorizeQuery(ctx, identity.Role, rawQuery)
}

// Execute runs one statement end to end: classify, authorize (audited),
// route to the engine the mode selects, and normalize the result. Reads are
// row-capped; statements that are not reads report rows_affected as a
// single-row result. Rejections are terminal, nothing reaches an engine.
func (e *Engine) Execute(ctx context.Context, identity models.Identity, rawQuery string, mode ExecutionMode) (*datasource.QueryResult, error) {
	classified, err := e.enforcer.AuthorizeQuery(ctx, identity.Role, rawQuery)
	if err != nil {
		return nil, err
	}

	if timeout := e.queryTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch mode {
	case ModeRelational:
		exec, err := e.conns.Executor(ctx)
		if err != nil {
			return nil, err
		}
		return e.runOn(ctx, exec, e.cfg.Datasource.Engine, identity, classified)

	case ModeUnifiedModel:
		exec, err := e.factory.NewModelExecutor(memtableEngine, e.store.Snapshot())
		if err != nil {
			return nil, err
		}
		defer exec.Close()
		return e.runOn(ctx, exec, memtableEngine, identity, classified)

	default:
		return nil, fmt.Errorf("unsupported execution mode %q", mode)
	}
}

// runOn routes an admitted statement to the right executor method. Reads go
// through Query and its row cap; everything else goes through Execute and is
// reported as a rows_affected result so callers always get one shape back.
func (e *Engine) runOn(ctx context.Context, exec datasource.QueryExecutor, engineName string, identity models.Identity, classified sql.ClassifiedQuery) (*datasource.QueryResult, error) {
	if classified.Kind == sql.KindRead {
		result, err := exec.Query(ctx, classified.Query, e.cfg.Execution.MaxRows)
		if err != nil {
			return nil, err
		}
		e.auditor.LogQueryExecuted(ctx, identity.Role, engineName, classified.Query, len(result.Rows))
		return result, nil
	}

	execResult, err := exec.Execute(ctx, classified.Query)
	if err != nil {
		return nil, err
	}
	e.auditor.LogQueryExecuted(ctx, identity.Role, engineName, classified.Query, int(execResult.RowsAffected))
	return &datasource.QueryResult{
		Columns: []string{"rows_affected"},
		Rows:    []map[string]any{{"rows_affected": execResult.RowsAffected}},
	}, nil
}

// UploadCSV ingests one uploaded file: parse, profile, store, rebuild. The
// returned dataset carries the inferred column types; the rebuilt model is
// available through BuildUnifiedModel.
func (e *Engine) UploadCSV(ctx context.Context, filename string, r io.Reader) (*models.Dataset, error) {
	table, err := tabular.ParseCSV(filename, r, e.cfg.Uploads.MaxBytes, e.cfg.Profiling.SampleLimit)
	if err != nil {
		return nil, err
	}

	ds := &models.Dataset{
		ID:         uuid.New(),
		Name:       table.Name,
		Columns:    e.profiler.ProfileColumns(table.Columns, table.Rows),
		RowCount:   table.RowCount,
		UploadedAt: time.Now(),
		Rows:       table.Rows,
	}

	model := e.store.Put(ds)
	e.logger.Info("upload ingested",
		zap.String("dataset", ds.Name),
		zap.Int64("rows", ds.RowCount),
		zap.Int("datasets", len(model.Datasets)),
		zap.Int("edges", len(model.Edges)))
	return ds, nil
}

// RemoveDataset drops an uploaded dataset, rebuilding the model, and reports
// whether it existed.
func (e *Engine) RemoveDataset(name string) bool {
	return e.store.Remove(name)
}

// ClearDatasets drops every uploaded dataset.
func (e *Engine) ClearDatasets() {
	e.store.Clear()
}

// BuildUnifiedModel returns the current complete model over the uploaded
// datasets. With nothing uploaded the model is empty, never nil; the store
// rebuilds it on every dataset change, so this is always current.
func (e *Engine) BuildUnifiedModel(ctx context.Context) *models.UnifiedModel {
	return e.store.Snapshot()
}

// Profile returns the statistical profile of one column of an uploaded
// dataset. Profiles are cached until the dataset is replaced.
func (e *Engine) Profile(ctx context.Context, dataset, column string) (*models.StatisticalProfile, error) {
	ds, ok := e.store.Get(dataset)
	if !ok {
		return nil, fmt.Errorf("%w: no dataset %q", apperrors.ErrProfilingUnavailable, dataset)
	}
	return e.stats.Profile(ds, column)
}

// Translate converts a natural-language question into a candidate SQL
// statement. The schema context comes from the configured engine: the live
// relational schema, or the current unified model for uploaded datasets.
// Whether the prompt permits mutating statements follows the caller's role.
// The returned query is untrusted; it goes through ValidateAndClassify or
// Execute like any other statement.
func (e *Engine) Translate(ctx context.Context, identity models.Identity, question, language string) (llm.TranslationResult, error) {
	if !models.IsValidRole(identity.Role) {
		return llm.TranslationResult{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, identity.Role)
	}

	schemaContext, err := e.schemaContext(ctx)
	if err != nil {
		return llm.TranslationResult{}, err
	}

	result, err := e.translator.Translate(ctx, llm.TranslationRequest{
		Question:       question,
		SchemaContext:  schemaContext,
		Language:       language,
		AllowMutations: e.policy.Permits(identity.Role, sql.KindDataMutation),
	})
	if err != nil {
		return llm.TranslationResult{}, err
	}

	e.logger.Info("question translated",
		zap.String("role", identity.Role),
		zap.Int("question_len", len(question)),
		zap.Int("sql_len", len(result.Query)))
	return result, nil
}

// Explain asks the translator for a short explanation of an executed query
// and a sample of its results.
func (e *Engine) Explain(ctx context.Context, sqlQuery string, result *datasource.QueryResult, language string) (string, error) {
	if result == nil {
		result = &datasource.QueryResult{}
	}
	return e.translator.ExplainResults(ctx, llm.ExplanationRequest{
		Query:    sqlQuery,
		Columns:  result.Columns,
		Rows:     result.Rows,
		Language: language,
	})
}

// CreateTable renders CREATE TABLE DDL and runs it against the configured
// relational engine, gated by the caller's role.
func (e *Engine) CreateTable(ctx context.Context, identity models.Identity, table string, columns []services.ColumnDefinition) error {
	mgr, err := e.schemaManager(ctx)
	if err != nil {
		return err
	}
	return mgr.CreateTable(ctx, identity, table, columns)
}

// DropTable drops a table on the configured relational engine, gated by the
// caller's role.
func (e *Engine) DropTable(ctx context.Context, identity models.Identity, table string) error {
	mgr, err := e.schemaManager(ctx)
	if err != nil {
		return err
	}
	return mgr.DropTable(ctx, identity, table)
}

// ListTables lists the user tables of the configured relational engine.
func (e *Engine) ListTables(ctx context.Context, identity models.Identity) ([]datasource.Table, error) {
	mgr, err := e.schemaManager(ctx)
	if err != nil {
		return nil, err
	}
	return mgr.ListTables(ctx, identity)
}

// TestConnection verifies the configured datasource is reachable with valid
// credentials. The memtable engine needs no connection and always passes.
func (e *Engine) TestConnection(ctx context.Context) error {
	if e.cfg.Datasource.Engine == memtableEngine {
		return nil
	}
	tester, err := e.factory.NewConnectionTester(ctx, e.cfg.Datasource.Engine, e.cfg.Datasource)
	if err != nil {
		return err
	}
	defer tester.Close()
	return tester.TestConnection(ctx)
}

// Engines lists the execution engines compiled into this build.
func (e *Engine) Engines() []datasource.EngineInfo {
	return e.factory.ListEngines()
}

// schemaManager assembles the schema service over the live connections.
// Built per call because the connections are TTL-cached and may have been
// reopened since the last one.
func (e *Engine) schemaManager(ctx context.Context) (services.SchemaManager, error) {
	exec, err := e.conns.Executor(ctx)
	if err != nil {
		return nil, err
	}
	desc, err := e.conns.Describer(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewSchemaManager(e.enforcer, exec, desc, e.logger), nil
}

func (e *Engine) queryTimeout() time.Duration {
	return time.Duration(e.cfg.Execution.QueryTimeoutSeconds) * time.Second
}

// schemaContext renders the schema the translator is shown.
func (e *Engine) schemaContext(ctx context.Context) (string, error) {
	if e.cfg.Datasource.Engine == memtableEngine {
		return modelSchemaContext(e.store.Snapshot()), nil
	}
	return e.relationalSchemaContext(ctx)
}

// relationalSchemaContext describes the live relational schema: every user
// table with its columns, plus declared foreign keys as relationships.
func (e *Engine) relationalSchemaContext(ctx context.Context) (string, error) {
	desc, err := e.conns.Describer(ctx)
	if err != nil {
		return "", err
	}

	tables, err := desc.Tables(ctx)
	if err != nil {
		return "", fmt.Errorf("describe schema: %w", err)
	}

	contexts := make([]prompts.TableContext, 0, len(tables))
	for _, t := range tables {
		qualified := t.Name
		if t.Schema != "" {
			qualified = t.Schema + "." + t.Name
		}
		columns, err := desc.Columns(ctx, qualified)
		if err != nil {
			return "", fmt.Errorf("describe table %s: %w", qualified, err)
		}
		names := make([]string, len(columns))
		for i, c := range columns {
			names[i] = c.Name
		}
		contexts = append(contexts, prompts.TableContext{Name: t.Name, Columns: names})
	}

	fks, err := desc.ForeignKeys(ctx)
	if err != nil {
		return "", fmt.Errorf("describe foreign keys: %w", err)
	}
	rels := make([]prompts.RelationshipContext, 0, len(fks))
	for _, fk := range fks {
		rels = append(rels, prompts.RelationshipContext{
			SourceTable:  fk.Table,
			SourceColumn: fk.Column,
			TargetTable:  fk.ReferencedTable,
			TargetColumn: fk.ReferencedColumn,
		})
	}

	return prompts.BuildSchemaContext(e.cfg.Datasource.Database, contexts, rels), nil
}

// modelSchemaContext renders the unified model the way the translator expects
// a database schema: dataset columns with sampled rows, and inferred edges as
// relationships.
func modelSchemaContext(model *models.UnifiedModel) string {
	tables := make([]prompts.TableContext, 0, len(model.Datasets))
	for _, ds := range model.Datasets {
		tables = append(tables, prompts.TableContext{
			Name:       ds.Name,
			Columns:    ds.ColumnNames(),
			SampleRows: ds.SampleRows(contextSampleRows),
		})
	}

	rels := make([]prompts.RelationshipContext, 0, len(model.Edges))
	for _, edge := range model.Edges {
		rels = append(rels, prompts.RelationshipContext{
			SourceTable:  edge.SourceDataset,
			SourceColumn: edge.SourceColumn,
			TargetTable:  edge.TargetDataset,
			TargetColumn: edge.TargetColumn,
		})
	}

	return prompts.BuildSchemaContext("", tables, rels)
}
