package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/config"
	"github.com/datagate-ai/datagate-engine/pkg/llm"
	"github.com/datagate-ai/datagate-engine/pkg/models"
	"github.com/datagate-ai/datagate-engine/pkg/sql"
	"github.com/datagate-ai/datagate-engine/pkg/tabular"
)

// Upload fixtures shaped so the builder links books.author_id to authors.id
// and nothing else: full value overlap plus the shared "id" token clears the
// confidence threshold, every other column pair stays below it.
const (
	booksCSV   = "id,title,author_id\nb1,Dune,a1\nb2,Dune,a2\nb3,Emma,a3\n"
	authorsCSV = "id,name\na1,Frank Herbert\na2,Jane Austen\na3,Ursula Le Guin\n"
	membersCSV = "code,city\nm1,Paris\nm2,Oslo\nm3,Lima\n"
)

func testConfig() *config.Config {
	return &config.Config{
		Datasource: config.DatasourceConfig{Engine: "memtable"},
		Profiling:  config.ProfilingConfig{SampleLimit: 5000, DistinctCap: 10000, TopValues: 5},
		Relationships: config.RelationshipConfig{
			ConfidenceThreshold: 0.4,
			OverlapWeight:       0.7,
			NameWeight:          0.3,
		},
		Uploads:   config.UploadConfig{MaxBytes: 1 << 20},
		Execution: config.ExecutionConfig{MaxRows: 1000, QueryTimeoutSeconds: 5},
		LLM:       config.LLMConfig{Provider: "mock"},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return newEngineWith(t, testConfig())
}

func newEngineWith(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	eng, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func uploadLibrary(t *testing.T, eng *Engine) {
	t.Helper()
	_, err := eng.UploadCSV(context.Background(), "Books.csv", strings.NewReader(booksCSV))
	require.NoError(t, err)
	_, err = eng.UploadCSV(context.Background(), "authors.csv", strings.NewReader(authorsCSV))
	require.NoError(t, err)
}

func asRole(role string) models.Identity {
	return models.Identity{UserID: uuid.New(), Role: role}
}

func TestUploadCSV_ProfilesAndBuildsModel(t *testing.T) {
	eng := newTestEngine(t)

	ds, err := eng.UploadCSV(context.Background(), "Books.csv", strings.NewReader(booksCSV))
	require.NoError(t, err)
	assert.Equal(t, "books", ds.Name, "filename folds to a lowercase dataset name")
	assert.Equal(t, int64(3), ds.RowCount)

	byName := make(map[string]models.Column, len(ds.Columns))
	for _, c := range ds.Columns {
		byName[c.Name] = c
	}
	assert.Equal(t, models.SemanticIdentifier, byName["id"].SemanticType)
	assert.Equal(t, models.SemanticCategorical, byName["title"].SemanticType)
	assert.Equal(t, int64(2), byName["title"].UniqueCount)
	assert.Equal(t, models.SemanticIdentifier, byName["author_id"].SemanticType)

	_, err = eng.UploadCSV(context.Background(), "authors.csv", strings.NewReader(authorsCSV))
	require.NoError(t, err)

	model := eng.BuildUnifiedModel(context.Background())
	require.Len(t, model.Datasets, 2)
	require.Len(t, model.Edges, 1)
	edge := model.Edges[0]
	assert.Equal(t, "books", edge.SourceDataset)
	assert.Equal(t, "author_id", edge.SourceColumn)
	assert.Equal(t, "authors", edge.TargetDataset)
	assert.Equal(t, "id", edge.TargetColumn)
	assert.InDelta(t, 0.85, edge.Confidence, 1e-9)
}

func TestUploadCSV_RejectsNonCSV(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.UploadCSV(context.Background(), "books.xlsx", strings.NewReader("id\n1\n"))

	assert.ErrorIs(t, err, tabular.ErrUnsupportedFileType)
}

func TestBuildUnifiedModel_EmptyBeforeUploads(t *testing.T) {
	eng := newTestEngine(t)

	model := eng.BuildUnifiedModel(context.Background())

	require.NotNil(t, model)
	assert.Empty(t, model.Datasets)
	assert.Empty(t, model.Edges)
}

func TestRemoveAndClearDatasets(t *testing.T) {
	eng := newTestEngine(t)
	uploadLibrary(t, eng)

	assert.True(t, eng.RemoveDataset("books"))
	assert.False(t, eng.RemoveDataset("books"), "second removal finds nothing")

	model := eng.BuildUnifiedModel(context.Background())
	require.Len(t, model.Datasets, 1)
	assert.Empty(t, model.Edges, "removing one side drops the edge")

	eng.ClearDatasets()
	assert.Empty(t, eng.BuildUnifiedModel(context.Background()).Datasets)
}

func TestValidateAndClassify_GateDecisions(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name    string
		role    string
		query   string
		wantErr error
		kind    sql.StatementKind
	}{
		{"viewer reads", models.RoleViewer, "SELECT * FROM books", nil, sql.KindRead},
		{"viewer cannot delete", models.RoleViewer, "DELETE FROM books", apperrors.ErrPermissionDenied, sql.KindDataDeletion},
		{"editor mutates", models.RoleEditor, "INSERT INTO books VALUES ('b9', 'Dune', 'a1')", nil, sql.KindDataMutation},
		{"chained statements", models.RoleAdmin, "SELECT id FROM books; DROP TABLE books", apperrors.ErrUnsafeQuery, ""},
		{"unknown role", "root", "SELECT 1", apperrors.ErrInvalidRole, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified, err := eng.ValidateAndClassify(context.Background(), asRole(tt.role), tt.query)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.kind != "" {
				assert.Equal(t, tt.kind, classified.Kind)
			}
		})
	}
}

func TestExecute_ReadOverUnifiedModel(t *testing.T) {
	eng := newTestEngine(t)
	uploadLibrary(t, eng)

	result, err := eng.Execute(context.Background(), asRole(models.RoleViewer),
		"SELECT title, name FROM books JOIN authors ORDER BY name", ModeUnifiedModel)

	require.NoError(t, err)
	assert.Equal(t, []string{"title", "name"}, result.Columns)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, "Frank Herbert", result.Rows[0]["name"])
	assert.Equal(t, "Dune", result.Rows[0]["title"])
	assert.Equal(t, "Ursula Le Guin", result.Rows[2]["name"])
	assert.Equal(t, "Emma", result.Rows[2]["title"])
}

func TestExecute_WhereLiteralPassesGate(t *testing.T) {
	eng := newTestEngine(t)
	uploadLibrary(t, eng)

	result, err := eng.Execute(context.Background(), asRole(models.RoleViewer),
		"SELECT title FROM books WHERE id = 'b1'", ModeUnifiedModel)

	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Dune", result.Rows[0]["title"])
}

func TestExecute_RowCap(t *testing.T) {
	cfg := testConfig()
	cfg.Execution.MaxRows = 2
	eng := newEngineWith(t, cfg)
	uploadLibrary(t, eng)

	result, err := eng.Execute(context.Background(), asRole(models.RoleViewer),
		"SELECT id FROM books", ModeUnifiedModel)

	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
}

func TestExecute_DeniedForViewer(t *testing.T) {
	eng := newTestEngine(t)
	uploadLibrary(t, eng)

	result, err := eng.Execute(context.Background(), asRole(models.RoleViewer),
		"DELETE FROM books", ModeUnifiedModel)

	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Nil(t, result)
}

func TestExecute_ChainedStatementsRejected(t *testing.T) {
	eng := newTestEngine(t)
	uploadLibrary(t, eng)

	_, err := eng.Execute(context.Background(), asRole(models.RoleAdmin),
		"SELECT id FROM books; DROP TABLE books", ModeUnifiedModel)

	assert.ErrorIs(t, err, apperrors.ErrUnsafeQuery)
}

func TestExecute_UploadsAreReadOnly(t *testing.T) {
	eng := newTestEngine(t)
	uploadLibrary(t, eng)

	// The gate admits an admin delete; the dataset engine itself refuses.
	_, err := eng.Execute(context.Background(), asRole(models.RoleAdmin),
		"DELETE FROM books", ModeUnifiedModel)

	assert.ErrorIs(t, err, apperrors.ErrExecutionFailure)
	assert.Contains(t, err.Error(), "read-only")
}

func TestExecute_JoinWithoutEdge(t *testing.T) {
	eng := newTestEngine(t)
	uploadLibrary(t, eng)
	_, err := eng.UploadCSV(context.Background(), "members.csv", strings.NewReader(membersCSV))
	require.NoError(t, err)

	_, err = eng.Execute(context.Background(), asRole(models.RoleViewer),
		"SELECT title, city FROM books JOIN members", ModeUnifiedModel)

	assert.ErrorIs(t, err, apperrors.ErrNoJoinPath)
}

func TestExecute_UnsupportedMode(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Execute(context.Background(), asRole(models.RoleAdmin),
		"SELECT 1", ExecutionMode("sideways"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported execution mode")
}

func TestExecute_RelationalNeedsConfiguredEngine(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Execute(context.Background(), asRole(models.RoleViewer),
		"SELECT 1", ModeRelational)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "executes uploaded datasets")
}

func TestTranslate_BuildsModelSchemaContext(t *testing.T) {
	eng := newTestEngine(t)
	uploadLibrary(t, eng)
	mock := llm.NewMockTranslator()
	eng.translator = mock

	result, err := eng.Translate(context.Background(), asRole(models.RoleViewer),
		"which author wrote each book?", "English")

	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", result.Query)

	req := mock.LastTranslateRequest
	assert.Equal(t, "which author wrote each book?", req.Question)
	assert.Equal(t, "English", req.Language)
	assert.False(t, req.AllowMutations, "viewers get read-only prompts")
	assert.Contains(t, req.SchemaContext, "1. books(id, title, author_id)")
	assert.Contains(t, req.SchemaContext, "2. authors(id, name)")
	assert.Contains(t, req.SchemaContext, "(b1, Dune, a1)")
	assert.Contains(t, req.SchemaContext, "- books.author_id -> authors.id")
}

func TestTranslate_MutationsFollowRole(t *testing.T) {
	eng := newTestEngine(t)
	uploadLibrary(t, eng)
	mock := llm.NewMockTranslator()
	eng.translator = mock

	tests := []struct {
		role           string
		allowMutations bool
	}{
		{models.RoleViewer, false},
		{models.RoleEditor, true},
		{models.RoleAdmin, true},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			_, err := eng.Translate(context.Background(), asRole(tt.role), "add a book", "")

			require.NoError(t, err)
			assert.Equal(t, tt.allowMutations, mock.LastTranslateRequest.AllowMutations)
		})
	}
}

func TestTranslate_RejectsUnknownRole(t *testing.T) {
	eng := newTestEngine(t)
	mock := llm.NewMockTranslator()
	eng.translator = mock

	_, err := eng.Translate(context.Background(), asRole("root"), "drop everything", "")

	assert.ErrorIs(t, err, apperrors.ErrInvalidRole)
	assert.Zero(t, mock.TranslateCalls, "no provider call for an unknown role")
}

func TestTranslate_PropagatesTranslatorError(t *testing.T) {
	eng := newTestEngine(t)
	mock := llm.NewMockTranslator()
	mock.TranslateFunc = func(ctx context.Context, req llm.TranslationRequest) (llm.TranslationResult, error) {
		return llm.TranslationResult{}, errors.New("provider unavailable")
	}
	eng.translator = mock

	_, err := eng.Translate(context.Background(), asRole(models.RoleViewer), "list books", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unavailable")
}

func TestExplain_DelegatesToTranslator(t *testing.T) {
	eng := newTestEngine(t)
	mock := llm.NewMockTranslator()
	var captured llm.ExplanationRequest
	mock.ExplainResultsFunc = func(ctx context.Context, req llm.ExplanationRequest) (string, error) {
		captured = req
		return "One book matched.", nil
	}
	eng.translator = mock

	result := &datasource.QueryResult{
		Columns: []string{"title"},
		Rows:    []map[string]any{{"title": "Dune"}},
	}
	explanation, err := eng.Explain(context.Background(), "SELECT title FROM books", result, "Spanish")

	require.NoError(t, err)
	assert.Equal(t, "One book matched.", explanation)
	assert.Equal(t, "SELECT title FROM books", captured.Query)
	assert.Equal(t, []string{"title"}, captured.Columns)
	assert.Equal(t, "Spanish", captured.Language)
}

func TestExplain_NilResult(t *testing.T) {
	eng := newTestEngine(t)
	mock := llm.NewMockTranslator()
	eng.translator = mock

	explanation, err := eng.Explain(context.Background(), "SELECT 1", nil, "")

	require.NoError(t, err)
	assert.NotEmpty(t, explanation)
	assert.Equal(t, 1, mock.ExplainResultsCalls)
}

func TestProfile_NumericColumn(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.UploadCSV(context.Background(), "sales.csv",
		strings.NewReader("amount\n10\n20\n30\n40\n"))
	require.NoError(t, err)

	profile, err := eng.Profile(context.Background(), "sales", "amount")

	require.NoError(t, err)
	assert.Equal(t, "sales", profile.DatasetName)
	assert.Equal(t, "amount", profile.ColumnName)
	require.NotNil(t, profile.Numeric)
	assert.Equal(t, float64(10), profile.Numeric.Min)
	assert.Equal(t, float64(40), profile.Numeric.Max)
}

func TestProfile_UnknownDataset(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Profile(context.Background(), "ghosts", "id")

	assert.ErrorIs(t, err, apperrors.ErrProfilingUnavailable)
}

func TestSchemaOps_NeedRelationalEngine(t *testing.T) {
	eng := newTestEngine(t)
	admin := asRole(models.RoleAdmin)

	err := eng.CreateTable(context.Background(), admin, "books", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executes uploaded datasets")

	err = eng.DropTable(context.Background(), admin, "books")
	require.Error(t, err)

	_, err = eng.ListTables(context.Background(), admin)
	require.Error(t, err)
}

func TestConnection_MemtableNeedsNoConnection(t *testing.T) {
	eng := newTestEngine(t)

	assert.NoError(t, eng.TestConnection(context.Background()))
}

func TestEngines_IncludesMemtable(t *testing.T) {
	eng := newTestEngine(t)

	engines := eng.Engines()

	var types []string
	for _, info := range engines {
		types = append(types, info.Type)
	}
	assert.Contains(t, types, "memtable")
}

func TestNew_UnknownProviderFails(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Provider = "palm"

	_, err := New(cfg, zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create translator")
}
