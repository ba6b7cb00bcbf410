//go:build mysql || all_adapters

package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
)

// newMockExecutor wires a QueryExecutor to a sqlmock handle so dialect
// behavior can be tested without a MySQL instance.
func newMockExecutor(t *testing.T) (*QueryExecutor, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &QueryExecutor{db: db, logger: zap.NewNop()}, mock
}

func TestQuery_WrapsWithDefaultLimit(t *testing.T) {
	executor, mock := newMockExecutor(t)

	wrapped := regexp.QuoteMeta("SELECT * FROM (SELECT id, name FROM members) AS _limited LIMIT 1000")
	mock.ExpectQuery(wrapped).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "Ada").
			AddRow(int64(2), "Grace"))

	result, err := executor.Query(context.Background(), "SELECT id, name FROM members", 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Ada", result.Rows[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_RequestedAndClampedLimits(t *testing.T) {
	executor, mock := newMockExecutor(t)

	mock.ExpectQuery(regexp.QuoteMeta("AS _limited LIMIT 5")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("AS _limited LIMIT 1000")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := executor.Query(context.Background(), "SELECT id FROM members", 5)
	require.NoError(t, err)

	// Above the cap the limit is clamped back down.
	_, err = executor.Query(context.Background(), "SELECT id FROM members", 99999)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_TextProtocolValuesNormalized(t *testing.T) {
	executor, mock := newMockExecutor(t)

	// The text protocol hands every column back as []byte.
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("name").OfType("VARCHAR", ""),
		sqlmock.NewColumn("fee").OfType("DECIMAL", ""),
		sqlmock.NewColumn("avatar").OfType("BLOB", []byte{}),
	).AddRow([]byte("7"), []byte("Ada"), []byte("2.50"), []byte{0xde, 0xad})

	mock.ExpectQuery("AS _limited LIMIT").WillReturnRows(rows)

	result, err := executor.Query(context.Background(), "SELECT id, name, fee, avatar FROM members", 10)

	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	row := result.Rows[0]
	assert.Equal(t, int64(7), row["id"])
	assert.Equal(t, "Ada", row["name"])
	assert.Equal(t, 2.50, row["fee"])
	assert.Equal(t, []byte{0xde, 0xad}, row["avatar"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_EmptyResultKeepsColumns(t *testing.T) {
	executor, mock := newMockExecutor(t)

	mock.ExpectQuery("AS _limited LIMIT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	result, err := executor.Query(context.Background(), "SELECT id, name FROM members WHERE 1 = 0", 10)

	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, result.Columns)
	assert.Empty(t, result.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_EngineErrorPreserved(t *testing.T) {
	executor, mock := newMockExecutor(t)

	mock.ExpectQuery("AS _limited LIMIT").
		WillReturnError(errors.New("Error 1146: Table 'library.missing' doesn't exist"))

	_, err := executor.Query(context.Background(), "SELECT * FROM missing", 10)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrExecutionFailure))
	assert.Contains(t, err.Error(), "Error 1146", "engine message should pass through")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_ReportsRowsAffected(t *testing.T) {
	executor, mock := newMockExecutor(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE members SET active = 1")).
		WillReturnResult(sqlmock.NewResult(0, 4))

	result, err := executor.Execute(context.Background(), "UPDATE members SET active = 1")

	require.NoError(t, err)
	assert.Equal(t, int64(4), result.RowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_EngineErrorPreserved(t *testing.T) {
	executor, mock := newMockExecutor(t)

	mock.ExpectExec("DROP TABLE members").
		WillReturnError(errors.New("Error 1217: Cannot delete or update a parent row"))

	_, err := executor.Execute(context.Background(), "DROP TABLE members")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrExecutionFailure))
	assert.Contains(t, err.Error(), "Error 1217")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteIdentifier_Backticks(t *testing.T) {
	executor, _ := newMockExecutor(t)

	assert.Equal(t, "`members`", executor.QuoteIdentifier("members"))
	assert.Equal(t, "`weird``name`", executor.QuoteIdentifier("weird`name"))
}
