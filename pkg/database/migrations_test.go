//go:build integration

package database_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/database"
	"github.com/datagate-ai/datagate-engine/pkg/testhelpers"
)

// TestRunMigrations_Idempotent applies migrations against an already-migrated
// database and expects a clean no-op.
func TestRunMigrations_Idempotent(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)

	sqlDB, err := sql.Open("pgx", engineDB.ConnStr)
	require.NoError(t, err)
	defer sqlDB.Close()

	err = database.RunMigrations(sqlDB, zap.NewNop())
	assert.NoError(t, err, "re-running migrations should be a no-op")
}

// TestRunMigrations_SchemaVersionRecorded checks golang-migrate's bookkeeping
// table reflects the embedded migration set.
func TestRunMigrations_SchemaVersionRecorded(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	var version int
	var dirty bool
	err := engineDB.DB.Pool.QueryRow(ctx,
		"SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.False(t, dirty)
}
