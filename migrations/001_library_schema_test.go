//go:build integration

package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datagate-ai/datagate-engine/pkg/testhelpers"
)

// Test_001_LibrarySchema verifies migration 001 creates the four demo tables
// with their foreign keys.
func Test_001_LibrarySchema(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	for _, table := range []string{"authors", "books", "members", "loans"} {
		var exists bool
		err := engineDB.DB.Pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)
		`, table).Scan(&exists)

		require.NoError(t, err, "Failed to query table information")
		assert.True(t, exists, "%s table should exist", table)
	}

	// Foreign keys carry the join graph the demo relies on.
	rows, err := engineDB.DB.Pool.Query(ctx, `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.table_name, kcu.column_name
	`)
	require.NoError(t, err, "Failed to query foreign keys")
	defer rows.Close()

	type fk struct{ table, column string }
	var fks []fk
	for rows.Next() {
		var f fk
		require.NoError(t, rows.Scan(&f.table, &f.column))
		fks = append(fks, f)
	}
	require.NoError(t, rows.Err())

	assert.Contains(t, fks, fk{"books", "author_id"})
	assert.Contains(t, fks, fk{"loans", "book_id"})
	assert.Contains(t, fks, fk{"loans", "member_id"})
}

// Test_002_SeedData verifies the seed rows are present and consistent.
func Test_002_SeedData(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	counts := []struct {
		table string
		min   int
	}{
		{"authors", 5},
		{"books", 8},
		{"members", 4},
		{"loans", 5},
	}
	for _, tc := range counts {
		var n int
		err := engineDB.DB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+tc.table).Scan(&n)
		require.NoError(t, err, "Failed to count %s", tc.table)
		assert.GreaterOrEqual(t, n, tc.min, "%s should be seeded", tc.table)
	}

	// Every seeded loan must reference a real book and member.
	var orphans int
	err := engineDB.DB.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM loans l
		LEFT JOIN books b ON l.book_id = b.book_id
		LEFT JOIN members m ON l.member_id = m.member_id
		WHERE b.book_id IS NULL OR m.member_id IS NULL
	`).Scan(&orphans)
	require.NoError(t, err)
	assert.Zero(t, orphans, "seed loans should all resolve")
}
