// Package migrations embeds the demo library schema SQL applied by
// pkg/database.RunMigrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
