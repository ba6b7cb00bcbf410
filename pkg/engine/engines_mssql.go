//go:build mssql || all_adapters

package engine

import (
	_ "github.com/datagate-ai/datagate-engine/pkg/adapters/datasource/mssql"
)
