//go:build postgres || all_adapters

package engine

import (
	_ "github.com/datagate-ai/datagate-engine/pkg/adapters/datasource/postgres"
)
