package engine

import (
	// The memtable engine is always compiled in; it executes uploaded
	// datasets through the unified model.
	_ "github.com/datagate-ai/datagate-engine/pkg/adapters/datasource/memtable"
)
