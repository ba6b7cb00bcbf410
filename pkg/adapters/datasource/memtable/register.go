package memtable

import (
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.EngineInfo{
			Type:        "memtable",
			DisplayName: "In-Memory Tables",
			Description: "Uploaded CSV datasets queried through the unified model",
		},
		ModelExecutorFactory: func(model *models.UnifiedModel, logger *zap.Logger) (datasource.QueryExecutor, error) {
			return NewQueryExecutor(model, logger)
		},
	})
}
