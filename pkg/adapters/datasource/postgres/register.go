//go:build postgres || all_adapters

package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/config"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.EngineInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		},
		ConnectionTesterFactory: func(ctx context.Context, cfg config.DatasourceConfig, logger *zap.Logger) (datasource.ConnectionTester, error) {
			return NewAdapter(ctx, cfg, logger)
		},
		QueryExecutorFactory: func(ctx context.Context, cfg config.DatasourceConfig, logger *zap.Logger) (datasource.QueryExecutor, error) {
			return NewQueryExecutor(ctx, cfg, logger)
		},
		SchemaDescriberFactory: func(ctx context.Context, cfg config.DatasourceConfig, logger *zap.Logger) (datasource.SchemaDescriber, error) {
			return NewSchemaDescriber(ctx, cfg, logger)
		},
	})
}
