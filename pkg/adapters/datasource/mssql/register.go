//go:build mssql || all_adapters

package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/config"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.EngineInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			Description: "SQL Server 2019+, Azure SQL Database",
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
