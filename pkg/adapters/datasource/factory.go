package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/config"
	"github.com/datagate-ai/datagate-engine/pkg/models"
)

// Factory creates engine components from the registry.
type Factory interface {
	// NewConnectionTester creates a connection tester for the configured engine.
	NewConnectionTester(ctx context.Context, engine string, cfg config.DatasourceConfig) (ConnectionTester, error)

	// NewQueryExecutor creates a query executor bound to a configured datasource.
	NewQueryExecutor(ctx context.Context, engine string, cfg config.DatasourceConfig) (QueryExecutor, error)

	// NewSchemaDescriber creates a schema describer for the configured engine.
	NewSchemaDescriber(ctx context.Context, engine string, cfg config.DatasourceConfig) (SchemaDescriber, error)

	// NewModelExecutor creates a query executor over a built unified model.
	// Only engines that run against uploaded datasets support this.
	NewModelExecutor(engine string, model *models.UnifiedModel) (QueryExecutor, error)

	// ListEngines returns info for all compiled-in engines.
	ListEngines() []EngineInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewFactory returns a factory that resolves engines from the global registry.
// The logger is handed to every component the factory creates.
func NewFactory(logger *zap.Logger) Factory {
	return &registryFactory{logger: logger}
}

func (f *registryFactory) NewConnectionTester(ctx context.Context, engine string, cfg config.DatasourceConfig) (ConnectionTester, error) {
	reg, ok := getRegistration(engine)
	if !ok {
		return nil, fmt.Errorf("unsupported datasource engine: %s (not compiled in)", engine)
	}
	if reg.ConnectionTesterFactory == nil {
		return nil, fmt.Errorf("connection testing not supported for engine: %s", engine)
	}
	return reg.ConnectionTesterFactory(ctx, cfg, f.logger)
}

func (f *registryFactory) NewQueryExecutor(ctx context.Context, engine string, cfg config.DatasourceConfig) (QueryExecutor, error) {
	reg, ok := getRegistration(engine)
	if !ok {
		return nil, fmt.Errorf("unsupported datasource engine: %s (not compiled in)", engine)
	}
	if reg.QueryExecutorFactory == nil {
		return nil, fmt.Errorf("engine %s executes uploaded datasets, not a configured datasource", engine)
	}
	return reg.QueryExecutorFactory(ctx, cfg, f.logger)
}

func (f *registryFactory) NewSchemaDescriber(ctx context.Context, engine string, cfg config.DatasourceConfig) (SchemaDescriber, error) {
	reg, ok := getRegistration(engine)
	if !ok {
		return nil, fmt.Errorf("unsupported datasource engine: %s (not compiled in)", engine)
	}
	if reg.SchemaDescriberFactory == nil {
		return nil, fmt.Errorf("schema description not supported for engine: %s", engine)
	}
	return reg.SchemaDescriberFactory(ctx, cfg, f.logger)
}

func (f *registryFactory) NewModelExecutor(engine string, model *models.UnifiedModel) (QueryExecutor, error) {
	reg, ok := getRegistration(engine)
	if !ok {
		return nil, fmt.Errorf("unsupported datasource engine: %s (not compiled in)", engine)
	}
	if reg.ModelExecutorFactory == nil {
		return nil, fmt.Errorf("engine %s requires a configured datasource, not a unified model", engine)
	}
	return reg.ModelExecutorFactory(model, f.logger)
}

func (f *registryFactory) ListEngines() []EngineInfo {
	return RegisteredEngines()
}

// Ensure registryFactory implements Factory at compile time.
var _ Factory = (*registryFactory)(nil)
