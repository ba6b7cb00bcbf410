package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/config"
	"github.com/datagate-ai/datagate-engine/pkg/models"
)

// EngineInfo describes a registered execution engine.
type EngineInfo struct {
	Type        string `json:"type"`         // "postgres", "mysql", "mssql", "memtable"
	DisplayName string `json:"display_name"` // "PostgreSQL", "MySQL", ...
	Description string `json:"description"`
}

// Registration contains info + factories for creating an engine's components.
//
// Relational engines provide the config-driven factories and leave
// ModelExecutorFactory nil. The memtable engine executes against a built
// UnifiedModel rather than a server, so it provides only ModelExecutorFactory.
type Registration struct {
	Info EngineInfo

	ConnectionTesterFactory func(ctx context.Context, cfg config.DatasourceConfig, logger *zap.Logger) (ConnectionTester, error)
	QueryExecutorFactory    func(ctx context.Context, cfg config.DatasourceConfig, logger *zap.Logger) (QueryExecutor, error)
	SchemaDescriberFactory  func(ctx context.Context, cfg config.DatasourceConfig, logger *zap.Logger) (SchemaDescriber, error)
	ModelExecutorFactory    func(model *models.UnifiedModel, logger *zap.Logger) (QueryExecutor, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each engine's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredEngines returns info for all compiled-in engines, sorted by type
// so listings are stable across processes.
func RegisteredEngines() []EngineInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EngineInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if an engine type is available.
func IsRegistered(engine string) bool {
	_, ok := getRegistration(engine)
	return ok
}

func getRegistration(engine string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[engine]
	return reg, ok
}
