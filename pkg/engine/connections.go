package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// defaultConnectionTTL bounds how long an opened datasource connection is
// reused before it is closed and reopened.
const defaultConnectionTTL = 5 * time.Minute

// connCache lazily opens the configured relational engine's query executor
// and schema describer and reuses them until the TTL elapses. Reopening picks
// up credential rotation and server restarts without a process restart.
type connCache struct {
	factory datasource.Factory
	engine  string
	cfg     config.DatasourceConfig
	ttl     time.Duration
	logger  *zap.Logger

	mu              sync.Mutex
	executor        datasource.QueryExecutor
	executorOpened  time.Time
	describer       datasource.SchemaDescriber
	describerOpened time.Time
}

func newConnCache(factory datasource.Factory, cfg config.DatasourceConfig, logger *zap.Logger) *connCache {
	ttl := time.Duration(cfg.ConnectionTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = defaultConnectionTTL
	}
	return &connCache{
		factory: factory,
		engine:  cfg.Engine,
		cfg:     cfg,
		ttl:     ttl,
		logger:  logger.Named("connections"),
	}
}

// Executor returns the cached query executor, opening or reopening as needed.
func (c *connCache) Executor(ctx context.Context) (datasource.QueryExecutor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.executor != nil && time.Since(c.executorOpened) < c.ttl {
		return c.executor, nil
	}
	if c.executor != nil {
		c.closeAsync(c.executor, "executor")
		c.executor = nil
	}

	exec, err := c.factory.NewQueryExecutor(ctx, c.engine, c.cfg)
	if err != nil {
		return nil, err
	}
	c.executor = exec
	c.executorOpened = time.Now()
	c.logger.Debug("query executor opened", zap.String("engine", c.engine))
	return exec, nil
}

// Describer returns the cached schema describer, opening or reopening as
// needed.
func (c *connCache) Describer(ctx context.Context) (datasource.SchemaDescriber, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.describer != nil && time.Since(c.describerOpened) < c.ttl {
		return c.describer, nil
	}
	if c.describer != nil {
		c.closeAsync(c.describer, "describer")
		c.describer = nil
	}

	desc, err := c.factory.NewSchemaDescriber(ctx, c.engine, c.cfg)
	if err != nil {
		return nil, err
	}
	c.describer = desc
	c.describerOpened = time.Now()
	c.logger.Debug("schema describer opened", zap.String("engine", c.engine))
	return desc, nil
}

// closeAsync closes an expired connection off the request path, since Close
// can wait for in-flight queries to release the pool.
func (c *connCache) closeAsync(conn interface{ Close() error }, kind string) {
	logger := c.logger
	go func() {
		if err := conn.Close(); err != nil {
			logger.Warn("closing expired connection",
				zap.String("kind", kind),
				zap.Error(err))
		}
	}()
}

// Close closes whatever is currently open. The cache stays usable; the next
// request reopens.
func (c *connCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if c.executor != nil {
		if err := c.executor.Close(); err != nil {
			firstErr = err
		}
		c.executor = nil
	}
	if c.describer != nil {
		if err := c.describer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.describer = nil
	}
	return firstErr
}
