//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// newPool opens a pgx pool for the configured datasource, applying the
// engine's pool sizing and idle TTL settings.
func newPool(ctx context.Context, ds config.DatasourceConfig) (*pgxpool.Pool, *Config, error) {
	cfg, err := FromDatasource(ds)
	if err != nil {
		return nil, nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.connectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if ds.PoolMaxConns > 0 {
		poolCfg.MaxConns = ds.PoolMaxConns
	}
	if ds.PoolMinConns > 0 {
		poolCfg.MinConns = ds.PoolMinConns
	}
	if ds.ConnectionTTLMinutes > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(ds.ConnectionTTLMinutes) * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return pool, cfg, nil
}

// Adapter provides PostgreSQL connectivity checks.
type Adapter struct {
	config *Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewAdapter creates a PostgreSQL adapter with its own pool.
func NewAdapter(ctx context.Context, ds config.DatasourceConfig, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, cfg, err := newPool(ctx, ds)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		config: cfg,
		pool:   pool,
		logger: logger.Named("postgres"),
	}, nil
}

// TestConnection verifies the database is reachable with valid credentials.
// It checks:
// 1. Server connectivity (ping)
// 2. Database access (simple query)
// 3. Correct database name (to prevent connecting to wrong/default database)
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := a.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}

	// PostgreSQL database names are case-sensitive; compare case-insensitively
	// to match mssql behavior and tolerate common configuration slips.
	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}

	a.logger.Debug("connection verified", zap.String("database", currentDB))
	return nil
}

// Close releases the pool.
func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Ensure Adapter implements ConnectionTester at compile time.
var _ datasource.ConnectionTester = (*Adapter)(nil)
