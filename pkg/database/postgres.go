// Package database opens the demo library database and applies its embedded
// migrations. The engine's relational mode points a datasource at the result.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for the migration runner
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration.
type Config struct {
	URL             string
	MaxConnections  int32
	MinConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewConnection creates a new database connection pool.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 25
	}

	poolConfig.MinConns = cfg.MinConnections

	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// NewFromConfig opens a pool using the engine's database settings.
func NewFromConfig(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	return NewConnection(ctx, &Config{
		URL:            cfg.ConnectionString(),
		MaxConnections: cfg.MaxConnections,
		MinConnections: cfg.MinConnections,
	})
}

// Provision opens the demo database, applies any pending migrations, and
// returns a ready pool. The migration pass uses a short-lived database/sql
// connection because golang-migrate requires one.
func Provision(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	sqlDB, err := sql.Open("pgx", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}

	if err := RunMigrations(sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if err := sqlDB.Close(); err != nil {
		return nil, fmt.Errorf("failed to close migration connection: %w", err)
	}

	return NewFromConfig(ctx, cfg)
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
