//go:build mysql || all_adapters

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// connectionString builds a driver DSN via the driver's own config type,
// which handles passwords with special characters. parseTime makes DATE and
// DATETIME columns scan as time.Time instead of raw bytes.
func (c *Config) connectionString() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", config.ResolveHostForDocker(c.Host), c.Port)
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.TLSConfig = c.TLSMode

	return mc.FormatDSN()
}

// openDB opens a database/sql handle for the configured datasource, applying
// the engine's pool sizing and idle TTL settings.
func openDB(ds config.DatasourceConfig) (*sql.DB, *Config, error) {
	cfg, err := FromDatasource(ds)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("mysql", cfg.connectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql connection: %w", err)
	}

	if ds.PoolMaxConns > 0 {
		db.SetMaxOpenConns(int(ds.PoolMaxConns))
	}
	if ds.PoolMinConns > 0 {
		db.SetMaxIdleConns(int(ds.PoolMinConns))
	}
	if ds.ConnectionTTLMinutes > 0 {
		db.SetConnMaxIdleTime(time.Duration(ds.ConnectionTTLMinutes) * time.Minute)
	}

	return db, cfg, nil
}

// Adapter provides MySQL connectivity checks.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter creates a MySQL adapter with its own connection.
func NewAdapter(ctx context.Context, ds config.DatasourceConfig, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, cfg, err := openDB(ds)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	return &Adapter{
		config: cfg,
		db:     db,
		logger: logger.Named("mysql"),
	}, nil
}

// TestConnection verifies the database is reachable with valid credentials
// and that the configured database is the one answering.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	// DATABASE() is NULL when no default schema is selected.
	var currentDB sql.NullString
	if err := a.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}

	if !currentDB.Valid || !strings.EqualFold(currentDB.String, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB.String)
	}

	a.logger.Debug("connection verified", zap.String("database", currentDB.String))
	return nil
}

// Close releases the database connection.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ensure Adapter implements ConnectionTester at compile time.
var _ datasource.ConnectionTester = (*Adapter)(nil)
