//go:build mssql || all_adapters

package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/adapters/datasource"
	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// connectionString builds a sqlserver:// URL with proper escaping.
// All user-provided fields must be URL-escaped to handle special characters
// in passwords that would otherwise break URL parsing.
func (c *Config) connectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)

	if c.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", c.ConnectionTimeout))
	}

	host := config.ResolveHostForDocker(c.Host)

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		host,
		c.Port,
		query.Encode(),
	)
}

// openDB opens a database/sql handle for the configured datasource, applying
// the engine's pool sizing and idle TTL settings.
func openDB(ds config.DatasourceConfig) (*sql.DB, *Config, error) {
	cfg, err := FromDatasource(ds)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("sqlserver", cfg.connectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlserver connection: %w", err)
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

// Adapter provides SQL Server connectivity checks.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter creates a SQL Server adapter with its own connection.
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
		logger: logger.Named("mssql"),
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

	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}

	// SQL Server database names are case-insensitive by default.
	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}

	a.logger.Debug("connection verified", zap.String("database", currentDB))
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
