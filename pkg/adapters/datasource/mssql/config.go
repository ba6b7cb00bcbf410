//go:build mssql || all_adapters

package mssql

import (
	"fmt"

	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Connection options
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromDatasource builds a Config from the engine's datasource settings.
// Only SQL authentication is supported; ssl_mode "disable" turns encryption
// off for local servers.
func FromDatasource(ds config.DatasourceConfig) (*Config, error) {
	cfg := &Config{
		Host:              ds.Host,
		Port:              ds.Port,
		User:              ds.User,
		Password:          ds.Password,
		Database:          ds.Database,
		Encrypt:           ds.SSLMode != "disable",
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("datasource host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("datasource user is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("datasource database is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}

	return cfg, nil
}
