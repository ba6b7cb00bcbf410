//go:build postgres || all_adapters

package postgres

import (
	"fmt"
	"net/url"

	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromDatasource builds a Config from the engine's datasource settings.
func FromDatasource(ds config.DatasourceConfig) (*Config, error) {
	cfg := &Config{
		Host:     ds.Host,
		Port:     ds.Port,
		User:     ds.User,
		Password: ds.Password,
		Database: ds.Database,
		SSLMode:  ds.SSLMode,
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
	if cfg.SSLMode == "" {
		cfg.SSLMode = DefaultSSLMode()
	}

	return cfg, nil
}

// connectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields must be URL-escaped to handle special characters
// in passwords (e.g., @, /, #, ?) that would otherwise break URL parsing.
// When running in Docker, localhost is automatically resolved to
// host.docker.internal to reach databases on the host machine.
func (c *Config) connectionString() string {
	host := config.ResolveHostForDocker(c.Host)

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		host,
		c.Port,
		url.QueryEscape(c.Database),
		c.SSLMode,
	)
}
