//go:build mysql || all_adapters

package mysql

import (
	"fmt"

	"github.com/datagate-ai/datagate-engine/pkg/config"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// TLSMode is the driver's tls parameter: "true", "false", or "preferred".
	TLSMode string
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromDatasource builds a Config from the engine's datasource settings.
// The shared ssl_mode values map onto the driver's tls parameter.
func FromDatasource(ds config.DatasourceConfig) (*Config, error) {
	cfg := &Config{
		Host:     ds.Host,
		Port:     ds.Port,
		User:     ds.User,
		Password: ds.Password,
		Database: ds.Database,
		TLSMode:  tlsModeFor(ds.SSLMode),
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

func tlsModeFor(sslMode string) string {
	switch sslMode {
	case "disable":
		return "false"
	case "require", "verify-ca", "verify-full":
		return "true"
	default:
		return "preferred"
	}
}
