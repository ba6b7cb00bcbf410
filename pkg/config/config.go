package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for datagate-engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values for fields
// that support both. Secrets (passwords, keys) must only come from
// environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Demo library database (PostgreSQL), provisioned by pkg/database
	Database DatabaseConfig `yaml:"database"`

	// Datasource connection management configuration
	Datasource DatasourceConfig `yaml:"datasource"`

	// Statistical profiling limits
	Profiling ProfilingConfig `yaml:"profiling"`

	// Cross-dataset relationship inference tuning
	Relationships RelationshipConfig `yaml:"relationships"`

	// Tabular file upload limits
	Uploads UploadConfig `yaml:"uploads"`

	// Query execution limits
	Execution ExecutionConfig `yaml:"execution"`

	// Natural-language translation model endpoint
	LLM LLMConfig `yaml:"llm"`

	// Role policy overrides
	Policy PolicyConfig `yaml:"policy"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:"https://auth.datagate.ai=https://auth.datagate.ai/.well-known/jwks.json"`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// SharedSecret enables HS256 token verification for deployments without
	// an auth server. Empty leaves only the JWKS path.
	SharedSecret string `yaml:"-" env:"AUTH_SHARED_SECRET"` // Secret - not in YAML
}

// DatabaseConfig holds the demo library database connection settings.
// The migration runner connects with these credentials, so they need DDL
// rights; the query path uses DatasourceConfig instead.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"datagate"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"datagate_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MinConnections int32  `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// DatasourceConfig describes the target datasource queries execute against.
type DatasourceConfig struct {
	// Engine selects the execution adapter: postgres, mysql, mssql, or
	// memtable (uploaded datasets only, no server).
	Engine   string `yaml:"engine" env:"DATASOURCE_ENGINE" env-default:"memtable"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"` // 0 = engine default
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	// SSLMode applies to postgres: disable, require, verify-ca, verify-full.
	SSLMode string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:"require"`

	// ConnectionTTLMinutes is how long idle datasource connections are kept alive.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	// PoolMaxConns is the maximum number of connections per datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections per datasource pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
}

// ProfilingConfig bounds the work done per profiled column.
type ProfilingConfig struct {
	// SampleLimit is the maximum number of rows examined per dataset.
	SampleLimit int `yaml:"sample_limit" env:"PROFILING_SAMPLE_LIMIT" env-default:"5000"`
	// DistinctCap caps the distinct values tracked per column.
	DistinctCap int `yaml:"distinct_cap" env:"PROFILING_DISTINCT_CAP" env-default:"10000"`
	// TopValues is how many most-frequent values a categorical summary keeps.
	TopValues int `yaml:"top_values" env:"PROFILING_TOP_VALUES" env-default:"5"`
}

// RelationshipConfig tunes cross-dataset join inference.
type RelationshipConfig struct {
	// ConfidenceThreshold is the minimum combined score for a candidate
	// column pair to become an edge.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"RELATIONSHIP_CONFIDENCE_THRESHOLD" env-default:"0.4"`
	// OverlapWeight scales the value-overlap component of the score.
	OverlapWeight float64 `yaml:"overlap_weight" env:"RELATIONSHIP_OVERLAP_WEIGHT" env-default:"0.7"`
	// NameWeight scales the column-name-similarity component of the score.
	NameWeight float64 `yaml:"name_weight" env:"RELATIONSHIP_NAME_WEIGHT" env-default:"0.3"`
}

// UploadConfig bounds tabular file ingestion.
type UploadConfig struct {
	// MaxBytes is the largest accepted upload. Default 16 MiB.
	MaxBytes int64 `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"16777216"`
}

// ExecutionConfig bounds query execution against datasources.
type ExecutionConfig struct {
	// MaxRows caps the rows returned by any read query. Hard limit 1000.
	MaxRows int `yaml:"max_rows" env:"EXECUTION_MAX_ROWS" env-default:"1000"`
	// QueryTimeoutSeconds bounds a single statement's execution time.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"EXECUTION_QUERY_TIMEOUT_SECONDS" env-default:"30"`
}

// LLMConfig holds the translation model endpoint settings.
type LLMConfig struct {
	// Provider selects the client implementation: openai, anthropic, or mock.
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	// Endpoint overrides the provider's default base URL when set.
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	// APIKey is the provider credential. Secret - not in YAML.
	APIKey    string `yaml:"-" env:"LLM_API_KEY"`
	MaxTokens int    `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
}

// PolicyConfig points at optional role-policy overrides.
type PolicyConfig struct {
	// Path is a YAML file mapping roles to permitted statement kinds.
	// Empty means built-in defaults apply.
	Path string `yaml:"path" env:"POLICY_PATH" env-default:""`
}

// Load reads configuration from config.yaml in the working directory, with
// environment variable overrides. When config.yaml does not exist the
// environment alone is used. The version parameter is injected at build time
// and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom("config.yaml", version)
}

// LoadFrom reads configuration from the given YAML path with environment
// variable overrides. A missing file is not an error; defaults and
// environment values apply.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validateLimits(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateLimits rejects limit settings the engine cannot honor.
func (c *Config) validateLimits() error {
	if c.Profiling.SampleLimit <= 0 {
		return fmt.Errorf("profiling.sample_limit must be positive, got %d", c.Profiling.SampleLimit)
	}
	if c.Profiling.TopValues <= 0 {
		return fmt.Errorf("profiling.top_values must be positive, got %d", c.Profiling.TopValues)
	}
	if c.Relationships.ConfidenceThreshold < 0 || c.Relationships.ConfidenceThreshold > 1 {
		return fmt.Errorf("relationships.confidence_threshold must be in [0,1], got %g", c.Relationships.ConfidenceThreshold)
	}
	if c.Relationships.OverlapWeight < 0 || c.Relationships.NameWeight < 0 {
		return fmt.Errorf("relationship weights must be non-negative")
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive, got %d", c.Uploads.MaxBytes)
	}
	if c.Execution.MaxRows <= 0 || c.Execution.MaxRows > 1000 {
		return fmt.Errorf("execution.max_rows must be in (0,1000], got %d", c.Execution.MaxRows)
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
