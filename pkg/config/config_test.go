package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoadFrom_EnvOverridesYAML(t *testing.T) {
	configPath := writeConfigFile(t, `
env: "test"
database:
  host: "db.example.com"
  user: "cataloguser"
profiling:
  sample_limit: 2000
relationships:
  confidence_threshold: 0.5
`)

	os.Unsetenv("PGHOST")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PROFILING_SAMPLE_LIMIT", "3000")

	cfg, err := LoadFrom(configPath, "test-version")
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	// Env vars override YAML
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Profiling.SampleLimit != 3000 {
		t.Errorf("expected SampleLimit=3000 (from env), got %d", cfg.Profiling.SampleLimit)
	}

	// YAML values apply where no env var is set
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host=db.example.com (from yaml), got %s", cfg.Database.Host)
	}
	if cfg.Relationships.ConfidenceThreshold != 0.5 {
		t.Errorf("expected ConfidenceThreshold=0.5 (from yaml), got %g", cfg.Relationships.ConfidenceThreshold)
	}

	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	configPath := writeConfigFile(t, `
env: "test"
database:
  host: "localhost"
`)

	for _, key := range []string{
		"PROFILING_SAMPLE_LIMIT", "PROFILING_DISTINCT_CAP", "PROFILING_TOP_VALUES",
		"RELATIONSHIP_CONFIDENCE_THRESHOLD", "RELATIONSHIP_OVERLAP_WEIGHT", "RELATIONSHIP_NAME_WEIGHT",
		"UPLOAD_MAX_BYTES", "EXECUTION_MAX_ROWS", "EXECUTION_QUERY_TIMEOUT_SECONDS",
		"LLM_PROVIDER", "LLM_MODEL",
	} {
		os.Unsetenv(key)
	}

	cfg, err := LoadFrom(configPath, "test-version")
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if cfg.Profiling.SampleLimit != 5000 {
		t.Errorf("expected SampleLimit=5000 (default), got %d", cfg.Profiling.SampleLimit)
	}
	if cfg.Profiling.DistinctCap != 10000 {
		t.Errorf("expected DistinctCap=10000 (default), got %d", cfg.Profiling.DistinctCap)
	}
	if cfg.Profiling.TopValues != 5 {
		t.Errorf("expected TopValues=5 (default), got %d", cfg.Profiling.TopValues)
	}
	if cfg.Relationships.ConfidenceThreshold != 0.4 {
		t.Errorf("expected ConfidenceThreshold=0.4 (default), got %g", cfg.Relationships.ConfidenceThreshold)
	}
	if cfg.Relationships.OverlapWeight != 0.7 {
		t.Errorf("expected OverlapWeight=0.7 (default), got %g", cfg.Relationships.OverlapWeight)
	}
	if cfg.Relationships.NameWeight != 0.3 {
		t.Errorf("expected NameWeight=0.3 (default), got %g", cfg.Relationships.NameWeight)
	}
	if cfg.Uploads.MaxBytes != 16777216 {
		t.Errorf("expected MaxBytes=16777216 (default), got %d", cfg.Uploads.MaxBytes)
	}
	if cfg.Execution.MaxRows != 1000 {
		t.Errorf("expected MaxRows=1000 (default), got %d", cfg.Execution.MaxRows)
	}
	if cfg.Execution.QueryTimeoutSeconds != 30 {
		t.Errorf("expected QueryTimeoutSeconds=30 (default), got %d", cfg.Execution.QueryTimeoutSeconds)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected Provider=openai (default), got %s", cfg.LLM.Provider)
	}
}

func TestLoadFrom_MissingFileFallsBackToEnv(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.yaml")

	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("EXECUTION_MAX_ROWS", "500")

	cfg, err := LoadFrom(missing, "test-version")
	if err != nil {
		t.Fatalf("LoadFrom() with missing file failed: %v", err)
	}
	if cfg.Env != "staging" {
		t.Errorf("expected Env=staging (from env), got %s", cfg.Env)
	}
	if cfg.Execution.MaxRows != 500 {
		t.Errorf("expected MaxRows=500 (from env), got %d", cfg.Execution.MaxRows)
	}
}

func TestLoadFrom_InvalidLimits(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		mention string
	}{
		{
			name: "negative sample limit",
			yaml: `
profiling:
  sample_limit: -5
`,
			mention: "sample_limit",
		},
		{
			name: "row cap above hard limit",
			yaml: `
execution:
  max_rows: 5000
`,
			mention: "max_rows",
		},
		{
			name: "confidence threshold above one",
			yaml: `
relationships:
  confidence_threshold: 1.5
`,
			mention: "confidence_threshold",
		},
		{
			name: "negative upload cap",
			yaml: `
uploads:
  max_bytes: -1
`,
			mention: "max_bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfigFile(t, tt.yaml)
			_, err := LoadFrom(configPath, "test-version")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("expected error to mention %q, got: %v", tt.mention, err)
			}
		})
	}
}

func TestParseJWKSEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: map[string]string{},
		},
		{
			name:  "single pair",
			input: "https://auth.example.com=https://auth.example.com/.well-known/jwks.json",
			expected: map[string]string{
				"https://auth.example.com": "https://auth.example.com/.well-known/jwks.json",
			},
		},
		{
			name:  "two pairs with spaces",
			input: "issuer1=url1, issuer2=url2",
			expected: map[string]string{
				"issuer1": "url1",
				"issuer2": "url2",
			},
		},
		{
			name:     "malformed pair skipped",
			input:    "not-a-pair",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseJWKSEndpoints(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d entries, want %d", len(got), len(tt.expected))
			}
			for k, v := range tt.expected {
				if got[k] != v {
					t.Errorf("endpoint %q: got %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "datagate",
		Password: "secret",
		Database: "datagate_engine",
		SSLMode:  "disable",
	}
	got := cfg.ConnectionString()
	want := "host=localhost port=5432 user=datagate password=secret dbname=datagate_engine sslmode=disable"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
