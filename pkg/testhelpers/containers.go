package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/config"
	"github.com/datagate-ai/datagate-engine/pkg/database"
)

// PostgresImage is the container image integration tests run against.
const PostgresImage = "postgres:17-alpine"

const (
	testUser     = "datagate"
	testPassword = "test_password"
	// scratchDatabase is for adapter tests that create and drop their own
	// tables; libraryDatabase receives the demo schema migrations.
	scratchDatabase = "datagate_test"
	libraryDatabase = "datagate_library"
)

// TestDB holds a shared test database container and connection pool.
// The pool points at a scratch database tests may mutate freely.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       scratchDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		testUser, testPassword, host, port.Int(), scratchDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port.Int(),
	}, nil
}

// Datasource describes the scratch database as a datasource, ready to hand
// to the postgres adapter.
func (db *TestDB) Datasource() config.DatasourceConfig {
	return config.DatasourceConfig{
		Engine:               "postgres",
		Host:                 db.Host,
		Port:                 db.Port,
		User:                 testUser,
		Password:             testPassword,
		Database:             scratchDatabase,
		SSLMode:              "disable",
		ConnectionTTLMinutes: 5,
		PoolMaxConns:         5,
		PoolMinConns:         1,
	}
}

// EngineDB holds the migrated demo library database.
// Use this for tests that need the authors/books/members/loans schema.
type EngineDB struct {
	DB      *database.DB
	ConnStr string
	cfg     config.DatabaseConfig
}

var (
	sharedEngineDB     *EngineDB
	sharedEngineDBOnce sync.Once
	sharedEngineDBErr  error
)

// GetEngineDB returns a shared library database for integration tests.
// The database has migrations applied and is reused across all tests.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	// Ensure test container is running first
	testDB := GetTestDB(t)

	sharedEngineDBOnce.Do(func() {
		sharedEngineDB, sharedEngineDBErr = setupEngineDB(testDB)
	})

	if sharedEngineDBErr != nil {
		t.Fatalf("Failed to setup library database: %v", sharedEngineDBErr)
	}

	return sharedEngineDB
}

func setupEngineDB(testDB *TestDB) (*EngineDB, error) {
	ctx := context.Background()

	// CREATE DATABASE cannot run inside a transaction; the scratch pool
	// doubles as the admin connection.
	if _, err := testDB.Pool.Exec(ctx, "CREATE DATABASE "+libraryDatabase); err != nil {
		return nil, fmt.Errorf("failed to create library database: %w", err)
	}

	cfg := config.DatabaseConfig{
		Host:           testDB.Host,
		Port:           testDB.Port,
		User:           testUser,
		Password:       testPassword,
		Database:       libraryDatabase,
		MaxConnections: 5,
		MinConnections: 1,
		SSLMode:        "disable",
	}

	db, err := database.Provision(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("failed to provision library database: %w", err)
	}

	return &EngineDB{
		DB:      db,
		ConnStr: cfg.ConnectionString(),
		cfg:     cfg,
	}, nil
}

// Datasource describes the migrated library database as a datasource, for
// tests that execute queries against the demo schema.
func (db *EngineDB) Datasource() config.DatasourceConfig {
	return config.DatasourceConfig{
		Engine:               "postgres",
		Host:                 db.cfg.Host,
		Port:                 db.cfg.Port,
		User:                 testUser,
		Password:             testPassword,
		Database:             libraryDatabase,
		SSLMode:              "disable",
		ConnectionTTLMinutes: 5,
		PoolMaxConns:         5,
		PoolMinConns:         1,
	}
}
