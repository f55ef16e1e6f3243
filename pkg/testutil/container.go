// Package testutil provides testing utilities for the inventory service.
// It includes testcontainers for PostgreSQL, per-test schemas, sqlmock
// helpers and common test fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ExternalDatabaseEnv names a DSN that replaces the container, for CI jobs
// that already run a PostgreSQL service.
const ExternalDatabaseEnv = "TEST_DATABASE_URL"

// PostgresContainer is the database the integration tests run against.
// The embedded container is nil when ExternalDatabaseEnv is set.
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string
}

// DefaultPostgresConfig is postgres:15-alpine unless TEST_POSTGRES_IMAGE says
// otherwise. Row locking needs nothing newer.
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "hospital_erp_test",
		Username: "test",
		Password: "test",
		Image:    GetEnvOrDefault("TEST_POSTGRES_IMAGE", "postgres:15-alpine"),
	}
}

// StartPostgres connects to ExternalDatabaseEnv when it is set and starts a
// container otherwise.
func StartPostgres(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if dsn := GetEnvOrDefault(ExternalDatabaseEnv, ""); dsn != "" {
		return &PostgresContainer{DSN: dsn}, nil
	}
	return NewPostgresContainer(ctx, cfg)
}

// NewPostgresContainer starts a throwaway PostgreSQL. Tests share it and
// isolate themselves with one schema each, see IntegrationSuite.SetupSchema.
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	defaults := DefaultPostgresConfig()
	if cfg.Image == "" {
		cfg.Image = defaults.Image
	}
	if cfg.Database == "" {
		cfg.Database = defaults.Database
	}
	if cfg.Username == "" {
		cfg.Username = defaults.Username
	}
	if cfg.Password == "" {
		cfg.Password = defaults.Password
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: container, DSN: dsn}, nil
}

// Connect opens the admin pool used to create and drop test schemas.
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container. An external database is left
// running.
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	if c.PostgresContainer == nil {
		return nil
	}
	return c.PostgresContainer.Terminate(ctx)
}
