package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/medflow/hospital-erp/pkg/config"
	"github.com/medflow/hospital-erp/pkg/logger"
)

// DB is the shared connection pool. Services open transactions on it with
// InTx, repositories run statements through Querier.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// New connects using the service configuration and applies its pool limits.
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := open(cfg.DSN(), log)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("database connected")
	return db, nil
}

// NewWithDSN connects with a raw DSN and driver default pool settings. The
// integration tests use it to open one pool per test schema.
func NewWithDSN(dsn string, log *logger.Logger) (*DB, error) {
	return open(dsn, log)
}

// Wrap adapts an existing sqlx handle, e.g. one backed by sqlmock.
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: db, logger: log}
}

func open(dsn string, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return Wrap(db, log), nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health pings the database and reports pool usage next to the status.
func (db *DB) Health(ctx context.Context) map[string]interface{} {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	stats := db.Stats()
	status := map[string]interface{}{
		"status":     "up",
		"open_conns": stats.OpenConnections,
		"in_use":     stats.InUse,
		"wait_count": stats.WaitCount,
	}
	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}
