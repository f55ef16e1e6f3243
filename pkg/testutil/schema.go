package testutil

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medflow/hospital-erp/internal/inventory/migrations"
	"github.com/medflow/hospital-erp/pkg/database"
	"github.com/medflow/hospital-erp/pkg/logger"
)

// TestSchema is a migrated schema owned by one test. DB only sees that
// schema because every pooled connection starts with its search_path.
type TestSchema struct {
	Name string
	DB   *database.DB
}

// SchemaManager creates and drops test schemas
type SchemaManager struct {
	admin   *sqlx.DB
	dsn     string
	log     *logger.Logger
	mu      sync.Mutex
	schemas []*TestSchema
}

// NewSchemaManager creates a schema manager. admin runs the DDL; dsn is the
// base connection string per-schema pools are derived from.
func NewSchemaManager(admin *sqlx.DB, dsn string, log *logger.Logger) *SchemaManager {
	return &SchemaManager{admin: admin, dsn: dsn, log: log}
}

// CreateSchema creates a uniquely named schema and applies the inventory
// migrations to it.
//
// Usage:
//
//	schema, err := sm.CreateSchema(ctx, "approve-shortage")
//	items := repository.NewItemRepository(schema.DB)
func (sm *SchemaManager) CreateSchema(ctx context.Context, name string) (*TestSchema, error) {
	slug := strings.ToLower(strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(name))
	if len(slug) > 40 {
		slug = slug[:40]
	}
	schemaName := fmt.Sprintf("test_%s_%s", slug, strings.ReplaceAll(uuid.New().String(), "-", "")[:8])

	if _, err := sm.admin.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName)); err != nil {
		return nil, fmt.Errorf("failed to create test schema: %w", err)
	}

	dsn, err := withSearchPath(sm.dsn, schemaName)
	if err != nil {
		return nil, err
	}
	db, err := database.NewWithDSN(dsn, sm.log)
	if err != nil {
		return nil, err
	}

	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", schemaName, err)
	}

	s := &TestSchema{Name: schemaName, DB: db}

	sm.mu.Lock()
	sm.schemas = append(sm.schemas, s)
	sm.mu.Unlock()
	return s, nil
}

// DropSchema closes the schema's pool and drops it
func (sm *SchemaManager) DropSchema(ctx context.Context, s *TestSchema) error {
	s.DB.Close()
	_, err := sm.admin.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", s.Name))

	sm.mu.Lock()
	for i, existing := range sm.schemas {
		if existing == s {
			sm.schemas = append(sm.schemas[:i], sm.schemas[i+1:]...)
			break
		}
	}
	sm.mu.Unlock()
	return err
}

// Cleanup drops every schema that is still around
func (sm *SchemaManager) Cleanup(ctx context.Context) error {
	sm.mu.Lock()
	remaining := append([]*TestSchema(nil), sm.schemas...)
	sm.mu.Unlock()

	for _, s := range remaining {
		if err := sm.DropSchema(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// withSearchPath adds a search_path runtime parameter to a postgres:// DSN.
func withSearchPath(dsn, schema string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid test DSN: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
