package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medflow/hospital-erp/pkg/database"
	"github.com/medflow/hospital-erp/pkg/errors"
)

// WarehouseDepartment is the department value of central warehouse items.
const WarehouseDepartment = ""

// InventoryItem is a named stock-keeping unit in one location. Its quantity
// is never stored: it is the sum of its batches.
type InventoryItem struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	DepartmentID     string    `db:"department_id" json:"department_id"`
	Category         *string   `db:"category" json:"category,omitempty"`
	Unit             string    `db:"unit" json:"unit"`
	MinStock         int       `db:"min_stock" json:"min_stock"`
	RestockThreshold int       `db:"restock_threshold" json:"restock_threshold"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
	// Filled by list queries only.
	TotalQuantity int `db:"total_quantity" json:"total_quantity"`
}

// IsWarehouse reports whether the item lives in the central warehouse.
func (i *InventoryItem) IsWarehouse() bool {
	return i.DepartmentID == WarehouseDepartment
}

// ItemFilter narrows item listings. A nil DepartmentID lists every location.
type ItemFilter struct {
	DepartmentID *string
	Category     string
	Name         string
}

const itemColumns = `id, name, department_id, category, unit, min_stock, restock_threshold, created_at, updated_at`

// ItemRepository handles inventory item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// CreateOrGet inserts the item unless one with the same name already exists in
// the department, in which case the existing row is returned untouched.
func (r *ItemRepository) CreateOrGet(ctx context.Context, item *InventoryItem) (*InventoryItem, bool, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Unit == "" {
		item.Unit = "unit"
	}

	q := r.db.Querier(ctx)
	query := `
		INSERT INTO inventory_items (id, name, department_id, category, unit, min_stock, restock_threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name, department_id) DO NOTHING
		RETURNING ` + itemColumns

	var created InventoryItem
	err := sqlx.GetContext(ctx, q, &created, query,
		item.ID, item.Name, item.DepartmentID, item.Category, item.Unit, item.MinStock, item.RestockThreshold)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, false, appErr
		}
		return nil, false, err
	}

	existing, err := r.GetByName(ctx, item.Name, item.DepartmentID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByID gets an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*InventoryItem, error) {
	var item InventoryItem
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.UnknownItem(id)
	}

	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db.Querier(ctx), &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.UnknownItem(id)
		}
		return nil, err
	}
	return &item, nil
}

// GetByName gets the item with the name in the department ("" for the warehouse).
func (r *ItemRepository) GetByName(ctx context.Context, name, departmentID string) (*InventoryItem, error) {
	return r.getByName(ctx, name, departmentID, false)
}

// LockByName is GetByName with the row locked until the surrounding
// transaction ends. The lock serializes allocations from the item but still
// lets other transactions insert batches referencing it.
func (r *ItemRepository) LockByName(ctx context.Context, name, departmentID string) (*InventoryItem, error) {
	return r.getByName(ctx, name, departmentID, true)
}

func (r *ItemRepository) getByName(ctx context.Context, name, departmentID string, lock bool) (*InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE name = $1 AND department_id = $2`
	if lock {
		query += ` FOR NO KEY UPDATE`
	}

	var item InventoryItem
	if err := sqlx.GetContext(ctx, r.db.Querier(ctx), &item, query, name, departmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ItemNotFound(name, departmentID)
		}
		return nil, err
	}
	return &item, nil
}

// List lists items with their current totals
func (r *ItemRepository) List(ctx context.Context, f ItemFilter) ([]*InventoryItem, error) {
	var w filter
	if f.DepartmentID != nil {
		w.add("i.department_id = $%d", *f.DepartmentID)
	}
	if f.Category != "" {
		w.add("i.category = $%d", f.Category)
	}
	if f.Name != "" {
		w.add("i.name ILIKE '%%' || $%d || '%%'", f.Name)
	}

	query := `
		SELECT i.id, i.name, i.department_id, i.category, i.unit, i.min_stock, i.restock_threshold,
		       i.created_at, i.updated_at, COALESCE(SUM(b.quantity), 0) AS total_quantity
		FROM inventory_items i
		LEFT JOIN inventory_batches b ON b.item_id = i.id` + w.where() + `
		GROUP BY i.id
		ORDER BY i.department_id, i.name`

	var items []*InventoryItem
	if err := sqlx.SelectContext(ctx, r.db.Querier(ctx), &items, query, w.args...); err != nil {
		return nil, err
	}
	return items, nil
}

// ListBelowRestockLevel returns warehouse items whose total is under
// min_stock or restock_threshold, with TotalQuantity filled.
func (r *ItemRepository) ListBelowRestockLevel(ctx context.Context) ([]*InventoryItem, error) {
	query := `
		SELECT i.id, i.name, i.department_id, i.category, i.unit, i.min_stock, i.restock_threshold,
		       i.created_at, i.updated_at, COALESCE(SUM(b.quantity), 0) AS total_quantity
		FROM inventory_items i
		LEFT JOIN inventory_batches b ON b.item_id = i.id
		WHERE i.department_id = ''
		GROUP BY i.id
		HAVING COALESCE(SUM(b.quantity), 0) < GREATEST(i.min_stock, i.restock_threshold)
		ORDER BY i.name`

	var items []*InventoryItem
	if err := sqlx.SelectContext(ctx, r.db.Querier(ctx), &items, query); err != nil {
		return nil, err
	}
	return items, nil
}
