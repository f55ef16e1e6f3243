package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medflow/hospital-erp/pkg/database"
	"github.com/medflow/hospital-erp/pkg/errors"
)

// InventoryBatch is a lot of one item. Seq records creation order and breaks
// ties between batches with the same expiry.
type InventoryBatch struct {
	ID         string     `db:"id" json:"id"`
	ItemID     string     `db:"item_id" json:"item_id"`
	Quantity   int        `db:"quantity" json:"quantity"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Supplier   *string    `db:"supplier" json:"supplier,omitempty"`
	Seq        int64      `db:"seq" json:"seq"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

const batchColumns = `id, item_id, quantity, expiry_date, supplier, seq, created_at, updated_at`

// Allocation order: earliest expiry first, undated batches last, then oldest.
const fefoOrder = ` ORDER BY expiry_date ASC NULLS LAST, seq ASC`

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *InventoryBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_batches (id, item_id, quantity, expiry_date, supplier)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq, created_at, updated_at`

	err := r.db.Querier(ctx).QueryRowxContext(ctx, query,
		batch.ID, batch.ItemID, batch.Quantity, batch.ExpiryDate, batch.Supplier,
	).Scan(&batch.Seq, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ListByItem lists every batch of the item, drained ones included, in allocation order.
func (r *BatchRepository) ListByItem(ctx context.Context, itemID string) ([]*InventoryBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM inventory_batches WHERE item_id = $1` + fefoOrder

	var batches []*InventoryBatch
	if err := sqlx.SelectContext(ctx, r.db.Querier(ctx), &batches, query, itemID); err != nil {
		return nil, err
	}
	return batches, nil
}

// LockAvailable returns the item's non-empty batches in allocation order,
// locked until the surrounding transaction ends.
func (r *BatchRepository) LockAvailable(ctx context.Context, itemID string) ([]*InventoryBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM inventory_batches
		WHERE item_id = $1 AND quantity > 0` + fefoOrder + ` FOR UPDATE`

	var batches []*InventoryBatch
	if err := sqlx.SelectContext(ctx, r.db.Querier(ctx), &batches, query, itemID); err != nil {
		return nil, err
	}
	return batches, nil
}

// UpdateQuantity sets the remaining quantity of a batch
func (r *BatchRepository) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	result, err := r.db.Querier(ctx).ExecContext(ctx,
		`UPDATE inventory_batches SET quantity = $2 WHERE id = $1`, id, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("batch")
	}
	return nil
}

// TotalForItem sums the batch quantities of an item
func (r *BatchRepository) TotalForItem(ctx context.Context, itemID string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(quantity), 0) FROM inventory_batches WHERE item_id = $1`
	if err := sqlx.GetContext(ctx, r.db.Querier(ctx), &total, query, itemID); err != nil {
		return 0, err
	}
	return total, nil
}
