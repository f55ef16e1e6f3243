package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medflow/hospital-erp/pkg/database"
	"github.com/medflow/hospital-erp/pkg/errors"
)

// TransactionType classifies a stock movement
type TransactionType string

const (
	TransactionTransfer   TransactionType = "transfer"
	TransactionUsage      TransactionType = "usage"
	TransactionCheckout   TransactionType = "checkout"
	TransactionRestocking TransactionType = "restocking"
)

// StockTransaction is one entry of the append-only movement ledger.
// DepartmentID is the side the stock left ("" for the warehouse) and
// CounterpartDepartmentID the side it reached, when there is one.
type StockTransaction struct {
	ID                      string          `db:"id" json:"id"`
	Type                    TransactionType `db:"type" json:"type"`
	ItemID                  *string         `db:"item_id" json:"item_id,omitempty"`
	ItemName                string          `db:"item_name" json:"item_name"`
	DepartmentID            string          `db:"department_id" json:"department_id"`
	CounterpartDepartmentID *string         `db:"counterpart_department_id" json:"counterpart_department_id,omitempty"`
	Quantity                int             `db:"quantity" json:"quantity"`
	Category                *string         `db:"category" json:"category,omitempty"`
	PerformedBy             string          `db:"performed_by" json:"performed_by"`
	RequisitionID           *string         `db:"requisition_id" json:"requisition_id,omitempty"`
	ProcurementID           *string         `db:"procurement_id" json:"procurement_id,omitempty"`
	Note                    *string         `db:"note" json:"note,omitempty"`
	CreatedAt               time.Time       `db:"created_at" json:"created_at"`
	DeletedAt               *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// TransactionFilter narrows ledger listings
type TransactionFilter struct {
	ItemID        string
	DepartmentID  *string
	Type          TransactionType
	RequisitionID string
	Limit         int
	Offset        int
}

const transactionColumns = `id, type, item_id, item_name, department_id, counterpart_department_id, quantity,
	category, performed_by, requisition_id, procurement_id, note, created_at, deleted_at`

// TransactionRepository handles stock transaction persistence
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a transaction
func (r *TransactionRepository) Create(ctx context.Context, tx *StockTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_transactions (
			id, type, item_id, item_name, department_id, counterpart_department_id, quantity,
			category, performed_by, requisition_id, procurement_id, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`

	err := r.db.Querier(ctx).QueryRowxContext(ctx, query,
		tx.ID, tx.Type, tx.ItemID, tx.ItemName, tx.DepartmentID, tx.CounterpartDepartmentID, tx.Quantity,
		tx.Category, tx.PerformedBy, tx.RequisitionID, tx.ProcurementID, tx.Note,
	).Scan(&tx.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// List lists live transactions newest first and returns the unpaged total.
func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]*StockTransaction, int, error) {
	w := filter{conds: []string{"deleted_at IS NULL"}}
	if f.ItemID != "" {
		w.add("item_id = $%d", f.ItemID)
	}
	if f.DepartmentID != nil {
		w.add("(department_id = $%[1]d OR counterpart_department_id = $%[1]d)", *f.DepartmentID)
	}
	if f.Type != "" {
		w.add("type = $%d", f.Type)
	}
	if f.RequisitionID != "" {
		w.add("requisition_id = $%d", f.RequisitionID)
	}

	q := r.db.Querier(ctx)

	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM inventory_transactions`+w.where(), w.args...); err != nil {
		return nil, 0, err
	}

	limit, args := w.page(f.Limit, f.Offset)
	query := `SELECT ` + transactionColumns + ` FROM inventory_transactions` + w.where() +
		` ORDER BY created_at DESC, id` + limit

	var txs []*StockTransaction
	if err := sqlx.SelectContext(ctx, q, &txs, query, args...); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// SoftDelete hides a transaction from listings. Stock is not touched.
func (r *TransactionRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NotFound("transaction")
	}

	result, err := r.db.Querier(ctx).ExecContext(ctx,
		`UPDATE inventory_transactions SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("transaction")
	}
	return nil
}
