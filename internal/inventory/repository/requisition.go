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

// RequisitionStatus is the workflow state of a requisition
type RequisitionStatus string

const (
	RequisitionPending     RequisitionStatus = "pending"
	RequisitionApproved    RequisitionStatus = "approved"
	RequisitionRejected    RequisitionStatus = "rejected"
	RequisitionRestocking  RequisitionStatus = "restocking"
	RequisitionProcurement RequisitionStatus = "procurement"
	RequisitionCompleted   RequisitionStatus = "completed"
)

// Requisition is a department's request for stock from the warehouse
type Requisition struct {
	ID           string            `db:"id" json:"id"`
	RequesterID  string            `db:"requester_id" json:"requester_id"`
	DepartmentID string            `db:"department_id" json:"department_id"`
	ItemName     string            `db:"item_name" json:"item_name"`
	Quantity     int               `db:"quantity" json:"quantity"`
	Status       RequisitionStatus `db:"status" json:"status"`
	ApprovedBy   *string           `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time        `db:"approved_at" json:"approved_at,omitempty"`
	CompletedAt  *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	Note         *string           `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// RequisitionFilter narrows requisition listings
type RequisitionFilter struct {
	DepartmentID string
	Status       RequisitionStatus
	RequesterID  string
	Limit        int
	Offset       int
}

const requisitionColumns = `id, requester_id, department_id, item_name, quantity, status,
	approved_by, approved_at, completed_at, note, created_at, updated_at`

// RequisitionRepository handles requisition persistence
type RequisitionRepository struct {
	db *database.DB
}

// NewRequisitionRepository creates a new requisition repository
func NewRequisitionRepository(db *database.DB) *RequisitionRepository {
	return &RequisitionRepository{db: db}
}

// Create creates a new requisition
func (r *RequisitionRepository) Create(ctx context.Context, req *Requisition) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = RequisitionPending
	}

	query := `
		INSERT INTO inventory_requisitions (id, requester_id, department_id, item_name, quantity, status, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.Querier(ctx).QueryRowxContext(ctx, query,
		req.ID, req.RequesterID, req.DepartmentID, req.ItemName, req.Quantity, req.Status, req.Note,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a requisition by ID
func (r *RequisitionRepository) GetByID(ctx context.Context, id string) (*Requisition, error) {
	return r.get(ctx, id, false)
}

// LockByID gets a requisition and locks its row for the rest of the transaction.
func (r *RequisitionRepository) LockByID(ctx context.Context, id string) (*Requisition, error) {
	return r.get(ctx, id, true)
}

func (r *RequisitionRepository) get(ctx context.Context, id string, lock bool) (*Requisition, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("requisition")
	}

	query := `SELECT ` + requisitionColumns + ` FROM inventory_requisitions WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var req Requisition
	if err := sqlx.GetContext(ctx, r.db.Querier(ctx), &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("requisition")
		}
		return nil, err
	}
	return &req, nil
}

// UpdateStatus persists the status and approval/completion stamps of req.
func (r *RequisitionRepository) UpdateStatus(ctx context.Context, req *Requisition) error {
	query := `
		UPDATE inventory_requisitions
		SET status = $2, approved_by = $3, approved_at = $4, completed_at = $5
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.Querier(ctx).QueryRowxContext(ctx, query,
		req.ID, req.Status, req.ApprovedBy, req.ApprovedAt, req.CompletedAt,
	).Scan(&req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NotFound("requisition")
	}
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// List lists requisitions newest first and returns the unpaged total.
func (r *RequisitionRepository) List(ctx context.Context, f RequisitionFilter) ([]*Requisition, int, error) {
	var w filter
	if f.DepartmentID != "" {
		w.add("department_id = $%d", f.DepartmentID)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.RequesterID != "" {
		w.add("requester_id = $%d", f.RequesterID)
	}

	q := r.db.Querier(ctx)

	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM inventory_requisitions`+w.where(), w.args...); err != nil {
		return nil, 0, err
	}

	limit, args := w.page(f.Limit, f.Offset)
	query := `SELECT ` + requisitionColumns + ` FROM inventory_requisitions` + w.where() +
		` ORDER BY created_at DESC, id` + limit

	var reqs []*Requisition
	if err := sqlx.SelectContext(ctx, q, &reqs, query, args...); err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}
