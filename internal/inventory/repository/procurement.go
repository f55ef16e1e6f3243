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

// ProcurementStatus is the state of a procurement request
type ProcurementStatus string

const (
	ProcurementPending   ProcurementStatus = "pending"
	ProcurementApproved  ProcurementStatus = "approved"
	ProcurementRejected  ProcurementStatus = "rejected"
	ProcurementCompleted ProcurementStatus = "completed"
)

// Priority of a procurement request
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ProcurementRequest asks purchasing to buy stock for the warehouse.
// ApprovalToken correlates the request with the external approval flow.
type ProcurementRequest struct {
	ID            string            `db:"id" json:"id"`
	Title         string            `db:"title" json:"title"`
	ItemName      string            `db:"item_name" json:"item_name"`
	Quantity      int               `db:"quantity" json:"quantity"`
	Priority      Priority          `db:"priority" json:"priority"`
	Status        ProcurementStatus `db:"status" json:"status"`
	Deadline      time.Time         `db:"deadline" json:"deadline"`
	RequestedBy   string            `db:"requested_by" json:"requested_by"`
	RequisitionID *string           `db:"requisition_id" json:"requisition_id,omitempty"`
	ApprovalToken string            `db:"approval_token" json:"approval_token"`
	DecidedBy     *string           `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt     *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
	CompletedAt   *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	Note          *string           `db:"note" json:"note,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// ProcurementFilter narrows procurement listings
type ProcurementFilter struct {
	Status        ProcurementStatus
	ItemName      string
	RequisitionID string
	Limit         int
	Offset        int
}

const procurementColumns = `id, title, item_name, quantity, priority, status, deadline, requested_by,
	requisition_id, approval_token, decided_by, decided_at, completed_at, note, created_at, updated_at`

// ProcurementRepository handles procurement request persistence
type ProcurementRepository struct {
	db *database.DB
}

// NewProcurementRepository creates a new procurement repository
func NewProcurementRepository(db *database.DB) *ProcurementRepository {
	return &ProcurementRepository{db: db}
}

// CreateIfNoPending inserts the request unless a pending one with the same
// title exists. The check and the insert are one statement, so concurrent
// callers cannot both create. Returns false when nothing was inserted.
func (r *ProcurementRepository) CreateIfNoPending(ctx context.Context, p *ProcurementRequest) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.ApprovalToken == "" {
		p.ApprovalToken = uuid.New().String()
	}
	if p.Priority == "" {
		p.Priority = PriorityNormal
	}
	p.Status = ProcurementPending

	query := `
		INSERT INTO procurement_requests (
			id, title, item_name, quantity, priority, status, deadline, requested_by,
			requisition_id, approval_token, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (title) WHERE status = 'pending' DO NOTHING
		RETURNING created_at, updated_at`

	err := r.db.Querier(ctx).QueryRowxContext(ctx, query,
		p.ID, p.Title, p.ItemName, p.Quantity, p.Priority, p.Status, p.Deadline, p.RequestedBy,
		p.RequisitionID, p.ApprovalToken, p.Note,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return false, appErr
		}
		return false, err
	}
	return true, nil
}

// GetByID gets a procurement request by ID
func (r *ProcurementRepository) GetByID(ctx context.Context, id string) (*ProcurementRequest, error) {
	return r.get(ctx, "id", id, false)
}

// LockByID gets a procurement request and locks its row
func (r *ProcurementRepository) LockByID(ctx context.Context, id string) (*ProcurementRequest, error) {
	return r.get(ctx, "id", id, true)
}

// LockByApprovalToken locks the request the external approval decision refers to
func (r *ProcurementRepository) LockByApprovalToken(ctx context.Context, token string) (*ProcurementRequest, error) {
	return r.get(ctx, "approval_token", token, true)
}

func (r *ProcurementRepository) get(ctx context.Context, column, value string, lock bool) (*ProcurementRequest, error) {
	if _, err := uuid.Parse(value); err != nil {
		return nil, errors.NotFound("procurement request")
	}

	query := `SELECT ` + procurementColumns + ` FROM procurement_requests WHERE ` + column + ` = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var p ProcurementRequest
	if err := sqlx.GetContext(ctx, r.db.Querier(ctx), &p, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("procurement request")
		}
		return nil, err
	}
	return &p, nil
}

// UpdateStatus persists the status and decision/completion stamps of p
func (r *ProcurementRepository) UpdateStatus(ctx context.Context, p *ProcurementRequest) error {
	query := `
		UPDATE procurement_requests
		SET status = $2, decided_by = $3, decided_at = $4, completed_at = $5
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.Querier(ctx).QueryRowxContext(ctx, query,
		p.ID, p.Status, p.DecidedBy, p.DecidedAt, p.CompletedAt,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NotFound("procurement request")
	}
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// CountPending counts pending requests with the title
func (r *ProcurementRepository) CountPending(ctx context.Context, title string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db.Querier(ctx), &n,
		`SELECT COUNT(*) FROM procurement_requests WHERE title = $1 AND status = 'pending'`, title)
	return n, err
}

// List lists procurement requests newest first and returns the unpaged total.
func (r *ProcurementRepository) List(ctx context.Context, f ProcurementFilter) ([]*ProcurementRequest, int, error) {
	var w filter
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.ItemName != "" {
		w.add("item_name = $%d", f.ItemName)
	}
	if f.RequisitionID != "" {
		w.add("requisition_id = $%d", f.RequisitionID)
	}

	q := r.db.Querier(ctx)

	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM procurement_requests`+w.where(), w.args...); err != nil {
		return nil, 0, err
	}

	limit, args := w.page(f.Limit, f.Offset)
	query := `SELECT ` + procurementColumns + ` FROM procurement_requests` + w.where() +
		` ORDER BY created_at DESC, id` + limit

	var list []*ProcurementRequest
	if err := sqlx.SelectContext(ctx, q, &list, query, args...); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
