package service

import (
	"context"
	"strings"
	"time"

	"github.com/medflow/hospital-erp/internal/inventory/events"
	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/pkg/database"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/logger"
	"github.com/medflow/hospital-erp/pkg/messaging"
)

// CreateProcurementInput describes a manually raised procurement request
type CreateProcurementInput struct {
	Title    string
	ItemName string
	Quantity int
	Priority repository.Priority
	Deadline *time.Time
	Note     *string
}

// ReceiveInput describes the goods delivered for a procurement request
type ReceiveInput struct {
	ExpiryDate *time.Time
	Supplier   *string
}

// ProcurementService manages procurement requests from creation to receipt
type ProcurementService struct {
	db           *database.DB
	procurements *repository.ProcurementRepository
	requisitions *repository.RequisitionRepository
	transactions *repository.TransactionRepository
	ledger       *LedgerService
	policy       RestockPolicy
	notifier     Notifier
	logger       *logger.Logger
}

// NewProcurementService creates a new procurement service
func NewProcurementService(
	db *database.DB,
	procurements *repository.ProcurementRepository,
	requisitions *repository.RequisitionRepository,
	transactions *repository.TransactionRepository,
	ledger *LedgerService,
	policy RestockPolicy,
	notifier Notifier,
	log *logger.Logger,
) *ProcurementService {
	return &ProcurementService{
		db:           db,
		procurements: procurements,
		requisitions: requisitions,
		transactions: transactions,
		ledger:       ledger,
		policy:       policy,
		notifier:     notifierOrNop(notifier),
		logger:       log.WithComponent("procurement"),
	}
}

// Create raises a request unless a pending one with the same title exists,
// in which case created is false and nothing is returned.
func (s *ProcurementService) Create(ctx context.Context, actor *identity.Identity, in CreateProcurementInput) (*repository.ProcurementRequest, bool, error) {
	if in.Quantity <= 0 {
		return nil, false, errors.InvalidQuantity(in.Quantity)
	}
	in.ItemName = strings.TrimSpace(in.ItemName)
	if in.ItemName == "" {
		return nil, false, errors.Validation(map[string]string{"item_name": "is required"})
	}
	if in.Title == "" {
		in.Title = RestockTitle(in.ItemName)
	}
	if in.Priority == "" {
		in.Priority = repository.PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, false, errors.Validation(map[string]string{"priority": "must be one of: low, normal, high, urgent"})
	}

	deadline := time.Now().Add(s.policy.Deadline).UTC()
	if in.Deadline != nil {
		deadline = in.Deadline.UTC()
	}

	req := &repository.ProcurementRequest{
		Title:       in.Title,
		ItemName:    in.ItemName,
		Quantity:    in.Quantity,
		Priority:    in.Priority,
		Deadline:    deadline,
		RequestedBy: actor.UserID,
		Note:        in.Note,
	}
	created, err := s.procurements.CreateIfNoPending(ctx, req)
	if err != nil || !created {
		return nil, false, err
	}

	s.logger.WithProcurement(req.ID).Info().Str("title", req.Title).Msg("procurement request created")
	s.notifier.Notify(ctx, messaging.EventProcurementRequested, events.Procurement(req))
	return req, true, nil
}

// Decide applies the external approval flow's verdict to the request the
// token belongs to.
func (s *ProcurementService) Decide(ctx context.Context, approvalToken string, approved bool, decidedBy string) (*repository.ProcurementRequest, error) {
	return s.decide(ctx, func(ctx context.Context) (*repository.ProcurementRequest, error) {
		return s.procurements.LockByApprovalToken(ctx, approvalToken)
	}, approved, decidedBy)
}

// Approve approves a pending request by hand
func (s *ProcurementService) Approve(ctx context.Context, id string, actor *identity.Identity) (*repository.ProcurementRequest, error) {
	return s.decide(ctx, func(ctx context.Context) (*repository.ProcurementRequest, error) {
		return s.procurements.LockByID(ctx, id)
	}, true, actor.UserID)
}

// Reject rejects a pending request by hand
func (s *ProcurementService) Reject(ctx context.Context, id string, actor *identity.Identity) (*repository.ProcurementRequest, error) {
	return s.decide(ctx, func(ctx context.Context) (*repository.ProcurementRequest, error) {
		return s.procurements.LockByID(ctx, id)
	}, false, actor.UserID)
}

func (s *ProcurementService) decide(
	ctx context.Context,
	lock func(context.Context) (*repository.ProcurementRequest, error),
	approved bool,
	decidedBy string,
) (*repository.ProcurementRequest, error) {
	var p *repository.ProcurementRequest
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = lock(ctx); err != nil {
			return err
		}
		if p.Status != repository.ProcurementPending {
			op := "reject procurement"
			if approved {
				op = "approve procurement"
			}
			return errors.InvalidStateTransition(op, string(p.Status))
		}

		now := time.Now().UTC()
		p.Status = repository.ProcurementRejected
		if approved {
			p.Status = repository.ProcurementApproved
		}
		p.DecidedBy = &decidedBy
		p.DecidedAt = &now
		if err := s.procurements.UpdateStatus(ctx, p); err != nil {
			return err
		}

		if approved {
			return s.advanceRequisition(ctx, p, OpProcure)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := messaging.EventProcurementRejected
	if approved {
		kind = messaging.EventProcurementApproved
	}
	s.logger.WithProcurement(p.ID).Info().
		Str("status", string(p.Status)).
		Str("decided_by", decidedBy).
		Msg("procurement request decided")
	s.notifier.Notify(ctx, kind, events.Procurement(p))
	return p, nil
}

// Complete receives the goods of an approved request into the warehouse and
// hands a linked requisition back to the approver.
func (s *ProcurementService) Complete(ctx context.Context, id string, actor *identity.Identity, in ReceiveInput) (*repository.ProcurementRequest, error) {
	var (
		p  *repository.ProcurementRequest
		tx *repository.StockTransaction
	)

	err := s.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.procurements.LockByID(ctx, id); err != nil {
			return err
		}
		if p.Status != repository.ProcurementApproved {
			return errors.InvalidStateTransition("complete procurement", string(p.Status))
		}

		item, err := s.ledger.CreateOrMergeItem(ctx, NewItem{
			Name:         p.ItemName,
			DepartmentID: repository.WarehouseDepartment,
		})
		if err != nil {
			return err
		}
		if _, err := s.ledger.AddBatch(ctx, item.ID, p.Quantity, in.ExpiryDate, in.Supplier); err != nil {
			return err
		}

		tx = &repository.StockTransaction{
			Type:          repository.TransactionRestocking,
			ItemID:        &item.ID,
			ItemName:      item.Name,
			DepartmentID:  repository.WarehouseDepartment,
			Quantity:      p.Quantity,
			Category:      item.Category,
			PerformedBy:   actor.UserID,
			RequisitionID: p.RequisitionID,
			ProcurementID: &p.ID,
		}
		if err := s.transactions.Create(ctx, tx); err != nil {
			return err
		}

		now := time.Now().UTC()
		p.Status = repository.ProcurementCompleted
		p.CompletedAt = &now
		if err := s.procurements.UpdateStatus(ctx, p); err != nil {
			return err
		}
		return s.advanceRequisition(ctx, p, OpResubmit)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithProcurement(p.ID).WithItem(p.ItemName, "").Info().
		Int("quantity", p.Quantity).
		Msg("procurement received")
	s.notifier.Notify(ctx, messaging.EventStockReceived, events.StockMoved(tx))
	s.notifier.Notify(ctx, messaging.EventProcurementCompleted, events.Procurement(p))
	return p, nil
}

// Get gets a procurement request by ID
func (s *ProcurementService) Get(ctx context.Context, id string) (*repository.ProcurementRequest, error) {
	return s.procurements.GetByID(ctx, id)
}

// List lists procurement requests
func (s *ProcurementService) List(ctx context.Context, f repository.ProcurementFilter) ([]*repository.ProcurementRequest, int, error) {
	return s.procurements.List(ctx, f)
}

// advanceRequisition moves the linked requisition along when its state allows
// op. Requisitions that moved on in the meantime are left alone.
func (s *ProcurementService) advanceRequisition(ctx context.Context, p *repository.ProcurementRequest, op string) error {
	if p.RequisitionID == nil {
		return nil
	}

	req, err := s.requisitions.LockByID(ctx, *p.RequisitionID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !CanTransition(op, req.Status) {
		return nil
	}

	req.Status = NextStatus(op, req)
	if err := s.requisitions.UpdateStatus(ctx, req); err != nil {
		return err
	}
	s.logger.WithRequisition(req.ID).Info().
		Str("procurement_id", p.ID).
		Str("status", string(req.Status)).
		Msg("requisition advanced by procurement")
	return nil
}
