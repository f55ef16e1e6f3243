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

// SubmitInput describes a new requisition. An empty DepartmentID means the
// requester's own department.
type SubmitInput struct {
	ItemName     string
	DepartmentID string
	Quantity     int
	Note         *string
}

// RequisitionService drives the requisition workflow
type RequisitionService struct {
	db           *database.DB
	requisitions *repository.RequisitionRepository
	items        *repository.ItemRepository
	transactions *repository.TransactionRepository
	procurements *repository.ProcurementRepository
	ledger       *LedgerService
	restock      *RestockService
	notifier     Notifier
	logger       *logger.Logger
}

// NewRequisitionService creates a new requisition service
func NewRequisitionService(
	db *database.DB,
	requisitions *repository.RequisitionRepository,
	items *repository.ItemRepository,
	transactions *repository.TransactionRepository,
	procurements *repository.ProcurementRepository,
	ledger *LedgerService,
	restock *RestockService,
	notifier Notifier,
	log *logger.Logger,
) *RequisitionService {
	return &RequisitionService{
		db:           db,
		requisitions: requisitions,
		items:        items,
		transactions: transactions,
		procurements: procurements,
		ledger:       ledger,
		restock:      restock,
		notifier:     notifierOrNop(notifier),
		logger:       log.WithComponent("requisition"),
	}
}

// Submit creates a pending requisition
func (s *RequisitionService) Submit(ctx context.Context, actor *identity.Identity, in SubmitInput) (*repository.Requisition, error) {
	if in.Quantity <= 0 {
		return nil, errors.InvalidQuantity(in.Quantity)
	}
	in.ItemName = strings.TrimSpace(in.ItemName)
	if in.ItemName == "" {
		return nil, errors.Validation(map[string]string{"item_name": "is required"})
	}
	if in.DepartmentID == "" && actor != nil {
		in.DepartmentID = actor.DepartmentID
	}
	if in.DepartmentID == "" {
		return nil, errors.Validation(map[string]string{"department_id": "is required"})
	}
	if !actor.CanAccessDepartment(in.DepartmentID) {
		return nil, errors.Forbidden("cannot request stock for another department")
	}

	req := &repository.Requisition{
		RequesterID:  actor.UserID,
		DepartmentID: in.DepartmentID,
		ItemName:     in.ItemName,
		Quantity:     in.Quantity,
		Status:       repository.RequisitionPending,
		Note:         in.Note,
	}
	if err := s.requisitions.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.WithRequisition(req.ID).WithItem(req.ItemName, req.DepartmentID).Info().
		Int("quantity", req.Quantity).
		Msg("requisition submitted")
	s.notifier.Notify(ctx, messaging.EventRequisitionSubmitted, events.Requisition(req, actor.UserID, nil))
	return req, nil
}

// Approve serves a pending requisition from the warehouse. When the warehouse
// holds too little, the requisition is moved to restocking and the item's
// restock request is raised if it is low and none is pending. Both are
// committed, and InsufficientStock is returned together with the updated record.
func (s *RequisitionService) Approve(ctx context.Context, id string, approver *identity.Identity) (*repository.Requisition, error) {
	var (
		req       *repository.Requisition
		warehouse *repository.InventoryItem
		remaining int
		shortage  error
		restock   *repository.ProcurementRequest
	)

	err := s.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.lockFor(ctx, id, OpApprove); err != nil {
			return err
		}

		if warehouse, err = s.items.LockByName(ctx, req.ItemName, repository.WarehouseDepartment); err != nil {
			return err
		}

		draws, left, err := s.ledger.allocate(ctx, warehouse, req.Quantity)
		if errors.Is(err, errors.ErrInsufficientStock) {
			shortage = err
			req.Status = TargetStatus(OpRestock)
			if err := s.requisitions.UpdateStatus(ctx, req); err != nil {
				return err
			}
			available, _ := errors.AvailableStock(shortage)
			restock, err = s.restock.raise(ctx, warehouse, available)
			return err
		}
		if err != nil {
			return err
		}
		remaining = left

		mirror, err := s.ledger.CreateOrMergeItem(ctx, NewItem{
			Name:         warehouse.Name,
			DepartmentID: req.DepartmentID,
			Category:     warehouse.Category,
			Unit:         warehouse.Unit,
		})
		if err != nil {
			return err
		}
		if err := s.ledger.credit(ctx, mirror, draws); err != nil {
			return err
		}

		if err := s.transactions.Create(ctx, &repository.StockTransaction{
			Type:                    repository.TransactionTransfer,
			ItemID:                  &warehouse.ID,
			ItemName:                warehouse.Name,
			DepartmentID:            repository.WarehouseDepartment,
			CounterpartDepartmentID: &req.DepartmentID,
			Quantity:                req.Quantity,
			Category:                warehouse.Category,
			PerformedBy:             approver.UserID,
			RequisitionID:           &req.ID,
		}); err != nil {
			return err
		}

		now := time.Now().UTC()
		req.Status = TargetStatus(OpApprove)
		req.ApprovedBy = &approver.UserID
		req.ApprovedAt = &now
		return s.requisitions.UpdateStatus(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	log := s.logger.WithRequisition(req.ID)
	if shortage != nil {
		available, _ := errors.AvailableStock(shortage)
		log.Warn().
			Str("item", req.ItemName).
			Int("requested", req.Quantity).
			Int("available", available).
			Bool("restock_requested", restock != nil).
			Msg("insufficient warehouse stock, requisition moved to restocking")
		s.notifier.Notify(ctx, messaging.EventRequisitionRestocking, events.Requisition(req, approver.UserID, &available))
		if restock != nil {
			s.restock.announce(ctx, restock)
		}
		return req, shortage
	}

	log.WithItem(req.ItemName, req.DepartmentID).Info().
		Int("quantity", req.Quantity).
		Int("warehouse_remaining", remaining).
		Msg("requisition approved")
	s.notifier.Notify(ctx, messaging.EventRequisitionApproved, events.Requisition(req, approver.UserID, nil))

	if _, _, err := s.restock.RestockItem(ctx, warehouse, remaining); err != nil {
		log.Error().Err(err).Str("item", warehouse.Name).Msg("failed to raise restock request after approval")
	}
	return req, nil
}

// Reject closes a pending requisition
func (s *RequisitionService) Reject(ctx context.Context, id string, actor *identity.Identity) (*repository.Requisition, error) {
	var req *repository.Requisition
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.lockFor(ctx, id, OpReject); err != nil {
			return err
		}
		req.Status = TargetStatus(OpReject)
		return s.requisitions.UpdateStatus(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithRequisition(req.ID).Info().Str("actor", actor.String()).Msg("requisition rejected")
	s.notifier.Notify(ctx, messaging.EventRequisitionRejected, events.Requisition(req, actor.UserID, nil))
	return req, nil
}

// TriggerRestocking forces a non-terminal requisition into restocking and
// raises a procurement request for its quantity. Repeated calls do not raise
// a second request while the first is pending.
func (s *RequisitionService) TriggerRestocking(ctx context.Context, id string, actor *identity.Identity) (*repository.Requisition, *repository.ProcurementRequest, error) {
	var (
		req     *repository.Requisition
		request *repository.ProcurementRequest
	)

	err := s.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.lockFor(ctx, id, OpRestock); err != nil {
			return err
		}

		req.Status = TargetStatus(OpRestock)
		if err := s.requisitions.UpdateStatus(ctx, req); err != nil {
			return err
		}

		candidate := s.restock.newRequest(
			RequisitionRestockTitle(req.ID, req.ItemName), req.ItemName, req.Quantity, &req.ID)
		candidate.RequestedBy = actor.UserID

		created, err := s.procurements.CreateIfNoPending(ctx, candidate)
		if err != nil {
			return err
		}
		if created {
			request = candidate
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log := s.logger.WithRequisition(req.ID)
	log.Info().Str("item", req.ItemName).Bool("request_created", request != nil).Msg("requisition moved to restocking")
	s.notifier.Notify(ctx, messaging.EventRequisitionRestocking, events.Requisition(req, actor.UserID, nil))
	if request != nil {
		s.notifier.Notify(ctx, messaging.EventProcurementRequested, events.Procurement(request))
	}
	return req, request, nil
}

// Checkout consumes the approved quantity from the department's own stock
// and completes the requisition.
func (s *RequisitionService) Checkout(ctx context.Context, id string, actor *identity.Identity) (*repository.Requisition, error) {
	var (
		req *repository.Requisition
		tx  *repository.StockTransaction
	)

	err := s.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.requisitions.LockByID(ctx, id); err != nil {
			return err
		}
		if !CanTransition(OpCheckout, req.Status) {
			return errors.NotApproved(string(req.Status))
		}
		if !actor.CanAccessDepartment(req.DepartmentID) {
			return errors.Forbidden("cannot check out another department's requisition")
		}

		mirror, err := s.items.LockByName(ctx, req.ItemName, req.DepartmentID)
		if err != nil {
			return err
		}
		if _, _, err := s.ledger.allocate(ctx, mirror, req.Quantity); err != nil {
			return err
		}

		tx = &repository.StockTransaction{
			Type:          repository.TransactionCheckout,
			ItemID:        &mirror.ID,
			ItemName:      mirror.Name,
			DepartmentID:  mirror.DepartmentID,
			Quantity:      req.Quantity,
			Category:      mirror.Category,
			PerformedBy:   actor.UserID,
			RequisitionID: &req.ID,
		}
		if err := s.transactions.Create(ctx, tx); err != nil {
			return err
		}

		now := time.Now().UTC()
		req.Status = TargetStatus(OpCheckout)
		req.CompletedAt = &now
		return s.requisitions.UpdateStatus(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithRequisition(req.ID).WithItem(req.ItemName, req.DepartmentID).Info().
		Int("quantity", req.Quantity).
		Msg("requisition checked out")
	s.notifier.Notify(ctx, messaging.EventStockConsumed, events.StockMoved(tx))
	s.notifier.Notify(ctx, messaging.EventRequisitionCompleted, events.Requisition(req, actor.UserID, nil))
	return req, nil
}

// Get gets a requisition by ID
func (s *RequisitionService) Get(ctx context.Context, id string) (*repository.Requisition, error) {
	return s.requisitions.GetByID(ctx, id)
}

// List lists requisitions
func (s *RequisitionService) List(ctx context.Context, f repository.RequisitionFilter) ([]*repository.Requisition, int, error) {
	return s.requisitions.List(ctx, f)
}

// lockFor locks the requisition and checks op may run from its state.
func (s *RequisitionService) lockFor(ctx context.Context, id, op string) (*repository.Requisition, error) {
	req, err := s.requisitions.LockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(op, req.Status) {
		return nil, errors.InvalidStateTransition(op, string(req.Status))
	}
	return req, nil
}
