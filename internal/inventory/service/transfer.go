package service

import (
	"context"
	"strings"

	"github.com/medflow/hospital-erp/internal/inventory/events"
	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/pkg/database"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/logger"
	"github.com/medflow/hospital-erp/pkg/messaging"
)

// TransferInput moves stock of one item between locations. An empty
// department is the central warehouse.
type TransferInput struct {
	ItemName       string
	Quantity       int
	FromDepartment string
	ToDepartment   string
	Note           *string
}

// TransferResult describes a completed transfer
type TransferResult struct {
	Transaction *repository.StockTransaction `json:"transaction"`
	Source      *repository.InventoryItem    `json:"source"`
	Destination *repository.InventoryItem    `json:"destination"`
	Draws       []Draw                       `json:"draws"`
}

// TransferService moves stock between the warehouse and departments
type TransferService struct {
	db           *database.DB
	ledger       *LedgerService
	items        *repository.ItemRepository
	transactions *repository.TransactionRepository
	notifier     Notifier
	logger       *logger.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(
	db *database.DB,
	ledger *LedgerService,
	items *repository.ItemRepository,
	transactions *repository.TransactionRepository,
	notifier Notifier,
	log *logger.Logger,
) *TransferService {
	return &TransferService{
		db:           db,
		ledger:       ledger,
		items:        items,
		transactions: transactions,
		notifier:     notifierOrNop(notifier),
		logger:       log.WithComponent("transfer"),
	}
}

// Transfer debits the source and credits the destination in one transaction.
// The destination gets one batch per source batch drawn, so expiry dates
// travel with the stock.
func (s *TransferService) Transfer(ctx context.Context, actor *identity.Identity, in TransferInput) (*TransferResult, error) {
	in.ItemName = strings.TrimSpace(in.ItemName)
	if in.Quantity <= 0 {
		return nil, errors.InvalidQuantity(in.Quantity)
	}
	if in.FromDepartment == in.ToDepartment {
		return nil, errors.Validation(map[string]string{"to_department": "must differ from from_department"})
	}
	if !actor.CanAccessDepartment(in.FromDepartment) {
		return nil, errors.Forbidden("no access to the source location")
	}

	result := &TransferResult{}
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		src, err := s.items.LockByName(ctx, in.ItemName, in.FromDepartment)
		if err != nil {
			return err
		}

		draws, _, err := s.ledger.allocate(ctx, src, in.Quantity)
		if err != nil {
			return err
		}

		dst, err := s.ledger.CreateOrMergeItem(ctx, NewItem{
			Name:         src.Name,
			DepartmentID: in.ToDepartment,
			Category:     src.Category,
			Unit:         src.Unit,
		})
		if err != nil {
			return err
		}
		if err := s.ledger.credit(ctx, dst, draws); err != nil {
			return err
		}

		tx := &repository.StockTransaction{
			Type:                    repository.TransactionTransfer,
			ItemID:                  &src.ID,
			ItemName:                src.Name,
			DepartmentID:            in.FromDepartment,
			CounterpartDepartmentID: &in.ToDepartment,
			Quantity:                in.Quantity,
			Category:                src.Category,
			PerformedBy:             actor.UserID,
			Note:                    in.Note,
		}
		if err := s.transactions.Create(ctx, tx); err != nil {
			return err
		}

		result.Transaction, result.Source, result.Destination, result.Draws = tx, src, dst, draws
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("item", in.ItemName).
		Str("from", in.FromDepartment).
		Str("to", in.ToDepartment).
		Int("quantity", in.Quantity).
		Msg("stock transferred")
	s.notifier.Notify(ctx, messaging.EventStockTransferred, events.StockMoved(result.Transaction))
	return result, nil
}
