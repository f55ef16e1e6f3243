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

// LedgerService owns item and batch state: creation, receipt, consumption
// and the allocation primitives the other services build on.
type LedgerService struct {
	db           *database.DB
	items        *repository.ItemRepository
	batches      *repository.BatchRepository
	transactions *repository.TransactionRepository
	notifier     Notifier
	logger       *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	db *database.DB,
	items *repository.ItemRepository,
	batches *repository.BatchRepository,
	transactions *repository.TransactionRepository,
	notifier Notifier,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		db:           db,
		items:        items,
		batches:      batches,
		transactions: transactions,
		notifier:     notifierOrNop(notifier),
		logger:       log.WithComponent("ledger"),
	}
}

// NewItem describes an item to create or merge
type NewItem struct {
	Name             string
	DepartmentID     string
	Category         *string
	Unit             string
	MinStock         int
	RestockThreshold int
}

// ItemWithBatches represents an item with its batches
type ItemWithBatches struct {
	*repository.InventoryItem
	Batches []*repository.InventoryBatch `json:"batches"`
}

// UsageInput records department consumption
type UsageInput struct {
	ItemName     string
	DepartmentID string
	Quantity     int
	Note         *string
}

// CreateOrMergeItem returns the item with the name in the department,
// creating it when it does not exist yet. Existing items are not modified.
func (s *LedgerService) CreateOrMergeItem(ctx context.Context, in NewItem) (*repository.InventoryItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, errors.Validation(map[string]string{"name": "is required"})
	}
	if in.MinStock < 0 || in.RestockThreshold < 0 {
		return nil, errors.Validation(map[string]string{"min_stock": "stock levels cannot be negative"})
	}

	item, created, err := s.items.CreateOrGet(ctx, &repository.InventoryItem{
		Name:             in.Name,
		DepartmentID:     in.DepartmentID,
		Category:         in.Category,
		Unit:             in.Unit,
		MinStock:         in.MinStock,
		RestockThreshold: in.RestockThreshold,
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.WithItem(item.Name, item.DepartmentID).Info().
			Str("item_id", item.ID).
			Msg("inventory item created")
	}
	return item, nil
}

// AddBatch receives quantity units of the item as a new batch
func (s *LedgerService) AddBatch(ctx context.Context, itemID string, quantity int, expiry *time.Time, supplier *string) (*repository.InventoryBatch, error) {
	if quantity <= 0 {
		return nil, errors.InvalidQuantity(quantity)
	}

	var batch *repository.InventoryBatch
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.items.GetByID(ctx, itemID); err != nil {
			return err
		}
		batch = &repository.InventoryBatch{
			ItemID:     itemID,
			Quantity:   quantity,
			ExpiryDate: expiry,
			Supplier:   supplier,
		}
		return s.batches.Create(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("item_id", itemID).
		Str("batch_id", batch.ID).
		Int("quantity", quantity).
		Msg("batch added")
	return batch, nil
}

// TotalStock returns the sum of the item's batch quantities
func (s *LedgerService) TotalStock(ctx context.Context, itemID string) (int, error) {
	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return 0, err
	}
	return s.batches.TotalForItem(ctx, itemID)
}

// GetItem gets an item with its batches and total
func (s *LedgerService) GetItem(ctx context.Context, id string) (*ItemWithBatches, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	batches, err := s.batches.ListByItem(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, b := range batches {
		item.TotalQuantity += b.Quantity
	}
	return &ItemWithBatches{InventoryItem: item, Batches: batches}, nil
}

// ListItems lists items with their totals
func (s *LedgerService) ListItems(ctx context.Context, f repository.ItemFilter) ([]*repository.InventoryItem, error) {
	return s.items.List(ctx, f)
}

// ListBatches lists every batch of the item in allocation order
func (s *LedgerService) ListBatches(ctx context.Context, itemID string) ([]*repository.InventoryBatch, error) {
	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	return s.batches.ListByItem(ctx, itemID)
}

// RecordUsage consumes department stock, oldest expiry first, and records a
// usage transaction.
func (s *LedgerService) RecordUsage(ctx context.Context, actor *identity.Identity, in UsageInput) (*repository.StockTransaction, error) {
	if in.Quantity <= 0 {
		return nil, errors.InvalidQuantity(in.Quantity)
	}
	if !actor.CanAccessDepartment(in.DepartmentID) {
		return nil, errors.Forbidden("no access to this department's stock")
	}

	var tx *repository.StockTransaction
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		item, err := s.items.LockByName(ctx, in.ItemName, in.DepartmentID)
		if err != nil {
			return err
		}
		if _, _, err := s.allocate(ctx, item, in.Quantity); err != nil {
			return err
		}

		tx = &repository.StockTransaction{
			Type:         repository.TransactionUsage,
			ItemID:       &item.ID,
			ItemName:     item.Name,
			DepartmentID: item.DepartmentID,
			Quantity:     in.Quantity,
			Category:     item.Category,
			PerformedBy:  actor.UserID,
			Note:         in.Note,
		}
		return s.transactions.Create(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithItem(in.ItemName, in.DepartmentID).Info().
		Int("quantity", in.Quantity).
		Msg("stock consumed")
	s.notifier.Notify(ctx, messaging.EventStockConsumed, events.StockMoved(tx))
	return tx, nil
}
