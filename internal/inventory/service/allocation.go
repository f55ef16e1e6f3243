package service

import (
	"context"
	"sort"
	"time"

	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/pkg/errors"
)

// Draw is the quantity taken from one batch by an allocation.
type Draw struct {
	BatchID    string     `json:"batch_id"`
	Quantity   int        `json:"quantity"`
	Remaining  int        `json:"remaining"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	Supplier   *string    `json:"supplier,omitempty"`
}

// PlanAllocation decides which batches to draw from, earliest expiry first
// with undated batches last and creation order breaking ties. It does not
// touch the input. When the batches hold less than quantity the error carries
// the available total and no plan is returned.
func PlanAllocation(itemName string, batches []*repository.InventoryBatch, quantity int) ([]Draw, error) {
	if quantity <= 0 {
		return nil, errors.InvalidQuantity(quantity)
	}

	ordered := make([]*repository.InventoryBatch, 0, len(batches))
	available := 0
	for _, b := range batches {
		if b.Quantity > 0 {
			ordered = append(ordered, b)
			available += b.Quantity
		}
	}
	if available < quantity {
		return nil, errors.InsufficientStock(itemName, quantity, available)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return expiresBefore(ordered[i], ordered[j])
	})

	draws := make([]Draw, 0, len(ordered))
	need := quantity
	for _, b := range ordered {
		if need == 0 {
			break
		}
		take := min(b.Quantity, need)
		draws = append(draws, Draw{
			BatchID:    b.ID,
			Quantity:   take,
			Remaining:  b.Quantity - take,
			ExpiryDate: b.ExpiryDate,
			Supplier:   b.Supplier,
		})
		need -= take
	}
	return draws, nil
}

func expiresBefore(a, b *repository.InventoryBatch) bool {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate == nil:
		return a.Seq < b.Seq
	case a.ExpiryDate == nil:
		return false
	case b.ExpiryDate == nil:
		return true
	case !a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.ExpiryDate.Before(*b.ExpiryDate)
	default:
		return a.Seq < b.Seq
	}
}

// DrawTotal sums the quantities of draws.
func DrawTotal(draws []Draw) int {
	total := 0
	for _, d := range draws {
		total += d.Quantity
	}
	return total
}

// allocate draws quantity from item's batches. The caller must hold the item
// row lock and an open transaction; nothing is written unless the whole
// quantity can be served.
func (s *LedgerService) allocate(ctx context.Context, item *repository.InventoryItem, quantity int) ([]Draw, int, error) {
	batches, err := s.batches.LockAvailable(ctx, item.ID)
	if err != nil {
		return nil, 0, err
	}

	draws, err := PlanAllocation(item.Name, batches, quantity)
	if err != nil {
		return nil, 0, err
	}

	for _, d := range draws {
		if err := s.batches.UpdateQuantity(ctx, d.BatchID, d.Remaining); err != nil {
			return nil, 0, err
		}
	}

	remaining := 0
	for _, b := range batches {
		remaining += b.Quantity
	}
	return draws, remaining - quantity, nil
}

// credit adds one batch to item per draw, keeping each draw's expiry and supplier.
func (s *LedgerService) credit(ctx context.Context, item *repository.InventoryItem, draws []Draw) error {
	for _, d := range draws {
		batch := &repository.InventoryBatch{
			ItemID:     item.ID,
			Quantity:   d.Quantity,
			ExpiryDate: d.ExpiryDate,
			Supplier:   d.Supplier,
		}
		if err := s.batches.Create(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}
