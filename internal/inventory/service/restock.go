package service

import (
	"context"
	"fmt"
	"time"

	"github.com/medflow/hospital-erp/internal/inventory/events"
	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/pkg/config"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/logger"
	"github.com/medflow/hospital-erp/pkg/messaging"
)

// RestockPolicy shapes the procurement requests raised for low stock
type RestockPolicy struct {
	Deadline time.Duration
	Priority repository.Priority
}

// DefaultRestockPolicy is three days at high priority.
func DefaultRestockPolicy() RestockPolicy {
	return RestockPolicy{Deadline: 72 * time.Hour, Priority: repository.PriorityHigh}
}

// RestockPolicyFromConfig builds the policy, keeping defaults for unset values.
func RestockPolicyFromConfig(cfg config.RestockConfig) RestockPolicy {
	p := DefaultRestockPolicy()
	if cfg.Deadline > 0 {
		p.Deadline = cfg.Deadline
	}
	if pr := repository.Priority(cfg.Priority); pr.Valid() {
		p.Priority = pr
	}
	return p
}

// RestockLevel is the stock an item is topped up to: the larger of its
// minimum and its threshold. For items whose threshold does not exceed the
// minimum this is min_stock, and orders come to min_stock - stock.
func RestockLevel(item *repository.InventoryItem) int {
	return max(item.MinStock, item.RestockThreshold)
}

// NeedsRestock reports whether stock is under the item's minimum or its threshold.
func NeedsRestock(item *repository.InventoryItem, stock int) bool {
	return stock < item.MinStock || stock < item.RestockThreshold
}

// RestockQuantity is how much to order to bring stock back to the restock level.
func RestockQuantity(item *repository.InventoryItem, stock int) int {
	return RestockLevel(item) - stock
}

// RestockTitle is the deduplication key of the scan's requests.
func RestockTitle(itemName string) string {
	return "Restock: " + itemName
}

// RequisitionRestockTitle keys requests raised for a single requisition.
func RequisitionRestockTitle(requisitionID, itemName string) string {
	return fmt.Sprintf("Restock for requisition %s: %s", requisitionID, itemName)
}

// ScanResult summarizes one restock scan
type ScanResult struct {
	Checked int                              `json:"checked"`
	Created []*repository.ProcurementRequest `json:"created"`
	Skipped int                              `json:"skipped"`
	Failed  int                              `json:"failed"`
}

// RestockService raises procurement requests for warehouse items running low
type RestockService struct {
	items        *repository.ItemRepository
	procurements *repository.ProcurementRepository
	policy       RestockPolicy
	notifier     Notifier
	logger       *logger.Logger
	now          func() time.Time
}

// NewRestockService creates a new restock service
func NewRestockService(
	items *repository.ItemRepository,
	procurements *repository.ProcurementRepository,
	policy RestockPolicy,
	notifier Notifier,
	log *logger.Logger,
) *RestockService {
	return &RestockService{
		items:        items,
		procurements: procurements,
		policy:       policy,
		notifier:     notifierOrNop(notifier),
		logger:       log.WithComponent("restock"),
		now:          time.Now,
	}
}

// Scan checks every warehouse item and raises one request per item below its
// restock level, unless a pending one already exists.
func (s *RestockService) Scan(ctx context.Context) (*ScanResult, error) {
	low, err := s.items.ListBelowRestockLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock items: %w", err)
	}

	result := &ScanResult{Checked: len(low), Created: []*repository.ProcurementRequest{}}
	for _, item := range low {
		req, created, err := s.RestockItem(ctx, item, item.TotalQuantity)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Error().Err(err).Str("item", item.Name).Msg("failed to raise restock request")
		case created:
			result.Created = append(result.Created, req)
		default:
			result.Skipped++
		}
	}

	s.logger.Info().
		Int("checked", result.Checked).
		Int("created", len(result.Created)).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("restock scan finished")
	return result, nil
}

// RestockItem raises the scan's request for one item given its current stock.
// It returns created=false when the item is not low or a pending request
// with the same title exists.
func (s *RestockService) RestockItem(ctx context.Context, item *repository.InventoryItem, stock int) (*repository.ProcurementRequest, bool, error) {
	req, err := s.raise(ctx, item, stock)
	if err != nil || req == nil {
		return nil, false, err
	}
	s.announce(ctx, req)
	return req, true, nil
}

// raise creates the request without notifying, for callers that run it inside
// their own transaction and announce after commit. It returns nil when
// nothing was created.
func (s *RestockService) raise(ctx context.Context, item *repository.InventoryItem, stock int) (*repository.ProcurementRequest, error) {
	if !item.IsWarehouse() || !NeedsRestock(item, stock) {
		return nil, nil
	}

	req := s.newRequest(RestockTitle(item.Name), item.Name, RestockQuantity(item, stock), nil)
	created, err := s.procurements.CreateIfNoPending(ctx, req)
	if err != nil || !created {
		return nil, err
	}

	s.logger.WithProcurement(req.ID).WithItem(item.Name, item.DepartmentID).Info().
		Int("stock", stock).
		Int("quantity", req.Quantity).
		Msg("restock request created")
	return req, nil
}

func (s *RestockService) announce(ctx context.Context, req *repository.ProcurementRequest) {
	s.notifier.Notify(ctx, messaging.EventProcurementRequested, events.Procurement(req))
}

func (s *RestockService) newRequest(title, itemName string, quantity int, requisitionID *string) *repository.ProcurementRequest {
	return &repository.ProcurementRequest{
		Title:         title,
		ItemName:      itemName,
		Quantity:      quantity,
		Priority:      s.policy.Priority,
		Deadline:      s.now().Add(s.policy.Deadline).UTC(),
		RequestedBy:   identity.SystemUserID,
		RequisitionID: requisitionID,
	}
}
