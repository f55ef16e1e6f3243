package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/internal/inventory/service"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/messaging"
)

func TestRequisition_Submit(t *testing.T) {
	e := newEnv(t, "req-submit")
	ctx := context.Background()
	staff := suite.Fixtures.Staff("ICU")

	req := e.submit(t, staff, "Masks", 20)
	assert.Equal(t, repository.RequisitionPending, req.Status)
	assert.Equal(t, "ICU", req.DepartmentID, "defaults to the requester's department")
	assert.Equal(t, staff.UserID, req.RequesterID)

	_, err := e.requisition.Submit(ctx, staff, service.SubmitInput{ItemName: "Masks", Quantity: 0})
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))

	_, err = e.requisition.Submit(ctx, staff, service.SubmitInput{ItemName: "Masks", DepartmentID: "Oncology", Quantity: 1})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, err = e.requisition.Submit(ctx, e.admin, service.SubmitInput{ItemName: "Masks", Quantity: 1})
	assert.True(t, errors.Is(err, errors.ErrValidation), "global roles must name a department")

	assert.Equal(t, []string{messaging.EventRequisitionSubmitted}, e.notes.Kinds())
}

func TestRequisition_ApproveMovesStock(t *testing.T) {
	e := newEnv(t, "req-approve")
	ctx := context.Background()
	e.seed(t, "Masks", 0, 0, 80)
	req := e.submit(t, suite.Fixtures.Staff("ICU"), "Masks", 50)

	approved, err := e.requisition.Approve(ctx, req.ID, e.admin)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, e.admin.UserID, *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)

	assert.Equal(t, 30, e.stock(t, "Masks", ""))
	assert.Equal(t, 50, e.stock(t, "Masks", "ICU"))

	txs, _, err := e.transactions.List(ctx, repository.TransactionFilter{RequisitionID: req.ID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, repository.TransactionTransfer, txs[0].Type)

	_, err = e.requisition.Approve(ctx, req.ID, e.admin)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
}

func TestRequisition_ApproveShortageMovesToRestocking(t *testing.T) {
	e := newEnv(t, "req-shortage")
	ctx := context.Background()
	e.seed(t, "Catheters", 0, 40, 30)
	req := e.submit(t, suite.Fixtures.Staff("ICU"), "Catheters", 50)

	got, err := e.requisition.Approve(ctx, req.ID, e.admin)
	require.Error(t, err)
	available, ok := errors.AvailableStock(err)
	require.True(t, ok)
	assert.Equal(t, 30, available)

	require.NotNil(t, got)
	assert.Equal(t, repository.RequisitionRestocking, got.Status)

	stored, err := e.requisition.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionRestocking, stored.Status, "restocking state is committed")

	assert.Equal(t, 30, e.stock(t, "Catheters", ""))
	assert.Equal(t, -1, e.stock(t, "Catheters", "ICU"))
	assert.Contains(t, e.notes.Kinds(), messaging.EventRequisitionRestocking)

	// 30 is under the threshold of 40, so the shortage raises the item's restock request.
	requests, total, err := e.procurement.List(ctx, repository.ProcurementFilter{ItemName: "Catheters"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, service.RestockTitle("Catheters"), requests[0].Title)
	assert.Equal(t, 10, requests[0].Quantity)
	assert.Equal(t, repository.ProcurementPending, requests[0].Status)
	assert.Contains(t, e.notes.Kinds(), messaging.EventProcurementRequested)

	// A second shortage on the same item finds the pending request.
	other := e.submit(t, suite.Fixtures.Staff("ER"), "Catheters", 35)
	_, err = e.requisition.Approve(ctx, other.ID, e.admin)
	require.True(t, errors.Is(err, errors.ErrInsufficientStock))
	n, err := e.procurements.CountPending(ctx, service.RestockTitle("Catheters"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRequisition_ShortageAboveThresholdRaisesNothing(t *testing.T) {
	e := newEnv(t, "req-shortage-stocked")
	ctx := context.Background()
	e.seed(t, "Drapes", 10, 20, 60)
	req := e.submit(t, suite.Fixtures.Staff("ICU"), "Drapes", 80)

	_, err := e.requisition.Approve(ctx, req.ID, e.admin)
	require.True(t, errors.Is(err, errors.ErrInsufficientStock))

	_, total, err := e.procurement.List(ctx, repository.ProcurementFilter{ItemName: "Drapes"})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRequisition_ApproveUnknownItem(t *testing.T) {
	e := newEnv(t, "req-unknown-item")
	req := e.submit(t, suite.Fixtures.Staff("ICU"), "Unobtainium", 1)

	_, err := e.requisition.Approve(context.Background(), req.ID, e.admin)
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))

	stored, err := e.requisition.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionPending, stored.Status)
}

func TestRequisition_ApproveRaisesOneRestockRequest(t *testing.T) {
	e := newEnv(t, "req-restock-dedupe")
	ctx := context.Background()
	e.seed(t, "Gloves", 100, 0, 120)
	staff := suite.Fixtures.Staff("Surgery")

	first := e.submit(t, staff, "Gloves", 30)
	second := e.submit(t, staff, "Gloves", 30)

	_, err := e.requisition.Approve(ctx, first.ID, e.admin)
	require.NoError(t, err)

	requests, total, err := e.procurement.List(ctx, repository.ProcurementFilter{ItemName: "Gloves"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "Restock: Gloves", requests[0].Title)
	assert.Equal(t, 10, requests[0].Quantity)
	assert.Equal(t, repository.ProcurementPending, requests[0].Status)
	assert.Equal(t, repository.PriorityHigh, requests[0].Priority)

	_, err = e.requisition.Approve(ctx, second.ID, e.admin)
	require.NoError(t, err)
	assert.Equal(t, 60, e.stock(t, "Gloves", ""))

	n, err := e.procurements.CountPending(ctx, service.RestockTitle("Gloves"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRequisition_ConcurrentApprovalsNeverOversell(t *testing.T) {
	e := newEnv(t, "req-concurrent")
	ctx := context.Background()
	e.seed(t, "Masks", 0, 0, 60, 40)
	staff := suite.Fixtures.Staff("ICU")

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, e.submit(t, staff, "Masks", 30).ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		approved  int
		shortages int
		others    []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.requisition.Approve(ctx, id, e.admin)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, errors.ErrInsufficientStock):
				shortages++
			default:
				others = append(others, err)
			}
		}(id)
	}
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, 3, approved)
	assert.Equal(t, 2, shortages)
	assert.Equal(t, 10, e.stock(t, "Masks", ""))
	assert.Equal(t, 90, e.stock(t, "Masks", "ICU"))
}

func TestRequisition_ConcurrentApproveAndRejectOneWins(t *testing.T) {
	e := newEnv(t, "req-approve-vs-reject")
	ctx := context.Background()
	e.seed(t, "Masks", 0, 0, 100)
	req := e.submit(t, suite.Fixtures.Staff("ICU"), "Masks", 30)

	var (
		wg         sync.WaitGroup
		approveErr error
		rejectErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, approveErr = e.requisition.Approve(ctx, req.ID, e.admin)
	}()
	go func() {
		defer wg.Done()
		_, rejectErr = e.requisition.Reject(ctx, req.ID, e.admin)
	}()
	wg.Wait()

	stored, err := e.requisition.Get(ctx, req.ID)
	require.NoError(t, err)

	switch {
	case approveErr == nil:
		require.True(t, errors.Is(rejectErr, errors.ErrInvalidStateTransition), "reject: %v", rejectErr)
		assert.Equal(t, repository.RequisitionApproved, stored.Status)
		assert.Equal(t, 70, e.stock(t, "Masks", ""))
		assert.Equal(t, 30, e.stock(t, "Masks", "ICU"))
	case rejectErr == nil:
		require.True(t, errors.Is(approveErr, errors.ErrInvalidStateTransition), "approve: %v", approveErr)
		assert.Equal(t, repository.RequisitionRejected, stored.Status)
		assert.Equal(t, 100, e.stock(t, "Masks", ""))
		assert.Equal(t, -1, e.stock(t, "Masks", "ICU"))
	default:
		t.Fatalf("neither transition succeeded: approve=%v reject=%v", approveErr, rejectErr)
	}
}

func TestRequisition_Reject(t *testing.T) {
	e := newEnv(t, "req-reject")
	ctx := context.Background()
	req := e.submit(t, suite.Fixtures.Staff("ICU"), "Masks", 5)

	rejected, err := e.requisition.Reject(ctx, req.ID, e.admin)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionRejected, rejected.Status)

	_, err = e.requisition.Approve(ctx, req.ID, e.admin)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))

	_, _, err = e.requisition.TriggerRestocking(ctx, req.ID, e.admin)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))

	_, err = e.requisition.Reject(ctx, "not-a-uuid", e.admin)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRequisition_Checkout(t *testing.T) {
	e := newEnv(t, "req-checkout")
	ctx := context.Background()
	e.seed(t, "Bandages", 0, 0, 100)
	staff := suite.Fixtures.Staff("ER")
	req := e.submit(t, staff, "Bandages", 40)

	_, err := e.requisition.Checkout(ctx, req.ID, staff)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_APPROVED", appErr.Code)

	_, err = e.requisition.Approve(ctx, req.ID, e.admin)
	require.NoError(t, err)

	_, err = e.requisition.Checkout(ctx, req.ID, suite.Fixtures.Staff("Radiology"))
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	done, err := e.requisition.Checkout(ctx, req.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	assert.Equal(t, 0, e.stock(t, "Bandages", "ER"))
	assert.Equal(t, 60, e.stock(t, "Bandages", ""))

	txs, _, err := e.transactions.List(ctx, repository.TransactionFilter{RequisitionID: req.ID, Type: repository.TransactionCheckout})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 40, txs[0].Quantity)

	_, err = e.requisition.Checkout(ctx, req.ID, staff)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
}

func TestRequisition_CheckoutShortDepartmentStock(t *testing.T) {
	e := newEnv(t, "req-checkout-short")
	ctx := context.Background()
	e.seed(t, "Bandages", 0, 0, 100)
	staff := suite.Fixtures.Staff("ER")
	req := e.submit(t, staff, "Bandages", 40)

	_, err := e.requisition.Approve(ctx, req.ID, e.admin)
	require.NoError(t, err)
	_, err = e.ledger.RecordUsage(ctx, staff, service.UsageInput{ItemName: "Bandages", DepartmentID: "ER", Quantity: 15})
	require.NoError(t, err)

	_, err = e.requisition.Checkout(ctx, req.ID, staff)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	stored, err := e.requisition.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionApproved, stored.Status)
	assert.Equal(t, 25, e.stock(t, "Bandages", "ER"))
}

func TestRequisition_CheckoutWithoutDepartmentItem(t *testing.T) {
	e := newEnv(t, "req-checkout-no-item")
	ctx := context.Background()
	e.seed(t, "Bandages", 0, 0, 100)
	staff := suite.Fixtures.Staff("ER")
	req := e.submit(t, staff, "Bandages", 10)

	// Approved without stock ever reaching the department.
	req.Status = repository.RequisitionApproved
	require.NoError(t, e.requisitions.UpdateStatus(ctx, req))

	_, err := e.requisition.Checkout(ctx, req.ID, staff)
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))

	stored, err := e.requisition.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionApproved, stored.Status)
	assert.Equal(t, 100, e.stock(t, "Bandages", ""))
}

func TestRequisition_StockIsConserved(t *testing.T) {
	e := newEnv(t, "req-conservation")
	ctx := context.Background()
	e.seed(t, "Gowns", 0, 0, 70, 30)
	staff := suite.Fixtures.Staff("Surgery")

	req := e.submit(t, staff, "Gowns", 45)
	_, err := e.requisition.Approve(ctx, req.ID, e.admin)
	require.NoError(t, err)

	_, err = e.transfers.Transfer(ctx, e.admin, service.TransferInput{
		ItemName: "Gowns", Quantity: 20, FromDepartment: "Surgery", ToDepartment: "ICU",
	})
	require.NoError(t, err)

	_, err = e.requisition.Checkout(ctx, req.ID, staff)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	_, err = e.ledger.RecordUsage(ctx, staff, service.UsageInput{ItemName: "Gowns", DepartmentID: "Surgery", Quantity: 25})
	require.NoError(t, err)

	warehouse := e.stock(t, "Gowns", "")
	surgery := e.stock(t, "Gowns", "Surgery")
	icu := e.stock(t, "Gowns", "ICU")
	assert.Equal(t, 55, warehouse)
	assert.Equal(t, 0, surgery)
	assert.Equal(t, 20, icu)
	assert.Equal(t, 100, warehouse+surgery+icu+25)
}

func TestRequisition_List(t *testing.T) {
	e := newEnv(t, "req-list")
	ctx := context.Background()

	icu := suite.Fixtures.Staff("ICU")
	er := suite.Fixtures.Staff("ER")
	e.submit(t, icu, "Masks", 1)
	e.submit(t, icu, "Gloves", 2)
	rejected := e.submit(t, er, "Masks", 3)
	_, err := e.requisition.Reject(ctx, rejected.ID, e.admin)
	require.NoError(t, err)

	list, total, err := e.requisition.List(ctx, repository.RequisitionFilter{DepartmentID: "ICU"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)

	_, total, err = e.requisition.List(ctx, repository.RequisitionFilter{Status: repository.RequisitionRejected})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	page, total, err := e.requisition.List(ctx, repository.RequisitionFilter{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 1)
}
