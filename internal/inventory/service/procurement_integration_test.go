package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/internal/inventory/service"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/messaging"
	"github.com/medflow/hospital-erp/pkg/permissions"
	"github.com/medflow/hospital-erp/pkg/testutil"
)

func TestProcurement_CreateDeduplicatesPendingTitles(t *testing.T) {
	e := newEnv(t, "proc-create")
	ctx := context.Background()
	officer := suite.Fixtures.Manager(permissions.RoleProcurementOfficer)

	p, created, err := e.procurement.Create(ctx, officer, service.CreateProcurementInput{ItemName: "Gloves", Quantity: 200})
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, "Restock: Gloves", p.Title)
	assert.Equal(t, repository.PriorityNormal, p.Priority)
	assert.Equal(t, repository.ProcurementPending, p.Status)
	assert.NotEmpty(t, p.ApprovalToken)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), p.Deadline, time.Minute)

	dup, created, err := e.procurement.Create(ctx, officer, service.CreateProcurementInput{ItemName: "Gloves", Quantity: 50})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, dup)

	_, created, err = e.procurement.Create(ctx, officer, service.CreateProcurementInput{
		Title: "Quarterly gloves", ItemName: "Gloves", Quantity: 50, Priority: repository.PriorityLow,
	})
	require.NoError(t, err)
	assert.True(t, created)

	_, _, err = e.procurement.Create(ctx, officer, service.CreateProcurementInput{ItemName: "Gloves", Quantity: 1, Priority: "asap"})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, _, err = e.procurement.Create(ctx, officer, service.CreateProcurementInput{ItemName: "Gloves"})
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
}

func TestProcurement_TitleIsFreeAfterDecision(t *testing.T) {
	e := newEnv(t, "proc-title-reuse")
	ctx := context.Background()

	p, _, err := e.procurement.Create(ctx, e.admin, service.CreateProcurementInput{ItemName: "Masks", Quantity: 10})
	require.NoError(t, err)

	_, err = e.procurement.Reject(ctx, p.ID, e.admin)
	require.NoError(t, err)

	_, created, err := e.procurement.Create(ctx, e.admin, service.CreateProcurementInput{ItemName: "Masks", Quantity: 10})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestProcurement_DecideByToken(t *testing.T) {
	e := newEnv(t, "proc-decide")
	ctx := context.Background()

	p, _, err := e.procurement.Create(ctx, e.admin, service.CreateProcurementInput{ItemName: "Saline", Quantity: 30})
	require.NoError(t, err)

	decided, err := e.procurement.Decide(ctx, p.ApprovalToken, false, "approval-flow")
	require.NoError(t, err)
	assert.Equal(t, repository.ProcurementRejected, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, "approval-flow", *decided.DecidedBy)
	assert.NotNil(t, decided.DecidedAt)

	_, err = e.procurement.Decide(ctx, p.ApprovalToken, true, "approval-flow")
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))

	_, err = e.procurement.Decide(ctx, uuid.New().String(), true, "approval-flow")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	kinds := e.notes.Kinds()
	assert.Contains(t, kinds, messaging.EventProcurementRequested)
	assert.Contains(t, kinds, messaging.EventProcurementRejected)
}

func TestProcurement_CompleteReceivesIntoWarehouse(t *testing.T) {
	e := newEnv(t, "proc-complete")
	ctx := context.Background()

	p, _, err := e.procurement.Create(ctx, e.admin, service.CreateProcurementInput{ItemName: "Suture Kits", Quantity: 25})
	require.NoError(t, err)

	_, err = e.procurement.Complete(ctx, p.ID, e.admin, service.ReceiveInput{})
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition), "pending requests cannot be received")

	_, err = e.procurement.Approve(ctx, p.ID, e.admin)
	require.NoError(t, err)

	supplier := "Acme Medical"
	done, err := e.procurement.Complete(ctx, p.ID, e.admin, service.ReceiveInput{
		ExpiryDate: testutil.Date(2031, time.March, 1),
		Supplier:   &supplier,
	})
	require.NoError(t, err)
	assert.Equal(t, repository.ProcurementCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	assert.Equal(t, 25, e.stock(t, "Suture Kits", ""), "unknown items are created in the warehouse")

	txs, _, err := e.transactions.List(ctx, repository.TransactionFilter{Type: repository.TransactionRestocking})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].ProcurementID)
	assert.Equal(t, p.ID, *txs[0].ProcurementID)

	_, err = e.procurement.Complete(ctx, p.ID, e.admin, service.ReceiveInput{})
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
	assert.Equal(t, 25, e.stock(t, "Suture Kits", ""))
}

func TestRequisition_RestockingRoundTrip(t *testing.T) {
	e := newEnv(t, "proc-roundtrip")
	ctx := context.Background()
	e.seed(t, "Catheters", 0, 40, 30)
	staff := suite.Fixtures.Staff("ICU")
	req := e.submit(t, staff, "Catheters", 50)

	_, err := e.requisition.Approve(ctx, req.ID, e.admin)
	require.True(t, errors.Is(err, errors.ErrInsufficientStock))

	got, request, err := e.requisition.TriggerRestocking(ctx, req.ID, e.admin)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionRestocking, got.Status)
	require.NotNil(t, request)
	assert.Equal(t, service.RequisitionRestockTitle(req.ID, "Catheters"), request.Title)
	assert.Equal(t, 50, request.Quantity)
	require.NotNil(t, request.RequisitionID)
	assert.Equal(t, req.ID, *request.RequisitionID)

	_, again, err := e.requisition.TriggerRestocking(ctx, req.ID, e.admin)
	require.NoError(t, err)
	assert.Nil(t, again, "a pending request already exists")

	_, err = e.procurement.Approve(ctx, request.ID, e.admin)
	require.NoError(t, err)
	stored, err := e.requisition.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionProcurement, stored.Status)

	_, err = e.requisition.Approve(ctx, req.ID, e.admin)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))

	_, err = e.procurement.Complete(ctx, request.ID, e.admin, service.ReceiveInput{})
	require.NoError(t, err)
	assert.Equal(t, 80, e.stock(t, "Catheters", ""))

	stored, err = e.requisition.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionPending, stored.Status)

	approved, err := e.requisition.Approve(ctx, req.ID, e.admin)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionApproved, approved.Status)
	assert.Equal(t, 30, e.stock(t, "Catheters", ""))

	// 30 is still under the threshold of 40.
	n, err := e.procurements.CountPending(ctx, service.RestockTitle("Catheters"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	done, err := e.requisition.Checkout(ctx, req.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionCompleted, done.Status)
	assert.Equal(t, 0, e.stock(t, "Catheters", "ICU"))
}

func TestRequisition_RestockAfterApprovalIsNotServedTwice(t *testing.T) {
	e := newEnv(t, "proc-approved-restock")
	ctx := context.Background()
	e.seed(t, "Syringes", 0, 0, 100)
	staff := suite.Fixtures.Staff("ICU")
	req := e.submit(t, staff, "Syringes", 40)

	_, err := e.requisition.Approve(ctx, req.ID, e.admin)
	require.NoError(t, err)
	assert.Equal(t, 40, e.stock(t, "Syringes", "ICU"))

	got, request, err := e.requisition.TriggerRestocking(ctx, req.ID, e.admin)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionRestocking, got.Status)
	require.NotNil(t, request)

	_, err = e.procurement.Approve(ctx, request.ID, e.admin)
	require.NoError(t, err)
	_, err = e.procurement.Complete(ctx, request.ID, e.admin, service.ReceiveInput{})
	require.NoError(t, err)
	assert.Equal(t, 100, e.stock(t, "Syringes", ""))

	stored, err := e.requisition.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionApproved, stored.Status, "stock already moved, so it goes back to approved")

	_, err = e.requisition.Approve(ctx, req.ID, e.admin)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
	assert.Equal(t, 40, e.stock(t, "Syringes", "ICU"))
	assert.Equal(t, 100, e.stock(t, "Syringes", ""))

	done, err := e.requisition.Checkout(ctx, req.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, repository.RequisitionCompleted, done.Status)
	assert.Equal(t, 0, e.stock(t, "Syringes", "ICU"))
}

func TestRestock_ScanIsIdempotent(t *testing.T) {
	e := newEnv(t, "restock-scan")
	ctx := context.Background()

	e.seed(t, "Gloves", 50, 0, 10)
	e.seed(t, "Masks", 5, 10, 20)
	e.seed(t, "Gowns", 0, 30, 29)
	_, err := e.ledger.CreateOrMergeItem(ctx, service.NewItem{Name: "Thermometers", DepartmentID: "ICU", MinStock: 100})
	require.NoError(t, err)

	result, err := e.restock.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.Len(t, result.Created, 2)
	assert.Zero(t, result.Failed)

	quantities := map[string]int{}
	for _, p := range result.Created {
		quantities[p.Title] = p.Quantity
		assert.Equal(t, repository.PriorityHigh, p.Priority)
	}
	assert.Equal(t, map[string]int{"Restock: Gloves": 40, "Restock: Gowns": 1}, quantities)

	again, err := e.restock.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Equal(t, 2, again.Skipped)

	_, total, err := e.procurements.List(ctx, repository.ProcurementFilter{Status: repository.ProcurementPending})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestRestock_SchedulerRunsScan(t *testing.T) {
	e := newEnv(t, "restock-scheduler")
	ctx := context.Background()
	e.seed(t, "Gloves", 50, 0, 10)

	sched := service.NewRestockScheduler(e.restock, nil, "@hourly", time.Minute, 30*time.Second, suite.Logger)
	result, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
}
