package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/internal/inventory/service"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/messaging"
	"github.com/medflow/hospital-erp/pkg/testutil"
)

func TestLedger_CreateOrMergeItem(t *testing.T) {
	e := newEnv(t, "merge-item")
	ctx := context.Background()

	first, err := e.ledger.CreateOrMergeItem(ctx, service.NewItem{Name: "  Gauze ", Unit: "pack", MinStock: 10})
	require.NoError(t, err)
	assert.Equal(t, "Gauze", first.Name)
	assert.True(t, first.IsWarehouse())

	again, err := e.ledger.CreateOrMergeItem(ctx, service.NewItem{Name: "Gauze", Unit: "box", MinStock: 99})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 10, again.MinStock, "existing items are not modified")

	ward, err := e.ledger.CreateOrMergeItem(ctx, service.NewItem{Name: "Gauze", DepartmentID: "ICU"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, ward.ID)

	_, err = e.ledger.CreateOrMergeItem(ctx, service.NewItem{Name: "   "})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLedger_AddBatch(t *testing.T) {
	e := newEnv(t, "add-batch")
	ctx := context.Background()
	item := e.seed(t, "Saline", 0, 0)

	_, err := e.ledger.AddBatch(ctx, item.ID, 0, nil, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))

	_, err = e.ledger.AddBatch(ctx, "4b7c7c2e-4a2f-4d7e-9d1e-1c8c6f0f0a11", 5, nil, nil)
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))

	supplier := "MedSupply GmbH"
	batch, err := e.ledger.AddBatch(ctx, item.ID, 40, nil, &supplier)
	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.NotZero(t, batch.Seq)

	total, err := e.ledger.TotalStock(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, total)
}

func TestLedger_RecordUsageDrawsEarliestExpiry(t *testing.T) {
	e := newEnv(t, "usage-fefo")
	ctx := context.Background()

	item, err := e.ledger.CreateOrMergeItem(ctx, service.NewItem{Name: "Gloves", Unit: "pair"})
	require.NoError(t, err)
	_, err = e.ledger.AddBatch(ctx, item.ID, 300, testutil.Date(2025, time.September, 1), nil)
	require.NoError(t, err)
	_, err = e.ledger.AddBatch(ctx, item.ID, 200, testutil.Date(2025, time.June, 1), nil)
	require.NoError(t, err)

	tx, err := e.ledger.RecordUsage(ctx, e.admin, service.UsageInput{ItemName: "Gloves", Quantity: 250})
	require.NoError(t, err)
	assert.Equal(t, repository.TransactionUsage, tx.Type)
	assert.Equal(t, 250, tx.Quantity)

	got, err := e.ledger.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, got.Batches, 2)
	assert.Equal(t, 0, got.Batches[0].Quantity, "June batch is drained first")
	assert.Equal(t, 250, got.Batches[1].Quantity)
	assert.Equal(t, 250, got.TotalQuantity)

	assert.Contains(t, e.notes.Kinds(), messaging.EventStockConsumed)
}

func TestLedger_RecordUsageIsAllOrNothing(t *testing.T) {
	e := newEnv(t, "usage-exhaustion")
	ctx := context.Background()
	e.seed(t, "Syringes", 0, 0, 20, 10)

	_, err := e.ledger.RecordUsage(ctx, e.admin, service.UsageInput{ItemName: "Syringes", Quantity: 31})
	require.Error(t, err)
	available, ok := errors.AvailableStock(err)
	require.True(t, ok)
	assert.Equal(t, 30, available)

	assert.Equal(t, 30, e.stock(t, "Syringes", ""))

	_, total, err := e.transactions.List(ctx, repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = e.ledger.RecordUsage(ctx, e.admin, service.UsageInput{ItemName: "Syringes", Quantity: 30})
	require.NoError(t, err)
	assert.Equal(t, 0, e.stock(t, "Syringes", ""))
}

func TestLedger_RecordUsageChecksDepartment(t *testing.T) {
	e := newEnv(t, "usage-access")
	ctx := context.Background()

	staff := suite.Fixtures.Staff("Cardiology")
	_, err := e.ledger.RecordUsage(ctx, staff, service.UsageInput{ItemName: "Masks", DepartmentID: "ICU", Quantity: 1})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, err = e.ledger.RecordUsage(ctx, staff, service.UsageInput{ItemName: "Masks", DepartmentID: "Cardiology", Quantity: 1})
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))
}

func TestTransfer_WarehouseToDepartment(t *testing.T) {
	e := newEnv(t, "transfer-masks")
	ctx := context.Background()
	e.seed(t, "Masks", 0, 0, 150)

	result, err := e.transfers.Transfer(ctx, e.admin, service.TransferInput{
		ItemName:     "Masks",
		Quantity:     100,
		ToDepartment: "ICU",
	})
	require.NoError(t, err)

	assert.Equal(t, 50, e.stock(t, "Masks", ""))
	assert.Equal(t, 100, e.stock(t, "Masks", "ICU"))
	assert.Equal(t, "ICU", result.Destination.DepartmentID)
	assert.Equal(t, "piece", result.Destination.Unit)

	txs, total, err := e.transactions.List(ctx, repository.TransactionFilter{Type: repository.TransactionTransfer})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "", txs[0].DepartmentID)
	require.NotNil(t, txs[0].CounterpartDepartmentID)
	assert.Equal(t, "ICU", *txs[0].CounterpartDepartmentID)
}

func TestTransfer_CarriesExpiryDates(t *testing.T) {
	e := newEnv(t, "transfer-expiry")
	ctx := context.Background()
	e.seed(t, "Insulin", 0, 0, 10, 10)

	result, err := e.transfers.Transfer(ctx, e.admin, service.TransferInput{ItemName: "Insulin", Quantity: 15, ToDepartment: "Ward 3"})
	require.NoError(t, err)
	require.Len(t, result.Draws, 2)

	batches, err := e.ledger.ListBatches(ctx, result.Destination.ID)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, 10, batches[0].Quantity)
	assert.Equal(t, 5, batches[1].Quantity)
	require.NotNil(t, batches[0].ExpiryDate)
	assert.True(t, batches[0].ExpiryDate.Before(*batches[1].ExpiryDate))
}

func TestTransfer_Validation(t *testing.T) {
	e := newEnv(t, "transfer-validation")
	ctx := context.Background()
	e.seed(t, "Masks", 0, 0, 10)

	_, err := e.transfers.Transfer(ctx, e.admin, service.TransferInput{ItemName: "Masks", Quantity: 1})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = e.transfers.Transfer(ctx, e.admin, service.TransferInput{ItemName: "Masks", Quantity: -1, ToDepartment: "ICU"})
	assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))

	_, err = e.transfers.Transfer(ctx, suite.Fixtures.Staff("ICU"), service.TransferInput{ItemName: "Masks", Quantity: 1, ToDepartment: "ICU"})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, err = e.transfers.Transfer(ctx, e.admin, service.TransferInput{ItemName: "Masks", Quantity: 11, ToDepartment: "ICU"})
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	assert.Equal(t, -1, e.stock(t, "Masks", "ICU"), "failed transfer leaves no destination item")
	assert.Equal(t, 10, e.stock(t, "Masks", ""))
}

func TestTransfer_UnknownSourceItem(t *testing.T) {
	e := newEnv(t, "transfer-unknown")
	ctx := context.Background()
	e.seed(t, "Masks", 0, 0, 10)

	_, err := e.transfers.Transfer(ctx, e.admin, service.TransferInput{ItemName: "Unobtainium", Quantity: 1, ToDepartment: "ICU"})
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))

	// Known name, but the source department holds none of it.
	_, err = e.transfers.Transfer(ctx, e.admin, service.TransferInput{
		ItemName: "Masks", Quantity: 1, FromDepartment: "ER", ToDepartment: "ICU",
	})
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))

	assert.Equal(t, -1, e.stock(t, "Unobtainium", "ICU"))
	assert.Equal(t, -1, e.stock(t, "Masks", "ICU"))
	assert.Equal(t, 10, e.stock(t, "Masks", ""))

	_, total, err := e.transactions.List(ctx, repository.TransactionFilter{Type: repository.TransactionTransfer})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTransactions_SoftDelete(t *testing.T) {
	e := newEnv(t, "tx-soft-delete")
	ctx := context.Background()
	e.seed(t, "Masks", 0, 0, 10)

	result, err := e.transfers.Transfer(ctx, e.admin, service.TransferInput{ItemName: "Masks", Quantity: 4, ToDepartment: "ICU"})
	require.NoError(t, err)

	icu := "ICU"
	_, total, err := e.transactionS.List(ctx, repository.TransactionFilter{DepartmentID: &icu})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	require.NoError(t, e.transactionS.SoftDelete(ctx, result.Transaction.ID, e.admin))

	_, total, err = e.transactionS.List(ctx, repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Equal(t, 4, e.stock(t, "Masks", "ICU"), "stock is not reversed")

	err = e.transactionS.SoftDelete(ctx, result.Transaction.ID, e.admin)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
