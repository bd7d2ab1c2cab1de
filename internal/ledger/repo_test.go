package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/repo/repotest"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/pagination"
)

func newTxn(ref string, typ enums.TransactionType, status enums.TransactionStatus, amount decimal.Decimal) *models.Transaction {
	return &models.Transaction{
		Reference:     ref,
		Type:          typ,
		Status:        status,
		Amount:        amount,
		PaymentMethod: enums.PaymentMethodWallet,
	}
}

func loadDriver(t *testing.T, db *gorm.DB, id uuid.UUID) models.Driver {
	t.Helper()
	var d models.Driver
	require.NoError(t, db.First(&d, "id = ?", id).Error)
	return d
}

func TestAppendRejectsDuplicateReference(t *testing.T) {
	db := repotest.NewDB(t)
	r := NewRepository(db)
	ctx := context.Background()

	ref := NewReference(ReferenceDriverEarning, uuid.New())
	require.NoError(t, r.Append(ctx, newTxn(ref, enums.TransactionTypePayment, enums.TransactionStatusSuccessful, decimal.NewFromInt(780))))

	err := r.Append(ctx, newTxn(ref, enums.TransactionTypePayment, enums.TransactionStatusSuccessful, decimal.NewFromInt(780)))
	require.ErrorIs(t, err, ErrDuplicateReference)

	found, err := r.FindByReference(ctx, ref)
	require.NoError(t, err)
	assert.True(t, found.Amount.Equal(decimal.NewFromInt(780)))
}

func TestUpdateStatusIsGuarded(t *testing.T) {
	db := repotest.NewDB(t)
	r := NewRepository(db)
	ctx := context.Background()

	txn := newTxn("PAY-"+uuid.NewString(), enums.TransactionTypePayout, enums.TransactionStatusPending, decimal.NewFromInt(50))
	require.NoError(t, r.Append(ctx, txn))

	gw := "FLW-123"
	require.NoError(t, r.UpdateStatus(ctx, txn.ID, enums.TransactionStatusPending, enums.TransactionStatusSuccessful, &gw))
	err := r.UpdateStatus(ctx, txn.ID, enums.TransactionStatusPending, enums.TransactionStatusFailed, nil)
	require.ErrorIs(t, err, ErrStatusChanged)

	found, err := r.FindByReference(ctx, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusSuccessful, found.Status)
	require.NotNil(t, found.GatewayReference)
	assert.Equal(t, gw, *found.GatewayReference)
}

func TestCreditAndDebitKeepBalanceNonNegative(t *testing.T) {
	db := repotest.NewDB(t)
	r := NewRepository(db)
	ctx := context.Background()
	driver := repotest.SeedDriver(t, db)

	require.NoError(t, r.CreditEarnings(ctx, enums.PayoutUserDriver, driver.ID, repotest.Money(t, "780.00")))
	require.NoError(t, r.DebitPaidOut(ctx, enums.PayoutUserDriver, driver.ID, repotest.Money(t, "500.00")))

	err := r.DebitPaidOut(ctx, enums.PayoutUserDriver, driver.ID, repotest.Money(t, "280.01"))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, r.DebitPaidOut(ctx, enums.PayoutUserDriver, driver.ID, repotest.Money(t, "280.00")))

	got := loadDriver(t, db, driver.ID)
	assert.True(t, got.TotalEarnings.Equal(repotest.Money(t, "780")), got.TotalEarnings.String())
	assert.True(t, got.TotalPaidOut.Equal(repotest.Money(t, "780")), got.TotalPaidOut.String())
	assert.True(t, got.AvailableBalance().IsZero())

	require.NoError(t, r.ReversePaidOut(ctx, enums.PayoutUserDriver, driver.ID, repotest.Money(t, "280.00")))
	got = loadDriver(t, db, driver.ID)
	assert.True(t, got.AvailableBalance().Equal(repotest.Money(t, "280")))

	err = r.ReversePaidOut(ctx, enums.PayoutUserDriver, driver.ID, repotest.Money(t, "1000"))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestRunningTotalUpdatesReportMissingAccount(t *testing.T) {
	db := repotest.NewDB(t)
	r := NewRepository(db)
	ctx := context.Background()

	require.ErrorIs(t, r.CreditEarnings(ctx, enums.PayoutUserVendor, uuid.New(), decimal.NewFromInt(1)), ErrAccountNotFound)
	require.ErrorIs(t, r.DebitPaidOut(ctx, enums.PayoutUserVendor, uuid.New(), decimal.NewFromInt(1)), ErrAccountNotFound)
	require.Error(t, r.CreditEarnings(ctx, enums.PayoutUserType("admin"), uuid.New(), decimal.NewFromInt(1)))
}

func TestLedgerTotalsAndDrift(t *testing.T) {
	db := repotest.NewDB(t)
	r := NewRepository(db)
	ctx := context.Background()

	balanced := repotest.SeedDriver(t, db)
	drifting := repotest.SeedDriver(t, db)

	earn := newTxn(NewReference(ReferenceDriverEarning, uuid.New()), enums.TransactionTypePayment, enums.TransactionStatusSuccessful, repotest.Money(t, "780"))
	earn.DriverID = &balanced.ID
	require.NoError(t, r.Append(ctx, earn))
	payout := newTxn(NewReference(ReferencePayout, uuid.New()), enums.TransactionTypePayout, enums.TransactionStatusPending, repotest.Money(t, "300"))
	payout.DriverID = &balanced.ID
	require.NoError(t, r.Append(ctx, payout))
	failed := newTxn(NewReference(ReferencePayout, uuid.New()), enums.TransactionTypePayout, enums.TransactionStatusFailed, repotest.Money(t, "100"))
	failed.DriverID = &balanced.ID
	require.NoError(t, r.Append(ctx, failed))

	require.NoError(t, r.CreditEarnings(ctx, enums.PayoutUserDriver, balanced.ID, repotest.Money(t, "780")))
	require.NoError(t, r.DebitPaidOut(ctx, enums.PayoutUserDriver, balanced.ID, repotest.Money(t, "300")))

	// running total moved without a ledger row
	require.NoError(t, r.CreditEarnings(ctx, enums.PayoutUserDriver, drifting.ID, repotest.Money(t, "25.50")))

	totals, err := r.LedgerTotals(ctx, enums.PayoutUserDriver, balanced.ID)
	require.NoError(t, err)
	assert.True(t, totals.Earned.Equal(repotest.Money(t, "780")), totals.Earned.String())
	assert.True(t, totals.PaidOut.Equal(repotest.Money(t, "300")), totals.PaidOut.String())

	drifts, err := r.ListAccountsWithDrift(ctx, enums.PayoutUserDriver, 1)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, drifting.ID, drifts[0].AccountID)
	assert.True(t, drifts[0].Magnitude().Equal(repotest.Money(t, "25.50")))
	assert.True(t, drifts[0].LedgerEarned.IsZero())
}

func TestListForAccountPaginates(t *testing.T) {
	db := repotest.NewDB(t)
	r := NewRepository(db)
	ctx := context.Background()
	vendor := repotest.SeedVendor(t, db)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		txn := newTxn(NewReference(ReferenceVendorEarning, uuid.New()), enums.TransactionTypePayment, enums.TransactionStatusSuccessful, decimal.NewFromInt(int64(100+i)))
		txn.VendorID = &vendor.ID
		txn.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, r.Append(ctx, txn))
	}

	page, err := r.ListForAccount(ctx, enums.PayoutUserVendor, vendor.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Items[0].Amount.Equal(decimal.NewFromInt(102)))

	next, err := r.ListForAccount(ctx, enums.PayoutUserVendor, vendor.ID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Empty(t, next.NextCursor)
	assert.True(t, next.Items[0].Amount.Equal(decimal.NewFromInt(100)))
}
