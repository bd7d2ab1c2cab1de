package earnings

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/drivers"
	"github.com/angelmondragon/packdrop-backend/internal/ledger"
	"github.com/angelmondragon/packdrop-backend/internal/repo/repotest"
	"github.com/angelmondragon/packdrop-backend/internal/vendors"
	pkgdb "github.com/angelmondragon/packdrop-backend/pkg/db"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
	"github.com/angelmondragon/packdrop-backend/pkg/pagination"
)

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	ledgerRepo := ledger.NewRepository(db)
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	require.NoError(t, err)
	svc, err := NewService(Deps{
		Repo:     NewRepository(db),
		Drivers:  drivers.NewRepository(db),
		Vendors:  vendors.NewRepository(db),
		Accounts: ledgerRepo,
		Ledger:   ledgerSvc,
		Outbox:   outbox.NewService(outbox.NewRepository(db), repotest.Logger()),
		Tx:       pkgdb.Wrap(db),
		Logger:   repotest.Logger(),
	})
	require.NoError(t, err)
	return svc
}

type deliveredFixture struct {
	driver   *models.Driver
	vendor   *models.Vendor
	order    *models.Order
	delivery *models.Delivery
}

func seedDelivered(t *testing.T, db *gorm.DB) deliveredFixture {
	t.Helper()
	driver := repotest.SeedDriver(t, db)
	vendor := repotest.SeedVendor(t, db)
	order := repotest.SeedOrder(t, db, vendor.ID, func(o *models.Order) {
		o.Status = enums.OrderStatusDelivered
		o.Subtotal = repotest.Money(t, "5000")
		o.CommissionAmount = repotest.Money(t, "500")
		o.VendorEarning = repotest.Money(t, "4500")
	})
	delivery := repotest.SeedDelivery(t, db, order.ID, enums.DeliveryStatusDelivered, &driver.ID)
	return deliveredFixture{driver: driver, vendor: vendor, order: order, delivery: delivery}
}

func reloadDriver(t *testing.T, db *gorm.DB, id uuid.UUID) models.Driver {
	t.Helper()
	var d models.Driver
	require.NoError(t, db.First(&d, "id = ?", id).Error)
	return d
}

func TestCalculateDeliveryEarningsPostsOnce(t *testing.T) {
	db := repotest.NewDB(t)
	svc := newTestService(t, db)
	f := seedDelivered(t, db)
	ctx := context.Background()

	earning, err := svc.CalculateDeliveryEarnings(ctx, nil, f.delivery.ID)
	require.NoError(t, err)
	require.True(t, earning.Amount.Equal(repotest.Money(t, "800")))
	require.True(t, earning.TransactionFee.Equal(repotest.Money(t, "20")))
	require.True(t, earning.NetAmount.Equal(repotest.Money(t, "780")))
	require.False(t, earning.IsPaid)

	again, err := svc.CalculateDeliveryEarnings(ctx, nil, f.delivery.ID)
	require.NoError(t, err)
	require.Equal(t, earning.ID, again.ID)

	driver := reloadDriver(t, db, f.driver.ID)
	require.True(t, driver.TotalEarnings.Equal(repotest.Money(t, "780")), "total %s", driver.TotalEarnings)

	var earnings, txns int64
	require.NoError(t, db.Model(&models.DriverEarning{}).Where("delivery_id = ?", f.delivery.ID).Count(&earnings).Error)
	require.NoError(t, db.Model(&models.Transaction{}).Where("reference = ?", ledger.NewReference(ledger.ReferenceDriverEarning, f.delivery.ID)).Count(&txns).Error)
	require.EqualValues(t, 1, earnings)
	require.EqualValues(t, 1, txns)
	require.EqualValues(t, 1, repotest.CountOutbox(t, db, enums.EventEarningPosted))
}

func TestCalculateDeliveryEarningsConcurrentCallers(t *testing.T) {
	db := repotest.NewDB(t)
	svc := newTestService(t, db)
	f := seedDelivered(t, db)

	var wg sync.WaitGroup
	results := make([]*models.DriverEarning, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CalculateDeliveryEarnings(context.Background(), nil, f.delivery.ID)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, results[0].ID, results[i].ID)
	}
	driver := reloadDriver(t, db, f.driver.ID)
	require.True(t, driver.TotalEarnings.Equal(repotest.Money(t, "780")))
}

func TestCalculateDeliveryEarningsPreconditions(t *testing.T) {
	db := repotest.NewDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	vendor := repotest.SeedVendor(t, db)
	driver := repotest.SeedDriver(t, db)

	t.Run("not delivered", func(t *testing.T) {
		order := repotest.SeedOrder(t, db, vendor.ID)
		d := repotest.SeedDelivery(t, db, order.ID, enums.DeliveryStatusInTransit, &driver.ID)
		_, err := svc.CalculateDeliveryEarnings(ctx, nil, d.ID)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	})

	t.Run("no driver", func(t *testing.T) {
		order := repotest.SeedOrder(t, db, vendor.ID)
		d := repotest.SeedDelivery(t, db, order.ID, enums.DeliveryStatusDelivered, nil)
		_, err := svc.CalculateDeliveryEarnings(ctx, nil, d.ID)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := svc.CalculateDeliveryEarnings(ctx, nil, uuid.New())
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	})
}

func TestCalculateOrderEarningsCreditsVendorOnce(t *testing.T) {
	db := repotest.NewDB(t)
	svc := newTestService(t, db)
	f := seedDelivered(t, db)
	ctx := context.Background()

	require.NoError(t, svc.CalculateOrderEarnings(ctx, nil, f.order.ID))
	require.NoError(t, svc.CalculateOrderEarnings(ctx, nil, f.order.ID))

	var vendor models.Vendor
	require.NoError(t, db.First(&vendor, "id = ?", f.vendor.ID).Error)
	require.True(t, vendor.TotalEarnings.Equal(repotest.Money(t, "4500")), "total %s", vendor.TotalEarnings)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", f.order.ID).Error)
	require.NotNil(t, order.VendorEarningPostedAt)

	var txns int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("vendor_id = ?", f.vendor.ID).Count(&txns).Error)
	require.EqualValues(t, 1, txns)
}

func TestCalculateOrderEarningsRequiresDeliveredOrder(t *testing.T) {
	db := repotest.NewDB(t)
	svc := newTestService(t, db)
	vendor := repotest.SeedVendor(t, db)
	order := repotest.SeedOrder(t, db, vendor.ID)

	err := svc.CalculateOrderEarnings(context.Background(), nil, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestCalculateWithinCallerTransactionRollsBack(t *testing.T) {
	db := repotest.NewDB(t)
	svc := newTestService(t, db)
	f := seedDelivered(t, db)

	err := pkgdb.Wrap(db).WithTx(context.Background(), func(tx *gorm.DB) error {
		if _, err := svc.CalculateDeliveryEarnings(context.Background(), tx, f.delivery.ID); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInternal, "caller failed later")
	})
	require.Error(t, err)

	driver := reloadDriver(t, db, f.driver.ID)
	require.True(t, driver.TotalEarnings.IsZero())
	var earnings int64
	require.NoError(t, db.Model(&models.DriverEarning{}).Count(&earnings).Error)
	require.Zero(t, earnings)
}

func TestDriverAndVendorSummaries(t *testing.T) {
	db := repotest.NewDB(t)
	svc := newTestService(t, db)
	f := seedDelivered(t, db)
	ctx := context.Background()

	_, err := svc.CalculateDeliveryEarnings(ctx, nil, f.delivery.ID)
	require.NoError(t, err)
	require.NoError(t, svc.CalculateOrderEarnings(ctx, nil, f.order.ID))

	driverSummary, err := svc.DriverSummary(ctx, f.driver.UserID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.True(t, driverSummary.Totals.AvailableBalance.Equal(repotest.Money(t, "780")))
	require.True(t, driverSummary.PendingEarnings.Equal(repotest.Money(t, "780")))
	require.Len(t, driverSummary.Earnings.Items, 1)

	vendorSummary, err := svc.VendorSummary(ctx, f.vendor.UserID, pagination.Params{})
	require.NoError(t, err)
	require.True(t, vendorSummary.Totals.TotalEarnings.Equal(repotest.Money(t, "4500")))
	require.Len(t, vendorSummary.Transactions.Items, 1)

	_, err = svc.DriverSummary(ctx, uuid.New(), pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = svc.DriverSummary(ctx, f.driver.UserID, pagination.Params{Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
