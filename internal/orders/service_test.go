package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/repo/repotest"
	"github.com/angelmondragon/packdrop-backend/internal/vendors"
	pkgdb "github.com/angelmondragon/packdrop-backend/pkg/db"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
)

type orderFixture struct {
	db     *gorm.DB
	svc    Service
	vendor *models.Vendor
	order  *models.Order
}

func newOrderFixture(t *testing.T, status enums.OrderStatus) orderFixture {
	t.Helper()
	db := repotest.NewDB(t)
	svc, err := NewService(
		NewRepository(db),
		vendors.NewRepository(db),
		pkgdb.Wrap(db),
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	require.NoError(t, err)
	vendor := repotest.SeedVendor(t, db)
	order := repotest.SeedOrder(t, db, vendor.ID, func(o *models.Order) { o.Status = status })
	return orderFixture{db: db, svc: svc, vendor: vendor, order: order}
}

func (f orderFixture) customer() Actor {
	return Actor{UserID: f.order.CustomerID, Role: enums.UserRoleCustomer}
}

func TestAddItemRecalculatesOrder(t *testing.T) {
	f := newOrderFixture(t, enums.OrderStatusPending)
	ctx := context.Background()

	updated, err := f.svc.AddItem(ctx, AddItemInput{
		OrderID:   f.order.ID,
		Actor:     f.customer(),
		ProductID: uuid.New(),
		Name:      "Jollof rice",
		Quantity:  2,
		UnitPrice: repotest.Money(t, "2500"),
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.True(t, updated.Subtotal.Equal(repotest.Money(t, "5000")))
	require.True(t, updated.Tax.Equal(repotest.Money(t, "375")))
	require.True(t, updated.CommissionAmount.Equal(repotest.Money(t, "500")))
	require.True(t, updated.VendorEarning.Equal(repotest.Money(t, "4500")))
	require.True(t, updated.Total.Equal(repotest.Money(t, "6375")))

	var stored models.Order
	require.NoError(t, f.db.First(&stored, "id = ?", f.order.ID).Error)
	require.True(t, stored.Total.Equal(repotest.Money(t, "6375")))
}

func TestUpdateAndRemoveItem(t *testing.T) {
	f := newOrderFixture(t, enums.OrderStatusConfirmed)
	ctx := context.Background()
	vendorActor := Actor{UserID: f.vendor.UserID, Role: enums.UserRoleVendor}

	added, err := f.svc.AddItem(ctx, AddItemInput{
		OrderID: f.order.ID, Actor: vendorActor, ProductID: uuid.New(),
		Name: "Suya", Quantity: 1, UnitPrice: repotest.Money(t, "1200"),
	})
	require.NoError(t, err)
	itemID := added.Items[0].ID

	updated, err := f.svc.UpdateItemQuantity(ctx, UpdateItemInput{
		OrderID: f.order.ID, ItemID: itemID, Actor: vendorActor, Quantity: 3,
	})
	require.NoError(t, err)
	require.True(t, updated.Subtotal.Equal(repotest.Money(t, "3600")))

	removed, err := f.svc.RemoveItem(ctx, RemoveItemInput{OrderID: f.order.ID, ItemID: itemID, Actor: vendorActor})
	require.NoError(t, err)
	require.Empty(t, removed.Items)
	require.True(t, removed.Subtotal.IsZero())
	require.True(t, removed.Total.Equal(repotest.Money(t, "1000")))

	_, err = f.svc.RemoveItem(ctx, RemoveItemInput{OrderID: f.order.ID, ItemID: itemID, Actor: vendorActor})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestItemChangesRejectedAfterDispatch(t *testing.T) {
	f := newOrderFixture(t, enums.OrderStatusInTransit)
	_, err := f.svc.AddItem(context.Background(), AddItemInput{
		OrderID: f.order.ID, Actor: f.customer(), ProductID: uuid.New(),
		Name: "Zobo", Quantity: 1, UnitPrice: repotest.Money(t, "300"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestItemChangesRequireOwnership(t *testing.T) {
	f := newOrderFixture(t, enums.OrderStatusPending)
	_, err := f.svc.AddItem(context.Background(), AddItemInput{
		OrderID: f.order.ID, Actor: Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer},
		ProductID: uuid.New(), Name: "Zobo", Quantity: 1, UnitPrice: repotest.Money(t, "300"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestAddItemValidation(t *testing.T) {
	f := newOrderFixture(t, enums.OrderStatusPending)
	_, err := f.svc.AddItem(context.Background(), AddItemInput{
		OrderID: f.order.ID, Actor: f.customer(), ProductID: uuid.New(), Name: "Zobo", Quantity: 0,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAdvanceStatusIsConditional(t *testing.T) {
	f := newOrderFixture(t, enums.OrderStatusPending)
	ctx := context.Background()

	moved, err := f.svc.AdvanceStatus(ctx, nil, f.order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	require.True(t, moved)

	moved, err = f.svc.AdvanceStatus(ctx, nil, f.order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	require.False(t, moved)

	require.NoError(t, f.svc.SetStatus(ctx, f.db, f.order.ID, enums.OrderStatusDelivered))
	err = f.svc.SetStatus(ctx, nil, uuid.New(), enums.OrderStatusDelivered)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
