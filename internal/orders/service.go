package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/vendors"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor identifies who is editing an order.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// AddItemInput describes a new order line.
type AddItemInput struct {
	OrderID                uuid.UUID
	Actor                  Actor
	ProductID              uuid.UUID
	Name                   string
	Quantity               int
	UnitPrice              decimal.Decimal
	CategoryCommissionRate *decimal.Decimal
}

// UpdateItemInput changes the quantity of an existing line.
type UpdateItemInput struct {
	OrderID  uuid.UUID
	ItemID   uuid.UUID
	Actor    Actor
	Quantity int
}

// RemoveItemInput deletes a line.
type RemoveItemInput struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Actor   Actor
}

// Service defines order operations used by the API and by delivery flows.
type Service interface {
	AddItem(ctx context.Context, input AddItemInput) (*models.Order, error)
	UpdateItemQuantity(ctx context.Context, input UpdateItemInput) (*models.Order, error)
	RemoveItem(ctx context.Context, input RemoveItemInput) (*models.Order, error)
	Recalculate(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	SetStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.OrderStatus) error
	AdvanceStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error)
}

type service struct {
	repo    Repository
	vendors vendors.Repository
	tx      txRunner
	logg    *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, vendorRepo vendors.Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if vendorRepo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, vendors: vendorRepo, tx: tx, logg: logg}, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.Order, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	if rate := input.CategoryCommissionRate; rate != nil && (rate.IsNegative() || rate.GreaterThan(hundred)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be between 0 and 100")
	}

	return s.editItems(ctx, input.OrderID, input.Actor, func(repo Repository) error {
		item := &models.OrderItem{
			OrderID:                input.OrderID,
			ProductID:              input.ProductID,
			Name:                   input.Name,
			Quantity:               input.Quantity,
			UnitPrice:              input.UnitPrice,
			CategoryCommissionRate: input.CategoryCommissionRate,
			TotalPrice:             LineTotal(input.Quantity, input.UnitPrice),
		}
		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order item")
		}
		return nil
	})
}

func (s *service) UpdateItemQuantity(ctx context.Context, input UpdateItemInput) (*models.Order, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}

	return s.editItems(ctx, input.OrderID, input.Actor, func(repo Repository) error {
		item, err := repo.FindItem(ctx, input.OrderID, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		item.Quantity = input.Quantity
		item.TotalPrice = LineTotal(item.Quantity, item.UnitPrice)
		if err := repo.UpdateItemQuantity(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, input RemoveItemInput) (*models.Order, error) {
	return s.editItems(ctx, input.OrderID, input.Actor, func(repo Repository) error {
		if err := repo.DeleteItem(ctx, input.OrderID, input.ItemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order item")
		}
		return nil
	})
}

// editItems locks the order, checks the caller may edit it, applies mutate
// and recalculates, all in one transaction.
func (s *service) editItems(ctx context.Context, orderID uuid.UUID, actor Actor, mutate func(Repository) error) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		vendor, err := s.loadVendor(ctx, tx, order.VendorID)
		if err != nil {
			return err
		}
		if err := authorizeEdit(order, vendor, actor); err != nil {
			return err
		}
		if !order.Status.AllowsItemChanges() {
			return pkgerrors.New(pkgerrors.CodeValidation, "order items can no longer be changed").
				WithDetails(map[string]any{"status": order.Status})
		}

		if err := mutate(repo); err != nil {
			return err
		}
		updated, err = s.recalculate(ctx, repo, order, vendor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "order_id", orderID.String()), "order recalculated")
	return updated, nil
}

func authorizeEdit(order *models.Order, vendor *models.Vendor, actor Actor) error {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleCustomer:
		if order.CustomerID == actor.UserID {
			return nil
		}
	case enums.UserRoleVendor:
		if vendor.UserID == actor.UserID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
}

func (s *service) Recalculate(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	if tx == nil {
		var out *models.Order
		err := s.tx.WithTx(ctx, func(inner *gorm.DB) error {
			var err error
			out, err = s.Recalculate(ctx, inner, orderID)
			return err
		})
		return out, err
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	vendor, err := s.loadVendor(ctx, tx, order.VendorID)
	if err != nil {
		return nil, err
	}
	return s.recalculate(ctx, repo, order, vendor)
}

func (s *service) recalculate(ctx context.Context, repo Repository, order *models.Order, vendor *models.Vendor) (*models.Order, error) {
	items, err := repo.ListItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	totals := ComputeTotals(items, vendor.CommissionRate, order.DeliveryFee, order.Discount)
	if err := repo.UpdateTotals(ctx, order.ID, totals); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order totals")
	}

	order.Subtotal = totals.Subtotal
	order.Tax = totals.Tax
	order.CommissionAmount = totals.CommissionAmount
	order.VendorEarning = totals.VendorEarning
	order.Total = totals.Total
	order.Items = items
	return order, nil
}

func (s *service) loadVendor(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID) (*models.Vendor, error) {
	vendor, err := s.vendors.WithTx(tx).FindByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	return vendor, nil
}

func (s *service) SetStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.OrderStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if err := s.repo.WithTx(tx).UpdateStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	return nil
}

// AdvanceStatus moves the order from one status to another and reports
// false when the order was no longer in from.
func (s *service) AdvanceStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	if !from.IsValid() || !to.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, orderID, from, to)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	return moved, nil
}
