package earnings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/drivers"
	"github.com/angelmondragon/packdrop-backend/internal/ledger"
	"github.com/angelmondragon/packdrop-backend/internal/vendors"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/metrics"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/packdrop-backend/pkg/pagination"
	"github.com/angelmondragon/packdrop-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AccountTotals are the running totals on a driver or vendor account.
type AccountTotals struct {
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	TotalEarnings    decimal.Decimal `json:"totalEarnings"`
	TotalPaidOut     decimal.Decimal `json:"totalPaidOut"`
}

// DriverSummary is the driver earnings dashboard.
type DriverSummary struct {
	DriverID        uuid.UUID       `json:"driverId"`
	Totals          AccountTotals   `json:"totals"`
	PendingEarnings decimal.Decimal `json:"pendingEarnings"`
	Earnings        *EarningList    `json:"earnings"`
}

// VendorSummary is the vendor earnings dashboard.
type VendorSummary struct {
	VendorID     uuid.UUID               `json:"vendorId"`
	Totals       AccountTotals           `json:"totals"`
	Transactions *ledger.TransactionList `json:"transactions"`
}

// Service posts earnings exactly once and reads earning history.
type Service interface {
	CalculateDeliveryEarnings(ctx context.Context, tx *gorm.DB, deliveryID uuid.UUID) (*models.DriverEarning, error)
	CalculateOrderEarnings(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	DriverSummary(ctx context.Context, driverUserID uuid.UUID, params pagination.Params) (*DriverSummary, error)
	VendorSummary(ctx context.Context, vendorUserID uuid.UUID, params pagination.Params) (*VendorSummary, error)
}

// Deps bundles the collaborators of the earnings service.
type Deps struct {
	Repo     Repository
	Drivers  drivers.Repository
	Vendors  vendors.Repository
	Accounts ledger.Repository
	Ledger   ledger.Service
	Outbox   outbox.Emitter
	Tx       txRunner
	Logger   *logger.Logger
	Metrics  *metrics.DomainMetrics
}

type service struct {
	repo     Repository
	drivers  drivers.Repository
	vendors  vendors.Repository
	accounts ledger.Repository
	ledger   ledger.Service
	outbox   outbox.Emitter
	tx       txRunner
	logg     *logger.Logger
	metrics  *metrics.DomainMetrics
	now      func() time.Time
}

// NewService builds an earnings service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("earnings repository required")
	case deps.Drivers == nil:
		return nil, fmt.Errorf("drivers repository required")
	case deps.Vendors == nil:
		return nil, fmt.Errorf("vendors repository required")
	case deps.Accounts == nil:
		return nil, fmt.Errorf("ledger repository required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     deps.Repo,
		drivers:  deps.Drivers,
		vendors:  deps.Vendors,
		accounts: deps.Accounts,
		ledger:   deps.Ledger,
		outbox:   deps.Outbox,
		tx:       deps.Tx,
		logg:     deps.Logger,
		metrics:  deps.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// CalculateDeliveryEarnings posts the driver earning for a delivered
// delivery. Repeated calls return the existing row without side effects.
// A nil tx runs the posting in its own transaction.
func (s *service) CalculateDeliveryEarnings(ctx context.Context, tx *gorm.DB, deliveryID uuid.UUID) (*models.DriverEarning, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if tx == nil {
		var out *models.DriverEarning
		err := s.tx.WithTx(ctx, func(inner *gorm.DB) error {
			var err error
			out, err = s.CalculateDeliveryEarnings(ctx, inner, deliveryID)
			return err
		})
		return out, err
	}

	repo := s.repo.WithTx(tx)
	delivery, err := repo.FindDelivery(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	if delivery.Status != enums.DeliveryStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery is not delivered").
			WithDetails(map[string]any{"status": delivery.Status})
	}
	if delivery.DriverID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery has no driver")
	}

	existing, err := repo.FindEarningByDelivery(ctx, deliveryID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver earning")
	}

	split := Calculate(delivery.DeliveryFee)
	earnedAt := s.now()
	if delivery.DeliveredAt != nil {
		earnedAt = delivery.DeliveredAt.UTC()
	}
	earning := &models.DriverEarning{
		ID:             uuid.New(),
		DriverID:       *delivery.DriverID,
		DeliveryID:     delivery.ID,
		Amount:         split.Gross,
		TransactionFee: split.Fee,
		NetAmount:      split.Net,
		EarningDate:    earnedAt,
	}
	created, err := repo.InsertEarningIfAbsent(ctx, earning)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert driver earning")
	}
	if !created {
		winner, err := repo.FindEarningByDelivery(ctx, deliveryID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload driver earning")
		}
		return winner, nil
	}

	if split.Net.IsPositive() {
		if err := s.accounts.WithTx(tx).CreditEarnings(ctx, enums.PayoutUserDriver, earning.DriverID, split.Net); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit driver earnings")
		}
		reference := ledger.NewReference(ledger.ReferenceDriverEarning, delivery.ID)
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			Reference:  reference,
			Type:       enums.TransactionTypePayment,
			Status:     enums.TransactionStatusSuccessful,
			Amount:     split.Net,
			Method:     enums.PaymentMethodWallet,
			OrderID:    &delivery.OrderID,
			DriverID:   &earning.DriverID,
			DeliveryID: &delivery.ID,
			Metadata: types.JSONMap{
				"gross": split.Gross.StringFixed(2),
				"fee":   split.Fee.StringFixed(2),
			},
		}); err != nil {
			return nil, err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEarningPosted,
			AggregateType: enums.AggregateDriverEarning,
			AggregateID:   earning.ID,
			Data: payloads.EarningPostedEvent{
				Subject:    enums.PayoutUserDriver,
				AccountID:  earning.DriverID,
				Reference:  reference,
				Amount:     split.Net,
				DeliveryID: &delivery.ID,
				OrderID:    &delivery.OrderID,
				EarningID:  &earning.ID,
			},
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit earning posted")
		}
	}

	s.metrics.IncEarningPosted(string(enums.PayoutUserDriver))
	logCtx := s.logg.WithDeliveryID(ctx, delivery.ID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"driver_id":  earning.DriverID.String(),
		"net_amount": split.Net.StringFixed(2),
	}), "driver earning posted")
	return earning, nil
}

// CalculateOrderEarnings credits the vendor once per delivered order.
func (s *service) CalculateOrderEarnings(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if tx == nil {
		return s.tx.WithTx(ctx, func(inner *gorm.DB) error {
			return s.CalculateOrderEarnings(ctx, inner, orderID)
		})
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusDelivered {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is not delivered").
			WithDetails(map[string]any{"status": order.Status})
	}
	if !order.VendorEarning.IsPositive() {
		return nil
	}

	claimed, err := repo.MarkVendorEarningPosted(ctx, order.ID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim vendor posting")
	}
	if !claimed {
		return nil
	}

	amount := order.VendorEarning.Round(2)
	if err := s.accounts.WithTx(tx).CreditEarnings(ctx, enums.PayoutUserVendor, order.VendorID, amount); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit vendor earnings")
	}
	reference := ledger.NewReference(ledger.ReferenceVendorEarning, order.ID)
	if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
		Reference: reference,
		Type:      enums.TransactionTypePayment,
		Status:    enums.TransactionStatusSuccessful,
		Amount:    amount,
		Method:    enums.PaymentMethodWallet,
		OrderID:   &order.ID,
		VendorID:  &order.VendorID,
		Metadata: types.JSONMap{
			"subtotal":   order.Subtotal.StringFixed(2),
			"commission": order.CommissionAmount.StringFixed(2),
		},
	}); err != nil {
		return err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventEarningPosted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.EarningPostedEvent{
			Subject:   enums.PayoutUserVendor,
			AccountID: order.VendorID,
			Reference: reference,
			Amount:    amount,
			OrderID:   &order.ID,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit earning posted")
	}

	s.metrics.IncEarningPosted(string(enums.PayoutUserVendor))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":  order.ID.String(),
		"vendor_id": order.VendorID.String(),
		"amount":    amount.StringFixed(2),
	}), "vendor earning posted")
	return nil
}

func (s *service) DriverSummary(ctx context.Context, driverUserID uuid.UUID, params pagination.Params) (*DriverSummary, error) {
	driver, err := s.drivers.FindByUserID(ctx, driverUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}
	if err := params.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	pending, err := s.repo.UnpaidTotal(ctx, driver.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum unpaid earnings")
	}
	page, err := s.repo.ListDriverEarnings(ctx, driver.ID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list driver earnings")
	}
	return &DriverSummary{
		DriverID: driver.ID,
		Totals: AccountTotals{
			AvailableBalance: driver.AvailableBalance(),
			TotalEarnings:    driver.TotalEarnings,
			TotalPaidOut:     driver.TotalPaidOut,
		},
		PendingEarnings: pending,
		Earnings:        page,
	}, nil
}

func (s *service) VendorSummary(ctx context.Context, vendorUserID uuid.UUID, params pagination.Params) (*VendorSummary, error) {
	vendor, err := s.vendors.FindByUserID(ctx, vendorUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	history, err := s.ledger.History(ctx, enums.PayoutUserVendor, vendor.ID, params)
	if err != nil {
		return nil, err
	}
	return &VendorSummary{
		VendorID: vendor.ID,
		Totals: AccountTotals{
			AvailableBalance: vendor.AvailableBalance(),
			TotalEarnings:    vendor.TotalEarnings,
			TotalPaidOut:     vendor.TotalPaidOut,
		},
		Transactions: history,
	}, nil
}
