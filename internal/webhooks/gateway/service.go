package gateway

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/ledger"
	"github.com/angelmondragon/packdrop-backend/internal/orders"
	"github.com/angelmondragon/packdrop-backend/internal/payouts"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
)

type guard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type alerter interface {
	WebhookFailed(ctx context.Context, kind, reference string, cause error)
}

// ServiceParams wires the webhook processor.
type ServiceParams struct {
	Payouts           payouts.Service
	Orders            orders.Service
	Accounts          ledger.Repository
	Guard             guard
	Alerter           alerter
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service applies payment and transfer callbacks from the gateway.
type Service struct {
	payouts  payouts.Service
	orders   orders.Service
	accounts ledger.Repository
	guard    guard
	alerter  alerter
	txRunner txRunner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payouts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payouts service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "replay guard required")
	}
	if params.Alerter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "alerter required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		payouts:  params.Payouts,
		orders:   params.Orders,
		accounts: params.Accounts,
		guard:    params.Guard,
		alerter:  params.Alerter,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

// Alert exposes the failure path to the HTTP layer for callbacks rejected
// before they reach a handler.
func (s *Service) Alert(ctx context.Context, kind, reference string, cause error) {
	s.alerter.WebhookFailed(ctx, kind, reference, cause)
}

// HandleTransferEvent settles the payout transfer named by the event reference.
func (s *Service) HandleTransferEvent(ctx context.Context, event Event) error {
	return s.process(ctx, KindTransfer, event, func(ctx context.Context) error {
		_, err := s.payouts.CompleteTransfer(ctx, nil, payouts.CompleteTransferInput{
			Reference:        event.Reference(),
			Succeeded:        event.Outcome() == OutcomeSucceeded,
			GatewayReference: event.GatewayID(),
			Message:          event.Data.CompleteMessage,
		})
		if errors.Is(err, payouts.ErrAlreadySettled) {
			s.logg.Info(ctx, "transfer already settled")
			return nil
		}
		return err
	})
}

// HandlePaymentEvent settles a customer payment and confirms its order.
func (s *Service) HandlePaymentEvent(ctx context.Context, event Event) error {
	return s.process(ctx, KindPayment, event, func(ctx context.Context) error {
		return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			return s.applyPayment(ctx, tx, event)
		})
	})
}

func (s *Service) applyPayment(ctx context.Context, tx *gorm.DB, event Event) error {
	accounts := s.accounts.WithTx(tx)
	txn, err := accounts.FindByReference(ctx, event.Reference())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown payment reference").
				WithDetails(map[string]any{"reference": event.Reference()})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment transaction")
	}
	if txn.Type != enums.TransactionTypePayment {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference is not a payment")
	}
	if txn.Status != enums.TransactionStatusPending {
		s.logg.Info(ctx, "payment already settled")
		return nil
	}
	if event.Data.Amount != nil && !event.Data.Amount.Round(2).Equal(txn.Amount.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount does not match").
			WithDetails(map[string]any{"expected": txn.Amount.StringFixed(2), "received": event.Data.Amount.StringFixed(2)})
	}

	status := enums.TransactionStatusFailed
	if event.Outcome() == OutcomeSucceeded {
		status = enums.TransactionStatusSuccessful
	}
	var gatewayRef *string
	if id := event.GatewayID(); id != "" {
		gatewayRef = &id
	}
	if err := accounts.UpdateStatus(ctx, txn.ID, enums.TransactionStatusPending, status, gatewayRef); err != nil {
		if errors.Is(err, ledger.ErrStatusChanged) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment transaction")
	}

	if status != enums.TransactionStatusSuccessful || txn.OrderID == nil {
		return nil
	}
	moved, err := s.orders.AdvanceStatus(ctx, tx, *txn.OrderID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	if err != nil {
		return err
	}
	if !moved {
		s.logg.Warn(s.logg.WithField(ctx, "order_id", txn.OrderID.String()), "paid order was not pending")
	}
	return nil
}

// process runs handle once per replay key. A failed attempt releases the key
// so the gateway's retry can succeed, and raises an alert.
func (s *Service) process(ctx context.Context, kind string, event Event, handle func(context.Context) error) error {
	reference := event.Reference()
	ctx = s.logg.WithFields(ctx, map[string]any{
		"webhook_kind": kind,
		"reference":    reference,
		"status":       event.Data.Status,
	})
	if reference == "" {
		err := pkgerrors.New(pkgerrors.CodeValidation, "webhook reference missing")
		s.alerter.WebhookFailed(ctx, kind, reference, err)
		return err
	}
	if event.Outcome() == OutcomeUnknown {
		s.logg.Warn(ctx, fmt.Sprintf("ignoring %s webhook with status %q", kind, event.Data.Status))
		return nil
	}

	key := event.ReplayKey(kind)
	seen, err := s.guard.CheckAndMark(ctx, key)
	if err != nil {
		err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook replay")
		s.alerter.WebhookFailed(ctx, kind, reference, err)
		return err
	}
	if seen {
		s.logg.Info(ctx, "webhook replay ignored")
		return nil
	}

	if err := handle(ctx); err != nil {
		if delErr := s.guard.Delete(ctx, key); delErr != nil {
			s.logg.Error(ctx, "release webhook replay key", delErr)
		}
		s.alerter.WebhookFailed(ctx, kind, reference, err)
		return err
	}
	s.logg.Info(ctx, fmt.Sprintf("%s webhook processed", kind))
	return nil
}
