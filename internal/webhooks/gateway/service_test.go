package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/drivers"
	"github.com/angelmondragon/packdrop-backend/internal/ledger"
	"github.com/angelmondragon/packdrop-backend/internal/orders"
	"github.com/angelmondragon/packdrop-backend/internal/payouts"
	"github.com/angelmondragon/packdrop-backend/internal/repo/repotest"
	"github.com/angelmondragon/packdrop-backend/internal/vendors"
	pkgdb "github.com/angelmondragon/packdrop-backend/pkg/db"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *memoryStore) WebhookEventKey(eventKey string) string {
	return "pd:webhook:" + eventKey
}

func (s *memoryStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data["pd:webhook:"+key]
	return ok
}

type harness struct {
	db      *gorm.DB
	svc     *Service
	payouts payouts.Service
	store   *memoryStore
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db := repotest.NewDB(t)
	logg := repotest.Logger()
	tx := pkgdb.Wrap(db)
	emitter := outbox.NewService(outbox.NewRepository(db), logg)

	accounts := ledger.NewRepository(db)
	ledgerSvc, err := ledger.NewService(accounts)
	require.NoError(t, err)
	payoutRepo := payouts.NewRepository(db)
	payoutSvc, err := payouts.NewService(payouts.Deps{
		Repo: payoutRepo,
		Subjects: []payouts.Subject{
			payouts.NewDriverSubject(drivers.NewRepository(db), accounts, payoutRepo),
			payouts.NewVendorSubject(vendors.NewRepository(db), accounts),
		},
		Accounts: accounts,
		Ledger:   ledgerSvc,
		Outbox:   emitter,
		Tx:       tx,
		Logger:   logg,
	})
	require.NoError(t, err)

	orderSvc, err := orders.NewService(orders.NewRepository(db), vendors.NewRepository(db), tx, logg)
	require.NoError(t, err)

	store := newMemoryStore()
	replay, err := NewReplayGuard(store, time.Hour)
	require.NoError(t, err)
	alerts, err := NewAlerter(emitter, tx, nil, logg)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Payouts:           payoutSvc,
		Orders:            orderSvc,
		Accounts:          accounts,
		Guard:             replay,
		Alerter:           alerts,
		TransactionRunner: tx,
		Logger:            logg,
	})
	require.NoError(t, err)
	return harness{db: db, svc: svc, payouts: payoutSvc, store: store}
}

func transferEvent(reference, status string) Event {
	return Event{
		Event: "transfer.completed",
		Data: EventData{
			ID:              json.RawMessage(`48213`),
			Reference:       reference,
			Status:          status,
			CompleteMessage: "Transaction was not completed",
		},
	}
}

func approvedTransfer(t *testing.T, h harness) (*models.Driver, string) {
	t.Helper()
	driver := repotest.SeedDriver(t, h.db, func(d *models.Driver) { d.TotalEarnings = decimal.NewFromInt(780) })
	ctx := context.Background()
	request, err := h.payouts.RequestPayout(ctx, payouts.RequestPayoutInput{
		UserID:   driver.UserID,
		UserType: enums.PayoutUserDriver,
		Amount:   decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	_, err = h.payouts.ApproveForTransfer(ctx, payouts.ProcessPayoutInput{
		AdminUserID: uuid.New(),
		ActorRole:   enums.UserRoleAdmin,
		RequestID:   request.ID,
		Approved:    true,
	})
	require.NoError(t, err)
	return driver, ledger.NewReference(ledger.ReferencePayout, request.ID)
}

func reloadTxn(t *testing.T, db *gorm.DB, reference string) models.Transaction {
	t.Helper()
	var txn models.Transaction
	require.NoError(t, db.First(&txn, "reference = ?", reference).Error)
	return txn
}

func TestHandleTransferEventSuccessIsAppliedOnce(t *testing.T) {
	h := newHarness(t)
	driver, reference := approvedTransfer(t, h)
	ctx := context.Background()

	require.NoError(t, h.svc.HandleTransferEvent(ctx, transferEvent(reference, "SUCCESSFUL")))
	txn := reloadTxn(t, h.db, reference)
	require.Equal(t, enums.TransactionStatusSuccessful, txn.Status)
	require.Equal(t, "48213", *txn.GatewayReference)

	require.NoError(t, h.svc.HandleTransferEvent(ctx, transferEvent(reference, "SUCCESSFUL")))
	var d models.Driver
	require.NoError(t, h.db.First(&d, "id = ?", driver.ID).Error)
	require.True(t, d.TotalPaidOut.Equal(decimal.NewFromInt(500)))
	require.Equal(t, int64(1), repotest.CountOutbox(t, h.db, enums.EventPayoutProcessed))
}

func TestHandleTransferEventFailureRestoresBalance(t *testing.T) {
	h := newHarness(t)
	driver, reference := approvedTransfer(t, h)

	require.NoError(t, h.svc.HandleTransferEvent(context.Background(), transferEvent(reference, "FAILED")))
	require.Equal(t, enums.TransactionStatusFailed, reloadTxn(t, h.db, reference).Status)

	var d models.Driver
	require.NoError(t, h.db.First(&d, "id = ?", driver.ID).Error)
	require.True(t, d.TotalPaidOut.IsZero())

	// A late success for the same reference finds the transfer settled.
	require.NoError(t, h.svc.HandleTransferEvent(context.Background(), transferEvent(reference, "SUCCESSFUL")))
	require.Equal(t, enums.TransactionStatusFailed, reloadTxn(t, h.db, reference).Status)
}

func TestHandleTransferEventUnknownReferenceAlerts(t *testing.T) {
	h := newHarness(t)
	event := transferEvent("PAY-"+uuid.NewString(), "SUCCESSFUL")

	err := h.svc.HandleTransferEvent(context.Background(), event)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.False(t, h.store.has(event.ReplayKey(KindTransfer)))
	require.Equal(t, int64(1), repotest.CountOutbox(t, h.db, enums.EventWebhookFailed))
}

func TestHandleTransferEventAlertsWhenReplayStoreFails(t *testing.T) {
	h := newHarness(t)
	_, reference := approvedTransfer(t, h)
	h.store.setErr = errors.New("redis: connection refused")

	err := h.svc.HandleTransferEvent(context.Background(), transferEvent(reference, "SUCCESSFUL"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Equal(t, enums.TransactionStatusPending, reloadTxn(t, h.db, reference).Status)
	require.Equal(t, int64(1), repotest.CountOutbox(t, h.db, enums.EventWebhookFailed))
}

func TestHandleTransferEventIgnoresUnknownStatus(t *testing.T) {
	h := newHarness(t)
	_, reference := approvedTransfer(t, h)

	require.NoError(t, h.svc.HandleTransferEvent(context.Background(), transferEvent(reference, "PENDING")))
	require.Equal(t, enums.TransactionStatusPending, reloadTxn(t, h.db, reference).Status)
}

func seedPendingPayment(t *testing.T, db *gorm.DB) (*models.Order, string) {
	t.Helper()
	vendor := repotest.SeedVendor(t, db)
	order := repotest.SeedOrder(t, db, vendor.ID, func(o *models.Order) {
		o.Status = enums.OrderStatusPending
		o.Total = decimal.NewFromInt(6375)
	})
	reference := "PMT-" + uuid.NewString()
	require.NoError(t, db.Create(&models.Transaction{
		ID:            uuid.New(),
		Reference:     reference,
		Type:          enums.TransactionTypePayment,
		Amount:        decimal.NewFromInt(6375),
		Status:        enums.TransactionStatusPending,
		PaymentMethod: enums.PaymentMethodCard,
		OrderID:       &order.ID,
	}).Error)
	return order, reference
}

func paymentEvent(reference, status string, amount int64) Event {
	value := decimal.NewFromInt(amount)
	return Event{
		Event: "charge.completed",
		Data: EventData{
			ID:     json.RawMessage(`"flw-991"`),
			TxRef:  reference,
			Status: status,
			Amount: &value,
		},
	}
}

func TestHandlePaymentEventConfirmsOrder(t *testing.T) {
	h := newHarness(t)
	order, reference := seedPendingPayment(t, h.db)
	ctx := context.Background()

	require.NoError(t, h.svc.HandlePaymentEvent(ctx, paymentEvent(reference, "successful", 6375)))
	txn := reloadTxn(t, h.db, reference)
	require.Equal(t, enums.TransactionStatusSuccessful, txn.Status)
	require.Equal(t, "flw-991", *txn.GatewayReference)

	var stored models.Order
	require.NoError(t, h.db.First(&stored, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusConfirmed, stored.Status)

	require.NoError(t, h.svc.HandlePaymentEvent(ctx, paymentEvent(reference, "successful", 6375)))
}

func TestHandlePaymentEventFailureLeavesOrderPending(t *testing.T) {
	h := newHarness(t)
	order, reference := seedPendingPayment(t, h.db)

	require.NoError(t, h.svc.HandlePaymentEvent(context.Background(), paymentEvent(reference, "failed", 6375)))
	require.Equal(t, enums.TransactionStatusFailed, reloadTxn(t, h.db, reference).Status)

	var stored models.Order
	require.NoError(t, h.db.First(&stored, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusPending, stored.Status)
}

func TestHandlePaymentEventAmountMismatch(t *testing.T) {
	h := newHarness(t)
	_, reference := seedPendingPayment(t, h.db)

	err := h.svc.HandlePaymentEvent(context.Background(), paymentEvent(reference, "successful", 100))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, enums.TransactionStatusPending, reloadTxn(t, h.db, reference).Status)
	require.Equal(t, int64(1), repotest.CountOutbox(t, h.db, enums.EventWebhookFailed))
}

func TestAlertIDIsStable(t *testing.T) {
	require.Equal(t, alertID(KindTransfer, "PAY-1"), alertID(KindTransfer, "PAY-1"))
	require.NotEqual(t, alertID(KindTransfer, "PAY-1"), alertID(KindPayment, "PAY-1"))
}

func TestEventReferenceFallsBackToTxRef(t *testing.T) {
	event := Event{Data: EventData{TxRef: " PMT-9 ", Status: "Success"}}
	require.Equal(t, "PMT-9", event.Reference())
	require.Equal(t, OutcomeSucceeded, event.Outcome())
	require.Equal(t, "payment:PMT-9:successful", event.ReplayKey(KindPayment))
	require.Empty(t, event.GatewayID())
}
