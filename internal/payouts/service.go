package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/ledger"
	pkgdb "github.com/angelmondragon/packdrop-backend/pkg/db"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/metrics"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/packdrop-backend/pkg/pagination"
)

// ErrAlreadySettled is returned when a transfer callback arrives for a
// payout whose transaction already left pending.
var ErrAlreadySettled = errors.New("payouts: transfer already settled")

const staleSweepBatch = 500

// SettlementMode selects how an approved payout moves money.
type SettlementMode string

const (
	// SettlementDirect marks the payout processed in one step.
	SettlementDirect SettlementMode = "direct"
	// SettlementTransfer reserves the funds and waits for the gateway callback.
	SettlementTransfer SettlementMode = "transfer"
)

// RequestPayoutInput is a user's withdrawal request.
type RequestPayoutInput struct {
	UserID   uuid.UUID
	UserType enums.PayoutUserType
	Amount   decimal.Decimal
}

// ProcessPayoutInput is an admin decision on a pending request.
type ProcessPayoutInput struct {
	AdminUserID uuid.UUID
	ActorRole   enums.UserRole
	RequestID   uuid.UUID
	Approved    bool
	Notes       string
	Mode        SettlementMode
}

// CompleteTransferInput is the gateway's verdict on a transfer.
type CompleteTransferInput struct {
	Reference        string
	Succeeded        bool
	GatewayReference string
	Message          string
}

// Balance is the withdrawable position of one account.
type Balance struct {
	AvailableBalance     decimal.Decimal       `json:"availableBalance"`
	TotalEarnings        decimal.Decimal       `json:"totalEarnings"`
	TotalPaidOut         decimal.Decimal       `json:"totalPaidOut"`
	IsPayoutEnabled      bool                  `json:"isPayoutEnabled"`
	CanRequestPayout     bool                  `json:"canRequestPayout"`
	PendingPayoutRequest *models.PayoutRequest `json:"pendingPayoutRequest"`
}

// Service runs the payout request workflow.
type Service interface {
	RequestPayout(ctx context.Context, input RequestPayoutInput) (*models.PayoutRequest, error)
	ProcessPayoutRequest(ctx context.Context, input ProcessPayoutInput) (*models.PayoutRequest, error)
	ApproveForTransfer(ctx context.Context, input ProcessPayoutInput) (*models.PayoutRequest, error)
	CompleteTransfer(ctx context.Context, tx *gorm.DB, input CompleteTransferInput) (*models.PayoutRequest, error)
	GetAvailableBalance(ctx context.Context, userID uuid.UUID, userType enums.PayoutUserType) (*Balance, error)
	ListPayoutRequests(ctx context.Context, filter ListFilter, params pagination.Params) (*RequestList, error)
	RejectStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Deps bundles the collaborators of the payout service.
type Deps struct {
	Repo          Repository
	Subjects      []Subject
	Accounts      ledger.Repository
	Ledger        ledger.Service
	Outbox        outbox.Emitter
	Tx            txRunner
	Logger        *logger.Logger
	Metrics       *metrics.DomainMetrics
	MinimumAmount decimal.Decimal
}

type service struct {
	repo     Repository
	subjects map[enums.PayoutUserType]Subject
	accounts ledger.Repository
	ledger   ledger.Service
	outbox   outbox.Emitter
	tx       txRunner
	logg     *logger.Logger
	metrics  *metrics.DomainMetrics
	minimum  decimal.Decimal
	now      func() time.Time
}

// NewService builds the payout service. Every payout user type needs a subject.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("payouts repository required")
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
	case deps.MinimumAmount.IsNegative():
		return nil, fmt.Errorf("minimum payout amount cannot be negative")
	}
	subjects := make(map[enums.PayoutUserType]Subject, len(deps.Subjects))
	for _, subject := range deps.Subjects {
		subjects[subject.UserType()] = subject
	}
	for _, userType := range []enums.PayoutUserType{enums.PayoutUserDriver, enums.PayoutUserVendor} {
		if subjects[userType] == nil {
			return nil, fmt.Errorf("payout subject %q required", userType)
		}
	}
	return &service{
		repo:     deps.Repo,
		subjects: subjects,
		accounts: deps.Accounts,
		ledger:   deps.Ledger,
		outbox:   deps.Outbox,
		tx:       deps.Tx,
		logg:     deps.Logger,
		metrics:  deps.Metrics,
		minimum:  deps.MinimumAmount,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) subject(userType enums.PayoutUserType) (Subject, error) {
	subject, ok := s.subjects[userType]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payout user type %q", userType)
	}
	return subject, nil
}

func (s *service) RequestPayout(ctx context.Context, input RequestPayoutInput) (*models.PayoutRequest, error) {
	subject, err := s.subject(input.UserType)
	if err != nil {
		return nil, err
	}
	amount := input.Amount.Round(2)

	var created *models.PayoutRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		account, err := subject.Account(ctx, tx, input.UserID)
		if err != nil {
			return err
		}
		if err := s.checkEligibility(account, amount); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.FindOpen(ctx, input.UserID, input.UserType); err == nil {
			return errPendingExists()
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open payout requests")
		}

		earningIDs, err := subject.UnpaidEarningIDs(ctx, tx, account)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unpaid earnings")
		}
		banking := account.Banking()
		request := &models.PayoutRequest{
			ID:            uuid.New(),
			UserID:        input.UserID,
			UserType:      input.UserType,
			Amount:        amount,
			Status:        enums.PayoutStatusPending,
			BankName:      banking.BankName,
			AccountName:   banking.AccountName,
			AccountNumber: banking.AccountNumber,
			EarningIDs:    earningIDs,
		}
		if err := repo.Create(ctx, request); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				return errPendingExists()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout request")
		}
		created = request

		if err := s.emitPayout(ctx, tx, enums.EventPayoutRequested, request, ""); err != nil {
			return err
		}
		return s.notify(ctx, tx, request, payloads.NotificationRequestedEvent{
			RecipientRole: enums.UserRoleAdmin,
			Type:          payloads.NotificationPayoutRequested,
			Title:         "New payout request",
			Body:          fmt.Sprintf("A %s requested a payout of %s.", input.UserType, amount.StringFixed(2)),
			Data:          map[string]any{"payoutRequestId": request.ID.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPayoutDecision(string(input.UserType), "requested")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payout_request_id": created.ID.String(),
		"user_type":         created.UserType,
		"amount":            created.Amount.StringFixed(2),
	}), "payout requested")
	return created, nil
}

func errPendingExists() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "already have a pending payout request")
}

func (s *service) checkEligibility(account *Account, amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be greater than zero")
	case s.minimum.IsPositive() && amount.LessThan(s.minimum):
		return pkgerrors.Newf(pkgerrors.CodeValidation, "payout amount must be at least %s", s.minimum.StringFixed(2))
	case !account.HasCompleteBanking():
		return pkgerrors.New(pkgerrors.CodeValidation, "banking details are incomplete")
	case !account.IsVerified:
		return pkgerrors.New(pkgerrors.CodeValidation, "account is not verified")
	case !account.IsPayoutEnabled:
		return pkgerrors.New(pkgerrors.CodeValidation, "payouts are disabled for this account")
	case amount.GreaterThan(account.AvailableBalance()):
		return pkgerrors.New(pkgerrors.CodeValidation, "insufficient available balance").
			WithDetails(map[string]any{"availableBalance": account.AvailableBalance().StringFixed(2)})
	}
	return nil
}

func (s *service) ProcessPayoutRequest(ctx context.Context, input ProcessPayoutInput) (*models.PayoutRequest, error) {
	if err := requireAdmin(input); err != nil {
		return nil, err
	}
	if input.Approved && input.Mode == SettlementTransfer {
		return s.ApproveForTransfer(ctx, input)
	}
	if input.Mode != "" && input.Mode != SettlementDirect && input.Mode != SettlementTransfer {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid settlement mode %q", input.Mode)
	}

	var (
		decided *models.PayoutRequest
		outcome string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request, err := s.loadPending(ctx, tx, input.RequestID)
		if err != nil {
			return err
		}
		if !input.Approved {
			outcome = "rejected"
			decided, err = s.reject(ctx, tx, request, input.AdminUserID, input.Notes)
			return err
		}
		outcome = "processed"
		decided, err = s.settle(ctx, tx, request, input, enums.PayoutStatusProcessed, enums.TransactionStatusSuccessful)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPayoutDecision(string(decided.UserType), outcome)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payout_request_id": decided.ID.String(),
		"status":            decided.Status,
	}), "payout request processed")
	return decided, nil
}

func (s *service) ApproveForTransfer(ctx context.Context, input ProcessPayoutInput) (*models.PayoutRequest, error) {
	if err := requireAdmin(input); err != nil {
		return nil, err
	}

	var approved *models.PayoutRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request, err := s.loadPending(ctx, tx, input.RequestID)
		if err != nil {
			return err
		}
		approved, err = s.settle(ctx, tx, request, input, enums.PayoutStatusApproved, enums.TransactionStatusPending)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPayoutDecision(string(approved.UserType), "approved")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payout_request_id": approved.ID.String(),
		"reference":         ledger.NewReference(ledger.ReferencePayout, approved.ID),
	}), "payout approved for transfer")
	return approved, nil
}

func requireAdmin(input ProcessPayoutInput) error {
	if input.ActorRole != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins can process payout requests")
	}
	if input.RequestID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout request id required")
	}
	return nil
}

func (s *service) loadPending(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.PayoutRequest, error) {
	request, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout request")
	}
	if request.Status != enums.PayoutStatusPending {
		return nil, errNotPending(request.Status)
	}
	return request, nil
}

func errNotPending(status enums.PayoutRequestStatus) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "payout request is not pending").
		WithDetails(map[string]any{"status": status})
}

func (s *service) reject(ctx context.Context, tx *gorm.DB, request *models.PayoutRequest, adminID uuid.UUID, notes string) (*models.PayoutRequest, error) {
	now := s.now()
	updates := map[string]any{"processed_at": now}
	if adminID != uuid.Nil {
		updates["processed_by"] = adminID
		request.ProcessedBy = &adminID
	}
	if notes != "" {
		updates["notes"] = notes
		request.Notes = &notes
	}
	moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, request.ID, enums.PayoutStatusPending, enums.PayoutStatusRejected, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject payout request")
	}
	if !moved {
		return nil, errNotPending(request.Status)
	}
	request.Status = enums.PayoutStatusRejected
	request.ProcessedAt = &now

	if err := s.emitPayout(ctx, tx, enums.EventPayoutRejected, request, ""); err != nil {
		return nil, err
	}
	body := notes
	if body == "" {
		body = "Your payout request was rejected."
	}
	if err := s.notifyOwner(ctx, tx, request, payloads.NotificationPayoutRejected, "Payout request rejected", body); err != nil {
		return nil, err
	}
	return request, nil
}

// settle moves a pending request to target, debits the account and records
// the PAY transaction with txnStatus. Every step shares tx.
func (s *service) settle(ctx context.Context, tx *gorm.DB, request *models.PayoutRequest, input ProcessPayoutInput, target enums.PayoutRequestStatus, txnStatus enums.TransactionStatus) (*models.PayoutRequest, error) {
	subject, err := s.subject(request.UserType)
	if err != nil {
		return nil, err
	}
	now := s.now()
	updates := map[string]any{"processed_by": input.AdminUserID, "processed_at": now}
	if input.Notes != "" {
		updates["notes"] = input.Notes
		request.Notes = &input.Notes
	}
	moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, request.ID, enums.PayoutStatusPending, target, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout request")
	}
	if !moved {
		return nil, errNotPending(request.Status)
	}

	account, err := subject.Account(ctx, tx, request.UserID)
	if err != nil {
		return nil, err
	}
	if err := subject.RecordPayout(ctx, tx, account, request.Amount); err != nil {
		return nil, err
	}

	reference := ledger.NewReference(ledger.ReferencePayout, request.ID)
	record := ledger.RecordInput{
		Reference:       reference,
		Type:            enums.TransactionTypePayout,
		Status:          txnStatus,
		Amount:          request.Amount,
		Method:          enums.PaymentMethodBankTransfer,
		PayoutRequestID: &request.ID,
		Metadata: map[string]any{
			"bankName":      request.BankName,
			"accountName":   request.AccountName,
			"accountNumber": request.AccountNumber,
		},
	}
	subject.LinkTransaction(&record, account)
	txn, err := s.ledger.Record(ctx, tx, record)
	if err != nil {
		return nil, err
	}

	if err := subject.SettleEarnings(ctx, tx, request.EarningIDs, reference, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle earnings")
	}
	if err := s.repo.WithTx(tx).LinkTransaction(ctx, request.ID, txn.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link payout transaction")
	}

	request.Status = target
	request.ProcessedBy = &input.AdminUserID
	request.ProcessedAt = &now
	request.TransactionID = &txn.ID

	event := enums.EventPayoutProcessed
	if target == enums.PayoutStatusApproved {
		event = enums.EventPayoutTransferRequested
	}
	if err := s.emitPayout(ctx, tx, event, request, reference); err != nil {
		return nil, err
	}
	if target == enums.PayoutStatusProcessed {
		return request, s.notifyOwner(ctx, tx, request, payloads.NotificationPayoutProcessed, "Payout processed",
			fmt.Sprintf("Your payout of %s has been processed.", request.Amount.StringFixed(2)))
	}
	return request, nil
}

// CompleteTransfer applies the gateway outcome of a transfer started by
// ApproveForTransfer. A nil tx runs in a new transaction.
func (s *service) CompleteTransfer(ctx context.Context, tx *gorm.DB, input CompleteTransferInput) (*models.PayoutRequest, error) {
	if tx == nil {
		var out *models.PayoutRequest
		err := s.tx.WithTx(ctx, func(inner *gorm.DB) error {
			var err error
			out, err = s.CompleteTransfer(ctx, inner, input)
			return err
		})
		return out, err
	}

	accounts := s.accounts.WithTx(tx)
	txn, err := accounts.FindByReference(ctx, input.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown transfer reference").
				WithDetails(map[string]any{"reference": input.Reference})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transfer transaction")
	}
	if txn.Type != enums.TransactionTypePayout || txn.PayoutRequestID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is not a payout transfer")
	}
	if txn.Status != enums.TransactionStatusPending {
		return nil, ErrAlreadySettled
	}

	repo := s.repo.WithTx(tx)
	request, err := repo.FindByID(ctx, *txn.PayoutRequestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout request")
	}

	var gatewayRef *string
	if input.GatewayReference != "" {
		gatewayRef = &input.GatewayReference
	}
	txnStatus := enums.TransactionStatusFailed
	if input.Succeeded {
		txnStatus = enums.TransactionStatusSuccessful
	}
	if err := accounts.UpdateStatus(ctx, txn.ID, enums.TransactionStatusPending, txnStatus, gatewayRef); err != nil {
		if errors.Is(err, ledger.ErrStatusChanged) {
			return nil, ErrAlreadySettled
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transfer transaction")
	}

	now := s.now()
	if input.Succeeded {
		moved, err := repo.TransitionStatus(ctx, request.ID, enums.PayoutStatusApproved, enums.PayoutStatusProcessed, map[string]any{"processed_at": now})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payout request")
		}
		if !moved {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "payout request is not awaiting transfer").
				WithDetails(map[string]any{"status": request.Status})
		}
		request.Status = enums.PayoutStatusProcessed
		request.ProcessedAt = &now
		if err := s.emitPayout(ctx, tx, enums.EventPayoutProcessed, request, input.Reference); err != nil {
			return nil, err
		}
		if err := s.notifyOwner(ctx, tx, request, payloads.NotificationPayoutProcessed, "Payout sent",
			fmt.Sprintf("Your payout of %s has been sent.", request.Amount.StringFixed(2))); err != nil {
			return nil, err
		}
		s.metrics.IncPayoutDecision(string(request.UserType), "transferred")
		return request, nil
	}

	notes := input.Message
	if notes == "" {
		notes = "transfer failed"
	}
	moved, err := repo.TransitionStatus(ctx, request.ID, enums.PayoutStatusApproved, enums.PayoutStatusRejected, map[string]any{
		"processed_at": now,
		"notes":        notes,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject payout request")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "payout request is not awaiting transfer").
			WithDetails(map[string]any{"status": request.Status})
	}
	subject, err := s.subject(request.UserType)
	if err != nil {
		return nil, err
	}
	account, err := subject.Account(ctx, tx, request.UserID)
	if err != nil {
		return nil, err
	}
	if err := subject.ReversePayout(ctx, tx, account, request.Amount); err != nil {
		return nil, err
	}
	if err := subject.UnsettleEarnings(ctx, tx, input.Reference); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen earnings")
	}
	request.Status = enums.PayoutStatusRejected
	request.ProcessedAt = &now
	request.Notes = &notes
	if err := s.emitPayout(ctx, tx, enums.EventPayoutRejected, request, input.Reference); err != nil {
		return nil, err
	}
	if err := s.notifyOwner(ctx, tx, request, payloads.NotificationPayoutRejected, "Payout failed", notes); err != nil {
		return nil, err
	}
	s.metrics.IncPayoutDecision(string(request.UserType), "transfer_failed")
	return request, nil
}

func (s *service) GetAvailableBalance(ctx context.Context, userID uuid.UUID, userType enums.PayoutUserType) (*Balance, error) {
	subject, err := s.subject(userType)
	if err != nil {
		return nil, err
	}
	account, err := subject.Account(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	balance := &Balance{
		AvailableBalance: account.AvailableBalance(),
		TotalEarnings:    account.TotalEarnings,
		TotalPaidOut:     account.TotalPaidOut,
		IsPayoutEnabled:  account.IsPayoutEnabled,
	}
	open, err := s.repo.FindOpen(ctx, userID, userType)
	switch {
	case err == nil:
		balance.PendingPayoutRequest = open
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open payout requests")
	}
	balance.CanRequestPayout = balance.PendingPayoutRequest == nil &&
		s.checkEligibility(account, account.AvailableBalance()) == nil
	return balance, nil
}

func (s *service) ListPayoutRequests(ctx context.Context, filter ListFilter, params pagination.Params) (*RequestList, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payout status %q", *filter.Status)
	}
	if filter.UserType != nil && !filter.UserType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payout user type %q", *filter.UserType)
	}
	if err := params.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout requests")
	}
	return list, nil
}

// RejectStale rejects pending requests created more than olderThan ago and
// returns how many it rejected. A non-positive age disables the sweep.
func (s *service) RejectStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	ids, err := s.repo.ListStalePending(ctx, s.now().Add(-olderThan), staleSweepBatch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale payout requests")
	}

	notes := fmt.Sprintf("automatically rejected after %s without a decision", olderThan)
	var (
		rejected int
		errs     error
	)
	for _, id := range ids {
		var userType enums.PayoutUserType
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			request, err := s.loadPending(ctx, tx, id)
			if err != nil {
				return err
			}
			userType = request.UserType
			_, err = s.reject(ctx, tx, request, uuid.Nil, notes)
			return err
		})
		switch {
		case err == nil:
			rejected++
			s.metrics.IncPayoutDecision(string(userType), "expired")
		case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
			// decided between listing and locking
		default:
			errs = multierr.Append(errs, fmt.Errorf("reject payout request %s: %w", id, err))
		}
	}
	return rejected, errs
}

func (s *service) emitPayout(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, request *models.PayoutRequest, reference string) error {
	data := payloads.PayoutEvent{
		PayoutRequestID: request.ID,
		UserID:          request.UserID,
		UserType:        request.UserType,
		Amount:          request.Amount,
		Status:          request.Status,
		Reference:       reference,
	}
	if request.Notes != nil {
		data.Notes = *request.Notes
	}
	if eventType == enums.EventPayoutTransferRequested {
		data.BankName = request.BankName
		data.AccountName = request.AccountName
		data.AccountNumber = request.AccountNumber
	}
	var actor *outbox.ActorRef
	if request.ProcessedBy != nil {
		actor = &outbox.ActorRef{UserID: *request.ProcessedBy, Role: string(enums.UserRoleAdmin)}
	} else if eventType == enums.EventPayoutRequested {
		actor = &outbox.ActorRef{UserID: request.UserID, Role: string(request.UserType)}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayoutRequest,
		AggregateID:   request.ID,
		Actor:         actor,
		Data:          data,
	})
}

func (s *service) notifyOwner(ctx context.Context, tx *gorm.DB, request *models.PayoutRequest, kind, title, body string) error {
	return s.notify(ctx, tx, request, payloads.NotificationRequestedEvent{
		RecipientUserID: request.UserID,
		RecipientRole:   enums.UserRole(request.UserType),
		Type:            kind,
		Title:           title,
		Body:            body,
		Data: map[string]any{
			"payoutRequestId": request.ID.String(),
			"status":          request.Status,
		},
	})
}

func (s *service) notify(ctx context.Context, tx *gorm.DB, request *models.PayoutRequest, payload payloads.NotificationRequestedEvent) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregatePayoutRequest,
		AggregateID:   request.ID,
		Data:          payload,
	})
}
