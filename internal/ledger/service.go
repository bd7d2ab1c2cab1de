package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/pagination"
	"github.com/angelmondragon/packdrop-backend/pkg/types"
)

// ReferenceKind prefixes deterministic transaction references.
type ReferenceKind string

const (
	ReferenceDriverEarning ReferenceKind = "ERN"
	ReferenceVendorEarning ReferenceKind = "VEN"
	ReferencePayout        ReferenceKind = "PAY"
)

// NewReference builds the reference for the posting tied to id. The same
// source entity always yields the same reference, so the unique index on
// transactions.reference rejects a second posting.
func NewReference(kind ReferenceKind, id uuid.UUID) string {
	return fmt.Sprintf("%s-%s", kind, id)
}

// ParseReference splits a reference into its kind and source id.
func ParseReference(reference string) (ReferenceKind, uuid.UUID, error) {
	kind, raw, ok := strings.Cut(reference, "-")
	if !ok {
		return "", uuid.Nil, fmt.Errorf("malformed reference %q", reference)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("malformed reference %q: %w", reference, err)
	}
	switch ReferenceKind(kind) {
	case ReferenceDriverEarning, ReferenceVendorEarning, ReferencePayout:
		return ReferenceKind(kind), id, nil
	}
	return "", uuid.Nil, fmt.Errorf("unknown reference kind %q", kind)
}

// RecordInput captures the immutable data a ledger transaction requires.
type RecordInput struct {
	Reference       string
	Type            enums.TransactionType
	Status          enums.TransactionStatus
	Amount          decimal.Decimal
	Method          enums.PaymentMethod
	OrderID         *uuid.UUID
	DriverID        *uuid.UUID
	VendorID        *uuid.UUID
	DeliveryID      *uuid.UUID
	PayoutRequestID *uuid.UUID
	Metadata        types.JSONMap
}

// Service defines operations that record and read ledger transactions.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.Transaction, error)
	Totals(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID) (Totals, error)
	History(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, params pagination.Params) (*TransactionList, error)
	Drifts(ctx context.Context, subject enums.PayoutUserType, batchSize int) ([]Drift, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.Transaction, error) {
	if err := validateRecord(input); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:              uuid.New(),
		Reference:       input.Reference,
		Type:            input.Type,
		Amount:          input.Amount.Round(2),
		Status:          input.Status,
		PaymentMethod:   input.Method,
		OrderID:         input.OrderID,
		DriverID:        input.DriverID,
		VendorID:        input.VendorID,
		DeliveryID:      input.DeliveryID,
		PayoutRequestID: input.PayoutRequestID,
		Metadata:        input.Metadata,
	}
	if err := s.repo.WithTx(tx).Append(ctx, txn); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transaction reference already recorded").
				WithDetails(map[string]any{"reference": input.Reference})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append transaction")
	}
	return txn, nil
}

func validateRecord(input RecordInput) error {
	if strings.TrimSpace(input.Reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", input.Type)
	}
	if !input.Status.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction status %q", input.Status)
	}
	if !input.Method.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.Method)
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction amount must be greater than zero")
	}
	return nil
}

func (s *service) Totals(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID) (Totals, error) {
	totals, err := s.repo.LedgerTotals(ctx, subject, accountID)
	if err != nil {
		return Totals{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger totals")
	}
	return totals, nil
}

func (s *service) History(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, params pagination.Params) (*TransactionList, error) {
	if err := params.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.repo.ListForAccount(ctx, subject, accountID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return list, nil
}

func (s *service) Drifts(ctx context.Context, subject enums.PayoutUserType, batchSize int) ([]Drift, error) {
	drifts, err := s.repo.ListAccountsWithDrift(ctx, subject, batchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger drift")
	}
	return drifts, nil
}
