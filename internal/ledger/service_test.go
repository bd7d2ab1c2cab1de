package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/pagination"
)

type fakeRepository struct {
	Repository
	appendFn func(ctx context.Context, txn *models.Transaction) error
	listFn   func(ctx context.Context, params pagination.Params) (*TransactionList, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Append(ctx context.Context, txn *models.Transaction) error {
	if f.appendFn != nil {
		return f.appendFn(ctx, txn)
	}
	return nil
}

func (f *fakeRepository) ListForAccount(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, params pagination.Params) (*TransactionList, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return &TransactionList{}, nil
}

func validInput() RecordInput {
	driverID := uuid.New()
	return RecordInput{
		Reference: NewReference(ReferenceDriverEarning, uuid.New()),
		Type:      enums.TransactionTypePayment,
		Status:    enums.TransactionStatusSuccessful,
		Amount:    decimal.RequireFromString("780.004"),
		Method:    enums.PaymentMethodWallet,
		DriverID:  &driverID,
	}
}

func TestRecordAppendsRoundedTransaction(t *testing.T) {
	var appended *models.Transaction
	repo := &fakeRepository{appendFn: func(ctx context.Context, txn *models.Transaction) error {
		appended = txn
		return nil
	}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	input := validInput()
	txn, err := svc.Record(context.Background(), nil, input)
	require.NoError(t, err)
	require.Same(t, appended, txn)
	assert.Equal(t, input.Reference, txn.Reference)
	assert.Equal(t, "780", txn.Amount.String())
	assert.NotEqual(t, uuid.Nil, txn.ID)
}

func TestRecordValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	require.NoError(t, err)

	cases := map[string]func(*RecordInput){
		"missing reference": func(in *RecordInput) { in.Reference = " " },
		"bad type":          func(in *RecordInput) { in.Type = "transfer" },
		"bad status":        func(in *RecordInput) { in.Status = "done" },
		"bad method":        func(in *RecordInput) { in.Method = "crypto" },
		"zero amount":       func(in *RecordInput) { in.Amount = decimal.Zero },
		"negative amount":   func(in *RecordInput) { in.Amount = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := validInput()
			mutate(&input)
			_, err := svc.Record(context.Background(), nil, input)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestRecordMapsDuplicateReferenceToConflict(t *testing.T) {
	repo := &fakeRepository{appendFn: func(ctx context.Context, txn *models.Transaction) error {
		return ErrDuplicateReference
	}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), nil, validInput())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.ErrorIs(t, err, ErrDuplicateReference)
}

func TestRecordMapsStoreFailureToDependency(t *testing.T) {
	repo := &fakeRepository{appendFn: func(ctx context.Context, txn *models.Transaction) error {
		return errors.New("connection reset")
	}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), nil, validInput())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestHistoryRejectsMalformedCursor(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	require.NoError(t, err)

	_, err = svc.History(context.Background(), enums.PayoutUserDriver, uuid.New(), pagination.Params{Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestReferenceRoundTrip(t *testing.T) {
	id := uuid.New()
	ref := NewReference(ReferencePayout, id)
	assert.Equal(t, "PAY-"+id.String(), ref)

	kind, parsed, err := ParseReference(ref)
	require.NoError(t, err)
	assert.Equal(t, ReferencePayout, kind)
	assert.Equal(t, id, parsed)

	_, _, err = ParseReference("XYZ-" + id.String())
	require.Error(t, err)
	_, _, err = ParseReference("PAY")
	require.Error(t, err)
	_, _, err = ParseReference("PAY-not-a-uuid")
	require.Error(t, err)
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}
