package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/repo"
	dbpkg "github.com/angelmondragon/packdrop-backend/pkg/db"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/pagination"
)

var (
	// ErrDuplicateReference is returned when a transaction reference already exists.
	ErrDuplicateReference = errors.New("ledger: duplicate transaction reference")
	// ErrStatusChanged is returned when a guarded status update matched no row.
	ErrStatusChanged = errors.New("ledger: transaction status changed concurrently")
	// ErrInsufficientBalance is returned when a debit would drive the available balance negative.
	ErrInsufficientBalance = errors.New("ledger: insufficient available balance")
	// ErrAccountNotFound is returned when the running-total row does not exist.
	ErrAccountNotFound = errors.New("ledger: account not found")
)

// Totals are the earned and paid-out sums recomputed from transactions.
type Totals struct {
	Earned  decimal.Decimal `json:"earned"`
	PaidOut decimal.Decimal `json:"paidOut"`
}

// Drift describes an account whose running totals disagree with the ledger.
type Drift struct {
	Subject       enums.PayoutUserType `json:"subject"`
	AccountID     uuid.UUID            `json:"accountId"`
	TotalEarnings decimal.Decimal      `json:"totalEarnings"`
	TotalPaidOut  decimal.Decimal      `json:"totalPaidOut"`
	LedgerEarned  decimal.Decimal      `json:"ledgerEarned"`
	LedgerPaidOut decimal.Decimal      `json:"ledgerPaidOut"`
}

// Magnitude is the absolute difference summed over both totals.
func (d Drift) Magnitude() decimal.Decimal {
	return d.TotalEarnings.Sub(d.LedgerEarned).Abs().Add(d.TotalPaidOut.Sub(d.LedgerPaidOut).Abs())
}

// TransactionList is a cursor page of transactions.
type TransactionList struct {
	Items      []models.Transaction `json:"items"`
	NextCursor string               `json:"nextCursor,omitempty"`
}

// Repository persists ledger rows and the running totals on driver and vendor accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, txn *models.Transaction) error
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, gatewayRef *string) error
	CreditEarnings(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, amount decimal.Decimal) error
	DebitPaidOut(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, amount decimal.Decimal) error
	ReversePaidOut(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, amount decimal.Decimal) error
	LedgerTotals(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID) (Totals, error)
	ListAccountsWithDrift(ctx context.Context, subject enums.PayoutUserType, batchSize int) ([]Drift, error)
	ListForAccount(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, params pagination.Params) (*TransactionList, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

type accountTable struct {
	table  string
	column string
}

func tableFor(subject enums.PayoutUserType) (accountTable, error) {
	switch subject {
	case enums.PayoutUserDriver:
		return accountTable{table: "drivers", column: "driver_id"}, nil
	case enums.PayoutUserVendor:
		return accountTable{table: "vendors", column: "vendor_id"}, nil
	}
	return accountTable{}, fmt.Errorf("ledger: unknown subject %q", subject)
}

func (r *repository) Append(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if err := r.DB(ctx).Create(txn).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.Locked(ctx).Where("reference = ?", reference).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, gatewayRef *string) error {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if gatewayRef != nil {
		updates["gateway_reference"] = *gatewayRef
	}
	res := r.DB(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *repository) CreditEarnings(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, amount decimal.Decimal) error {
	t, err := tableFor(subject)
	if err != nil {
		return err
	}
	res := r.DB(ctx).Table(t.table).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"total_earnings": gorm.Expr("total_earnings + "+repo.NumericParam, amount),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *repository) DebitPaidOut(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, amount decimal.Decimal) error {
	t, err := tableFor(subject)
	if err != nil {
		return err
	}
	res := r.DB(ctx).Table(t.table).
		Where("id = ?", accountID).
		Where("total_earnings - total_paid_out >= "+repo.NumericParam, amount).
		Updates(map[string]any{
			"total_paid_out": gorm.Expr("total_paid_out + "+repo.NumericParam, amount),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		if dbpkg.IsCheckViolation(res.Error) {
			return ErrInsufficientBalance
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.classifyMissing(ctx, t, accountID, ErrInsufficientBalance)
	}
	return nil
}

func (r *repository) ReversePaidOut(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, amount decimal.Decimal) error {
	t, err := tableFor(subject)
	if err != nil {
		return err
	}
	res := r.DB(ctx).Table(t.table).
		Where("id = ?", accountID).
		Where("total_paid_out >= "+repo.NumericParam, amount).
		Updates(map[string]any{
			"total_paid_out": gorm.Expr("total_paid_out - "+repo.NumericParam, amount),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		if dbpkg.IsCheckViolation(res.Error) {
			return ErrInsufficientBalance
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.classifyMissing(ctx, t, accountID, ErrInsufficientBalance)
	}
	return nil
}

func (r *repository) classifyMissing(ctx context.Context, t accountTable, accountID uuid.UUID, fallback error) error {
	var count int64
	if err := r.DB(ctx).Table(t.table).Where("id = ?", accountID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrAccountNotFound
	}
	return fallback
}

type totalsRow struct {
	Earned  decimal.Decimal
	PaidOut decimal.Decimal
}

const (
	earnedSumSQL  = "COALESCE(SUM(CASE WHEN type = 'payment' AND status = 'successful' THEN amount ELSE 0 END), 0)"
	paidOutSumSQL = "COALESCE(SUM(CASE WHEN type = 'payout' AND status IN ('pending','successful') THEN amount ELSE 0 END), 0)"
)

func (r *repository) LedgerTotals(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID) (Totals, error) {
	t, err := tableFor(subject)
	if err != nil {
		return Totals{}, err
	}
	var row totalsRow
	err = r.DB(ctx).Model(&models.Transaction{}).
		Select(earnedSumSQL+" AS earned, "+paidOutSumSQL+" AS paid_out").
		Where(t.column+" = ?", accountID).
		Scan(&row).Error
	if err != nil {
		return Totals{}, err
	}
	return Totals{Earned: row.Earned, PaidOut: row.PaidOut}, nil
}

type driftRow struct {
	AccountID     uuid.UUID
	TotalEarnings decimal.Decimal
	TotalPaidOut  decimal.Decimal
	LedgerEarned  decimal.Decimal
	LedgerPaidOut decimal.Decimal
}

// ListAccountsWithDrift walks every account in id order, batchSize rows at a
// time, and returns those whose running totals differ from the ledger sums.
func (r *repository) ListAccountsWithDrift(ctx context.Context, subject enums.PayoutUserType, batchSize int) ([]Drift, error) {
	t, err := tableFor(subject)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	sums := r.DB(ctx).Model(&models.Transaction{}).
		Select(t.column+" AS account_id, "+earnedSumSQL+" AS earned, "+paidOutSumSQL+" AS paid_out").
		Where(t.column + " IS NOT NULL").
		Group(t.column)

	var drifts []Drift
	var after *uuid.UUID
	for {
		q := r.DB(ctx).Table(t.table+" AS a").
			Select("a.id AS account_id, a.total_earnings, a.total_paid_out, COALESCE(s.earned, 0) AS ledger_earned, COALESCE(s.paid_out, 0) AS ledger_paid_out").
			Joins("LEFT JOIN (?) AS s ON s.account_id = a.id", sums).
			Order("a.id ASC").
			Limit(batchSize)
		if after != nil {
			q = q.Where("a.id > ?", *after)
		}
		var rows []driftRow
		if err := q.Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.TotalEarnings.Equal(row.LedgerEarned) && row.TotalPaidOut.Equal(row.LedgerPaidOut) {
				continue
			}
			drifts = append(drifts, Drift{
				Subject:       subject,
				AccountID:     row.AccountID,
				TotalEarnings: row.TotalEarnings,
				TotalPaidOut:  row.TotalPaidOut,
				LedgerEarned:  row.LedgerEarned,
				LedgerPaidOut: row.LedgerPaidOut,
			})
		}
		if len(rows) < batchSize {
			return drifts, nil
		}
		last := rows[len(rows)-1].AccountID
		after = &last
	}
}

func (r *repository) ListForAccount(ctx context.Context, subject enums.PayoutUserType, accountID uuid.UUID, params pagination.Params) (*TransactionList, error) {
	t, err := tableFor(subject)
	if err != nil {
		return nil, err
	}
	rows, next, err := pagination.Find(r.DB(ctx).Where(t.column+" = ?", accountID), "created_at", params,
		func(tx models.Transaction) pagination.Cursor { return pagination.Cursor{At: tx.CreatedAt, ID: tx.ID} })
	if err != nil {
		return nil, err
	}
	return &TransactionList{Items: rows, NextCursor: next}, nil
}
