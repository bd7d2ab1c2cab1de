package payouts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/drivers"
	"github.com/angelmondragon/packdrop-backend/internal/ledger"
	"github.com/angelmondragon/packdrop-backend/internal/vendors"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
)

// Banking is the destination a payout is sent to.
type Banking struct {
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
}

// Account is the payout-relevant view of a driver or vendor profile.
type Account struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	UserType        enums.PayoutUserType
	TotalEarnings   decimal.Decimal
	TotalPaidOut    decimal.Decimal
	IsVerified      bool
	IsPayoutEnabled bool
	BankName        *string
	AccountName     *string
	AccountNumber   *string
}

func (a Account) AvailableBalance() decimal.Decimal {
	return a.TotalEarnings.Sub(a.TotalPaidOut)
}

func (a Account) Banking() Banking {
	return Banking{
		BankName:      deref(a.BankName),
		AccountName:   deref(a.AccountName),
		AccountNumber: deref(a.AccountNumber),
	}
}

func (a Account) HasCompleteBanking() bool {
	b := a.Banking()
	return b.BankName != "" && b.AccountName != "" && b.AccountNumber != ""
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

// Subject is one kind of account that can withdraw earnings.
type Subject interface {
	UserType() enums.PayoutUserType
	Account(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Account, error)
	UnpaidEarningIDs(ctx context.Context, tx *gorm.DB, account *Account) ([]uuid.UUID, error)
	SettleEarnings(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, reference string, at time.Time) error
	UnsettleEarnings(ctx context.Context, tx *gorm.DB, reference string) error
	RecordPayout(ctx context.Context, tx *gorm.DB, account *Account, amount decimal.Decimal) error
	ReversePayout(ctx context.Context, tx *gorm.DB, account *Account, amount decimal.Decimal) error
	LinkTransaction(input *ledger.RecordInput, account *Account)
}

// ledgerAccount holds the running-total moves shared by both subjects.
type ledgerAccount struct {
	userType enums.PayoutUserType
	accounts ledger.Repository
}

func (l ledgerAccount) UserType() enums.PayoutUserType { return l.userType }

func (l ledgerAccount) RecordPayout(ctx context.Context, tx *gorm.DB, account *Account, amount decimal.Decimal) error {
	return mapLedgerErr(l.accounts.WithTx(tx).DebitPaidOut(ctx, l.userType, account.ID, amount))
}

func (l ledgerAccount) ReversePayout(ctx context.Context, tx *gorm.DB, account *Account, amount decimal.Decimal) error {
	return mapLedgerErr(l.accounts.WithTx(tx).ReversePaidOut(ctx, l.userType, account.ID, amount))
}

func mapLedgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "insufficient available balance")
	case errors.Is(err, ledger.ErrAccountNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "account not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update paid out total")
}

type driverSubject struct {
	ledgerAccount
	drivers drivers.Repository
	repo    Repository
}

// NewDriverSubject pays out driver earnings and settles the earning rows.
func NewDriverSubject(driverRepo drivers.Repository, accounts ledger.Repository, repo Repository) Subject {
	return &driverSubject{
		ledgerAccount: ledgerAccount{userType: enums.PayoutUserDriver, accounts: accounts},
		drivers:       driverRepo,
		repo:          repo,
	}
}

func (d *driverSubject) Account(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Account, error) {
	driver, err := d.drivers.WithTx(tx).FindByUserID(ctx, userID)
	if err != nil {
		return nil, mapProfileErr(err, "driver profile not found")
	}
	return &Account{
		ID:              driver.ID,
		UserID:          driver.UserID,
		UserType:        enums.PayoutUserDriver,
		TotalEarnings:   driver.TotalEarnings,
		TotalPaidOut:    driver.TotalPaidOut,
		IsVerified:      driver.IsVerified,
		IsPayoutEnabled: driver.IsPayoutEnabled,
		BankName:        driver.BankName,
		AccountName:     driver.AccountName,
		AccountNumber:   driver.AccountNumber,
	}, nil
}

func (d *driverSubject) UnpaidEarningIDs(ctx context.Context, tx *gorm.DB, account *Account) ([]uuid.UUID, error) {
	return d.repo.WithTx(tx).UnpaidEarningIDs(ctx, account.ID)
}

func (d *driverSubject) SettleEarnings(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, reference string, at time.Time) error {
	return d.repo.WithTx(tx).SettleEarnings(ctx, ids, reference, at)
}

func (d *driverSubject) UnsettleEarnings(ctx context.Context, tx *gorm.DB, reference string) error {
	return d.repo.WithTx(tx).UnsettleEarnings(ctx, reference)
}

func (d *driverSubject) LinkTransaction(input *ledger.RecordInput, account *Account) {
	id := account.ID
	input.DriverID = &id
}

type vendorSubject struct {
	ledgerAccount
	vendors vendors.Repository
}

// NewVendorSubject pays out vendor earnings. Vendors have no per-item earning rows.
func NewVendorSubject(vendorRepo vendors.Repository, accounts ledger.Repository) Subject {
	return &vendorSubject{
		ledgerAccount: ledgerAccount{userType: enums.PayoutUserVendor, accounts: accounts},
		vendors:       vendorRepo,
	}
}

func (v *vendorSubject) Account(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Account, error) {
	vendor, err := v.vendors.WithTx(tx).FindByUserID(ctx, userID)
	if err != nil {
		return nil, mapProfileErr(err, "vendor profile not found")
	}
	return &Account{
		ID:              vendor.ID,
		UserID:          vendor.UserID,
		UserType:        enums.PayoutUserVendor,
		TotalEarnings:   vendor.TotalEarnings,
		TotalPaidOut:    vendor.TotalPaidOut,
		IsVerified:      vendor.IsVerified,
		IsPayoutEnabled: vendor.IsPayoutEnabled,
		BankName:        vendor.BankName,
		AccountName:     vendor.AccountName,
		AccountNumber:   vendor.AccountNumber,
	}, nil
}

func (v *vendorSubject) UnpaidEarningIDs(context.Context, *gorm.DB, *Account) ([]uuid.UUID, error) {
	return nil, nil
}

func (v *vendorSubject) SettleEarnings(context.Context, *gorm.DB, []uuid.UUID, string, time.Time) error {
	return nil
}

func (v *vendorSubject) UnsettleEarnings(context.Context, *gorm.DB, string) error {
	return nil
}

func (v *vendorSubject) LinkTransaction(input *ledger.RecordInput, account *Account) {
	id := account.ID
	input.VendorID = &id
}

func mapProfileErr(err error, notFound string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
}
