package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vendor is a merchant profile with its commission rate and running totals.
type Vendor struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	BusinessName    string          `gorm:"column:business_name;not null"`
	CommissionRate  decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2);not null;default:10"`
	IsVerified      bool            `gorm:"column:is_verified;not null"`
	IsPayoutEnabled bool            `gorm:"column:is_payout_enabled;not null"`
	TotalEarnings   decimal.Decimal `gorm:"column:total_earnings;type:numeric(14,2);not null;default:0"`
	TotalPaidOut    decimal.Decimal `gorm:"column:total_paid_out;type:numeric(14,2);not null;default:0"`
	BankName        *string         `gorm:"column:bank_name"`
	AccountName     *string         `gorm:"column:account_name"`
	AccountNumber   *string         `gorm:"column:account_number"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (v Vendor) AvailableBalance() decimal.Decimal {
	return v.TotalEarnings.Sub(v.TotalPaidOut)
}
