package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Driver is a courier profile with running earning totals.
type Driver struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	IsAvailable      bool            `gorm:"column:is_available;not null"`
	IsVerified       bool            `gorm:"column:is_verified;not null"`
	IsPayoutEnabled  bool            `gorm:"column:is_payout_enabled;not null"`
	TotalEarnings    decimal.Decimal `gorm:"column:total_earnings;type:numeric(14,2);not null;default:0"`
	TotalPaidOut     decimal.Decimal `gorm:"column:total_paid_out;type:numeric(14,2);not null;default:0"`
	BankName         *string         `gorm:"column:bank_name"`
	AccountName      *string         `gorm:"column:account_name"`
	AccountNumber    *string         `gorm:"column:account_number"`
	CurrentLatitude  *float64        `gorm:"column:current_latitude"`
	CurrentLongitude *float64        `gorm:"column:current_longitude"`
	Rating           decimal.Decimal `gorm:"column:rating;type:numeric(3,2);not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// AvailableBalance is the amount that can still be paid out.
func (d Driver) AvailableBalance() decimal.Decimal {
	return d.TotalEarnings.Sub(d.TotalPaidOut)
}
