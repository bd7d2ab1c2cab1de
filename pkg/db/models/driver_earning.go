package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DriverEarning is the single earning row a delivered delivery produces.
type DriverEarning struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DriverID       uuid.UUID       `gorm:"column:driver_id;type:uuid;not null"`
	DeliveryID     uuid.UUID       `gorm:"column:delivery_id;type:uuid;not null;uniqueIndex"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	TransactionFee decimal.Decimal `gorm:"column:transaction_fee;type:numeric(14,2);not null"`
	NetAmount      decimal.Decimal `gorm:"column:net_amount;type:numeric(14,2);not null"`
	IsPaid         bool            `gorm:"column:is_paid;not null;default:false"`
	EarningDate    time.Time       `gorm:"column:earning_date;not null"`
	PaidDate       *time.Time      `gorm:"column:paid_date"`
	TransactionRef *string         `gorm:"column:transaction_ref"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
