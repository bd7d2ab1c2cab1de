package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/packdrop-backend/pkg/db/types"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
)

// PayoutRequest is a user's request to withdraw earnings, with the banking
// details snapshotted at request time.
type PayoutRequest struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID                 `gorm:"column:user_id;type:uuid;not null"`
	UserType      enums.PayoutUserType      `gorm:"column:user_type;type:payout_user_type;not null"`
	Amount        decimal.Decimal           `gorm:"column:amount;type:numeric(14,2);not null"`
	Status        enums.PayoutRequestStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	BankName      string                    `gorm:"column:bank_name;not null"`
	AccountName   string                    `gorm:"column:account_name;not null"`
	AccountNumber string                    `gorm:"column:account_number;not null"`
	EarningIDs    dbtypes.UUIDArray         `gorm:"column:earning_ids;type:uuid[]"`
	ProcessedBy   *uuid.UUID                `gorm:"column:processed_by;type:uuid"`
	ProcessedAt   *time.Time                `gorm:"column:processed_at"`
	Notes         *string                   `gorm:"column:notes"`
	TransactionID *uuid.UUID                `gorm:"column:transaction_id;type:uuid"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
