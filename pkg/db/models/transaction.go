package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/types"
)

// Transaction is an append-only ledger row. Only Status and GatewayReference
// change after insert.
type Transaction struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference        string                  `gorm:"column:reference;not null;uniqueIndex"`
	Type             enums.TransactionType   `gorm:"column:type;type:transaction_type;not null"`
	Amount           decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	Status           enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	PaymentMethod    enums.PaymentMethod     `gorm:"column:payment_method;type:payment_method;not null"`
	OrderID          *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	DriverID         *uuid.UUID              `gorm:"column:driver_id;type:uuid"`
	VendorID         *uuid.UUID              `gorm:"column:vendor_id;type:uuid"`
	DeliveryID       *uuid.UUID              `gorm:"column:delivery_id;type:uuid"`
	PayoutRequestID  *uuid.UUID              `gorm:"column:payout_request_id;type:uuid"`
	GatewayReference *string                 `gorm:"column:gateway_reference"`
	Metadata         types.JSONMap           `gorm:"column:metadata;type:jsonb"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
