package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packdrop-backend/pkg/enums"
)

// Delivery tracks the physical hand-off of one order by one driver.
type Delivery struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	DriverID         *uuid.UUID           `gorm:"column:driver_id;type:uuid"`
	Status           enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'pending'"`
	PickupLatitude   float64              `gorm:"column:pickup_latitude;not null"`
	PickupLongitude  float64              `gorm:"column:pickup_longitude;not null"`
	DropoffLatitude  float64              `gorm:"column:dropoff_latitude;not null"`
	DropoffLongitude float64              `gorm:"column:dropoff_longitude;not null"`
	CurrentLatitude  *float64             `gorm:"column:current_latitude"`
	CurrentLongitude *float64             `gorm:"column:current_longitude"`
	DistanceKm       decimal.Decimal      `gorm:"column:distance_km;type:numeric(8,2);not null;default:0"`
	DeliveryFee      decimal.Decimal      `gorm:"column:delivery_fee;type:numeric(14,2);not null;default:0"`
	PickedUpAt       *time.Time           `gorm:"column:picked_up_at"`
	DeliveredAt      *time.Time           `gorm:"column:delivered_at"`
	FailedAt         *time.Time           `gorm:"column:failed_at"`
	CancelledAt      *time.Time           `gorm:"column:cancelled_at"`
	Rating           *int                 `gorm:"column:rating"`
	RatingComment    *string              `gorm:"column:rating_comment"`
	ProofReference   *string              `gorm:"column:proof_reference"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
