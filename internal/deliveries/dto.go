package deliveries

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packdrop-backend/internal/drivers"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/types"
)

// Actor identifies the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// CreateDeliveryInput opens a delivery for a confirmed order. A nil fee
// falls back to the order's delivery fee.
type CreateDeliveryInput struct {
	OrderID     uuid.UUID
	Pickup      types.Coordinates
	Dropoff     types.Coordinates
	DistanceKm  decimal.Decimal
	DeliveryFee *decimal.Decimal
	Actor       Actor
}

// AssignDriverInput hands a pending delivery to a driver.
type AssignDriverInput struct {
	DeliveryID uuid.UUID
	DriverID   uuid.UUID
	Actor      Actor
}

// UpdateStatusInput moves a delivery along the transition table, optionally
// carrying the driver's current position.
type UpdateStatusInput struct {
	DeliveryID uuid.UUID
	Status     enums.DeliveryStatus
	Location   *types.Coordinates
	Actor      Actor
}

// SubmitProofInput attaches a proof-of-delivery reference.
type SubmitProofInput struct {
	DeliveryID     uuid.UUID
	DriverUserID   uuid.UUID
	ProofReference string
}

// RateDeliveryInput records the customer's rating of a completed delivery.
type RateDeliveryInput struct {
	DeliveryID     uuid.UUID
	CustomerUserID uuid.UUID
	Rating         int
	Comment        *string
}

// AvailableDriversResult lists assignable drivers around the pickup point.
type AvailableDriversResult struct {
	DeliveryID uuid.UUID           `json:"deliveryId"`
	Drivers    []drivers.Candidate `json:"drivers"`
}
