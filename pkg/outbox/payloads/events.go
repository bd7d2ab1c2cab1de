package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packdrop-backend/pkg/enums"
)

// DeliveryCreatedEvent announces a new delivery waiting for a driver.
type DeliveryCreatedEvent struct {
	DeliveryID  uuid.UUID       `json:"delivery_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	DistanceKm  decimal.Decimal `json:"distance_km"`
}

// DeliveryAssignedEvent is emitted once a driver wins a delivery.
type DeliveryAssignedEvent struct {
	DeliveryID uuid.UUID `json:"delivery_id"`
	OrderID    uuid.UUID `json:"order_id"`
	DriverID   uuid.UUID `json:"driver_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// DeliveryStatusChangedEvent reports every accepted state transition.
type DeliveryStatusChangedEvent struct {
	DeliveryID uuid.UUID            `json:"delivery_id"`
	OrderID    uuid.UUID            `json:"order_id"`
	DriverID   *uuid.UUID           `json:"driver_id,omitempty"`
	From       enums.DeliveryStatus `json:"from"`
	To         enums.DeliveryStatus `json:"to"`
	Latitude   *float64             `json:"latitude,omitempty"`
	Longitude  *float64             `json:"longitude,omitempty"`
	ChangedAt  time.Time            `json:"changed_at"`
}

// EarningPostedEvent is emitted when a driver or vendor account is credited.
type EarningPostedEvent struct {
	Subject    enums.PayoutUserType `json:"subject"`
	AccountID  uuid.UUID            `json:"account_id"`
	Reference  string               `json:"reference"`
	Amount     decimal.Decimal      `json:"amount"`
	DeliveryID *uuid.UUID           `json:"delivery_id,omitempty"`
	OrderID    *uuid.UUID           `json:"order_id,omitempty"`
	EarningID  *uuid.UUID           `json:"earning_id,omitempty"`
}

// PayoutEvent covers the payout request lifecycle events.
type PayoutEvent struct {
	PayoutRequestID uuid.UUID                 `json:"payout_request_id"`
	UserID          uuid.UUID                 `json:"user_id"`
	UserType        enums.PayoutUserType      `json:"user_type"`
	Amount          decimal.Decimal           `json:"amount"`
	Status          enums.PayoutRequestStatus `json:"status"`
	Reference       string                    `json:"reference,omitempty"`
	Notes           string                    `json:"notes,omitempty"`
	BankName        string                    `json:"bank_name,omitempty"`
	AccountName     string                    `json:"account_name,omitempty"`
	AccountNumber   string                    `json:"account_number,omitempty"`
}

// NotificationRequestedEvent is the notification dispatcher input.
type NotificationRequestedEvent struct {
	RecipientUserID uuid.UUID      `json:"recipient_user_id,omitempty"`
	RecipientRole   enums.UserRole `json:"recipient_role"`
	Type            string         `json:"type"`
	Title           string         `json:"title"`
	Body            string         `json:"body"`
	Data            map[string]any `json:"data,omitempty"`
}

// WebhookFailedEvent raises an alert for a gateway callback that could not be applied.
type WebhookFailedEvent struct {
	Kind      string    `json:"kind"`
	Reference string    `json:"reference"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failed_at"`
}

// LedgerDriftDetectedEvent reports an account whose running totals disagree
// with the transaction ledger.
type LedgerDriftDetectedEvent struct {
	Subject       enums.PayoutUserType `json:"subject"`
	AccountID     uuid.UUID            `json:"account_id"`
	TotalEarnings decimal.Decimal      `json:"total_earnings"`
	TotalPaidOut  decimal.Decimal      `json:"total_paid_out"`
	LedgerEarned  decimal.Decimal      `json:"ledger_earned"`
	LedgerPaidOut decimal.Decimal      `json:"ledger_paid_out"`
	DetectedAt    time.Time            `json:"detected_at"`
}

// Notification types carried by NotificationRequestedEvent.Type.
const (
	NotificationDeliveryAssigned = "delivery_assigned"
	NotificationDeliveryStatus   = "delivery_status"
	NotificationPayoutRequested  = "payout_requested"
	NotificationPayoutProcessed  = "payout_processed"
	NotificationPayoutRejected   = "payout_rejected"
)
