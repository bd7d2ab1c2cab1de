package enums

// DeliveryStatus maps to the delivery_status enum in Postgres.
type DeliveryStatus string

const (
	DeliveryStatusPending          DeliveryStatus = "pending"
	DeliveryStatusAssigned         DeliveryStatus = "assigned"
	DeliveryStatusPickupInProgress DeliveryStatus = "pickup_in_progress"
	DeliveryStatusPickedUp         DeliveryStatus = "picked_up"
	DeliveryStatusInTransit        DeliveryStatus = "in_transit"
	DeliveryStatusArrived          DeliveryStatus = "arrived"
	DeliveryStatusDelivered        DeliveryStatus = "delivered"
	DeliveryStatusFailed           DeliveryStatus = "failed"
	DeliveryStatusCancelled        DeliveryStatus = "cancelled"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusAssigned,
	DeliveryStatusPickupInProgress,
	DeliveryStatusPickedUp,
	DeliveryStatusInTransit,
	DeliveryStatusArrived,
	DeliveryStatusDelivered,
	DeliveryStatusFailed,
	DeliveryStatusCancelled,
}

// DeliveryStatuses returns every known status in lifecycle order.
func DeliveryStatuses() []DeliveryStatus {
	out := make([]DeliveryStatus, len(validDeliveryStatuses))
	copy(out, validDeliveryStatuses)
	return out
}

func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical delivery_status enum.
func (s DeliveryStatus) IsValid() bool {
	return oneOf(s, validDeliveryStatuses)
}

// IsTerminal reports whether no further transitions leave this status.
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusFailed, DeliveryStatusCancelled:
		return true
	}
	return false
}

// ParseDeliveryStatus converts raw input into DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	return parse("delivery status", value, validDeliveryStatuses)
}
