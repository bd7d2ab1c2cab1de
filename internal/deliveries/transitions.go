package deliveries

import "github.com/angelmondragon/packdrop-backend/pkg/enums"

var transitions = map[enums.DeliveryStatus][]enums.DeliveryStatus{
	enums.DeliveryStatusPending:          {enums.DeliveryStatusAssigned, enums.DeliveryStatusCancelled},
	enums.DeliveryStatusAssigned:         {enums.DeliveryStatusPickupInProgress, enums.DeliveryStatusCancelled},
	enums.DeliveryStatusPickupInProgress: {enums.DeliveryStatusPickedUp, enums.DeliveryStatusFailed},
	enums.DeliveryStatusPickedUp:         {enums.DeliveryStatusInTransit, enums.DeliveryStatusFailed},
	enums.DeliveryStatusInTransit:        {enums.DeliveryStatusArrived, enums.DeliveryStatusFailed},
	enums.DeliveryStatusArrived:          {enums.DeliveryStatusDelivered, enums.DeliveryStatusFailed},
	enums.DeliveryStatusDelivered:        {},
	enums.DeliveryStatusFailed:           {},
	enums.DeliveryStatusCancelled:        {},
}

// AllowedTransitions returns the statuses reachable from from.
func AllowedTransitions(from enums.DeliveryStatus) []enums.DeliveryStatus {
	next := transitions[from]
	out := make([]enums.DeliveryStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to enums.DeliveryStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// holdsDriver reports whether a delivery in status keeps its driver busy.
func holdsDriver(status enums.DeliveryStatus) bool {
	switch status {
	case enums.DeliveryStatusAssigned,
		enums.DeliveryStatusPickupInProgress,
		enums.DeliveryStatusPickedUp,
		enums.DeliveryStatusInTransit,
		enums.DeliveryStatusArrived:
		return true
	}
	return false
}
