package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateDelivery      OutboxAggregateType = "delivery"
	AggregateOrder         OutboxAggregateType = "order"
	AggregateDriverEarning OutboxAggregateType = "driver_earning"
	AggregatePayoutRequest OutboxAggregateType = "payout_request"
	AggregateWebhook       OutboxAggregateType = "webhook"
	AggregateAccount       OutboxAggregateType = "account"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDelivery,
	AggregateOrder,
	AggregateDriverEarning,
	AggregatePayoutRequest,
	AggregateWebhook,
	AggregateAccount,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return oneOf(a, validAggregateTypes)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventDeliveryCreated         OutboxEventType = "delivery_created"
	EventDeliveryAssigned        OutboxEventType = "delivery_assigned"
	EventDeliveryStatusChanged   OutboxEventType = "delivery_status_changed"
	EventEarningPosted           OutboxEventType = "earning_posted"
	EventPayoutRequested         OutboxEventType = "payout_requested"
	EventPayoutProcessed         OutboxEventType = "payout_processed"
	EventPayoutRejected          OutboxEventType = "payout_rejected"
	EventPayoutTransferRequested OutboxEventType = "payout_transfer_requested"
	EventNotificationRequested   OutboxEventType = "notification_requested"
	EventWebhookFailed           OutboxEventType = "webhook_processing_failed"
	EventLedgerDriftDetected     OutboxEventType = "ledger_drift_detected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDeliveryCreated,
	EventDeliveryAssigned,
	EventDeliveryStatusChanged,
	EventEarningPosted,
	EventPayoutRequested,
	EventPayoutProcessed,
	EventPayoutRejected,
	EventPayoutTransferRequested,
	EventNotificationRequested,
	EventWebhookFailed,
	EventLedgerDriftDetected,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return oneOf(e, validOutboxEventTypes)
}
