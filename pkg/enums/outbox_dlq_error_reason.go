package enums

// OutboxDLQErrorReason explains why the publisher stopped retrying an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: transient publish errors exhausted the attempt budget.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonInvalidEvent: the row could not be resolved or decoded.
	OutboxDLQReasonInvalidEvent OutboxDLQErrorReason = "invalid_event"
	// OutboxDLQReasonPublishRejected: Pub/Sub answered with a permanent error.
	OutboxDLQReasonPublishRejected OutboxDLQErrorReason = "publish_rejected"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonInvalidEvent,
	OutboxDLQReasonPublishRejected,
}

func (r OutboxDLQErrorReason) IsValid() bool {
	return oneOf(r, validOutboxDLQErrorReasons)
}
