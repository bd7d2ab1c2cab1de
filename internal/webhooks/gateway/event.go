package gateway

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Kinds of gateway callbacks.
const (
	KindPayment  = "payment"
	KindTransfer = "transfer"
)

// Event is the callback body posted by the payment gateway.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData carries the gateway's view of one payment or transfer.
type EventData struct {
	ID              json.RawMessage  `json:"id"`
	Reference       string           `json:"reference"`
	TxRef           string           `json:"tx_ref"`
	Status          string           `json:"status"`
	Amount          *decimal.Decimal `json:"amount"`
	CompleteMessage string           `json:"complete_message"`
}

// Outcome is the normalized gateway status.
type Outcome string

const (
	OutcomeSucceeded Outcome = "successful"
	OutcomeFailed    Outcome = "failed"
	OutcomeUnknown   Outcome = ""
)

// Reference returns our transaction reference; payments carry it as tx_ref.
func (e Event) Reference() string {
	if ref := strings.TrimSpace(e.Data.Reference); ref != "" {
		return ref
	}
	return strings.TrimSpace(e.Data.TxRef)
}

// GatewayID is the gateway's own id for the payment or transfer.
func (e Event) GatewayID() string {
	raw := strings.TrimSpace(string(e.Data.ID))
	if raw == "" || raw == "null" {
		return ""
	}
	return strings.Trim(raw, `"`)
}

func (e Event) Outcome() Outcome {
	switch strings.ToLower(strings.TrimSpace(e.Data.Status)) {
	case "successful", "success", "succeeded", "completed":
		return OutcomeSucceeded
	case "failed", "failure", "cancelled", "reversed":
		return OutcomeFailed
	}
	return OutcomeUnknown
}

// ReplayKey identifies one delivery of a callback for the replay guard.
func (e Event) ReplayKey(kind string) string {
	return kind + ":" + e.Reference() + ":" + string(e.Outcome())
}
