package earnings

import "github.com/shopspring/decimal"

var (
	// DriverCommissionRate is the driver's share of the delivery fee.
	DriverCommissionRate = decimal.RequireFromString("0.80")
	// TransactionFeeRate is charged on the delivery fee and withheld from the driver's share.
	TransactionFeeRate = decimal.RequireFromString("0.02")
)

// Breakdown is the driver's split of one delivery fee.
type Breakdown struct {
	Gross decimal.Decimal `json:"gross"`
	Fee   decimal.Decimal `json:"fee"`
	Net   decimal.Decimal `json:"net"`
}

// Calculate splits a delivery fee into the driver's gross, fee and net.
// Gross and fee are rounded half-up to two places; net is derived from the
// rounded parts so net = gross - fee always holds.
func Calculate(deliveryFee decimal.Decimal) Breakdown {
	gross := deliveryFee.Mul(DriverCommissionRate).Round(2)
	fee := deliveryFee.Mul(TransactionFeeRate).Round(2)
	return Breakdown{Gross: gross, Fee: fee, Net: gross.Sub(fee)}
}
