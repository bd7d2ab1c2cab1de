package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
)

// TaxRate is the flat sales tax applied to the item subtotal.
var TaxRate = decimal.RequireFromString("0.075")

var hundred = decimal.NewFromInt(100)

// Totals is the derived money summary of an order.
type Totals struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	VendorEarning    decimal.Decimal `json:"vendorEarning"`
	Total            decimal.Decimal `json:"total"`
}

// LineTotal prices a single item.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// ComputeTotals derives the order summary from its items. An item's category
// commission rate overrides the vendor rate; both are percentages.
func ComputeTotals(items []models.OrderItem, vendorRate, deliveryFee, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	commission := decimal.Zero
	for _, item := range items {
		line := LineTotal(item.Quantity, item.UnitPrice)
		subtotal = subtotal.Add(line)

		rate := vendorRate
		if item.CategoryCommissionRate != nil {
			rate = *item.CategoryCommissionRate
		}
		commission = commission.Add(line.Mul(rate).Div(hundred))
	}
	commission = commission.Round(2)
	tax := subtotal.Mul(TaxRate).Round(2)

	return Totals{
		Subtotal:         subtotal,
		Tax:              tax,
		CommissionAmount: commission,
		VendorEarning:    subtotal.Sub(commission),
		Total:            subtotal.Add(tax).Add(deliveryFee).Sub(discount),
	}
}
