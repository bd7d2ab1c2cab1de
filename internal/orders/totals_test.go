package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestComputeTotals(t *testing.T) {
	categoryRate := dec(t, "15")
	items := []models.OrderItem{
		{Quantity: 2, UnitPrice: dec(t, "1500")},
		{Quantity: 1, UnitPrice: dec(t, "2000"), CategoryCommissionRate: &categoryRate},
	}

	totals := ComputeTotals(items, dec(t, "10"), dec(t, "1000"), dec(t, "250"))

	require.Equal(t, "5000", totals.Subtotal.String())
	require.Equal(t, "375", totals.Tax.String())
	// 3000*10% + 2000*15%
	require.Equal(t, "600", totals.CommissionAmount.String())
	require.Equal(t, "4400", totals.VendorEarning.String())
	require.Equal(t, "6125", totals.Total.String())
}

func TestComputeTotalsRoundsHalfUp(t *testing.T) {
	items := []models.OrderItem{{Quantity: 3, UnitPrice: dec(t, "3.33")}}

	totals := ComputeTotals(items, dec(t, "12.5"), decimal.Zero, decimal.Zero)

	require.True(t, totals.Subtotal.Equal(dec(t, "9.99")))
	// 9.99 * 0.075 = 0.74925
	require.True(t, totals.Tax.Equal(dec(t, "0.75")), "tax %s", totals.Tax)
	// 9.99 * 0.125 = 1.24875
	require.True(t, totals.CommissionAmount.Equal(dec(t, "1.25")), "commission %s", totals.CommissionAmount)
	require.True(t, totals.VendorEarning.Equal(dec(t, "8.74")))
}

func TestComputeTotalsEmptyOrder(t *testing.T) {
	totals := ComputeTotals(nil, dec(t, "10"), dec(t, "500"), decimal.Zero)
	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.Total.Equal(dec(t, "500")))
}
