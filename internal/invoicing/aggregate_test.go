package invoicing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleItems() []LineItem {
	return []LineItem{
		{Description: "Widget", Quantity: dec("2"), UnitPrice: dec("50.00")},
		{Description: "Service fee", Quantity: dec("1"), UnitPrice: dec("25.50")},
	}
}

func TestAggregateReferenceInvoice(t *testing.T) {
	totals, rows, err := Aggregate(sampleItems(), dec("10"), dec("5.00"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "125.50", totals.SubTotal.StringFixed(2))
	require.Equal(t, "12.55", totals.TaxAmount.StringFixed(2))
	require.Equal(t, "133.05", totals.TotalAmount.StringFixed(2))

	again, _, err := Aggregate(rows, dec("10"), dec("5.00"))
	require.NoError(t, err)
	require.True(t, totals.SubTotal.Equal(again.SubTotal))
	require.True(t, totals.TaxAmount.Equal(again.TaxAmount))
	require.True(t, totals.TotalAmount.Equal(again.TotalAmount))
}

func TestAggregateDropsBlankRows(t *testing.T) {
	items := append([]LineItem{{Description: "   ", Quantity: dec("0"), UnitPrice: dec("-3")}}, sampleItems()...)
	totals, rows, err := Aggregate(items, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 0, rows[0].SortOrder)
	require.Equal(t, UnitPieces, rows[0].Unit)
	require.Equal(t, "125.50", totals.TotalAmount.StringFixed(2))
}

func TestAggregateValidation(t *testing.T) {
	cases := []struct {
		name     string
		items    []LineItem
		taxRate  string
		discount string
		field    string
	}{
		{"no items", []LineItem{{Description: ""}}, "0", "0", "items"},
		{"zero quantity", []LineItem{{Description: "x", Quantity: dec("0"), UnitPrice: dec("1")}}, "0", "0", "items[0].quantity"},
		{"negative price", []LineItem{{Description: "x", Quantity: dec("1"), UnitPrice: dec("-1")}}, "0", "0", "items[0].unitPrice"},
		{"tax above 100", sampleItems(), "100.01", "0", "taxRate"},
		{"negative tax", sampleItems(), "-1", "0", "taxRate"},
		{"negative discount", sampleItems(), "10", "-1", "discountAmount"},
		{"discount above total", sampleItems(), "10", "138.06", "discountAmount"},
		{"tax with three decimals", sampleItems(), "7.125", "0", "taxRate"},
		{"quantity below stored precision", []LineItem{{Description: "x", Quantity: dec("0.00004"), UnitPrice: dec("1")}}, "0", "0", "items[0].quantity"},
		{"price below stored precision", []LineItem{{Description: "x", Quantity: dec("1"), UnitPrice: dec("1.00005")}}, "0", "0", "items[0].unitPrice"},
		{"bad unit", []LineItem{{Description: "x", Quantity: dec("1"), UnitPrice: dec("1"), Unit: "lbs"}}, "0", "0", "items[0].unit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Aggregate(tc.items, dec(tc.taxRate), dec(tc.discount))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestComputeTotalClampsAtZero(t *testing.T) {
	require.True(t, ComputeTotal(dec("10"), dec("1"), dec("20")).IsZero())
	require.Equal(t, "133.05", ComputeTotal(dec("125.50"), dec("12.55"), dec("5")).StringFixed(2))
}

func TestAggregateDiscountEqualToGross(t *testing.T) {
	totals, _, err := Aggregate(sampleItems(), dec("10"), dec("138.05"))
	require.NoError(t, err)
	require.True(t, totals.TotalAmount.IsZero())
}
