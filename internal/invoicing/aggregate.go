package invoicing

import (
	"errors"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var maxTaxRate = decimal.NewFromInt(100)

// FilterItems drops rows whose description is blank after trimming and renumbers the
// remaining rows 0..n-1 in their original order.
func FilterItems(items []LineItem) []LineItem {
	kept := lo.Filter(items, func(item LineItem, _ int) bool {
		return strings.TrimSpace(item.Description) != ""
	})
	out := make([]LineItem, len(kept))
	for i, item := range kept {
		item.SortOrder = i
		out[i] = item
	}
	return out
}

// ComputeSubTotal sums the line totals of all non-blank rows.
func ComputeSubTotal(items []LineItem) decimal.Decimal {
	return Sum(lo.Map(FilterItems(items), func(item LineItem, _ int) decimal.Decimal {
		return item.LineTotal
	})...)
}

// ComputeTaxAmount returns Round2(subTotal * taxRate / 100).
func ComputeTaxAmount(subTotal, taxRate decimal.Decimal) decimal.Decimal {
	return Round2(subTotal.Mul(taxRate).Div(hundred))
}

// ComputeTotal returns Round2(subTotal + taxAmount - discount), never below zero.
func ComputeTotal(subTotal, taxAmount, discount decimal.Decimal) decimal.Decimal {
	total := Round2(subTotal.Add(taxAmount).Sub(discount))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Aggregate validates the rows and document-level inputs, recomputes every line total
// and folds them into document totals. It returns the filtered rows that should be
// persisted.
func Aggregate(items []LineItem, taxRate, discount decimal.Decimal) (Totals, []LineItem, error) {
	if taxRate.IsNegative() || taxRate.GreaterThan(maxTaxRate) {
		return Totals{}, nil, invalid("taxRate", "must be between 0 and 100")
	}
	if !HasPlaces(taxRate, TaxRatePlaces) {
		return Totals{}, nil, invalid("taxRate", "must have at most two decimal places")
	}
	if discount.IsNegative() {
		return Totals{}, nil, invalid("discountAmount", "must not be negative")
	}
	if !IsCents(discount) {
		return Totals{}, nil, invalid("discountAmount", "must have at most two decimal places")
	}

	rows := FilterItems(items)
	if len(rows) == 0 {
		return Totals{}, nil, invalid("items", "at least one item with a description is required")
	}
	for i := range rows {
		if rows[i].Unit == "" {
			rows[i].Unit = UnitPieces
		}
		if !rows[i].Unit.Valid() {
			return Totals{}, nil, invalid("items["+strconv.Itoa(i)+"].unit", "unknown unit "+string(rows[i].Unit))
		}
		total, err := ComputeLineTotal(rows[i].Quantity, rows[i].UnitPrice)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				return Totals{}, nil, invalid("items["+strconv.Itoa(i)+"]."+verr.Field, verr.Reason)
			}
			return Totals{}, nil, err
		}
		rows[i].Description = strings.TrimSpace(rows[i].Description)
		rows[i].LineTotal = total
	}

	subTotal := ComputeSubTotal(rows)
	taxAmount := ComputeTaxAmount(subTotal, taxRate)
	if discount.GreaterThan(subTotal.Add(taxAmount)) {
		return Totals{}, nil, invalid("discountAmount", "must not exceed subtotal plus tax")
	}
	return Totals{
		SubTotal:    subTotal,
		TaxAmount:   taxAmount,
		TotalAmount: ComputeTotal(subTotal, taxAmount, discount),
	}, rows, nil
}
