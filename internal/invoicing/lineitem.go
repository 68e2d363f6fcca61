package invoicing

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// ComputeLineTotal returns Round2(quantity * unitPrice).
func ComputeLineTotal(quantity, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	if !quantity.IsPositive() {
		return decimal.Zero, invalid("quantity", "must be greater than zero")
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, invalid("unitPrice", "must not be negative")
	}
	if !HasPlaces(quantity, ItemValuePlaces) {
		return decimal.Zero, invalid("quantity", "must have at most four decimal places")
	}
	if !HasPlaces(unitPrice, ItemValuePlaces) {
		return decimal.Zero, invalid("unitPrice", "must have at most four decimal places")
	}
	return Round2(quantity.Mul(unitPrice)), nil
}

// ItemList is the editable set of invoice rows. It may hold blank rows; those are
// dropped when the list is aggregated into an invoice.
type ItemList []LineItem

// ItemPatch changes selected fields of a row. Nil fields are left untouched.
type ItemPatch struct {
	Description *string
	Quantity    *decimal.Decimal
	UnitPrice   *decimal.Decimal
	Unit        *Unit
	ProductCode *string
}

// NewItemList returns a list holding a single blank row.
func NewItemList() ItemList {
	return ItemList{{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.Zero, LineTotal: decimal.Zero, Unit: UnitPieces}}
}

// AddItem appends a row at the end of the list.
func (l ItemList) AddItem(item LineItem) ItemList {
	out := append(ItemList(nil), l...)
	if item.Unit == "" {
		item.Unit = UnitPieces
	}
	item.SortOrder = len(out)
	if total, err := ComputeLineTotal(item.Quantity, item.UnitPrice); err == nil {
		item.LineTotal = total
	} else {
		item.LineTotal = decimal.Zero
	}
	return append(out, item)
}

// RemoveItem drops the row at index. The last remaining row is never removed.
func (l ItemList) RemoveItem(index int) (ItemList, error) {
	if len(l) <= 1 {
		return l, invalid("items", "an invoice must keep at least one item row")
	}
	if index < 0 || index >= len(l) {
		return l, invalid("items", "item index "+strconv.Itoa(index)+" out of range")
	}
	out := make(ItemList, 0, len(l)-1)
	out = append(out, l[:index]...)
	out = append(out, l[index+1:]...)
	for i := range out {
		out[i].SortOrder = i
	}
	return out, nil
}

// UpdateItem applies patch to the row at index. The line total and sort order are
// recomputed only when quantity or unit price change.
func (l ItemList) UpdateItem(index int, patch ItemPatch) (ItemList, error) {
	if index < 0 || index >= len(l) {
		return l, invalid("items", "item index "+strconv.Itoa(index)+" out of range")
	}
	out := append(ItemList(nil), l...)
	item := out[index]
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Unit != nil {
		if !patch.Unit.Valid() {
			return l, invalid("unit", "unknown unit "+string(*patch.Unit))
		}
		item.Unit = *patch.Unit
	}
	if patch.ProductCode != nil {
		item.ProductCode = *patch.ProductCode
	}
	if patch.Quantity != nil || patch.UnitPrice != nil {
		if patch.Quantity != nil {
			item.Quantity = *patch.Quantity
		}
		if patch.UnitPrice != nil {
			item.UnitPrice = *patch.UnitPrice
		}
		total, err := ComputeLineTotal(item.Quantity, item.UnitPrice)
		if err != nil {
			return l, err
		}
		item.LineTotal = total
		item.SortOrder = index
	}
	out[index] = item
	return out, nil
}
