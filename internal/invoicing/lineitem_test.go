package invoicing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeLineTotal(t *testing.T) {
	got, err := ComputeLineTotal(dec("3"), dec("33.335"))
	require.NoError(t, err)
	require.Equal(t, "100.01", got.StringFixed(2))

	got, err = ComputeLineTotal(dec("2"), dec("0"))
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = ComputeLineTotal(dec("0"), dec("10"))
	require.ErrorIs(t, err, ErrValidation)

	_, err = ComputeLineTotal(dec("1"), dec("-0.01"))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "unitPrice", verr.Field)
}

func TestComputeLineTotalStoredPrecision(t *testing.T) {
	got, err := ComputeLineTotal(dec("0.0001"), dec("12345.6789"))
	require.NoError(t, err)
	require.Equal(t, "1.23", got.StringFixed(2))

	_, err = ComputeLineTotal(dec("0.00004"), dec("1"))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "quantity", verr.Field)

	_, err = ComputeLineTotal(dec("1"), dec("0.12345"))
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "unitPrice", verr.Field)
}

func TestItemListUpdateRecomputesOnlyOnAmountChange(t *testing.T) {
	list := NewItemList().AddItem(LineItem{Description: "Consulting", Quantity: dec("2"), UnitPrice: dec("50")})
	require.Len(t, list, 2)
	require.Equal(t, 1, list[1].SortOrder)
	require.Equal(t, "100.00", list[1].LineTotal.StringFixed(2))

	desc := "Design work"
	list, err := list.UpdateItem(1, ItemPatch{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, "Design work", list[1].Description)
	require.Equal(t, "100.00", list[1].LineTotal.StringFixed(2))

	qty := dec("3")
	list, err = list.UpdateItem(1, ItemPatch{Quantity: &qty})
	require.NoError(t, err)
	require.Equal(t, "150.00", list[1].LineTotal.StringFixed(2))
	require.Equal(t, 1, list[1].SortOrder)

	bad := dec("-1")
	_, err = list.UpdateItem(1, ItemPatch{UnitPrice: &bad})
	require.ErrorIs(t, err, ErrValidation)

	_, err = list.UpdateItem(5, ItemPatch{Description: &desc})
	require.ErrorIs(t, err, ErrValidation)
}

func TestItemListRemove(t *testing.T) {
	list := NewItemList()
	_, err := list.RemoveItem(0)
	require.ErrorIs(t, err, ErrValidation)

	list = list.AddItem(LineItem{Description: "a", Quantity: dec("1"), UnitPrice: dec("1")})
	list = list.AddItem(LineItem{Description: "b", Quantity: dec("1"), UnitPrice: dec("2")})
	list, err = list.RemoveItem(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for i, item := range list {
		require.Equal(t, i, item.SortOrder)
	}
	require.Equal(t, "a", list[0].Description)
}
