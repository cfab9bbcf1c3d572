package integration

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapOrder_SinglePackage(t *testing.T) {
	rec := newTestRecord(pkg(1, "12.5", "10", "8", "6"))
	rec.Header.PONumber = "PO-77"
	rec.Header.ShipViaCode = "UPS Ground"
	rec.Header.OrderDate = "20260213"
	rec.Header.ShipDate = "2026021"
	rec.Header.ShipName = "Jane Doe"
	rec.Header.ShipAddr1 = "1 Main St"
	rec.Header.OptionalText001 = "555-0100"
	rec.Header.IsResidential = "1"
	rec.Header.OptionalText009 = "Prepaid"
	rec.Header.OptionalText010 = "0"
	storeID := 42

	payload := MapOrder(rec, nil, MapOptions{Account: AccountDomestic, StoreID: &storeID})

	assert.Equal(t, "HO1002_SHIP0000447530", payload.OrderNumber)
	assert.Equal(t, payload.OrderNumber, payload.OrderKey)
	assert.Equal(t, OrderStatusAwaitingShipment, payload.OrderStatus)
	assert.Equal(t, "UPS Ground", payload.RequestedShippingService)
	assert.Equal(t, "2026-02-13T00:00:00", payload.OrderDate)
	assert.Empty(t, payload.ShipDate)
	assert.Equal(t, payload.ShipTo, payload.BillTo)
	assert.True(t, payload.ShipTo.Residential)
	assert.Equal(t, "555-0100", payload.ShipTo.Phone)
	assert.Equal(t, "HO1002", payload.AdvancedOptions.Source)
	assert.Equal(t, "PO-77", payload.AdvancedOptions.CustomField1)
	assert.Equal(t, "SHIP0000447530", payload.AdvancedOptions.CustomField2)
	assert.Equal(t, SinglePackageLabel, payload.AdvancedOptions.CustomField3)
	require.NotNil(t, payload.AdvancedOptions.StoreID)
	assert.Equal(t, 42, *payload.AdvancedOptions.StoreID)
	require.NotNil(t, payload.Weight)
	assert.Equal(t, 12.5, payload.Weight.Value)
	assert.Equal(t, WeightUnitsPounds, payload.Weight.Units)
	require.NotNil(t, payload.Dimensions)
	assert.Equal(t, 10.0, payload.Dimensions.Length)
	assert.Equal(t, "Shipping terms: Prepaid", payload.InternalNotes)
	assert.Nil(t, payload.Items)
}

func TestMapOrder_MultiPackage(t *testing.T) {
	tests := []struct {
		name       string
		packages   []Package
		wantLabel  string
		wantWeight float64
		wantDims   *Dimensions
	}{
		{
			name:       "one package",
			packages:   []Package{pkg(1, "3", "4", "5", "6")},
			wantLabel:  SinglePackageLabel,
			wantWeight: 3,
			wantDims:   &Dimensions{Length: 4, Width: 5, Height: 6, Units: DimensionUnitsInches},
		},
		{
			name:       "three packages",
			packages:   []Package{pkg(1, "3", "4", "5", "6"), pkg(2, "7.25", "12", "12", "12"), pkg(3, "1", "2", "2", "2")},
			wantLabel:  MultiPackageLabel,
			wantWeight: 11.25,
			wantDims:   &Dimensions{Length: 12, Width: 12, Height: 12, Units: DimensionUnitsInches},
		},
		{
			name:       "largest package without dimensions",
			packages:   []Package{pkg(1, "3", "0", "0", "0"), pkg(2, "4", "0", "0", "0")},
			wantLabel:  MultiPackageLabel,
			wantWeight: 7,
			wantDims:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestRecord(tt.packages...)
			payload := MapOrder(rec, nil, MapOptions{Account: AccountDomestic})

			assert.Equal(t, tt.wantLabel, payload.AdvancedOptions.CustomField3)
			require.NotNil(t, payload.Weight)
			assert.InDelta(t, tt.wantWeight, payload.Weight.Value, 1e-9)
			assert.Equal(t, tt.wantDims, payload.Dimensions)
			if len(tt.packages) > 1 {
				assert.Contains(t, payload.InternalNotes, "Packages: ")
				assert.Contains(t, payload.InternalNotes, "Pkg 1: ")
			}
		})
	}
}

func TestMapOrder_Items(t *testing.T) {
	rec := newTestRecord(pkg(1, "1", "1", "1", "1"))
	items := []LineItem{
		{LineNumber: 1, SKU: "WIDGET-1", Description: "Widget", QtyOrdered: decimal.RequireFromString("2"), UnitPrice: decimal.RequireFromString("9.999")},
		{LineNumber: 2, SKU: "FREE-1", Description: "Sample", QtyOrdered: decimal.RequireFromString("1.7")},
	}

	payload := MapOrder(rec, items, MapOptions{Account: AccountForeign})

	require.Len(t, payload.Items, 2)
	assert.Equal(t, "1", payload.Items[0].LineItemKey)
	assert.Equal(t, int64(2), payload.Items[0].Quantity)
	require.NotNil(t, payload.Items[0].UnitPrice)
	assert.Equal(t, 10.0, *payload.Items[0].UnitPrice)
	assert.Equal(t, int64(1), payload.Items[1].Quantity)
	assert.Nil(t, payload.Items[1].UnitPrice)
	assert.Equal(t, AccountForeign, payload.Account)
}

func TestMapOrder_IsDeterministic(t *testing.T) {
	rec := newTestRecord(pkg(1, "2", "3", "4", "5"), pkg(2, "6", "7", "8", "9"))
	first, err := json.Marshal(MapOrder(rec, nil, MapOptions{Account: AccountDomestic}))
	require.NoError(t, err)
	second, err := json.Marshal(MapOrder(rec, nil, MapOptions{Account: AccountDomestic}))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
	assert.NotContains(t, string(first), "Account")
}

func TestFormatCompactDate(t *testing.T) {
	assert.Equal(t, "2026-02-18T00:00:00", FormatCompactDate("20260218"))
	assert.Equal(t, "", FormatCompactDate(""))
	assert.Equal(t, "", FormatCompactDate("2026-02-18"))
	assert.Equal(t, "", FormatCompactDate("2026021X"))
}
