package integration

import (
	"fmt"
	"strconv"
	"strings"
)

// Fixed values of the ShipStation V1 order body
const (
	OrderStatusAwaitingShipment = "awaiting_shipment"
	DefaultPackageCode          = "package"
	WeightUnitsPounds           = "pounds"
	DimensionUnitsInches        = "inches"
)

// MapOptions carries the per-account values the mapper needs
type MapOptions struct {
	Account Account
	StoreID *int
}

// MapOrder builds the canonical order payload for a record and its optional line items.
// It is pure: the same inputs always produce the same payload.
func MapOrder(rec *OrderRecord, items []LineItem, opts MapOptions) *OrderPayload {
	h := rec.Header
	orderNumber := rec.OrderNumber()
	shipTo := buildShipTo(&h)

	payload := &OrderPayload{
		OrderNumber:              orderNumber,
		OrderKey:                 orderNumber,
		OrderStatus:              OrderStatusAwaitingShipment,
		ShipTo:                   shipTo,
		BillTo:                   shipTo,
		PackageCode:              DefaultPackageCode,
		RequestedShippingService: h.ShipViaCode,
		OrderDate:                FormatCompactDate(h.OrderDate),
		ShipDate:                 FormatCompactDate(h.ShipDate),
		AdvancedOptions: AdvancedOptions{
			StoreID:      opts.StoreID,
			Source:       h.CustomerCode,
			CustomField1: h.PONumber,
			CustomField2: h.ShipmentID,
			CustomField3: rec.PackageCountLabel(),
		},
		Account: opts.Account,
	}

	// Multi package: summed weight, largest package's dimensions
	if total := rec.TotalWeight(); total.IsPositive() {
		payload.Weight = &Weight{Value: total.InexactFloat64(), Units: WeightUnitsPounds}
	}
	if largest, ok := rec.LargestPackage(); ok && largest.HasDimensions() {
		payload.Dimensions = &Dimensions{
			Length: largest.Length.InexactFloat64(),
			Width:  largest.Width.InexactFloat64(),
			Height: largest.Height.InexactFloat64(),
			Units:  DimensionUnitsInches,
		}
	}

	payload.InternalNotes = buildInternalNotes(rec)
	payload.Items = buildItems(items)
	return payload
}

func buildShipTo(h *ShipmentHeader) Address {
	return Address{
		Name:        h.ShipName,
		Street1:     h.ShipAddr1,
		Street2:     h.ShipAddr2,
		Street3:     h.ShipAddr3,
		City:        h.ShipCity,
		State:       h.ShipState,
		PostalCode:  h.ShipZip,
		Country:     h.ShipCountry,
		Phone:       h.OptionalText001,
		Email:       h.ShipEmail,
		Residential: h.Residential(),
	}
}

// buildInternalNotes joins shipping terms, carrier account and a per-package breakdown
func buildInternalNotes(rec *OrderRecord) string {
	h := rec.Header
	var parts []string
	if h.OptionalText009 != "" {
		parts = append(parts, "Shipping terms: "+h.OptionalText009)
	}
	if h.OptionalText010 != "" && h.OptionalText010 != "0" {
		parts = append(parts, "Carrier account: "+h.OptionalText010)
	}
	if len(rec.Packages) > 1 {
		parts = append(parts, fmt.Sprintf("Packages: %d", len(rec.Packages)))
		for _, p := range rec.Packages {
			parts = append(parts, fmt.Sprintf("Pkg %d: %s lbs %sx%sx%s",
				p.PackageNo, p.Weight, p.Length, p.Width, p.Height))
		}
	}
	return strings.Join(parts, " | ")
}

func buildItems(items []LineItem) []OrderItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		oi := OrderItem{
			LineItemKey: strconv.Itoa(it.LineNumber),
			SKU:         it.SKU,
			Name:        it.Description,
			Quantity:    it.QtyOrdered.IntPart(),
		}
		if it.UnitPrice.IsPositive() {
			price := it.UnitPrice.Round(2).InexactFloat64()
			oi.UnitPrice = &price
		}
		out = append(out, oi)
	}
	return out
}

// FormatCompactDate converts YYYYMMDD to YYYY-MM-DDT00:00:00, or "" if malformed
func FormatCompactDate(s string) string {
	if len(s) != 8 {
		return ""
	}
	if _, err := strconv.Atoi(s); err != nil {
		return ""
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:8] + "T00:00:00"
}
