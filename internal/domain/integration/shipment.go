package integration

import "strings"

// ShipmentEvent is a shipment (label) reported by the shipping platform
type ShipmentEvent struct {
	// EventID is the platform's shipment identifier; it keys the processed set
	EventID        string
	Account        Account
	OrderNumber    string
	TrackingNumber string
	CarrierCode    string
	ServiceCode    string
	ShipDate       string
	CreateDate     string
	Voided         bool
	Weight         *Weight
	Dimensions     *Dimensions
}

// ShipmentID returns the QuikPAK shipment identifier embedded in the order number
func (e ShipmentEvent) ShipmentID() (string, bool) {
	_, sid, ok := ParseOrderNumber(e.OrderNumber)
	return sid, ok
}

// ShipDateCompact returns the ship date as YYYYMMDD, or "" when absent
func (e ShipmentEvent) ShipDateCompact() string {
	if len(e.ShipDate) < 10 {
		return ""
	}
	return strings.ReplaceAll(e.ShipDate[:10], "-", "")
}
