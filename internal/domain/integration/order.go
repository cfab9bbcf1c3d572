package integration

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// shipmentIDPattern is the exact form of a QuikPAK shipment identifier:
// letters followed by digits (e.g. SHIP0000447526, TEST0000000001).
var shipmentIDPattern = regexp.MustCompile(`^[A-Za-z]+\d+$`)

// IsValidShipmentID returns true if id is a complete shipment identifier
func IsValidShipmentID(id string) bool {
	return shipmentIDPattern.MatchString(id)
}

// ---------------------------------------------------------------------------
// ShipmentHeader
// ---------------------------------------------------------------------------

// ShipmentHeader holds the fields of a HeaderIn file
type ShipmentHeader struct {
	ShipmentID      string
	BOLNo           string
	CarrierCode     string
	CarrierService  string
	CollType        string
	IsCOD           string
	Location        string
	IsResidential   string
	OrderNo         string
	OrderDate       string // YYYYMMDD
	PONumber        string
	ShipAddr1       string
	ShipAddr2       string
	ShipAddr3       string
	ShipCity        string
	ShipContact     string
	ShipCountry     string
	ShipDate        string // YYYYMMDD
	ShipEmail       string
	ShipName        string
	ShipPhone       string
	ShipState       string
	ShipViaCode     string
	ShipZip         string
	Void            string
	PKNumber        string
	CustomerCode    string
	OptionalText001 string // ship-to phone
	OptionalText009 string // shipping terms
	OptionalText010 string // carrier account
	OrgID           string
	TrackingNumber  string
	RateOnly        string
}

// Residential returns true when the ship-to address is flagged residential
func (h *ShipmentHeader) Residential() bool {
	return h.IsResidential == "1"
}

// ---------------------------------------------------------------------------
// Package
// ---------------------------------------------------------------------------

// Package is one InQueueDetail element of a DetailIn file
type Package struct {
	ShipmentID    string
	CODAmount     decimal.Decimal
	Comment       string
	DeclaredValue decimal.Decimal
	Height        decimal.Decimal
	Length        decimal.Decimal
	PackageID     string
	PackageNo     int
	Units         string
	Weight        decimal.Decimal
	Width         decimal.Decimal
}

// Volume returns length x width x height
func (p Package) Volume() decimal.Decimal {
	return p.Length.Mul(p.Width).Mul(p.Height)
}

// HasDimensions returns true if all three dimensions are positive
func (p Package) HasDimensions() bool {
	return p.Length.IsPositive() && p.Width.IsPositive() && p.Height.IsPositive()
}

// ---------------------------------------------------------------------------
// OrderRecord
// ---------------------------------------------------------------------------

// Package count labels used for customField3
const (
	SinglePackageLabel = "Single Package"
	MultiPackageLabel  = "Multi Package"
)

// OrderRecord is a parsed inbound header together with its packages
type OrderRecord struct {
	Header   ShipmentHeader
	Packages []Package
}

// ShipmentID returns the shipment identifier shared by header and detail
func (r *OrderRecord) ShipmentID() string {
	return r.Header.ShipmentID
}

// OrderNumber returns the derived ShipStation order number
func (r *OrderRecord) OrderNumber() string {
	return BuildOrderNumber(r.Header.CustomerCode, r.Header.ShipmentID)
}

// IsVoid returns true if the header is flagged void
func (r *OrderRecord) IsVoid() bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Void), "Y")
}

// IsRateOnly returns true if the header is flagged rate-only
func (r *OrderRecord) IsRateOnly() bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.RateOnly), "Y")
}

// PackageCountLabel returns "Single Package" or "Multi Package"
func (r *OrderRecord) PackageCountLabel() string {
	if len(r.Packages) > 1 {
		return MultiPackageLabel
	}
	return SinglePackageLabel
}

// TotalWeight sums the weights of all packages
func (r *OrderRecord) TotalWeight() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Packages {
		total = total.Add(p.Weight)
	}
	return total
}

// LargestPackage returns the package with the greatest volume.
// Ties keep the earliest package. Returns false when there are no packages.
func (r *OrderRecord) LargestPackage() (Package, bool) {
	if len(r.Packages) == 0 {
		return Package{}, false
	}
	largest := r.Packages[0]
	for _, p := range r.Packages[1:] {
		if p.Volume().GreaterThan(largest.Volume()) {
			largest = p
		}
	}
	return largest, true
}

// Validate checks the invariants that make the record usable for submission.
// The customer code is only required on records that will be submitted.
func (r *OrderRecord) Validate() error {
	sid := r.Header.ShipmentID
	if sid == "" {
		return NewMalformedInputError(sid, "ShipmentID", "missing in header")
	}
	if !IsValidShipmentID(sid) {
		return NewMalformedInputError(sid, "ShipmentID", fmt.Sprintf("%q is not a shipment identifier", sid))
	}
	for _, p := range r.Packages {
		if p.ShipmentID != "" && p.ShipmentID != sid {
			return NewMalformedInputError(sid, "ShipmentID",
				fmt.Sprintf("mismatch: header=%s, detail=%s", sid, p.ShipmentID))
		}
	}
	// void and rate-only records are archived without submission,
	// so they need no order number
	if r.IsVoid() || r.IsRateOnly() {
		return nil
	}
	if strings.TrimSpace(r.Header.CustomerCode) == "" {
		return NewMalformedInputError(sid, "customercode", "missing in header")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Order number
// ---------------------------------------------------------------------------

// BuildOrderNumber derives the order number and order key: customerCode_shipmentID
func BuildOrderNumber(customerCode, shipmentID string) string {
	return customerCode + "_" + shipmentID
}

// ParseOrderNumber splits an order number produced by BuildOrderNumber.
// ok is false when the order number did not originate from this integration.
func ParseOrderNumber(orderNumber string) (customerCode, shipmentID string, ok bool) {
	customerCode, shipmentID, found := strings.Cut(orderNumber, "_")
	if !found || customerCode == "" || !IsValidShipmentID(shipmentID) {
		return "", "", false
	}
	return customerCode, shipmentID, true
}
