package integration

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HoldingRecord links a submitted order to the shipment that later confirms it.
// It snapshots everything the outbound files echo back to QuikPAK.
type HoldingRecord struct {
	ShipmentID   string           `json:"shipment_id"`
	OrderNumber  string           `json:"order_number"`
	CustomerCode string           `json:"customer_code"`
	ShipTo       Address          `json:"ship_to"`
	ShipVia      string           `json:"ship_via"`
	IsCOD        string           `json:"is_cod"`
	CollType     string           `json:"coll_type"`
	Packages     []HoldingPackage `json:"packages"`
	Items        []HoldingItem    `json:"items"`
	Account      Account          `json:"account"`
	CreatedAt    Timestamp        `json:"created_at"`
}

// HoldingPackage is the package snapshot kept in a holding record
type HoldingPackage struct {
	PackageID     string          `json:"package_id"`
	PackageNo     int             `json:"package_no"`
	Weight        decimal.Decimal `json:"weight"`
	Length        decimal.Decimal `json:"length"`
	Width         decimal.Decimal `json:"width"`
	Height        decimal.Decimal `json:"height"`
	DeclaredValue decimal.Decimal `json:"declared_value"`
	CODAmount     decimal.Decimal `json:"cod_amount"`
	Units         string          `json:"units"`
	Comment       string          `json:"comment"`
}

// HoldingItem is the line item snapshot kept in a holding record
type HoldingItem struct {
	LineNumber  int             `json:"line_number"`
	ItemNumber  string          `json:"item_number"`
	Description string          `json:"description"`
	QtyOrdered  decimal.Decimal `json:"qty_ordered"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// NewHoldingRecord snapshots a submitted order
func NewHoldingRecord(rec *OrderRecord, account Account, items []LineItem, now time.Time) *HoldingRecord {
	h := rec.Header
	shipTo := buildShipTo(&h)

	packages := make([]HoldingPackage, 0, len(rec.Packages))
	for _, p := range rec.Packages {
		packages = append(packages, HoldingPackage{
			PackageID:     p.PackageID,
			PackageNo:     p.PackageNo,
			Weight:        p.Weight,
			Length:        p.Length,
			Width:         p.Width,
			Height:        p.Height,
			DeclaredValue: p.DeclaredValue,
			CODAmount:     p.CODAmount,
			Units:         p.Units,
			Comment:       p.Comment,
		})
	}

	snapshot := make([]HoldingItem, 0, len(items))
	for _, it := range items {
		snapshot = append(snapshot, HoldingItem{
			LineNumber:  it.LineNumber,
			ItemNumber:  it.SKU,
			Description: it.Description,
			QtyOrdered:  it.QtyOrdered,
			UnitPrice:   it.UnitPrice,
		})
	}

	return &HoldingRecord{
		ShipmentID:   h.ShipmentID,
		OrderNumber:  rec.OrderNumber(),
		CustomerCode: h.CustomerCode,
		ShipTo:       shipTo,
		ShipVia:      h.ShipViaCode,
		IsCOD:        h.IsCOD,
		CollType:     h.CollType,
		Packages:     packages,
		Items:        snapshot,
		Account:      account,
		CreatedAt:    Timestamp{Time: now},
	}
}

// Age returns how long the record has been waiting for its shipment
func (r *HoldingRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt.Time)
}

// StaleRecord describes a holding record older than a cleanup threshold
type StaleRecord struct {
	ShipmentID  string
	OrderNumber string
	Age         time.Duration
}

// AgeDays returns the age in whole days
func (s StaleRecord) AgeDays() int {
	return int(s.Age / (24 * time.Hour))
}

// ---------------------------------------------------------------------------
// Timestamp
// ---------------------------------------------------------------------------

// Timestamp is a time that also accepts ISO timestamps without a zone offset,
// which is how records written by earlier tooling store created_at.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// MarshalText renders the timestamp as RFC3339
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.Time.Format(time.RFC3339Nano)), nil
}

// UnmarshalText parses RFC3339 or a zone-less ISO timestamp in local time
func (t *Timestamp) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON renders the timestamp as a JSON string
func (t Timestamp) MarshalJSON() ([]byte, error) {
	b, _ := t.MarshalText()
	return json.Marshal(string(b))
}

// UnmarshalJSON accepts the same forms as UnmarshalText
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", string(b), err)
	}
	return t.UnmarshalText([]byte(s))
}

// UnmarshalText normalizes account names, including legacy config section names
func (a *Account) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = AccountDomestic
		return nil
	}
	parsed, ok := ParseAccount(string(b))
	if !ok {
		return fmt.Errorf("unknown account %q", string(b))
	}
	*a = parsed
	return nil
}
