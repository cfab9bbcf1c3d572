package integration

import (
	"context"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// ItemLookup resolves ERP line items for an order number.
// Lookup returns ErrLookupMiss when the store has no such order and
// ErrLookupUnavailable when the store cannot be reached.
type ItemLookup interface {
	Ping(ctx context.Context) error
	Lookup(ctx context.Context, orderNo string) ([]LineItem, error)
}

// RemoteOrder is an order as listed by the shipping platform
type RemoteOrder struct {
	OrderID     int64
	OrderNumber string
	OrderKey    string
	OrderStatus string
}

// Store is a ShipStation store (sales channel) within an account
type Store struct {
	StoreID         int
	StoreName       string
	MarketplaceName string
	Active          bool
}

// OrderGateway is one account context of the remote ordering API.
// Errors wrap ErrTransient or ErrPermanent.
type OrderGateway interface {
	Account() Account
	StoreID() *int
	CreateOrUpdateOrder(ctx context.Context, payload *OrderPayload) (*RemoteOrder, error)
	FindOrderByNumber(ctx context.Context, orderNumber string) (*RemoteOrder, error)
	ListShipmentsSince(ctx context.Context, since time.Time) ([]ShipmentEvent, error)
	ListStores(ctx context.Context) ([]Store, error)
}

// HoldingTank persists holding records keyed by shipment ID.
// Save replaces atomically; Load returns ErrHoldingRecordNotFound when absent;
// Delete of an absent record is a no-op.
type HoldingTank interface {
	Save(ctx context.Context, rec *HoldingRecord) error
	Load(ctx context.Context, shipmentID string) (*HoldingRecord, error)
	Delete(ctx context.Context, shipmentID string) error
	ListOlderThan(ctx context.Context, age time.Duration) ([]StaleRecord, error)
}

// LedgerStore persists the poller's ledger with full-file replace semantics
type LedgerStore interface {
	Load(ctx context.Context) (*Ledger, error)
	Save(ctx context.Context, ledger *Ledger) error
}

// EmittedFiles are the paths of one outbound header/detail pair
type EmittedFiles struct {
	HeaderPath string
	DetailPath string
}

// OutboundEmitter writes the outbound file pair for a confirmed shipment.
// Either both files exist afterwards or neither does.
type OutboundEmitter interface {
	Emit(ctx context.Context, event ShipmentEvent, rec *HoldingRecord) (*EmittedFiles, error)
}

// FilePair is a HeaderIn file matched with its DetailIn file(s) by shipment ID
type FilePair struct {
	ShipmentID  string
	HeaderPath  string
	DetailPaths []string
	// Superseded are older headers for the same shipment; they are archived with the pair
	Superseded []string
}

// Paths returns every file of the pair, header first
func (p FilePair) Paths() []string {
	out := make([]string, 0, 1+len(p.DetailPaths)+len(p.Superseded))
	out = append(out, p.HeaderPath)
	out = append(out, p.DetailPaths...)
	return append(out, p.Superseded...)
}

// UnpairedFile is an inbound file whose counterpart has not arrived yet
type UnpairedFile struct {
	ShipmentID string
	Path       string
	Role       string // "header" or "detail"
}

// Err describes the missing counterpart as an ErrUnpaired
func (u UnpairedFile) Err() error {
	return fmt.Errorf("%w: %s %s has no counterpart", ErrUnpaired, u.ShipmentID, u.Role)
}

// Inbox is the inbound file location: it pairs, parses and archives file sets.
// Files it does not archive stay in place for a later run.
type Inbox interface {
	Scan(ctx context.Context) ([]FilePair, []UnpairedFile, error)
	Parse(ctx context.Context, pair FilePair) (*OrderRecord, error)
	MarkProcessed(ctx context.Context, pair FilePair) error
	MarkFailed(ctx context.Context, pair FilePair, cause error) error
}
