package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockOrderGateway is a mock implementation of OrderGateway
type MockOrderGateway struct {
	mock.Mock
	account integration.Account
	storeID *int
}

func newMockGateway(account integration.Account) *MockOrderGateway {
	return &MockOrderGateway{account: account}
}

func (m *MockOrderGateway) Account() integration.Account { return m.account }
func (m *MockOrderGateway) StoreID() *int                { return m.storeID }

func (m *MockOrderGateway) CreateOrUpdateOrder(ctx context.Context, payload *integration.OrderPayload) (*integration.RemoteOrder, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteOrder), args.Error(1)
}

func (m *MockOrderGateway) FindOrderByNumber(ctx context.Context, orderNumber string) (*integration.RemoteOrder, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteOrder), args.Error(1)
}

func (m *MockOrderGateway) ListShipmentsSince(ctx context.Context, since time.Time) ([]integration.ShipmentEvent, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ShipmentEvent), args.Error(1)
}

func (m *MockOrderGateway) ListStores(ctx context.Context) ([]integration.Store, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Store), args.Error(1)
}

// MockItemLookup is a mock implementation of ItemLookup
type MockItemLookup struct {
	mock.Mock
}

func (m *MockItemLookup) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockItemLookup) Lookup(ctx context.Context, orderNo string) ([]integration.LineItem, error) {
	args := m.Called(ctx, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.LineItem), args.Error(1)
}

// MockEmitter is a mock implementation of OutboundEmitter
type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(ctx context.Context, event integration.ShipmentEvent, rec *integration.HoldingRecord) (*integration.EmittedFiles, error) {
	args := m.Called(ctx, event, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.EmittedFiles), args.Error(1)
}

// fakeInbox serves pre-parsed records and records archive moves
type fakeInbox struct {
	pairs     []integration.FilePair
	unpaired  []integration.UnpairedFile
	records   map[string]*integration.OrderRecord
	parseErrs map[string]error
	scanErr   error
	processed []string
	failed    map[string]error
}

func newFakeInbox() *fakeInbox {
	return &fakeInbox{
		records:   map[string]*integration.OrderRecord{},
		parseErrs: map[string]error{},
		failed:    map[string]error{},
	}
}

func (f *fakeInbox) add(rec *integration.OrderRecord) {
	sid := rec.ShipmentID()
	f.pairs = append(f.pairs, integration.FilePair{
		ShipmentID:  sid,
		HeaderPath:  "HeaderIn_" + sid + "_20240101.xml",
		DetailPaths: []string{"DetailIn_" + sid + "_20240101.xml"},
	})
	f.records[sid] = rec
}

func (f *fakeInbox) addMalformed(sid string, err error) {
	f.pairs = append(f.pairs, integration.FilePair{ShipmentID: sid, HeaderPath: "HeaderIn_" + sid + "_x.xml"})
	f.parseErrs[sid] = err
}

func (f *fakeInbox) Scan(context.Context) ([]integration.FilePair, []integration.UnpairedFile, error) {
	return f.pairs, f.unpaired, f.scanErr
}

func (f *fakeInbox) Parse(_ context.Context, pair integration.FilePair) (*integration.OrderRecord, error) {
	if err, ok := f.parseErrs[pair.ShipmentID]; ok {
		return nil, err
	}
	return f.records[pair.ShipmentID], nil
}

func (f *fakeInbox) MarkProcessed(_ context.Context, pair integration.FilePair) error {
	f.processed = append(f.processed, pair.ShipmentID)
	return nil
}

func (f *fakeInbox) MarkFailed(_ context.Context, pair integration.FilePair, cause error) error {
	f.failed[pair.ShipmentID] = cause
	return nil
}

// memTank is an in-memory HoldingTank
type memTank struct {
	mu      sync.Mutex
	records map[string]*integration.HoldingRecord
	saveErr error
	loadErr error
	deleted []string
}

func newMemTank() *memTank {
	return &memTank{records: map[string]*integration.HoldingRecord{}}
}

func (m *memTank) Save(_ context.Context, rec *integration.HoldingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[rec.ShipmentID] = rec
	return nil
}

func (m *memTank) Load(_ context.Context, shipmentID string) (*integration.HoldingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	rec, ok := m.records[shipmentID]
	if !ok {
		return nil, integration.ErrHoldingRecordNotFound
	}
	return rec, nil
}

func (m *memTank) Delete(_ context.Context, shipmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, shipmentID)
	m.deleted = append(m.deleted, shipmentID)
	return nil
}

func (m *memTank) ListOlderThan(_ context.Context, age time.Duration) ([]integration.StaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := testNow()
	var out []integration.StaleRecord
	for _, r := range m.records {
		if r.Age(now) > age {
			out = append(out, integration.StaleRecord{ShipmentID: r.ShipmentID, OrderNumber: r.OrderNumber, Age: r.Age(now)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShipmentID < out[j].ShipmentID })
	return out, nil
}

// memLedger is an in-memory LedgerStore
type memLedger struct {
	ledger  *integration.Ledger
	saves   int
	saveErr error
}

func (m *memLedger) Load(context.Context) (*integration.Ledger, error) {
	if m.ledger == nil {
		return integration.NewLedger(), nil
	}
	return m.ledger, nil
}

func (m *memLedger) Save(_ context.Context, l *integration.Ledger) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.ledger = l
	m.saves++
	return nil
}

// recordingDecider records how often each decision was requested
type recordingDecider struct {
	FixedDecider
	lookupCalls int
	heldCalls   int
	held        []HeldOrder
	err         error
}

func (d *recordingDecider) LookupUnavailable(ctx context.Context, cause error) (LookupDecision, error) {
	d.lookupCalls++
	if d.err != nil {
		return LookupAbort, d.err
	}
	return d.FixedDecider.LookupUnavailable(ctx, cause)
}

func (d *recordingDecider) HeldOrders(ctx context.Context, held []HeldOrder) (HeldDecision, error) {
	d.heldCalls++
	d.held = held
	if d.err != nil {
		return HeldSkip, d.err
	}
	return d.FixedDecider.HeldOrders(ctx, held)
}

// recordingConfirmer answers cleanup confirmation with a fixed value
type recordingConfirmer struct {
	answer bool
	calls  int
	err    error
}

func (c *recordingConfirmer) ConfirmCleanup(context.Context, []integration.StaleRecord) (bool, error) {
	c.calls++
	return c.answer, c.err
}

func testNow() time.Time {
	return time.Date(2024, 3, 15, 10, 30, 0, 0, time.Local)
}

func testRecord(sid, country string, packages int) *integration.OrderRecord {
	rec := &integration.OrderRecord{
		Header: integration.ShipmentHeader{
			ShipmentID:   sid,
			CustomerCode: "HO1002",
			OrderNo:      "ORD-" + sid[len(sid)-3:],
			ShipCountry:  country,
			ShipName:     "Acme Corp",
			ShipDate:     "20240315",
			Void:         "N",
			RateOnly:     "N",
		},
	}
	for i := 1; i <= packages; i++ {
		rec.Packages = append(rec.Packages, integration.Package{
			ShipmentID: sid,
			PackageNo:  i,
			PackageID:  sid + "-P" + string(rune('0'+i)),
			Weight:     decimal.NewFromInt(5),
			Length:     decimal.NewFromInt(10),
			Width:      decimal.NewFromInt(8),
			Height:     decimal.NewFromInt(6),
			Units:      "LB",
		})
	}
	return rec
}

func testItems() []integration.LineItem {
	return []integration.LineItem{
		{LineNumber: 1, SKU: "WIDGET-1", Description: "Widget", QtyOrdered: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("9.99")},
		{LineNumber: 2, SKU: "GADGET-2", Description: "Gadget", QtyOrdered: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("24.50")},
	}
}

var errConnRefused = errors.New("dial tcp 10.0.0.5:443: connect: connection refused")
