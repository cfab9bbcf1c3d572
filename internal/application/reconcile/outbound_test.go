package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type outboundFixture struct {
	domestic *MockOrderGateway
	foreign  *MockOrderGateway
	tank     *memTank
	emitter  *MockEmitter
	ledger   *memLedger
}

func newOutboundFixture() *outboundFixture {
	return &outboundFixture{
		domestic: newMockGateway(integration.AccountDomestic),
		foreign:  newMockGateway(integration.AccountForeign),
		tank:     newMemTank(),
		emitter:  new(MockEmitter),
		ledger:   &memLedger{},
	}
}

func (f *outboundFixture) service(dryRun bool) *OutboundService {
	return NewOutboundService(
		[]integration.OrderGateway{f.domestic, f.foreign},
		f.tank,
		f.emitter,
		f.ledger,
		OutboundOptions{DryRun: dryRun, Now: testNow},
	)
}

func (f *outboundFixture) hold(sid string, account integration.Account) {
	rec := testRecord(sid, "US", 1)
	f.tank.records[sid] = integration.NewHoldingRecord(rec, account, testItems(), testNow().Add(-48*time.Hour))
}

func shipmentEvent(eventID, orderNumber string, account integration.Account) integration.ShipmentEvent {
	return integration.ShipmentEvent{
		EventID:        eventID,
		Account:        account,
		OrderNumber:    orderNumber,
		TrackingNumber: "1Z999AA10123456784",
		CarrierCode:    "ups",
		ServiceCode:    "ups_ground",
		ShipDate:       "2024-03-15",
		CreateDate:     "2024-03-15T09:12:00.0000000",
	}
}

func emitted(sid string) *integration.EmittedFiles {
	return &integration.EmittedFiles{
		HeaderPath: "out/HEADEROUT_" + sid + "_20240315_103000.XML",
		DetailPath: "out/DETAILOUT_" + sid + "_20240315_103000.XML",
	}
}

func TestOutboundService_Match(t *testing.T) {
	f := newOutboundFixture()
	f.hold("SHIP0000447530", integration.AccountDomestic)

	match := shipmentEvent("9001", "HO1002_SHIP0000447530", integration.AccountDomestic)
	foreignOrder := shipmentEvent("9002", "WEB-55812", integration.AccountDomestic)

	firstPoll := time.Date(2024, 3, 8, 0, 0, 0, 0, time.Local)
	f.domestic.On("ListShipmentsSince", mock.Anything, firstPoll).
		Return([]integration.ShipmentEvent{match, foreignOrder}, nil)
	f.foreign.On("ListShipmentsSince", mock.Anything, firstPoll).Return([]integration.ShipmentEvent{}, nil)
	f.emitter.On("Emit", mock.Anything, match, mock.MatchedBy(func(r *integration.HoldingRecord) bool {
		return r.ShipmentID == "SHIP0000447530"
	})).Return(emitted("SHIP0000447530"), nil).Once()

	summary, err := f.service(false).Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
	assert.True(t, summary.CursorAdvanced)
	assert.Empty(t, f.tank.records)
	assert.Equal(t, []string{"SHIP0000447530"}, f.tank.deleted)

	require.Equal(t, 1, f.ledger.saves)
	assert.True(t, f.ledger.ledger.Processed.Contains("9001"))
	assert.False(t, f.ledger.ledger.Processed.Contains("9002"), "unmatched pattern does not touch the ledger")
	assert.Equal(t, "2024-03-15", f.ledger.ledger.LastPollDate.Format(integration.PollDateLayout))
	f.emitter.AssertExpectations(t)
}

func TestOutboundService_RepollIsIdempotent(t *testing.T) {
	f := newOutboundFixture()
	f.hold("SHIP0000447531", integration.AccountDomestic)

	event := shipmentEvent("9010", "HO1002_SHIP0000447531", integration.AccountDomestic)
	f.domestic.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{event}, nil)
	f.foreign.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{}, nil)
	f.emitter.On("Emit", mock.Anything, event, mock.Anything).Return(emitted("SHIP0000447531"), nil).Once()

	svc := f.service(false)
	_, err := svc.Run(testContext(t))
	require.NoError(t, err)

	// the record is recreated, as if resubmitted; the processed set still wins
	f.hold("SHIP0000447531", integration.AccountDomestic)
	summary, err := svc.Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Processed)
	f.emitter.AssertNumberOfCalls(t, "Emit", 1)
	f.domestic.AssertCalled(t, "ListShipmentsSince", mock.Anything, time.Date(2024, 3, 15, 0, 0, 0, 0, time.Local))
}

func TestOutboundService_Filters(t *testing.T) {
	f := newOutboundFixture()
	f.hold("SHIP0000447532", integration.AccountForeign)

	voided := shipmentEvent("9020", "HO1002_SHIP0000447532", integration.AccountForeign)
	voided.Voided = true
	noRecord := shipmentEvent("9021", "HO1002_SHIP0000999999", integration.AccountForeign)
	partial := shipmentEvent("9022", "HO1002_SHIP", integration.AccountForeign)

	f.domestic.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{}, nil)
	f.foreign.On("ListShipmentsSince", mock.Anything, mock.Anything).
		Return([]integration.ShipmentEvent{voided, noRecord, partial}, nil)

	summary, err := f.service(false).Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.True(t, f.ledger.ledger.Processed.Contains("9021"), "missing record is remembered")
	assert.False(t, f.ledger.ledger.Processed.Contains("9020"))
	assert.False(t, f.ledger.ledger.Processed.Contains("9022"))
	assert.Contains(t, f.tank.records, "SHIP0000447532")
	f.emitter.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything)
}

func TestOutboundService_FetchFailureHoldsCursor(t *testing.T) {
	f := newOutboundFixture()
	f.hold("SHIP0000447533", integration.AccountDomestic)
	last := time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local)
	f.ledger.ledger = integration.NewLedger()
	f.ledger.ledger.LastPollDate = last

	event := shipmentEvent("9030", "HO1002_SHIP0000447533", integration.AccountDomestic)
	f.domestic.On("ListShipmentsSince", mock.Anything, last).Return([]integration.ShipmentEvent{event}, nil)
	f.foreign.On("ListShipmentsSince", mock.Anything, last).
		Return(nil, fmt.Errorf("after 3 attempts: %w", integration.ErrTransient))
	f.emitter.On("Emit", mock.Anything, event, mock.Anything).Return(emitted("SHIP0000447533"), nil)

	summary, err := f.service(false).Run(testContext(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrTransient)
	assert.Contains(t, err.Error(), "poll CA account")

	assert.Equal(t, 1, summary.Processed)
	assert.False(t, summary.CursorAdvanced)
	assert.True(t, f.ledger.ledger.LastPollDate.Equal(last))
	assert.True(t, f.ledger.ledger.Processed.Contains("9030"), "processed IDs persist")
}

func TestOutboundService_EmitFailure(t *testing.T) {
	f := newOutboundFixture()
	f.hold("SHIP0000447534", integration.AccountDomestic)
	f.hold("SHIP0000447535", integration.AccountDomestic)

	failing := shipmentEvent("9040", "HO1002_SHIP0000447534", integration.AccountDomestic)
	ok := shipmentEvent("9041", "HO1002_SHIP0000447535", integration.AccountDomestic)
	f.domestic.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{failing, ok}, nil)
	f.foreign.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{}, nil)
	f.emitter.On("Emit", mock.Anything, failing, mock.Anything).Return(nil, fmt.Errorf("write header: disk full"))
	f.emitter.On("Emit", mock.Anything, ok, mock.Anything).Return(emitted("SHIP0000447535"), nil)

	summary, err := f.service(false).Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Processed)
	assert.False(t, summary.CursorAdvanced)
	assert.Contains(t, f.tank.records, "SHIP0000447534", "record kept for the next poll")
	assert.NotContains(t, f.tank.records, "SHIP0000447535")
	assert.False(t, f.ledger.ledger.Processed.Contains("9040"))
	assert.True(t, f.ledger.ledger.Processed.Contains("9041"))
}

func TestOutboundService_HoldingTankReadFailure(t *testing.T) {
	f := newOutboundFixture()
	f.tank.loadErr = fmt.Errorf("database is locked")

	event := shipmentEvent("9050", "HO1002_SHIP0000447536", integration.AccountDomestic)
	f.domestic.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{event}, nil)
	f.foreign.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{}, nil)

	summary, err := f.service(false).Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Errors)
	assert.False(t, summary.CursorAdvanced)
	assert.False(t, f.ledger.ledger.Processed.Contains("9050"))
}

func TestOutboundService_DryRun(t *testing.T) {
	f := newOutboundFixture()
	f.hold("SHIP0000447537", integration.AccountDomestic)

	event := shipmentEvent("9060", "HO1002_SHIP0000447537", integration.AccountDomestic)
	f.domestic.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{event}, nil)
	f.foreign.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{}, nil)

	summary, err := f.service(true).Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, f.ledger.saves)
	assert.Contains(t, f.tank.records, "SHIP0000447537")
	f.emitter.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything)
}

func TestOutboundService_LedgerErrors(t *testing.T) {
	t.Run("save failure", func(t *testing.T) {
		f := newOutboundFixture()
		f.ledger.saveErr = fmt.Errorf("read-only file system")
		f.domestic.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{}, nil)
		f.foreign.On("ListShipmentsSince", mock.Anything, mock.Anything).Return([]integration.ShipmentEvent{}, nil)

		_, err := f.service(false).Run(testContext(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "save poll ledger")
	})

	t.Run("canceled before polling", func(t *testing.T) {
		f := newOutboundFixture()
		ctx, cancel := context.WithCancel(testContext(t))
		cancel()

		summary, err := f.service(false).Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, summary.CursorAdvanced)
		assert.Equal(t, 1, f.ledger.saves)
		f.domestic.AssertNotCalled(t, "ListShipmentsSince", mock.Anything, mock.Anything)
	})
}
