package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/logger"
	"github.com/qpss/middleware/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultFirstPollLookback is how far back the first poll reaches
const DefaultFirstPollLookback = 7 * 24 * time.Hour

// OutboundOptions configures a reconciliation poll
type OutboundOptions struct {
	DryRun            bool
	FirstPollLookback time.Duration
	Now               func() time.Time
}

// OutboundService polls ShipStation for shipments and confirms them back to QuikPAK (flow 2)
type OutboundService struct {
	gateways []integration.OrderGateway
	tank     integration.HoldingTank
	emitter  integration.OutboundEmitter
	ledger   integration.LedgerStore
	dryRun   bool
	lookback time.Duration
	now      func() time.Time
}

// NewOutboundService creates an OutboundService. Gateways are polled in the given order.
func NewOutboundService(
	gateways []integration.OrderGateway,
	tank integration.HoldingTank,
	emitter integration.OutboundEmitter,
	ledger integration.LedgerStore,
	opts OutboundOptions,
) *OutboundService {
	lookback := opts.FirstPollLookback
	if lookback <= 0 {
		lookback = DefaultFirstPollLookback
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &OutboundService{
		gateways: gateways,
		tank:     tank,
		emitter:  emitter,
		ledger:   ledger,
		dryRun:   opts.DryRun,
		lookback: lookback,
		now:      now,
	}
}

// Run performs one poll across all accounts.
// The poll cursor advances only when every account was fetched and every
// matched event was emitted; processed event IDs are persisted either way.
func (s *OutboundService) Run(ctx context.Context) (*OutboundSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "outbound.run",
		telemetry.SpanAttrFlow, FlowOutbound,
		telemetry.SpanAttrDryRun, s.dryRun,
	)
	defer span.End()
	log := logger.L(ctx)

	ledger, err := s.ledger.Load(ctx)
	if err != nil {
		err = fmt.Errorf("load poll ledger: %w", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	start := ledger.PollStart(now, s.lookback)
	if ledger.LastPollDate.IsZero() {
		log.Info("First run, polling lookback window", zap.String("since", start.Format(integration.PollDateLayout)))
	} else {
		log.Info("Polling shipments created since last poll date", zap.String("since", start.Format(integration.PollDateLayout)))
	}

	summary := &OutboundSummary{}
	var fetchErrs []error
	holdCursor := false

	for _, gateway := range s.gateways {
		if err := ctx.Err(); err != nil {
			return summary, s.finish(ctx, ledger, summary, true, err)
		}
		account := gateway.Account()
		events, err := gateway.ListShipmentsSince(ctx, start)
		if err != nil {
			log.Error("Failed to fetch shipments", zap.String("account", account.Label()), zap.Error(err))
			fetchErrs = append(fetchErrs, fmt.Errorf("poll %s account: %w", account.Label(), err))
			holdCursor = true
			continue
		}
		log.Info("Fetched shipments", zap.String("account", account.Label()), zap.Int("shipments", len(events)))
		summary.Fetched += len(events)

		for _, event := range events {
			if err := ctx.Err(); err != nil {
				return summary, s.finish(ctx, ledger, summary, true, err)
			}
			if !s.handleEvent(ctx, ledger, summary, event) {
				holdCursor = true
			}
		}
	}

	runErr := errors.Join(fetchErrs...)
	if err := s.finish(ctx, ledger, summary, holdCursor, runErr); err != nil {
		telemetry.RecordError(span, err)
		return summary, err
	}
	telemetry.SetAttributes(span,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
	)
	log.Info("Flow 2 summary: " + summary.String())
	return summary, nil
}

// handleEvent filters, matches, emits and commits one event.
// It returns false when the event failed in a way that must hold the cursor.
func (s *OutboundService) handleEvent(ctx context.Context, ledger *integration.Ledger, summary *OutboundSummary, event integration.ShipmentEvent) bool {
	log := logger.L(ctx).With(
		zap.String("event_id", event.EventID),
		zap.String("order_number", event.OrderNumber),
	)

	if event.Voided {
		log.Debug("Voided shipment ignored")
		return true
	}
	shipmentID, ok := event.ShipmentID()
	if !ok {
		return true
	}
	if ledger.Processed.Contains(event.EventID) {
		log.Debug("Shipment already processed")
		return true
	}

	ctx, span := telemetry.StartSpan(ctx, "outbound.event",
		telemetry.SpanAttrEventID, event.EventID,
		telemetry.SpanAttrShipmentID, shipmentID,
		telemetry.SpanAttrAccount, event.Account.String(),
	)
	defer span.End()
	log = log.With(zap.String("shipment_id", shipmentID))

	rec, err := s.tank.Load(ctx, shipmentID)
	if errors.Is(err, integration.ErrHoldingRecordNotFound) {
		log.Warn("No holding record for shipment, skipping")
		telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, "skipped")
		summary.Skipped++
		s.markProcessed(ctx, ledger, event.EventID)
		return true
	}
	if err != nil {
		log.Error("Failed to read holding record", zap.Error(err))
		telemetry.RecordError(span, err)
		summary.Errors++
		return false
	}

	if s.dryRun {
		log.Info("DRY RUN: would generate outbound files",
			zap.String("tracking_number", event.TrackingNumber),
			zap.Int("packages", len(rec.Packages)),
		)
		summary.Processed++
		return true
	}

	files, err := s.emitter.Emit(ctx, event, rec)
	if err != nil {
		log.Error("Failed to generate outbound files", zap.Error(err))
		telemetry.RecordError(span, err)
		summary.Errors++
		return false
	}
	log.Info("Generated outbound files",
		zap.String("header", files.HeaderPath),
		zap.String("detail", files.DetailPath),
		zap.String("tracking_number", event.TrackingNumber),
	)

	if err := s.tank.Delete(ctx, shipmentID); err != nil {
		log.Warn("Failed to delete holding record", zap.Error(err))
	}
	s.markProcessed(ctx, ledger, event.EventID)
	telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, "processed")
	summary.Processed++
	return true
}

func (s *OutboundService) markProcessed(ctx context.Context, ledger *integration.Ledger, eventID string) {
	if evicted := ledger.Processed.Add(eventID); len(evicted) > 0 {
		logger.L(ctx).Debug("Processed set trimmed",
			zap.Strings("evicted", evicted),
			zap.Int("cap", integration.MaxProcessedIDs),
		)
	}
}

// finish persists the ledger unless dry-running. runErr is returned as is
// when the save succeeds.
func (s *OutboundService) finish(ctx context.Context, ledger *integration.Ledger, summary *OutboundSummary, holdCursor bool, runErr error) error {
	if s.dryRun {
		return runErr
	}
	if !holdCursor {
		ledger.Advance(s.now())
		summary.CursorAdvanced = true
	} else {
		logger.L(ctx).Warn("Poll date not advanced, window will be fetched again next run")
	}
	if err := s.ledger.Save(context.WithoutCancel(ctx), ledger); err != nil {
		return errors.Join(runErr, fmt.Errorf("save poll ledger: %w", err))
	}
	return runErr
}
