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

// InboundOptions configures an inbound run
type InboundOptions struct {
	DryRun bool
	// ForeignCountry is the ship-to country routed to the foreign account
	ForeignCountry string
	Now            func() time.Time
}

// InboundService submits QuikPAK order files to ShipStation (flow 1)
type InboundService struct {
	inbox    integration.Inbox
	lookup   integration.ItemLookup
	gateways map[integration.Account]integration.OrderGateway
	tank     integration.HoldingTank
	decider  Decider
	routing  integration.RoutingPolicy
	dryRun   bool
	now      func() time.Time
}

// NewInboundService creates an InboundService. lookup may be nil when no
// item lookup store is configured; orders are then submitted without items.
func NewInboundService(
	inbox integration.Inbox,
	lookup integration.ItemLookup,
	gateways []integration.OrderGateway,
	tank integration.HoldingTank,
	decider Decider,
	opts InboundOptions,
) *InboundService {
	byAccount := make(map[integration.Account]integration.OrderGateway, len(gateways))
	for _, g := range gateways {
		byAccount[g.Account()] = g
	}
	_, foreign := byAccount[integration.AccountForeign]
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &InboundService{
		inbox:    inbox,
		lookup:   lookup,
		gateways: byAccount,
		tank:     tank,
		decider:  decider,
		routing: integration.RoutingPolicy{
			ForeignCountry:    opts.ForeignCountry,
			ForeignConfigured: foreign,
		},
		dryRun: opts.DryRun,
		now:    now,
	}
}

// inboundRun is the mutable state of one run
type inboundRun struct {
	summary   InboundSummary
	useLookup bool
	// apiReached is set after the first successful API call of the run
	apiReached bool
	// apiDown short-circuits the remaining submissions
	apiDown bool
}

// Run processes every complete file pair in the inbox.
// Per-pair failures are counted in the summary; the returned error is
// reserved for failures that stop the run.
func (s *InboundService) Run(ctx context.Context) (*InboundSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "inbound.run",
		telemetry.SpanAttrFlow, FlowInbound,
		telemetry.SpanAttrDryRun, s.dryRun,
	)
	defer span.End()
	log := logger.L(ctx)

	if _, ok := s.gateways[integration.AccountDomestic]; !ok {
		err := fmt.Errorf("domestic account: %w", integration.ErrAccountNotConfigured)
		telemetry.RecordError(span, err)
		return nil, err
	}

	run := &inboundRun{useLookup: s.lookup != nil}
	if run.useLookup {
		if err := s.lookup.Ping(ctx); err != nil {
			log.Warn("Item lookup unavailable", zap.Error(err))
			decision, derr := s.decideLookup(ctx, err)
			if derr != nil {
				telemetry.RecordError(span, derr)
				return nil, derr
			}
			if decision == LookupAbort {
				log.Info("Run aborted, item lookup unavailable")
				run.summary.Aborted = true
				return &run.summary, nil
			}
			log.Info("Continuing without items for all orders")
			run.useLookup = false
		} else {
			log.Info("Item lookup connected, items will be included in orders")
		}
	} else {
		log.Info("Item lookup not configured, orders will have no line items")
	}

	pairs, unpaired, err := s.inbox.Scan(ctx)
	if err != nil {
		err = fmt.Errorf("scan inbound folder: %w", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	for _, u := range unpaired {
		log.Info("Unpaired file left for a later run",
			zap.String("shipment_id", u.ShipmentID),
			zap.String("path", u.Path),
			zap.Error(u.Err()),
		)
	}
	run.summary.Unpaired = len(unpaired)
	log.Info("Scanned inbound folder", zap.Int("pairs", len(pairs)), zap.Int("unpaired", len(unpaired)))

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return &run.summary, err
		}
		s.processPair(ctx, run, pair)
	}

	if err := s.resolveHeld(ctx, run); err != nil {
		telemetry.RecordError(span, err)
		return &run.summary, err
	}

	telemetry.SetAttributes(span,
		"processed", run.summary.Processed,
		"skipped", run.summary.Skipped,
		"held", run.summary.Held,
		"errors", run.summary.Errors,
		"left_for_retry", run.summary.LeftForRetry,
	)
	log.Info("Flow 1 summary: " + run.summary.String())
	return &run.summary, nil
}

// decideLookup asks the decider; in dry-run the run always continues
func (s *InboundService) decideLookup(ctx context.Context, cause error) (LookupDecision, error) {
	if s.dryRun {
		return LookupContinue, nil
	}
	decision, err := s.decider.LookupUnavailable(ctx, cause)
	if err != nil {
		return LookupAbort, fmt.Errorf("lookup decision: %w", err)
	}
	return decision, nil
}

func (s *InboundService) processPair(ctx context.Context, run *inboundRun, pair integration.FilePair) {
	ctx, span := telemetry.StartSpan(ctx, "inbound.pair", telemetry.SpanAttrShipmentID, pair.ShipmentID)
	defer span.End()
	log := logger.L(ctx).With(zap.String("shipment_id", pair.ShipmentID))

	if run.apiDown {
		log.Warn("ShipStation unreachable earlier in this run, leaving for retry")
		run.summary.LeftForRetry++
		return
	}

	rec, err := s.inbox.Parse(ctx, pair)
	if err != nil {
		log.Error("Malformed inbound pair", zap.Error(err))
		telemetry.RecordError(span, err)
		s.fail(ctx, run, pair, err)
		return
	}

	if rec.IsVoid() || rec.IsRateOnly() {
		reason := "void"
		if rec.IsRateOnly() {
			reason = "rate_only"
		}
		log.Info("Skipped", zap.String("reason", reason))
		telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, "skipped")
		run.summary.Skipped++
		if !s.dryRun {
			if err := s.inbox.MarkProcessed(ctx, pair); err != nil {
				log.Error("Failed to archive skipped pair", zap.Error(err))
			}
		}
		return
	}

	account := s.routing.Route(rec.Header.ShipCountry)
	log.Info("Routing order",
		zap.String("account", account.Label()),
		zap.String("country", rec.Header.ShipCountry),
	)

	var items []integration.LineItem
	if run.useLookup && rec.Header.OrderNo != "" {
		items, err = s.lookup.Lookup(ctx, rec.Header.OrderNo)
		if err != nil {
			log.Warn("Order held, no items resolved",
				zap.String("order_no", rec.Header.OrderNo),
				zap.Error(err),
			)
			telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, "held")
			run.summary.HeldOrders = append(run.summary.HeldOrders, HeldOrder{
				Pair:    pair,
				Record:  rec,
				Account: account,
				Reason:  err.Error(),
			})
			return
		}
		log.Info("Resolved line items", zap.Int("items", len(items)), zap.String("order_no", rec.Header.OrderNo))
	}

	s.submit(ctx, run, pair, rec, account, items)
}

// submit maps and upserts one order, then records it in the holding tank
func (s *InboundService) submit(
	ctx context.Context,
	run *inboundRun,
	pair integration.FilePair,
	rec *integration.OrderRecord,
	account integration.Account,
	items []integration.LineItem,
) {
	ctx, span := telemetry.StartSpan(ctx, "inbound.submit",
		telemetry.SpanAttrShipmentID, pair.ShipmentID,
		telemetry.SpanAttrOrderNumber, rec.OrderNumber(),
		telemetry.SpanAttrAccount, account.String(),
	)
	defer span.End()
	log := logger.L(ctx).With(
		zap.String("shipment_id", pair.ShipmentID),
		zap.String("order_number", rec.OrderNumber()),
	)

	gateway := s.gateways[account]
	payload := integration.MapOrder(rec, items, integration.MapOptions{
		Account: account,
		StoreID: gateway.StoreID(),
	})

	if s.dryRun {
		log.Info("DRY RUN: would create order", zap.Int("items", len(payload.Items)))
		run.summary.Processed++
		return
	}

	if run.apiDown {
		run.summary.LeftForRetry++
		return
	}

	existing, err := gateway.FindOrderByNumber(ctx, payload.OrderNumber)
	switch {
	case err != nil:
		log.Warn("Existing order lookup failed", zap.Error(err))
	case existing != nil:
		run.apiReached = true
		log.Info("Order already exists, sending update", zap.Int64("order_id", existing.OrderID))
	default:
		run.apiReached = true
	}

	remote, err := gateway.CreateOrUpdateOrder(ctx, payload)
	if err != nil {
		telemetry.RecordError(span, err)
		if integration.IsTransient(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Warn("Transient error, leaving for next run", zap.Error(err))
			run.summary.LeftForRetry++
			if !run.apiReached {
				log.Warn("ShipStation unreachable on first call, remaining orders left for retry")
				run.apiDown = true
			}
			return
		}
		log.Error("Order rejected", zap.Error(err))
		s.fail(ctx, run, pair, err)
		return
	}
	run.apiReached = true
	log.Info("Order created or updated", zap.Int64("order_id", remote.OrderID))

	holding := integration.NewHoldingRecord(rec, account, items, s.now())
	if err := s.tank.Save(ctx, holding); err != nil {
		log.Error("Failed to save holding record, leaving for next run", zap.Error(err))
		telemetry.RecordError(span, err)
		run.summary.LeftForRetry++
		return
	}

	if err := s.inbox.MarkProcessed(ctx, pair); err != nil {
		log.Error("Failed to archive processed pair", zap.Error(err))
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, "processed")
	run.summary.Processed++
}

// fail archives a pair to the error folder and counts it
func (s *InboundService) fail(ctx context.Context, run *inboundRun, pair integration.FilePair, cause error) {
	run.summary.Errors++
	if s.dryRun {
		return
	}
	if err := s.inbox.MarkFailed(ctx, pair, cause); err != nil {
		logger.L(ctx).Error("Failed to archive pair to error folder",
			zap.String("shipment_id", pair.ShipmentID),
			zap.Error(err),
		)
	}
}

// resolveHeld applies the single end-of-run decision to all held orders
func (s *InboundService) resolveHeld(ctx context.Context, run *inboundRun) error {
	held := run.summary.HeldOrders
	if len(held) == 0 {
		return nil
	}
	log := logger.L(ctx)
	run.summary.Held = len(held)

	if s.dryRun {
		log.Info("DRY RUN: held orders skipped without prompting", zap.Int("held", len(held)))
		run.summary.Skipped += len(held)
		return nil
	}

	decision, err := s.decider.HeldOrders(ctx, held)
	if err != nil {
		return fmt.Errorf("held orders decision: %w", err)
	}

	if decision == HeldSkip {
		for _, h := range held {
			log.Info("Held order skipped, files left in inbound folder",
				zap.String("shipment_id", h.ShipmentID()),
				zap.String("reason", h.Reason),
			)
		}
		run.summary.Skipped += len(held)
		return nil
	}

	log.Info("Pushing held orders without items", zap.Int("held", len(held)))
	for _, h := range held {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.submit(ctx, run, h.Pair, h.Record, h.Account, nil)
	}
	return nil
}
