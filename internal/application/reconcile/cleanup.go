package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/logger"
	"github.com/qpss/middleware/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CleanupResult reports one cleanup-pending run
type CleanupResult struct {
	Stale     []integration.StaleRecord
	Confirmed bool
	Deleted   int
}

// CleanupService removes holding records that never received a shipment
type CleanupService struct {
	tank      integration.HoldingTank
	confirmer Confirmer
}

// NewCleanupService creates a CleanupService
func NewCleanupService(tank integration.HoldingTank, confirmer Confirmer) *CleanupService {
	return &CleanupService{tank: tank, confirmer: confirmer}
}

// Run lists records older than days and deletes them once confirmed.
// Nothing is deleted without confirmation.
func (s *CleanupService) Run(ctx context.Context, days int) (*CleanupResult, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be a positive integer, got %d", days)
	}
	ctx, span := telemetry.StartSpan(ctx, "cleanup.run", telemetry.SpanAttrFlow, FlowCleanup, "days", days)
	defer span.End()
	log := logger.L(ctx)

	stale, err := s.tank.ListOlderThan(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		err = fmt.Errorf("list holding records: %w", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	result := &CleanupResult{Stale: stale}
	if len(stale) == 0 {
		log.Info("No stale holding records found", zap.Int("days", days))
		return result, nil
	}
	for _, r := range stale {
		log.Info("Orphaned holding record",
			zap.String("shipment_id", r.ShipmentID),
			zap.String("order_number", r.OrderNumber),
			zap.Int("age_days", r.AgeDays()),
			zap.NamedError("reason", integration.ErrOrphaned),
		)
	}

	ok, err := s.confirmer.ConfirmCleanup(ctx, stale)
	if err != nil {
		return result, fmt.Errorf("cleanup confirmation: %w", err)
	}
	if !ok {
		log.Info("Cleanup cancelled, no records deleted")
		return result, nil
	}
	result.Confirmed = true

	for _, r := range stale {
		if err := s.tank.Delete(ctx, r.ShipmentID); err != nil {
			log.Error("Failed to delete holding record", zap.String("shipment_id", r.ShipmentID), zap.Error(err))
			continue
		}
		log.Info("Deleted holding record",
			zap.String("shipment_id", r.ShipmentID),
			zap.String("order_number", r.OrderNumber),
			zap.Int("age_days", r.AgeDays()),
		)
		result.Deleted++
	}
	telemetry.SetAttributes(span, "deleted", result.Deleted)
	log.Info("Cleanup complete", zap.Int("deleted", result.Deleted), zap.Int("stale", len(stale)))
	return result, nil
}
