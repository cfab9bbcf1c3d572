package reconcile

import "fmt"

// Flow names, used for logging, spans and metrics labels
const (
	FlowInbound  = "flow1"
	FlowOutbound = "flow2"
	FlowCleanup  = "cleanup"
)

// InboundSummary counts the outcomes of one inbound run.
// Processed, Skipped, Errors and LeftForRetry partition the pairs that were
// read. Held counts the orders that went to the end-of-run decision; each of
// them is also counted in the partition by the outcome of that decision.
type InboundSummary struct {
	Processed    int
	Skipped      int
	Held         int
	Errors       int
	LeftForRetry int
	Unpaired     int
	// Aborted is set when the operator stopped the run at the lookup prompt
	Aborted bool
	// HeldOrders lists the orders held for the end-of-run decision
	HeldOrders []HeldOrder
}

// Counts returns the summary as outcome counts for metrics
func (s *InboundSummary) Counts() map[string]int {
	return map[string]int{
		"processed":      s.Processed,
		"skipped":        s.Skipped,
		"held":           s.Held,
		"errors":         s.Errors,
		"left_for_retry": s.LeftForRetry,
		"unpaired":       s.Unpaired,
	}
}

func (s *InboundSummary) String() string {
	return fmt.Sprintf("%d processed, %d skipped, %d errors, %d left for retry (%d held for decision, included above)",
		s.Processed, s.Skipped, s.Errors, s.LeftForRetry, s.Held)
}

// OutboundSummary counts the outcomes of one reconciliation poll
type OutboundSummary struct {
	Fetched   int
	Processed int
	Skipped   int
	Errors    int
	// CursorAdvanced is false when a failure held the poll date for the next run
	CursorAdvanced bool
}

// Counts returns the summary as outcome counts for metrics
func (s *OutboundSummary) Counts() map[string]int {
	return map[string]int{
		"fetched":   s.Fetched,
		"processed": s.Processed,
		"skipped":   s.Skipped,
		"errors":    s.Errors,
	}
}

func (s *OutboundSummary) String() string {
	return fmt.Sprintf("%d processed, %d skipped, %d errors", s.Processed, s.Skipped, s.Errors)
}
