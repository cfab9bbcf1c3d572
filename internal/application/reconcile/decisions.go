// Package reconcile runs the two reconciliation flows between QuikPAK and
// ShipStation: order submission (flow 1) and shipment confirmation (flow 2).
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/qpss/middleware/internal/domain/integration"
)

// LookupDecision is the operator's answer when the item lookup store is unreachable
type LookupDecision int

const (
	// LookupContinue submits every order of the run without items
	LookupContinue LookupDecision = iota
	// LookupAbort ends the run before any file is touched
	LookupAbort
)

// ParseLookupDecision parses "continue" or "abort"
func ParseLookupDecision(s string) (LookupDecision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continue":
		return LookupContinue, nil
	case "abort":
		return LookupAbort, nil
	}
	return LookupAbort, fmt.Errorf("invalid lookup decision %q, use continue or abort", s)
}

// HeldDecision is the operator's single answer for all held orders of a run
type HeldDecision int

const (
	// HeldSkip leaves every held pair in the inbound folder for a later run
	HeldSkip HeldDecision = iota
	// HeldPush submits every held order without items
	HeldPush
)

// ParseHeldDecision parses "push" or "skip"
func ParseHeldDecision(s string) (HeldDecision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "push":
		return HeldPush, nil
	case "skip":
		return HeldSkip, nil
	}
	return HeldSkip, fmt.Errorf("invalid held decision %q, use push or skip", s)
}

// HeldOrder is an order whose items could not be resolved
type HeldOrder struct {
	Pair    integration.FilePair
	Record  *integration.OrderRecord
	Account integration.Account
	Reason  string
}

// ShipmentID returns the held order's shipment identifier
func (h HeldOrder) ShipmentID() string {
	return h.Pair.ShipmentID
}

// Decider answers the operator decisions of a run. Implementations may
// prompt a terminal or answer from fixed policy when running unattended.
type Decider interface {
	LookupUnavailable(ctx context.Context, cause error) (LookupDecision, error)
	HeldOrders(ctx context.Context, held []HeldOrder) (HeldDecision, error)
}

// Confirmer approves a destructive maintenance step
type Confirmer interface {
	ConfirmCleanup(ctx context.Context, stale []integration.StaleRecord) (bool, error)
}

// FixedDecider answers every decision from policy. Unattended runs use it
// so a held order never waits on a terminal.
type FixedDecider struct {
	Lookup LookupDecision
	Held   HeldDecision
}

// LookupUnavailable returns the fixed lookup policy
func (d FixedDecider) LookupUnavailable(context.Context, error) (LookupDecision, error) {
	return d.Lookup, nil
}

// HeldOrders returns the fixed held-order policy
func (d FixedDecider) HeldOrders(context.Context, []HeldOrder) (HeldDecision, error) {
	return d.Held, nil
}
