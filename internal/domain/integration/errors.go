package integration

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

var (
	// ErrMalformedInput indicates bad file pairing or content. Never retried.
	ErrMalformedInput = errors.New("integration: malformed input")
	// ErrUnpaired indicates a header without detail or a detail without header.
	ErrUnpaired = errors.New("integration: unpaired file")
	// ErrLookupUnavailable indicates the item lookup store cannot be reached.
	ErrLookupUnavailable = errors.New("integration: item lookup unavailable")
	// ErrLookupMiss indicates the lookup store is reachable but returned no items.
	ErrLookupMiss = errors.New("integration: no items found for order")
	// ErrTransient indicates a retryable failure (timeout, rate limit, 5xx).
	ErrTransient = errors.New("integration: transient failure")
	// ErrPermanent indicates a non-retryable rejection (4xx, auth, validation).
	ErrPermanent = errors.New("integration: permanent failure")
	// ErrOrphaned marks a holding record that never received a shipment event.
	ErrOrphaned = errors.New("integration: orphaned holding record")
	// ErrHoldingRecordNotFound indicates no holding record exists for a shipment ID.
	ErrHoldingRecordNotFound = errors.New("integration: holding record not found")
	// ErrAccountNotConfigured indicates a request for an account with no credentials.
	ErrAccountNotConfigured = errors.New("integration: account not configured")
)

// MalformedInputError reports the field that made an inbound file pair unusable.
type MalformedInputError struct {
	ShipmentID string
	Field      string
	Reason     string
}

// NewMalformedInputError creates a MalformedInputError for the given field
func NewMalformedInputError(shipmentID, field, reason string) *MalformedInputError {
	return &MalformedInputError{ShipmentID: shipmentID, Field: field, Reason: reason}
}

func (e *MalformedInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed input: %s", e.Reason)
	}
	return fmt.Sprintf("malformed input: field %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedInput
func (e *MalformedInputError) Unwrap() error {
	return ErrMalformedInput
}

// IsTransient reports whether err should leave its input untouched for a later run
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err should route its input to the error archive
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent) || errors.Is(err, ErrMalformedInput)
}
