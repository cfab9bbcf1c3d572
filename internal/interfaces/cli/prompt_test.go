package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/qpss/middleware/internal/application/reconcile"
	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompter_LookupUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    reconcile.LookupDecision
		wantErr error
	}{
		{"continue", "c\n", reconcile.LookupContinue, nil},
		{"abort", " A \n", reconcile.LookupAbort, nil},
		{"reprompts until valid", "x\n\nC\n", reconcile.LookupContinue, nil},
		{"answer without newline", "a", reconcile.LookupAbort, nil},
		{"end of input", "maybe\n", reconcile.LookupAbort, errNoAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)

			got, err := p.LookupUnavailable(context.Background(), errors.New("login timeout expired"))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "login timeout expired")
		})
	}
}

func TestPrompter_RepromptMessage(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("x\nc\n"), &out)

	_, err := p.LookupUnavailable(context.Background(), errors.New("down"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Please enter C or A.")
}

func TestPrompter_HeldOrders(t *testing.T) {
	held := []reconcile.HeldOrder{
		{
			Pair:   integration.FilePair{ShipmentID: "SHIP0000447530"},
			Record: &integration.OrderRecord{Header: integration.ShipmentHeader{ShipmentID: "SHIP0000447530", OrderNo: "ORD0469657"}},
			Reason: "order ORD0469657 not found in Sage 300",
		},
	}

	t.Run("push", func(t *testing.T) {
		var out bytes.Buffer
		got, err := NewPrompter(strings.NewReader("p\n"), &out).HeldOrders(context.Background(), held)
		require.NoError(t, err)
		assert.Equal(t, reconcile.HeldPush, got)
		assert.Contains(t, out.String(), "SHIP0000447530")
		assert.Contains(t, out.String(), "ORD0469657")
	})

	t.Run("skip", func(t *testing.T) {
		var out bytes.Buffer
		got, err := NewPrompter(strings.NewReader("S\n"), &out).HeldOrders(context.Background(), held)
		require.NoError(t, err)
		assert.Equal(t, reconcile.HeldSkip, got)
		assert.Contains(t, out.String(), "Files left in QuikPAKIN")
	})
}

func TestPrompter_ConfirmCleanup(t *testing.T) {
	stale := []integration.StaleRecord{
		{ShipmentID: "SHIP0000000001", OrderNumber: "HO1002_SHIP0000000001", Age: 45 * 24 * time.Hour},
	}

	var out bytes.Buffer
	ok, err := NewPrompter(strings.NewReader("n\n"), &out).ConfirmCleanup(context.Background(), stale)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "45d")
	assert.Contains(t, out.String(), "Cancelled")

	ok, err = NewPrompter(strings.NewReader("y\n"), &bytes.Buffer{}).ConfirmCleanup(context.Background(), stale)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPrompter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPrompter(strings.NewReader("c\n"), &bytes.Buffer{}).LookupUnavailable(ctx, errors.New("down"))
	assert.ErrorIs(t, err, context.Canceled)
}
