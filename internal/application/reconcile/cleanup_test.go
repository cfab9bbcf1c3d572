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

func seedTank(tank *memTank, ages map[string]time.Duration) {
	for sid, age := range ages {
		rec := integration.NewHoldingRecord(testRecord(sid, "US", 1), integration.AccountDomestic, nil, testNow().Add(-age))
		tank.records[sid] = rec
	}
}

func TestCleanupService_Run(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name        string
		days        int
		answer      bool
		wantStale   []string
		wantDeleted int
		wantLeft    int
		wantPrompt  bool
	}{
		{
			name:        "confirmed deletes stale records",
			days:        30,
			answer:      true,
			wantStale:   []string{"SHIP0000000001", "SHIP0000000002"},
			wantDeleted: 2,
			wantLeft:    1,
			wantPrompt:  true,
		},
		{
			name:       "declined deletes nothing",
			days:       30,
			answer:     false,
			wantStale:  []string{"SHIP0000000001", "SHIP0000000002"},
			wantLeft:   3,
			wantPrompt: true,
		},
		{
			name:      "nothing stale skips the prompt",
			days:      90,
			answer:    true,
			wantStale: nil,
			wantLeft:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tank := newMemTank()
			seedTank(tank, map[string]time.Duration{
				"SHIP0000000001": 45 * day,
				"SHIP0000000002": 31 * day,
				"SHIP0000000003": 2 * day,
			})
			confirmer := &recordingConfirmer{answer: tt.answer}

			result, err := NewCleanupService(tank, confirmer).Run(testContext(t), tt.days)
			require.NoError(t, err)

			var ids []string
			for _, s := range result.Stale {
				ids = append(ids, s.ShipmentID)
			}
			assert.Equal(t, tt.wantStale, ids)
			assert.Equal(t, tt.wantDeleted, result.Deleted)
			assert.Len(t, tank.records, tt.wantLeft)
			assert.Equal(t, tt.wantPrompt, confirmer.calls == 1)
		})
	}
}

func TestCleanupService_StaleRecordDetails(t *testing.T) {
	tank := newMemTank()
	seedTank(tank, map[string]time.Duration{"SHIP0000000010": 45 * 24 * time.Hour})

	result, err := NewCleanupService(tank, &recordingConfirmer{}).Run(testContext(t), 7)
	require.NoError(t, err)
	require.Len(t, result.Stale, 1)
	assert.Equal(t, "HO1002_SHIP0000000010", result.Stale[0].OrderNumber)
	assert.Equal(t, 45, result.Stale[0].AgeDays())
	assert.False(t, result.Confirmed)
}

func TestCleanupService_Errors(t *testing.T) {
	t.Run("non positive days", func(t *testing.T) {
		for _, days := range []int{0, -3} {
			_, err := NewCleanupService(newMemTank(), &recordingConfirmer{}).Run(testContext(t), days)
			assert.Error(t, err)
		}
	})

	t.Run("confirmation error", func(t *testing.T) {
		tank := newMemTank()
		seedTank(tank, map[string]time.Duration{"SHIP0000000020": 40 * 24 * time.Hour})
		confirmer := &recordingConfirmer{answer: true, err: fmt.Errorf("EOF")}

		_, err := NewCleanupService(tank, confirmer).Run(testContext(t), 30)
		require.Error(t, err)
		assert.Len(t, tank.records, 1)
	})
}

func TestStoreService_ListStores(t *testing.T) {
	domestic := newMockGateway(integration.AccountDomestic)
	domestic.On("ListStores", mock.Anything).Return([]integration.Store{
		{StoreID: 300, StoreName: "Wholesale", MarketplaceName: "ShipStation", Active: true},
		{StoreID: 120, StoreName: "Web Store", MarketplaceName: "Shopify", Active: true},
	}, nil)
	svc := NewStoreService([]integration.OrderGateway{domestic})

	stores, err := svc.ListStores(context.Background(), integration.AccountDomestic)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, 120, stores[0].StoreID)

	_, err = svc.ListStores(context.Background(), integration.AccountForeign)
	assert.ErrorIs(t, err, integration.ErrAccountNotConfigured)
	assert.Contains(t, err.Error(), "CA account")
}
