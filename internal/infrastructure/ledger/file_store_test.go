package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qpss/middleware/internal/domain/integration"
)

func TestFileStore_Load(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantDate  string
		wantIDs   []string
		wantError bool
	}{
		{
			name:     "current format",
			content:  `{"last_poll_date": "2026-10-12", "processed_shipment_ids": ["101", "102"]}`,
			wantDate: "2026-10-12",
			wantIDs:  []string{"101", "102"},
		},
		{
			name:     "legacy integer ids",
			content:  `{"last_poll_date": "2026-10-12", "processed_shipment_ids": [101, "102", 103]}`,
			wantDate: "2026-10-12",
			wantIDs:  []string{"101", "102", "103"},
		},
		{
			name:    "first run state",
			content: `{"last_poll_date": null, "processed_shipment_ids": []}`,
			wantIDs: []string{},
		},
		{
			name:     "date with time part",
			content:  `{"last_poll_date": "2026-10-12T00:00:00", "processed_shipment_ids": []}`,
			wantDate: "2026-10-12",
			wantIDs:  []string{},
		},
		{
			name:      "corrupt file",
			content:   `{"last_poll_date": `,
			wantError: true,
		},
		{
			name:      "bad date",
			content:   `{"last_poll_date": "yesterday"}`,
			wantError: true,
		},
		{
			name:      "bad id",
			content:   `{"processed_shipment_ids": [true]}`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "flow2_state.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			ledger, err := NewFileStore(path).Load(ctx)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantDate == "" {
				assert.True(t, ledger.LastPollDate.IsZero())
			} else {
				assert.Equal(t, tt.wantDate, ledger.LastPollDate.Format(integration.PollDateLayout))
			}
			assert.Equal(t, tt.wantIDs, ledger.Processed.IDs())
		})
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	ledger, err := NewFileStore(filepath.Join(t.TempDir(), "absent.json")).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ledger.LastPollDate.IsZero())
	assert.Equal(t, 0, ledger.Processed.Len())
}

func TestFileStore_LoadKeepsNewestPastCap(t *testing.T) {
	ids := make([]string, 0, integration.MaxProcessedIDs+20)
	for i := 1; i <= integration.MaxProcessedIDs+20; i++ {
		ids = append(ids, fmt.Sprintf("%q", fmt.Sprint(i)))
	}
	content := fmt.Sprintf(`{"last_poll_date": "2026-10-01", "processed_shipment_ids": [%s]}`, strings.Join(ids, ","))
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ledger, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, integration.MaxProcessedIDs, ledger.Processed.Len())
	assert.False(t, ledger.Processed.Contains("20"))
	assert.True(t, ledger.Processed.Contains("21"))
	assert.True(t, ledger.Processed.Contains(fmt.Sprint(integration.MaxProcessedIDs+20)))
}

func TestFileStore_SaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "flow2_state.json")
	store := NewFileStore(path)

	ledger := integration.NewLedger()
	ledger.Advance(time.Date(2026, 10, 19, 15, 4, 5, 0, time.Local))
	ledger.Processed.Add("101")
	ledger.Processed.Add("205")
	require.NoError(t, store.Save(ctx, ledger))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"last_poll_date": "2026-10-19", "processed_shipment_ids": ["101", "205"]}`, string(data))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ledger.LastPollDate.Equal(loaded.LastPollDate))
	assert.Equal(t, []string{"101", "205"}, loaded.Processed.IDs())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_SaveEmptyLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, NewFileStore(path).Save(context.Background(), integration.NewLedger()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"last_poll_date": null, "processed_shipment_ids": []}`, string(data))
}
