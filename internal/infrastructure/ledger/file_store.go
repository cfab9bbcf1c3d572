// Package ledger persists the shipment poller's progress ledger.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/fsutil"
)

// document is the on-disk layout, kept editable by hand:
//
//	{"last_poll_date": "2026-10-19", "processed_shipment_ids": ["101", "102"]}
type document struct {
	LastPollDate *string   `json:"last_poll_date"`
	ProcessedIDs []eventID `json:"processed_shipment_ids"`
}

// eventID accepts both JSON strings and the integer ids older files carry
type eventID string

func (e *eventID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = eventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid shipment id %s", string(b))
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("invalid shipment id %s", string(b))
	}
	*e = eventID(n.String())
	return nil
}

// FileStore keeps the ledger in a single JSON file, replaced atomically on save
type FileStore struct {
	path string
}

var _ integration.LedgerStore = (*FileStore)(nil)

// NewFileStore creates a store for the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the ledger file path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the ledger. A missing file is an empty ledger.
// When the file lists more IDs than the cap, the newest are kept.
func (s *FileStore) Load(ctx context.Context) (*integration.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return integration.NewLedger(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", s.path, err)
	}

	ledger := integration.NewLedger()
	if doc.LastPollDate != nil && strings.TrimSpace(*doc.LastPollDate) != "" {
		raw := strings.TrimSpace(*doc.LastPollDate)
		if len(raw) > len(integration.PollDateLayout) {
			raw = raw[:len(integration.PollDateLayout)]
		}
		date, err := time.ParseInLocation(integration.PollDateLayout, raw, time.Local)
		if err != nil {
			return nil, fmt.Errorf("decode ledger %s: last_poll_date: %w", s.path, err)
		}
		ledger.LastPollDate = date
	}
	for _, id := range doc.ProcessedIDs {
		ledger.Processed.Add(string(id))
	}
	return ledger, nil
}

// Save replaces the ledger file
func (s *FileStore) Save(ctx context.Context, ledger *integration.Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := document{ProcessedIDs: make([]eventID, 0, ledger.Processed.Len())}
	if !ledger.LastPollDate.IsZero() {
		date := ledger.LastPollDate.Format(integration.PollDateLayout)
		doc.LastPollDate = &date
	}
	for _, id := range ledger.Processed.IDs() {
		doc.ProcessedIDs = append(doc.ProcessedIDs, eventID(id))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}
	if err := fsutil.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}
