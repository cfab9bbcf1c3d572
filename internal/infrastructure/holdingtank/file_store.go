// Package holdingtank stores holding records between order submission and
// shipment confirmation.
package holdingtank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/fsutil"
)

const recordExt = ".json"

// unknownOrder is reported for records whose content cannot be read
const unknownOrder = "?"

// FileStore keeps one indented JSON file per shipment, named <ShipmentID>.json.
// Files are replaced atomically and can be inspected or deleted by hand.
type FileStore struct {
	dir string
	now func() time.Time
}

var _ integration.HoldingTank = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir, creating it when missing
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create holding tank dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Dir returns the folder holding the records
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(shipmentID string) (string, error) {
	if !integration.IsValidShipmentID(shipmentID) {
		return "", fmt.Errorf("invalid shipment id %q", shipmentID)
	}
	return filepath.Join(s.dir, shipmentID+recordExt), nil
}

// Save writes rec, replacing any record for the same shipment
func (s *FileStore) Save(ctx context.Context, rec *integration.HoldingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(rec.ShipmentID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode holding record %s: %w", rec.ShipmentID, err)
	}
	if err := fsutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save holding record %s: %w", rec.ShipmentID, err)
	}
	return nil
}

// Load reads the record for shipmentID
func (s *FileStore) Load(ctx context.Context, shipmentID string) (*integration.HoldingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(shipmentID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", integration.ErrHoldingRecordNotFound, shipmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("read holding record %s: %w", shipmentID, err)
	}
	var rec integration.HoldingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode holding record %s: %w", shipmentID, err)
	}
	if rec.ShipmentID == "" {
		rec.ShipmentID = shipmentID
	}
	return &rec, nil
}

// Delete removes the record; a missing record is not an error
func (s *FileStore) Delete(ctx context.Context, shipmentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(shipmentID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete holding record %s: %w", shipmentID, err)
	}
	return nil
}

// ListOlderThan returns records created more than age ago, by shipment ID.
// A record without a readable created_at is aged by its modification time.
func (s *FileStore) ListOlderThan(ctx context.Context, age time.Duration) ([]integration.StaleRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list holding tank: %w", err)
	}

	now := s.now()
	var stale []integration.StaleRecord
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(name), recordExt) {
			continue
		}
		shipmentID := strings.TrimSuffix(name, filepath.Ext(name))
		created, orderNumber, err := s.createdAt(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		if recAge := now.Sub(created); recAge > age {
			stale = append(stale, integration.StaleRecord{
				ShipmentID:  shipmentID,
				OrderNumber: orderNumber,
				Age:         recAge,
			})
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ShipmentID < stale[j].ShipmentID })
	return stale, nil
}

func (s *FileStore) createdAt(path string) (time.Time, string, error) {
	var rec integration.HoldingRecord
	if data, err := os.ReadFile(path); err == nil && json.Unmarshal(data, &rec) == nil && !rec.CreatedAt.IsZero() {
		orderNumber := rec.OrderNumber
		if orderNumber == "" {
			orderNumber = unknownOrder
		}
		return rec.CreatedAt.Time, orderNumber, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("stat holding record: %w", err)
	}
	return info.ModTime(), unknownOrder, nil
}
