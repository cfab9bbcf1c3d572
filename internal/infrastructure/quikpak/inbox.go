package quikpak

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/fsutil"
)

// InboxConfig holds the inbound folders
type InboxConfig struct {
	Dir          string
	ProcessedDir string
	ErrorDir     string
}

// Inbox is the inbound folder: it pairs, parses and archives HeaderIn/DetailIn files
type Inbox struct {
	cfg InboxConfig
}

var _ integration.Inbox = (*Inbox)(nil)

// NewInbox creates an inbox over the configured folders
func NewInbox(cfg InboxConfig) *Inbox {
	return &Inbox{cfg: cfg}
}

// Scan pairs the files currently in the inbound folder
func (i *Inbox) Scan(ctx context.Context) ([]integration.FilePair, []integration.UnpairedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return Scan(i.cfg.Dir)
}

// Parse reads and parses a pair
func (i *Inbox) Parse(ctx context.Context, pair integration.FilePair) (*integration.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParsePair(pair)
}

// MarkProcessed moves every file of the pair to the Processed folder
func (i *Inbox) MarkProcessed(_ context.Context, pair integration.FilePair) error {
	return moveAll(pair.Paths(), i.cfg.ProcessedDir)
}

// MarkFailed moves the pair to the Error folder and writes <ShipmentID>.error.txt beside it
func (i *Inbox) MarkFailed(_ context.Context, pair integration.FilePair, cause error) error {
	moveErr := moveAll(pair.Paths(), i.cfg.ErrorDir)

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	content := fmt.Sprintf("ShipmentID: %s\nError: %s\n", pair.ShipmentID, msg)
	path := filepath.Join(i.cfg.ErrorDir, pair.ShipmentID+".error.txt")
	if err := fsutil.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return errors.Join(moveErr, fmt.Errorf("write error description: %w", err))
	}
	return moveErr
}

func moveAll(paths []string, dir string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := fsutil.MoveToDir(p, dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
