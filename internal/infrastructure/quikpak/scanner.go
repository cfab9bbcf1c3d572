// Package quikpak reads and writes the QuikPAK shared-drive exchange files:
// inbound HeaderIn/DetailIn pairs and outbound HEADEROUT/DETAILOUT pairs.
package quikpak

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/qpss/middleware/internal/domain/integration"
)

// Inbound file name patterns, e.g. HeaderIn_SHIP0000447526_20260213-063014.xml
var (
	headerPattern = regexp.MustCompile(`(?i)^HeaderIn_([A-Za-z]+\d+)_.*\.xml$`)
	detailPattern = regexp.MustCompile(`(?i)^DetailIn_([A-Za-z]+\d+)_.*\.xml$`)
)

// Roles reported for unpaired files
const (
	RoleHeader = "header"
	RoleDetail = "detail"
)

// Scan lists the files directly in dir and matches headers to details by shipment ID.
// Files whose counterpart has not arrived are returned as unpaired and left in place.
func Scan(dir string) ([]integration.FilePair, []integration.UnpairedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read inbound folder %s: %w", dir, err)
	}

	headers := make(map[string][]string)
	details := make(map[string][]string)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if m := headerPattern.FindStringSubmatch(name); m != nil {
			headers[m[1]] = append(headers[m[1]], filepath.Join(dir, name))
			continue
		}
		if m := detailPattern.FindStringSubmatch(name); m != nil {
			details[m[1]] = append(details[m[1]], filepath.Join(dir, name))
		}
	}

	ids := make(map[string]struct{}, len(headers)+len(details))
	for sid := range headers {
		ids[sid] = struct{}{}
	}
	for sid := range details {
		ids[sid] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for sid := range ids {
		sorted = append(sorted, sid)
	}
	sort.Strings(sorted)

	var pairs []integration.FilePair
	var unpaired []integration.UnpairedFile
	for _, sid := range sorted {
		hs, ds := headers[sid], details[sid]
		sort.Strings(hs)
		sort.Strings(ds)
		switch {
		case len(hs) > 0 && len(ds) > 0:
			// File names end in a timestamp, so the last header is the newest
			pairs = append(pairs, integration.FilePair{
				ShipmentID:  sid,
				HeaderPath:  hs[len(hs)-1],
				DetailPaths: ds,
				Superseded:  hs[:len(hs)-1],
			})
		case len(hs) > 0:
			for _, p := range hs {
				unpaired = append(unpaired, integration.UnpairedFile{ShipmentID: sid, Path: p, Role: RoleHeader})
			}
		default:
			for _, p := range ds {
				unpaired = append(unpaired, integration.UnpairedFile{ShipmentID: sid, Path: p, Role: RoleDetail})
			}
		}
	}
	return pairs, unpaired, nil
}
