package quikpak

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/fsutil"
)

// emptyText pads empty elements the way the downstream sample files do
const emptyText = "\n        "

const xmlDeclaration = "<?xml version='1.0' encoding='UTF-8'?>\n"

// ShipFrom is the warehouse block of every outbound header
type ShipFrom struct {
	AccountNo string
	Name      string
	Addr1     string
	Addr2     string
	Addr3     string
	Addr4     string
	City      string
	State     string
	Zip       string
	Country   string
	Contact   string
	Phone     string
}

// EmitterConfig configures the outbound emitter
type EmitterConfig struct {
	Dir      string
	ShipFrom ShipFrom
	// Now stamps the file names; time.Now when nil
	Now func() time.Time
}

// Emitter writes HEADEROUT/DETAILOUT pairs for confirmed shipments
type Emitter struct {
	cfg EmitterConfig
}

var _ integration.OutboundEmitter = (*Emitter)(nil)

// NewEmitter creates an outbound emitter
func NewEmitter(cfg EmitterConfig) *Emitter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Emitter{cfg: cfg}
}

// FileNames returns the header and detail file names for a shipment at t
func FileNames(shipmentID string, t time.Time) (header, detail string) {
	stamp := t.Format("20060102_150405")
	return fmt.Sprintf("HEADEROUT_%s_%s.XML", shipmentID, stamp),
		fmt.Sprintf("DETAILOUT_%s_%s.XML", shipmentID, stamp)
}

// Emit renders and writes both files. Both are staged as temp files and renamed
// into place, header first; if the detail cannot be placed the header is removed.
func (e *Emitter) Emit(ctx context.Context, event integration.ShipmentEvent, rec *integration.HoldingRecord) (*integration.EmittedFiles, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header := RenderHeader(event, rec, e.cfg.ShipFrom)
	detail := RenderDetail(event, rec)

	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create outbound folder: %w", err)
	}
	headerName, detailName := FileNames(rec.ShipmentID, e.cfg.Now())
	headerPath := filepath.Join(e.cfg.Dir, headerName)
	detailPath := filepath.Join(e.cfg.Dir, detailName)

	headerTmp, err := stage(e.cfg.Dir, header)
	if err != nil {
		return nil, err
	}
	detailTmp, err := stage(e.cfg.Dir, detail)
	if err != nil {
		_ = os.Remove(headerTmp)
		return nil, err
	}

	if err := os.Rename(headerTmp, headerPath); err != nil {
		_ = os.Remove(headerTmp)
		_ = os.Remove(detailTmp)
		return nil, fmt.Errorf("place %s: %w", headerName, err)
	}
	if err := os.Rename(detailTmp, detailPath); err != nil {
		_ = os.Remove(detailTmp)
		_ = os.Remove(headerPath)
		return nil, fmt.Errorf("place %s: %w", detailName, err)
	}

	return &integration.EmittedFiles{HeaderPath: headerPath, DetailPath: detailPath}, nil
}

// stage writes content to a hidden temp file that the downstream poller ignores
func stage(dir string, content []byte) (string, error) {
	return fsutil.StageFile(dir, ".qpss-out-*.tmp", content)
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

type xmlWriter struct {
	buf bytes.Buffer
}

func (w *xmlWriter) open(depth int, name string) {
	w.indent(depth)
	w.buf.WriteString("<" + name + ">\n")
}

func (w *xmlWriter) close(depth int, name string) {
	w.indent(depth)
	w.buf.WriteString("</" + name + ">\n")
}

func (w *xmlWriter) leaf(depth int, name, text string) {
	w.indent(depth)
	w.buf.WriteString("<" + name + ">")
	if text == "" {
		w.buf.WriteString(emptyText)
	} else {
		_ = xml.EscapeText(&w.buf, []byte(text))
	}
	w.buf.WriteString("</" + name + ">\n")
}

func (w *xmlWriter) indent(depth int) {
	for i := 0; i < depth; i++ {
		w.buf.WriteString("    ")
	}
}

// RenderHeader builds the SmartlincOutHeader document
func RenderHeader(event integration.ShipmentEvent, rec *integration.HoldingRecord, from ShipFrom) []byte {
	w := &xmlWriter{}
	w.buf.WriteString(xmlDeclaration)
	w.open(0, "SmartlincOutHeader")
	w.open(1, "OutQueueHeader")

	to := rec.ShipTo
	isCOD := rec.IsCOD
	if isCOD == "" {
		isCOD = "0"
	}
	collType := rec.CollType
	if collType == "" {
		collType = "S"
	}
	residential := "0"
	if to.Residential {
		residential = "1"
	}

	fields := [][2]string{
		{"ShipmentID", rec.ShipmentID},
		{"P_ShipmentID", rec.OrderNumber},
		{"void", "N"},
		{"errormessage", ""},
		{"carriercode", event.CarrierCode},
		{"carrierservice", event.ServiceCode},
		{"shipvia", rec.ShipVia},
		{"trackingNumber", event.TrackingNumber},
		{"shipDate", event.ShipDateCompact()},
		{"shiptoID", to.Company},
		{"shipName", to.Name},
		{"shipAddr1", to.Street1},
		{"shipAddr2", to.Street2},
		{"shipAddr3", to.Street3},
		{"shipCity", to.City},
		{"shipState", to.State},
		{"shipCountry", to.Country},
		{"shipzip", to.PostalCode},
		{"shipContact", ""},
		{"shipPhone", to.Phone},
		{"shipEmail", to.Email},
		{"isCOD", isCOD},
		{"isResidential", residential},
		{"reference", ""},
		{"colltype", collType},
		{"shipperCost", "0.0000"},
		{"actualCost", ""},
		{"customerCharge", ""},
		{"tpAccountno", ""},
		{"tpName", ""},
		{"tpAddr1", ""},
		{"tpAddr2", ""},
		{"tpAddr3", ""},
		{"tpCity", ""},
		{"tpState", ""},
		{"tpZip", ""},
		{"tpCountry", ""},
		{"tpContact", ""},
		{"tpPhone", ""},
		{"SFACCOUNTNO", from.AccountNo},
		{"sfName", from.Name},
		{"sfAddr1", from.Addr1},
		{"sfAddr2", from.Addr2},
		{"sfAddr3", from.Addr3},
		{"sfAddr4", from.Addr4},
		{"sfCity", from.City},
		{"sfState", from.State},
		{"sfZip", from.Zip},
		{"sfCountry", from.Country},
		{"sfContact", from.Contact},
		{"sfPhone", from.Phone},
	}
	for _, f := range fields {
		w.leaf(2, f[0], f[1])
	}

	w.close(1, "OutQueueHeader")
	w.close(0, "SmartlincOutHeader")
	return w.buf.Bytes()
}

// RenderDetail builds the SmartlincOutDetail document: one DetailLine per package,
// or a single line from the shipment's own weight and dimensions when there are none.
func RenderDetail(event integration.ShipmentEvent, rec *integration.HoldingRecord) []byte {
	w := &xmlWriter{}
	w.buf.WriteString(xmlDeclaration)
	w.open(0, "SmartlincOutDetail")

	if len(rec.Packages) > 0 {
		for _, p := range rec.Packages {
			units := p.Units
			if units == "" {
				units = DefaultUnits
			}
			writeDetailLine(w, rec, event.TrackingNumber, detailLine{
				packageID:     p.PackageID,
				packageNo:     strconv.Itoa(max(p.PackageNo, 1)),
				weight:        p.Weight,
				length:        p.Length,
				width:         p.Width,
				height:        p.Height,
				declaredValue: p.DeclaredValue,
				codAmount:     p.CODAmount,
				units:         units,
				comment:       p.Comment,
			})
		}
	} else {
		line := detailLine{packageNo: "1", units: DefaultUnits}
		if event.Weight != nil {
			weight := decimal.NewFromFloat(event.Weight.Value)
			if event.Weight.Units == "" || event.Weight.Units == "ounces" {
				weight = weight.Div(decimal.NewFromInt(16))
			}
			line.weight = weight
		}
		if event.Dimensions != nil {
			line.length = decimal.NewFromFloat(event.Dimensions.Length)
			line.width = decimal.NewFromFloat(event.Dimensions.Width)
			line.height = decimal.NewFromFloat(event.Dimensions.Height)
		}
		writeDetailLine(w, rec, event.TrackingNumber, line)
	}

	w.close(0, "SmartlincOutDetail")
	return w.buf.Bytes()
}

type detailLine struct {
	packageID     string
	packageNo     string
	weight        decimal.Decimal
	length        decimal.Decimal
	width         decimal.Decimal
	height        decimal.Decimal
	declaredValue decimal.Decimal
	codAmount     decimal.Decimal
	units         string
	comment       string
}

func writeDetailLine(w *xmlWriter, rec *integration.HoldingRecord, tracking string, l detailLine) {
	w.open(1, "DetailLine")
	fields := [][2]string{
		{"ShipmentID", rec.ShipmentID},
		{"P_ShipmentID", rec.OrderNumber},
		{"packageID", l.packageID},
		{"packageno", l.packageNo},
		{"weight", l.weight.StringFixed(6)},
		{"length", l.length.StringFixed(6)},
		{"width", l.width.StringFixed(6)},
		{"height", l.height.StringFixed(6)},
		{"declaredValue", l.declaredValue.StringFixed(4)},
		{"codAmount", l.codAmount.StringFixed(4)},
		{"units", l.units},
		{"packageCost", "0.0"},
		{"trackingNumber", tracking},
		{"comment", l.comment},
	}
	for _, f := range fields {
		w.leaf(2, f[0], f[1])
	}
	w.close(1, "DetailLine")
}
