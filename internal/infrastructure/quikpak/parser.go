package quikpak

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/qpss/middleware/internal/domain/integration"
)

// DefaultUnits is used when a package omits its weight units
const DefaultUnits = "LB"

type headerXML struct {
	XMLName         xml.Name `xml:"ProcessWeaverInHeader"`
	ShipmentID      string   `xml:"ShipmentID"`
	BOLNo           string   `xml:"BOLNo"`
	CarrierCode     string   `xml:"carriercode"`
	CarrierService  string   `xml:"carrierservice"`
	CollType        string   `xml:"colltype"`
	IsCOD           string   `xml:"iscod"`
	Location        string   `xml:"location"`
	IsResidential   string   `xml:"isresidential"`
	OrderNo         string   `xml:"orderno"`
	OrderDate       string   `xml:"order_date"`
	PONumber        string   `xml:"ponumber"`
	ShipAddr1       string   `xml:"shipaddr1"`
	ShipAddr2       string   `xml:"shipaddr2"`
	ShipAddr3       string   `xml:"shipaddr3"`
	ShipCity        string   `xml:"shipcity"`
	ShipContact     string   `xml:"shipcontact"`
	ShipCountry     string   `xml:"shipcountry"`
	ShipDate        string   `xml:"shipdate"`
	ShipEmail       string   `xml:"shipemail"`
	ShipName        string   `xml:"shipname"`
	ShipPhone       string   `xml:"shipphone"`
	ShipState       string   `xml:"shipstate"`
	ShipViaCode     string   `xml:"shipviacode"`
	ShipZip         string   `xml:"shipzip"`
	Void            string   `xml:"void"`
	PKNumber        string   `xml:"pknumber"`
	CustomerCode    string   `xml:"customercode"`
	OptionalText001 string   `xml:"optionaltext001"`
	OptionalText009 string   `xml:"optionaltext009"`
	OptionalText010 string   `xml:"optionaltext010"`
	OrgID           string   `xml:"OrgID"`
	TrackingNumber  string   `xml:"trackingNumber"`
	RateOnly        string   `xml:"RateOnly"`
}

type detailXML struct {
	XMLName  xml.Name     `xml:"ProcessWeaverInDetail"`
	Packages []packageXML `xml:"InQueueDetail"`
}

type packageXML struct {
	ShipmentID    string `xml:"ShipmentID"`
	CODAmount     string `xml:"codAmount"`
	Comment       string `xml:"comment"`
	DeclaredValue string `xml:"declaredValue"`
	Height        string `xml:"height"`
	Length        string `xml:"length"`
	PackageID     string `xml:"packageID"`
	PackageNo     string `xml:"packageno"`
	Units         string `xml:"units"`
	Weight        string `xml:"weight"`
	Width         string `xml:"width"`
}

// ParsePair reads a file pair from disk and builds the order record
func ParsePair(pair integration.FilePair) (*integration.OrderRecord, error) {
	header, err := os.ReadFile(pair.HeaderPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pair.HeaderPath, err)
	}
	details := make([][]byte, 0, len(pair.DetailPaths))
	for _, p := range pair.DetailPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		details = append(details, data)
	}
	return Parse(pair.ShipmentID, header, details...)
}

// Parse builds an order record from header content and its detail content(s).
// fileShipmentID is the identifier taken from the file names; the header must agree with it.
func Parse(fileShipmentID string, header []byte, details ...[]byte) (*integration.OrderRecord, error) {
	var hx headerXML
	if err := decodeXML(header, &hx); err != nil {
		return nil, integration.NewMalformedInputError(fileShipmentID, "HeaderIn", err.Error())
	}

	rec := &integration.OrderRecord{Header: hx.toHeader()}
	if fileShipmentID != "" && rec.Header.ShipmentID != fileShipmentID {
		return nil, integration.NewMalformedInputError(fileShipmentID, "ShipmentID",
			fmt.Sprintf("header contains %q but file name says %q", rec.Header.ShipmentID, fileShipmentID))
	}

	for _, content := range details {
		var dx detailXML
		if err := decodeXML(content, &dx); err != nil {
			return nil, integration.NewMalformedInputError(fileShipmentID, "DetailIn", err.Error())
		}
		for _, px := range dx.Packages {
			p, err := px.toPackage(rec.Header.ShipmentID)
			if err != nil {
				return nil, err
			}
			rec.Packages = append(rec.Packages, p)
		}
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeXML(data []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	return dec.Decode(v)
}

// charsetReader decodes files whose XML declaration names a non UTF-8 encoding
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

func (hx *headerXML) toHeader() integration.ShipmentHeader {
	t := strings.TrimSpace
	h := integration.ShipmentHeader{
		ShipmentID:      t(hx.ShipmentID),
		BOLNo:           t(hx.BOLNo),
		CarrierCode:     t(hx.CarrierCode),
		CarrierService:  t(hx.CarrierService),
		CollType:        t(hx.CollType),
		IsCOD:           t(hx.IsCOD),
		Location:        t(hx.Location),
		IsResidential:   t(hx.IsResidential),
		OrderNo:         t(hx.OrderNo),
		OrderDate:       t(hx.OrderDate),
		PONumber:        t(hx.PONumber),
		ShipAddr1:       t(hx.ShipAddr1),
		ShipAddr2:       t(hx.ShipAddr2),
		ShipAddr3:       t(hx.ShipAddr3),
		ShipCity:        t(hx.ShipCity),
		ShipContact:     t(hx.ShipContact),
		ShipCountry:     t(hx.ShipCountry),
		ShipDate:        t(hx.ShipDate),
		ShipEmail:       t(hx.ShipEmail),
		ShipName:        t(hx.ShipName),
		ShipPhone:       t(hx.ShipPhone),
		ShipState:       t(hx.ShipState),
		ShipViaCode:     t(hx.ShipViaCode),
		ShipZip:         t(hx.ShipZip),
		Void:            t(hx.Void),
		PKNumber:        t(hx.PKNumber),
		CustomerCode:    t(hx.CustomerCode),
		OptionalText001: t(hx.OptionalText001),
		OptionalText009: t(hx.OptionalText009),
		OptionalText010: t(hx.OptionalText010),
		OrgID:           t(hx.OrgID),
		TrackingNumber:  t(hx.TrackingNumber),
		RateOnly:        t(hx.RateOnly),
	}
	if h.IsCOD == "" {
		h.IsCOD = "0"
	}
	if h.IsResidential == "" {
		h.IsResidential = "0"
	}
	if h.Void == "" {
		h.Void = "N"
	}
	if h.RateOnly == "" {
		h.RateOnly = "N"
	}
	return h
}

func (px *packageXML) toPackage(sid string) (integration.Package, error) {
	p := integration.Package{
		ShipmentID: strings.TrimSpace(px.ShipmentID),
		Comment:    strings.TrimSpace(px.Comment),
		PackageID:  strings.TrimSpace(px.PackageID),
		Units:      strings.TrimSpace(px.Units),
		PackageNo:  1,
	}
	if p.Units == "" {
		p.Units = DefaultUnits
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"codAmount", px.CODAmount, &p.CODAmount},
		{"declaredValue", px.DeclaredValue, &p.DeclaredValue},
		{"height", px.Height, &p.Height},
		{"length", px.Length, &p.Length},
		{"weight", px.Weight, &p.Weight},
		{"width", px.Width, &p.Width},
	}
	for _, f := range fields {
		v, err := parseNumber(sid, f.name, f.raw)
		if err != nil {
			return p, err
		}
		*f.dst = v
	}

	no, err := parseNumber(sid, "packageno", px.PackageNo)
	if err != nil {
		return p, err
	}
	if no.IsPositive() {
		p.PackageNo = int(no.IntPart())
	}
	return p, nil
}

// parseNumber treats an empty field as zero and rejects anything that is not a number
func parseNumber(sid, field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, integration.NewMalformedInputError(sid, field, fmt.Sprintf("%q is not a number", raw))
	}
	if v.IsNegative() {
		return decimal.Zero, integration.NewMalformedInputError(sid, field, fmt.Sprintf("%q is negative", raw))
	}
	return v, nil
}
