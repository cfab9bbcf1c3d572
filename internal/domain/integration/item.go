package integration

import "github.com/shopspring/decimal"

// LineItem is one ordered line from the ERP, used for packing slips
type LineItem struct {
	LineNumber  int
	SKU         string
	Description string
	QtyOrdered  decimal.Decimal
	QtyShipped  decimal.Decimal
	UnitPrice   decimal.Decimal
}
