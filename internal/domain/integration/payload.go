package integration

// OrderPayload is the canonical create-or-update order body.
// OrderNumber and OrderKey are always equal, which makes resubmission an upsert.
type OrderPayload struct {
	OrderNumber              string          `json:"orderNumber"`
	OrderKey                 string          `json:"orderKey"`
	OrderDate                string          `json:"orderDate,omitempty"`
	ShipDate                 string          `json:"shipDate,omitempty"`
	OrderStatus              string          `json:"orderStatus"`
	ShipTo                   Address         `json:"shipTo"`
	BillTo                   Address         `json:"billTo"`
	PackageCode              string          `json:"packageCode"`
	RequestedShippingService string          `json:"requestedShippingService"`
	Weight                   *Weight         `json:"weight,omitempty"`
	Dimensions               *Dimensions     `json:"dimensions,omitempty"`
	InternalNotes            string          `json:"internalNotes,omitempty"`
	Items                    []OrderItem     `json:"items,omitempty"`
	AdvancedOptions          AdvancedOptions `json:"advancedOptions"`

	// Account is the destination account; it selects the client, it is not sent
	Account Account `json:"-"`
}

// Address is a ShipStation shipTo/billTo block
type Address struct {
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	Street1     string `json:"street1"`
	Street2     string `json:"street2,omitempty"`
	Street3     string `json:"street3,omitempty"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Residential bool   `json:"residential"`
}

// Weight is a weight with units
type Weight struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// Dimensions are package dimensions with units
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Units  string  `json:"units"`
}

// OrderItem is one packing-slip line
type OrderItem struct {
	LineItemKey string   `json:"lineItemKey"`
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	Quantity    int64    `json:"quantity"`
	UnitPrice   *float64 `json:"unitPrice,omitempty"`
}

// AdvancedOptions carries source, custom fields and the store
type AdvancedOptions struct {
	StoreID      *int   `json:"storeId,omitempty"`
	Source       string `json:"source"`
	CustomField1 string `json:"customField1"` // PO number
	CustomField2 string `json:"customField2"` // ShipmentID
	CustomField3 string `json:"customField3"` // Single Package / Multi Package
}
