package shipstation

import "github.com/qpss/middleware/internal/domain/integration"

// orderResponse is the subset of a V1 order the integration reads
type orderResponse struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	OrderKey    string `json:"orderKey"`
	OrderStatus string `json:"orderStatus"`
}

func (o orderResponse) toRemote() *integration.RemoteOrder {
	return &integration.RemoteOrder{
		OrderID:     o.OrderID,
		OrderNumber: o.OrderNumber,
		OrderKey:    o.OrderKey,
		OrderStatus: o.OrderStatus,
	}
}

// orderListResponse is GET /orders
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Pages  int             `json:"pages"`
}

// shipmentResponse is one entry of GET /shipments
type shipmentResponse struct {
	ShipmentID     int64                   `json:"shipmentId"`
	OrderID        int64                   `json:"orderId"`
	OrderKey       string                  `json:"orderKey"`
	OrderNumber    string                  `json:"orderNumber"`
	CreateDate     string                  `json:"createDate"`
	ShipDate       string                  `json:"shipDate"`
	TrackingNumber string                  `json:"trackingNumber"`
	CarrierCode    string                  `json:"carrierCode"`
	ServiceCode    string                  `json:"serviceCode"`
	Voided         bool                    `json:"voided"`
	Weight         *integration.Weight     `json:"weight"`
	Dimensions     *integration.Dimensions `json:"dimensions"`
}

// shipmentListResponse is GET /shipments
type shipmentListResponse struct {
	Shipments []shipmentResponse `json:"shipments"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	Pages     int                `json:"pages"`
}

// storeResponse is one entry of GET /stores
type storeResponse struct {
	StoreID         int    `json:"storeId"`
	StoreName       string `json:"storeName"`
	MarketplaceName string `json:"marketplaceName"`
	Active          bool   `json:"active"`
}
