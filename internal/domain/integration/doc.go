// Package integration contains the QuikPAK / ShipStation integration bounded context.
// It bridges a file-drop warehouse system with a REST shipping platform.
//
// Key concepts:
//   - OrderRecord: a parsed HeaderIn/DetailIn file pair
//   - OrderPayload: the canonical create-or-update body sent to ShipStation
//   - HoldingRecord: the durable link between a submitted order and its later shipment
//   - ShipmentEvent: a shipment returned by the shipping platform
//   - Ledger: the poll cursor plus a bounded set of processed shipment events
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
