package model

import "time"

// Event names published through SetEvent and recorded in the audit log.
const (
	EventRoleGranted           = "RoleGranted"
	EventRoleRevoked           = "RoleRevoked"
	EventProductAdded          = "ProductAdded"
	EventProductRevised        = "ProductRevised"
	EventPriceUpdated          = "PriceUpdated"
	EventCredentialIssued      = "CredentialIssued"
	EventCredentialRevoked     = "CredentialRevoked"
	EventOrderCreated          = "OrderCreated"
	EventOrderStatusChanged    = "OrderStatusChanged"
	EventOrderCancelled        = "OrderCancelled"
	EventShipmentCreated       = "ShipmentCreated"
	EventShipmentStatusChanged = "ShipmentStatusChanged"
)

// AuditEvent is one entry of the append-only audit log.
type AuditEvent struct {
	ObjectType string    `json:"objectType"` // "AuditEvent"
	EventID    string    `json:"eventId"`    // ULID, sortable by tx time
	Sequence   uint64    `json:"sequence"`
	Name       string    `json:"name"`
	TxID       string    `json:"txId"`
	Actor      string    `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    string    `json:"payload"` // JSON of one of the payload structs below
}

// Payload structs. Field order is part of the external contract: indexers
// decode these positionally, so fields must not be reordered.

type RoleChangedPayload struct {
	Role     Role   `json:"role"`
	Identity string `json:"identity"`
}

type ProductAddedPayload struct {
	ID         uint64 `json:"id"`
	Descriptor string `json:"descriptor"`
}

type ProductRevisedPayload struct {
	ID         uint64 `json:"id"`
	Revision   uint64 `json:"revision"`
	Descriptor string `json:"descriptor"`
}

type PriceUpdatedPayload struct {
	Member    string `json:"member"`
	ProductID uint64 `json:"productId"`
	Tier      uint32 `json:"tier"`
	Amount    uint64 `json:"amount"`
	Flags     uint32 `json:"flags"`
}

type CredentialPayload struct {
	Identity     string `json:"identity"`
	CredentialID string `json:"credentialId"`
}

type OrderCreatedPayload struct {
	OrderID   uint64   `json:"orderId"`
	ProductID uint64   `json:"productId"`
	Requester string   `json:"requester"`
	Suppliers []string `json:"suppliers"`
	Carriers  []string `json:"carriers"`
}

type OrderStatusPayload struct {
	OrderID uint64      `json:"orderId"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
}

type ShipmentCreatedPayload struct {
	ShipmentID uint64 `json:"shipmentId"`
	OrderID    uint64 `json:"orderId"`
	Carrier    string `json:"carrier"`
}

type ShipmentStatusPayload struct {
	ShipmentID uint64         `json:"shipmentId"`
	From       ShipmentStatus `json:"from"`
	To         ShipmentStatus `json:"to"`
}
