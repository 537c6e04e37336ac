package model

import "time"

// ShipmentStatus defines the possible states of a shipment.
type ShipmentStatus string

const (
	ShipmentCreated   ShipmentStatus = "CREATED"    // Registered by the carrier
	ShipmentInTransit ShipmentStatus = "IN_TRANSIT" // Goods on the move
	ShipmentDelivered ShipmentStatus = "DELIVERED"  // Terminal
)

var shipmentSuccessor = map[ShipmentStatus]ShipmentStatus{
	ShipmentCreated:   ShipmentInTransit,
	ShipmentInTransit: ShipmentDelivered,
}

// CanTransitionTo reports whether next is the single legal successor of s.
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	succ, ok := shipmentSuccessor[s]
	return ok && succ == next
}

// Shipment is one carrier's leg of an order.
type Shipment struct {
	ObjectType string         `json:"objectType"` // "Shipment"
	ID         uint64         `json:"id"`
	OrderID    uint64         `json:"orderId"`
	Carrier    string         `json:"carrier"`
	Status     ShipmentStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}
