package model

import "time"

// OrderStatus defines the lifecycle states of an order.
type OrderStatus string

const (
	OrderCreated   OrderStatus = "CREATED"    // Participants validated and persisted
	OrderInTransit OrderStatus = "IN_TRANSIT" // A listed carrier has picked the goods up
	OrderDelivered OrderStatus = "DELIVERED"  // Terminal
	OrderCancelled OrderStatus = "CANCELLED"  // Terminal, reachable from CREATED and IN_TRANSIT
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderCreated:   {OrderInTransit, OrderCancelled},
	OrderInTransit: {OrderDelivered, OrderCancelled},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsOpen reports whether the order still accepts shipments and status changes.
func (s OrderStatus) IsOpen() bool {
	return s == OrderCreated || s == OrderInTransit
}

// Order binds a product to an immutable set of suppliers and carriers.
type Order struct {
	ObjectType string      `json:"objectType"` // "Order"
	ID         uint64      `json:"id"`
	ProductID  uint64      `json:"productId"`
	Requester  string      `json:"requester"`
	Suppliers  []string    `json:"suppliers"`
	Carriers   []string    `json:"carriers"`
	Status     OrderStatus `json:"status"`
	CreatedBy  string      `json:"createdBy"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// HasCarrier reports whether id is one of the order's registered carriers.
func (o *Order) HasCarrier(id string) bool {
	for _, c := range o.Carriers {
		if c == id {
			return true
		}
	}
	return false
}

// PaginatedOrderResponse is the structure returned by paginated order queries.
type PaginatedOrderResponse struct {
	Orders       []*Order `json:"orders"`
	NextBookmark string   `json:"nextBookmark"` // Empty once the table is exhausted
	FetchedCount int32    `json:"fetchedCount"`
}
