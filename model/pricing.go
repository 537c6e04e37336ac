package model

import "time"

// PriceQuote is the current price a member offers for a product, with the tier it was quoted under.
type PriceQuote struct {
	ObjectType string    `json:"objectType"` // "Price"
	Member     string    `json:"member"`
	ProductID  uint64    `json:"productId"`
	Tier       uint32    `json:"tier"`
	Amount     uint64    `json:"amount"`
	Flags      uint32    `json:"flags"`
	Revision   uint64    `json:"revision"` // 1 on first write, incremented on every overwrite
	UpdatedAt  time.Time `json:"updatedAt"`
}
