package model

import "time"

// Product is a catalog entry. Products are never deleted; edits create revisions.
type Product struct {
	ObjectType string    `json:"objectType"` // "Product"
	ID         uint64    `json:"id"`
	Descriptor string    `json:"descriptor"`
	Attributes string    `json:"attributes"` // Raw JSON object, "{}" when none were supplied
	Revision   uint64    `json:"revision"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ProductRevision is a historical snapshot of a product, written on every revision.
type ProductRevision struct {
	ObjectType string    `json:"objectType"` // "ProductRevision"
	ProductID  uint64    `json:"productId"`
	Revision   uint64    `json:"revision"`
	Descriptor string    `json:"descriptor"`
	Attributes string    `json:"attributes"`
	RevisedBy  string    `json:"revisedBy"`
	RevisedAt  time.Time `json:"revisedAt"`
}
