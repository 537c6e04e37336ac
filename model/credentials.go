package model

import "time"

// Credential is a soulbound attestation bound to exactly one identity.
type Credential struct {
	ObjectType string    `json:"objectType"` // "Credential"
	ID         string    `json:"id"`
	Holder     string    `json:"holder"`
	Roles      []Role    `json:"roles"` // Roles the holder held when it was issued
	IssuedBy   string    `json:"issuedBy"`
	IssuedAt   time.Time `json:"issuedAt"`
}
