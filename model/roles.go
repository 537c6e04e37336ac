package model

import "time"

// Role is a capability tag attached to an identity.
type Role string

const (
	RoleAdmin   Role = "admin"   // Granted to the bootstrapping identity, never removed
	RoleMember  Role = "member"  // Supplier / buyer organisation member
	RoleCarrier Role = "carrier" // Logistics provider allowed to move orders
)

// ValidRoles lists every role the registry knows about.
var ValidRoles = map[Role]bool{
	RoleAdmin:   true,
	RoleMember:  true,
	RoleCarrier: true,
}

// RoleAssignment is one (identity, role) pair of the role relation.
type RoleAssignment struct {
	ObjectType string    `json:"objectType"` // "Role"
	Role       Role      `json:"role"`
	Identity   string    `json:"identity"`  // Full client ID of the holder
	GrantedBy  string    `json:"grantedBy"` // Full client ID of the admin that granted it
	GrantedAt  time.Time `json:"grantedAt"`
}
