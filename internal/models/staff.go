package models

import "github.com/golang-jwt/jwt/v5"

// StaffRole scopes what a staff token may do.
type StaffRole string

const (
	StaffRoleProvider StaffRole = "PROVIDER"
	StaffRoleStaff    StaffRole = "STAFF"
	StaffRoleAdmin    StaffRole = "ADMIN"
)

// StaffClaims are the JWT claims carried by staff device tokens. Identity
// management itself lives outside this service; only token validation
// happens here.
type StaffClaims struct {
	StaffID    string    `json:"staff_id"`
	ProviderID string    `json:"provider_id"`
	Role       StaffRole `json:"role"`
	jwt.RegisteredClaims
}
