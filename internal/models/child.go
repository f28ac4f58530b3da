package models

import "time"

// Child is read-only reference data owned by the identity system. It is
// consumed here to resolve display names and parent-scoped listings only.
type Child struct {
	ID        string    `db:"id" json:"id"`
	ParentID  string    `db:"parent_id" json:"parent_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UnknownChildName substitutes for a display name when resolution fails.
// Events still go out; billing matches on the child id, not the name.
const UnknownChildName = "Unknown Child"
