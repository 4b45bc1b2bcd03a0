package domain

import "time"

// Company is the tenant: the unit of ownership, authorization and reporting.
// A user may own several companies; token issuance binds the first one.
type Company struct {
	ID        int64
	OwnerID   int64
	Name      string
	Currency  string // ISO 4217 code
	CreatedAt time.Time
}
