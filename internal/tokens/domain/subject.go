package domain

import "time"

// Subject is a user of one tenant, as far as token claims are concerned.
// Subjects are scoped by ClientID: "alice" of tenantA and "alice" of tenantB
// are different people.
type Subject struct {
	ID          string
	ClientID    string
	Username    string
	Name        string
	Authorities []string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
