// Package reconciliation keeps the record of lead wins that created an order
// but could not be persisted, until an operator resolves them.
package reconciliation

import (
	"time"

	"github.com/google/uuid"
)

// Incident is one partial failure awaiting manual reconciliation.
type Incident struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	OrderID        string
	Operation      string
	Cause          string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
	ResolvedBy     *uuid.UUID
	ResolutionNote *string
}

// Open reports whether the incident still needs attention.
func (i Incident) Open() bool {
	return i.ResolvedAt == nil
}

// NewIncident is what the alert worker records.
type NewIncident struct {
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	OrderID        string
	Operation      string
	Cause          string
}

// ListParams filters incidents for one organization.
type ListParams struct {
	OrganizationID uuid.UUID
	OpenOnly       bool
	Offset         int
	Limit          int
}
