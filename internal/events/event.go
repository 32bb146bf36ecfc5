// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"sales_pipeline_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

// LeadRef names the lead an event is about.
type LeadRef struct {
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
}

// Lead returns the reference itself so embedding types satisfy LeadEvent.
func (r LeadRef) Lead() LeadRef { return r }

// LeadEvent is any event scoped to a single lead.
type LeadEvent interface {
	Event
	Lead() LeadRef
}

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadWon is published once the lead is recorded as WON.
type LeadWon struct {
	BaseEvent
	LeadRef
	OrderID    string    `json:"orderId"`
	ValueCents int64     `json:"valueCents"`
	ActorID    uuid.UUID `json:"actorId"`
}

func (e LeadWon) EventName() string { return "leads.lead.won" }

// LeadLost is published once the lead is recorded as LOST.
type LeadLost struct {
	BaseEvent
	LeadRef
	Reason  string    `json:"reason"`
	ActorID uuid.UUID `json:"actorId"`
}

func (e LeadLost) EventName() string { return "leads.lead.lost" }

// LeadReactivated is published when an admin reopens a lost lead.
type LeadReactivated struct {
	BaseEvent
	LeadRef
	ActorID uuid.UUID `json:"actorId"`
}

func (e LeadReactivated) EventName() string { return "leads.lead.reactivated" }

// LeadWinPartiallyFailed is published when the order was created but the
// lead could not be recorded as WON. Operators must reconcile by hand.
type LeadWinPartiallyFailed struct {
	BaseEvent
	LeadRef
	OrderID string    `json:"orderId"`
	Cause   string    `json:"cause"`
	ActorID uuid.UUID `json:"actorId"`
}

func (e LeadWinPartiallyFailed) EventName() string { return "leads.win.partially_failed" }

// LedgerOp names the product ledger change behind a LeadLedgerChanged.
type LedgerOp string

const (
	LedgerLineAdded   LedgerOp = "line_added"
	LedgerLineUpdated LedgerOp = "line_updated"
	LedgerLineRemoved LedgerOp = "line_removed"
)

// LeadLedgerChanged is published after a committed product ledger mutation.
type LeadLedgerChanged struct {
	BaseEvent
	LeadRef
	Op         LedgerOp  `json:"op"`
	LineID     uuid.UUID `json:"lineId"`
	ProductID  string    `json:"productId,omitempty"`
	Quantity   float64   `json:"quantity,omitempty"`
	ValueCents int64     `json:"valueCents"`
	ActorID    uuid.UUID `json:"actorId"`
}

func (e LeadLedgerChanged) EventName() string { return "leads.ledger.changed" }

var (
	_ LeadEvent = LeadWon{}
	_ LeadEvent = LeadLost{}
	_ LeadEvent = LeadReactivated{}
	_ LeadEvent = LeadWinPartiallyFailed{}
	_ LeadEvent = LeadLedgerChanged{}
)
