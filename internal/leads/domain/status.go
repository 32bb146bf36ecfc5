// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"fmt"
	"strings"

	"sales_pipeline_backend/platform/apperr"
)

// Status is the win/loss lifecycle of a lead. It is orthogonal to the
// pipeline stage, which only moves while the lead is open.
type Status string

const (
	StatusOpen Status = "OPEN"
	StatusWon  Status = "WON"
	StatusLost Status = "LOST"
)

// Event names a lifecycle transition request.
type Event string

const (
	EventMarkWon    Event = "mark_won"
	EventMarkLost   Event = "mark_lost"
	EventReactivate Event = "reactivate"
)

// transitions lists every legal (from, event) pair. Anything absent is
// rejected. WON has no exits.
var transitions = map[Status]map[Event]Status{
	StatusOpen: {
		EventMarkWon:  StatusWon,
		EventMarkLost: StatusLost,
	},
	StatusLost: {
		EventReactivate: StatusOpen,
	},
	StatusWon: {},
}

// ParseStatus accepts the canonical upper-case names, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := transitions[s]; !ok {
		return "", apperr.Validation(fmt.Sprintf("unknown lead status %q", raw))
	}
	return s, nil
}

// IsTerminal reports whether the status accepts no further edits.
func (s Status) IsTerminal() bool {
	return s == StatusWon || s == StatusLost
}

func (s Status) String() string { return string(s) }

// CanTransition resolves a transition. It is pure and must be consulted before
// any side effect of the requested transition.
func CanTransition(from Status, event Event) (Status, error) {
	events, ok := transitions[from]
	if !ok {
		return "", apperr.Internal(fmt.Sprintf("lead has unknown status %q", from))
	}
	if to, ok := events[event]; ok {
		return to, nil
	}

	if from.IsTerminal() {
		return "", apperr.AlreadyTerminal(fmt.Sprintf("lead is already %s", strings.ToLower(string(from))))
	}
	// Only reachable for reactivate on an open lead.
	return "", apperr.Conflict("only lost leads can be reactivated")
}
