package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"sales_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

// MaxLossReasonLength bounds the free-text loss reason.
const MaxLossReasonLength = 500

// Lead is a sales opportunity. ValueCents is derived from the product ledger
// and is never set by callers.
type Lead struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Description    string
	ValueCents     int64
	FunnelID       *uuid.UUID
	StageID        *uuid.UUID
	Status         Status
	LossReason     *string
	PartnerID      *uuid.UUID
	DueDate        *time.Time
	Tag            *string
	TagColor       string
	OrderID        *string
	WonAt          *time.Time
	LostAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EnsureMutable rejects edits to a lead in a terminal status.
func (l Lead) EnsureMutable() error {
	if l.Status.IsTerminal() {
		return apperr.AlreadyTerminal("lead is closed and can no longer be changed")
	}
	return nil
}

// NormalizeLossReason trims and validates a loss reason.
func NormalizeLossReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", apperr.Validation("a reason is required to mark a lead as lost")
	}
	if utf8.RuneCountInString(trimmed) > MaxLossReasonLength {
		return "", apperr.Validation("loss reason must be at most 500 characters")
	}
	return trimmed, nil
}

// ApplyLost returns the lead as it must look after a loss.
func (l Lead) ApplyLost(reason string, at time.Time) (Lead, error) {
	if _, err := CanTransition(l.Status, EventMarkLost); err != nil {
		return l, err
	}
	normalized, err := NormalizeLossReason(reason)
	if err != nil {
		return l, err
	}
	l.Status = StatusLost
	l.LossReason = &normalized
	l.LostAt = &at
	l.UpdatedAt = at
	return l, nil
}

// ApplyWon returns the lead as it must look after the order was created.
func (l Lead) ApplyWon(orderID string, at time.Time) (Lead, error) {
	if _, err := CanTransition(l.Status, EventMarkWon); err != nil {
		return l, err
	}
	if strings.TrimSpace(orderID) == "" {
		return l, apperr.Internal("order id is required to mark a lead as won")
	}
	l.Status = StatusWon
	l.OrderID = &orderID
	l.WonAt = &at
	l.UpdatedAt = at
	return l, nil
}

// ApplyReactivated returns a lost lead reopened. The ledger is untouched.
func (l Lead) ApplyReactivated(at time.Time) (Lead, error) {
	if _, err := CanTransition(l.Status, EventReactivate); err != nil {
		return l, err
	}
	l.Status = StatusOpen
	l.LossReason = nil
	l.LostAt = nil
	l.UpdatedAt = at
	return l, nil
}
