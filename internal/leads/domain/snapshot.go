package domain

import (
	"encoding/json"
	"strings"
	"time"

	"sales_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

// Partner is the customer the order is billed to, as read from partner
// master data at the moment a win begins.
type Partner struct {
	ID         uuid.UUID
	Name       string
	LegalName  string
	TaxID      string
	StateTaxID string
	Email      string
	Phone      string
	PersonType string // "PJ" (company) or "PF" (individual)
}

// OrderItem is a copied ledger line inside an OrderSnapshot.
type OrderItem struct {
	ProductID      string  `json:"productId"`
	Description    string  `json:"description,omitempty"`
	Quantity       float64 `json:"quantity"`
	UnitPriceCents int64   `json:"unitPriceCents"`
}

// OrderSnapshot is the immutable payload handed to the order service. Fields
// are unexported and accessors return copies, so nothing can alter it after
// construction.
type OrderSnapshot struct {
	leadID         uuid.UUID
	organizationID uuid.UUID
	idempotencyKey string
	partner        Partner
	items          []OrderItem
	totalCents     int64
	notes          string
	createdAt      time.Time
}

// CheckWinPreconditions validates everything a win needs that is known
// before any external call.
func CheckWinPreconditions(lead Lead, lines []ProductLine) error {
	if _, err := CanTransition(lead.Status, EventMarkWon); err != nil {
		return err
	}
	if !HasBillableLine(lines) {
		return apperr.Validation("add at least one product before marking the lead as won")
	}
	if lead.PartnerID == nil || *lead.PartnerID == uuid.Nil {
		return apperr.Validation("a partner is required before marking the lead as won")
	}
	return nil
}

// WinIdempotencyKey is stable per lead so an order service that honours
// idempotency keys returns the same order for a repeated submission.
func WinIdempotencyKey(leadID uuid.UUID) string {
	return "lead-win-" + leadID.String()
}

// NewOrderSnapshot copies the ledger and partner into a snapshot.
func NewOrderSnapshot(lead Lead, partner Partner, lines []ProductLine, at time.Time) (OrderSnapshot, error) {
	if err := CheckWinPreconditions(lead, lines); err != nil {
		return OrderSnapshot{}, err
	}
	if partner.ID != *lead.PartnerID {
		return OrderSnapshot{}, apperr.Validation("partner does not match the lead")
	}

	items := make([]OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		items = append(items, OrderItem{
			ProductID:      line.ProductID,
			Description:    line.Description,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}

	notes := "Lead: " + lead.Name
	if desc := strings.TrimSpace(lead.Description); desc != "" {
		notes += " - " + desc
	}

	return OrderSnapshot{
		leadID:         lead.ID,
		organizationID: lead.OrganizationID,
		idempotencyKey: WinIdempotencyKey(lead.ID),
		partner:        partner,
		items:          items,
		totalCents:     SumLines(lines),
		notes:          notes,
		createdAt:      at,
	}, nil
}

func (s OrderSnapshot) LeadID() uuid.UUID         { return s.leadID }
func (s OrderSnapshot) OrganizationID() uuid.UUID { return s.organizationID }
func (s OrderSnapshot) IdempotencyKey() string    { return s.idempotencyKey }
func (s OrderSnapshot) Partner() Partner          { return s.partner }
func (s OrderSnapshot) TotalCents() int64         { return s.totalCents }
func (s OrderSnapshot) Notes() string             { return s.notes }
func (s OrderSnapshot) CreatedAt() time.Time      { return s.createdAt }

// Items returns a copy of the snapshot items.
func (s OrderSnapshot) Items() []OrderItem {
	out := make([]OrderItem, len(s.items))
	copy(out, s.items)
	return out
}

type snapshotPartnerWire struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	LegalName  string    `json:"legalName,omitempty"`
	TaxID      string    `json:"taxId,omitempty"`
	StateTaxID string    `json:"stateTaxId,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	PersonType string    `json:"personType,omitempty"`
}

type snapshotWire struct {
	LeadID         uuid.UUID           `json:"leadId"`
	OrganizationID uuid.UUID           `json:"organizationId"`
	IdempotencyKey string              `json:"idempotencyKey"`
	Partner        snapshotPartnerWire `json:"partner"`
	Items          []OrderItem         `json:"items"`
	TotalCents     int64               `json:"totalCents"`
	Notes          string              `json:"notes,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// MarshalJSON renders the wire form sent to the order service and archived
// for reconciliation.
func (s OrderSnapshot) MarshalJSON() ([]byte, error) {
	p := s.partner
	return json.Marshal(snapshotWire{
		LeadID:         s.leadID,
		OrganizationID: s.organizationID,
		IdempotencyKey: s.idempotencyKey,
		Partner: snapshotPartnerWire{
			ID:         p.ID,
			Name:       p.Name,
			LegalName:  p.LegalName,
			TaxID:      p.TaxID,
			StateTaxID: p.StateTaxID,
			Email:      p.Email,
			Phone:      p.Phone,
			PersonType: p.PersonType,
		},
		Items:      s.items,
		TotalCents: s.totalCents,
		Notes:      s.notes,
		CreatedAt:  s.createdAt,
	})
}
