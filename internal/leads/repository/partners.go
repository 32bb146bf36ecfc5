package repository

import (
	"context"
	"errors"

	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/ports"
	"sales_pipeline_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetPartner reads partner master data. The phone number is normalized to
// E.164 so the order service receives one canonical format.
func (r *Repository) GetPartner(ctx context.Context, organizationID, partnerID uuid.UUID) (domain.Partner, error) {
	var (
		p          domain.Partner
		legalName  *string
		taxID      *string
		stateTaxID *string
		email      *string
		phoneRaw   *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, legal_name, tax_id, state_tax_id, email, phone, person_type
		FROM partners
		WHERE id = $1 AND organization_id = $2
	`, partnerID, organizationID).Scan(&p.ID, &p.Name, &legalName, &taxID, &stateTaxID, &email, &phoneRaw, &p.PersonType)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Partner{}, ports.ErrPartnerNotFound
	}
	if err != nil {
		return domain.Partner{}, err
	}

	p.LegalName = deref(legalName)
	p.TaxID = deref(taxID)
	p.StateTaxID = deref(stateTaxID)
	p.Email = deref(email)
	p.Phone = phone.NormalizeE164(deref(phoneRaw))
	return p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
