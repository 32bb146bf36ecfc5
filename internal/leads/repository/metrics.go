package repository

import (
	"context"

	"github.com/google/uuid"
)

// PipelineSummary aggregates status counts and values for the dashboard.
type PipelineSummary struct {
	OpenLeads      int
	WonLeads       int
	LostLeads      int
	OpenValueCents int64
	WonValueCents  int64
}

// GetPipelineSummary returns aggregates for active (non-deleted) leads,
// optionally narrowed to one funnel.
func (r *Repository) GetPipelineSummary(ctx context.Context, organizationID uuid.UUID, funnelID *uuid.UUID) (PipelineSummary, error) {
	var summary PipelineSummary
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'OPEN') AS open_leads,
			COUNT(*) FILTER (WHERE status = 'WON') AS won_leads,
			COUNT(*) FILTER (WHERE status = 'LOST') AS lost_leads,
			COALESCE(SUM(value_cents) FILTER (WHERE status = 'OPEN'), 0) AS open_value_cents,
			COALESCE(SUM(value_cents) FILTER (WHERE status = 'WON'), 0) AS won_value_cents
		FROM leads
		WHERE organization_id = $1
			AND deleted_at IS NULL
			AND ($2::uuid IS NULL OR funnel_id = $2)
	`, organizationID, funnelID).Scan(
		&summary.OpenLeads,
		&summary.WonLeads,
		&summary.LostLeads,
		&summary.OpenValueCents,
		&summary.WonValueCents,
	)
	if err != nil {
		return PipelineSummary{}, err
	}
	return summary, nil
}
