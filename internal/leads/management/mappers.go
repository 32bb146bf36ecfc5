package management

import (
	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/repository"
	"sales_pipeline_backend/internal/leads/transport"
)

// ToLeadResponse converts a domain lead to its API representation.
func ToLeadResponse(lead domain.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:          lead.ID,
		Name:        lead.Name,
		Description: lead.Description,
		ValueCents:  lead.ValueCents,
		FunnelID:    lead.FunnelID,
		StageID:     lead.StageID,
		Status:      lead.Status.String(),
		LossReason:  lead.LossReason,
		PartnerID:   lead.PartnerID,
		DueDate:     lead.DueDate,
		Tag:         lead.Tag,
		TagColor:    lead.TagColor,
		OrderID:     lead.OrderID,
		WonAt:       lead.WonAt,
		LostAt:      lead.LostAt,
		CreatedAt:   lead.CreatedAt,
		UpdatedAt:   lead.UpdatedAt,
	}
}

func ToPipelineSummaryResponse(summary repository.PipelineSummary) transport.PipelineSummaryResponse {
	return transport.PipelineSummaryResponse{
		OpenLeads:      summary.OpenLeads,
		WonLeads:       summary.WonLeads,
		LostLeads:      summary.LostLeads,
		OpenValueCents: summary.OpenValueCents,
		WonValueCents:  summary.WonValueCents,
	}
}
