package repository

import (
	"context"
	"time"

	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/ports"

	"github.com/google/uuid"
)

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, params ListParams) ([]domain.Lead, int, error)
	GetPipelineSummary(ctx context.Context, organizationID uuid.UUID, funnelID *uuid.UUID) (PipelineSummary, error)
}

// LeadWriter edits descriptive fields. It never changes status or value.
type LeadWriter interface {
	Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error)
	UpdateDetails(ctx context.Context, organizationID, id uuid.UUID, params UpdateDetailsParams) (domain.Lead, error)
	MoveStage(ctx context.Context, organizationID, id, stageID uuid.UUID) (domain.Lead, error)
	Delete(ctx context.Context, organizationID, id uuid.UUID) error
}

// LedgerStore reads and mutates the product ledger.
type LedgerStore interface {
	ListLines(ctx context.Context, organizationID, leadID uuid.UUID) ([]domain.ProductLine, error)
	MutateLine(ctx context.Context, organizationID, leadID uuid.UUID, m LineMutation) (LedgerResult, error)
}

// StatusWriter performs the conditional lifecycle writes.
type StatusWriter interface {
	MarkWon(ctx context.Context, organizationID, id uuid.UUID, won WonRecord) error
	MarkLost(ctx context.Context, organizationID, id uuid.UUID, reason string, at time.Time) error
	Reactivate(ctx context.Context, organizationID, id uuid.UUID, at time.Time) error
}

// LeadsRepository is everything the leads module persists.
type LeadsRepository interface {
	LeadReader
	LeadWriter
	LedgerStore
	StatusWriter
	TimelineStore
	ports.PartnerReader
}

var _ LeadsRepository = (*Repository)(nil)
