// Package management handles lead CRUD operations.
// This is a vertically sliced feature package containing service logic
// for creating, reading, updating, and deleting leads. Status and value are
// owned by the lifecycle and ledger packages and never written here.
package management

import (
	"context"
	"errors"

	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/lockarena"
	"sales_pipeline_backend/internal/leads/ports"
	"sales_pipeline_backend/internal/leads/repository"
	"sales_pipeline_backend/internal/leads/transport"
	"sales_pipeline_backend/platform/apperr"
	"sales_pipeline_backend/platform/logger"
	"sales_pipeline_backend/platform/metrics"
	"sales_pipeline_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the management service.
// This is a consumer-driven interface - only what management needs.
type Repository interface {
	repository.LeadReader
	repository.LeadWriter
}

// Service handles lead management operations (CRUD).
type Service struct {
	repo     Repository
	locks    *lockarena.Arena
	notifier ports.RefreshNotifier
	log      *logger.Logger
}

// New creates a new lead management service.
func New(repo Repository, locks *lockarena.Arena, notifier ports.RefreshNotifier, log *logger.Logger) *Service {
	if notifier == nil {
		notifier = ports.NoopRefreshNotifier{}
	}
	return &Service{repo: repo, locks: locks, notifier: notifier, log: log}
}

// Create creates a new OPEN lead without product lines.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	name := sanitize.Text(req.Name)
	if name == "" {
		return transport.LeadResponse{}, apperr.Validation("name is required")
	}

	params := repository.CreateLeadParams{
		OrganizationID: tenantID,
		Name:           name,
		Description:    sanitize.Text(req.Description),
		FunnelID:       req.FunnelID,
		StageID:        req.StageID,
		PartnerID:      req.PartnerID,
		Tag:            req.Tag,
		TagColor:       req.TagColor,
	}
	if req.DueDate != "" {
		due, err := transport.ParseDate(req.DueDate)
		if err != nil {
			return transport.LeadResponse{}, apperr.Validation("invalid due date")
		}
		params.DueDate = &due
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.notifier.NotifyLeadChanged(ctx, tenantID, lead.ID)
	return ToLeadResponse(lead), nil
}

// GetByID retrieves a lead by ID.
func (s *Service) GetByID(ctx context.Context, tenantID, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return transport.LeadResponse{}, translate(err)
	}
	return ToLeadResponse(lead), nil
}

// Summary returns pipeline counts and values, optionally for one funnel.
func (s *Service) Summary(ctx context.Context, tenantID uuid.UUID, req transport.PipelineSummaryRequest) (transport.PipelineSummaryResponse, error) {
	var funnelID *uuid.UUID
	if req.FunnelID != "" {
		parsed, err := uuid.Parse(req.FunnelID)
		if err != nil {
			return transport.PipelineSummaryResponse{}, apperr.Validation("invalid funnelId")
		}
		funnelID = &parsed
	}

	summary, err := s.repo.GetPipelineSummary(ctx, tenantID, funnelID)
	if err != nil {
		return transport.PipelineSummaryResponse{}, translate(err)
	}
	return ToPipelineSummaryResponse(summary), nil
}

// List retrieves a paginated list of leads.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	params := repository.ListParams{
		OrganizationID: tenantID,
		Search:         req.Search,
		Offset:         (req.Page - 1) * req.PageSize,
		Limit:          req.PageSize,
		SortBy:         req.SortBy,
		SortOrder:      req.SortOrder,
	}

	if req.FunnelID != "" {
		id, err := uuid.Parse(req.FunnelID)
		if err != nil {
			return transport.LeadListResponse{}, apperr.Validation("invalid funnel id")
		}
		params.FunnelID = &id
	}
	if req.StageID != "" {
		id, err := uuid.Parse(req.StageID)
		if err != nil {
			return transport.LeadListResponse{}, apperr.Validation("invalid stage id")
		}
		params.StageID = &id
	}
	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return transport.LeadListResponse{}, err
		}
		params.Status = &status
	}

	leads, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	items := make([]transport.LeadResponse, len(leads))
	for i, lead := range leads {
		items[i] = ToLeadResponse(lead)
	}

	totalPages := (total + req.PageSize - 1) / req.PageSize

	return transport.LeadListResponse{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}, nil
}

// UpdateDetails edits descriptive fields of an open lead.
func (s *Service) UpdateDetails(ctx context.Context, tenantID, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	params := repository.UpdateDetailsParams{
		Description: sanitize.TextPtr(req.Description),
		TagColor:    req.TagColor,
	}
	if req.Name != nil {
		name := sanitize.Text(*req.Name)
		if name == "" {
			return transport.LeadResponse{}, apperr.Validation("name must not be empty")
		}
		params.Name = &name
	}
	if req.DueDate.Set {
		params.DueDate = req.DueDate.Value
		params.DueDateSet = true
	}
	if req.Tag.Set {
		params.Tag = req.Tag.Value
		params.TagSet = true
	}
	if req.PartnerID.Set {
		params.PartnerID = req.PartnerID.Value
		params.PartnerIDSet = true
	}
	if req.FunnelID.Set {
		params.FunnelID = req.FunnelID.Value
		params.FunnelIDSet = true
	}

	return s.guarded(ctx, "update_details", tenantID, id, func() (domain.Lead, error) {
		return s.repo.UpdateDetails(ctx, tenantID, id, params)
	})
}

// MoveStage moves an open lead to another pipeline stage.
func (s *Service) MoveStage(ctx context.Context, tenantID, id, stageID uuid.UUID) (transport.LeadResponse, error) {
	return s.guarded(ctx, "move_stage", tenantID, id, func() (domain.Lead, error) {
		return s.repo.MoveStage(ctx, tenantID, id, stageID)
	})
}

// Delete soft-deletes a lead. Won leads reference an order and are kept.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	release, ok := s.locks.TryAcquire(id)
	if !ok {
		metrics.BusyRejections.WithLabelValues("delete").Inc()
		return apperr.Busy("another operation is in progress for this lead")
	}
	defer release()

	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return apperr.AlreadyTerminal("won leads cannot be deleted")
		}
		return translate(err)
	}

	s.log.WithContext(ctx).Info("lead deleted", "leadId", id)
	s.notifier.NotifyLeadChanged(ctx, tenantID, id)
	return nil
}

func (s *Service) guarded(ctx context.Context, op string, tenantID, id uuid.UUID, write func() (domain.Lead, error)) (transport.LeadResponse, error) {
	release, ok := s.locks.TryAcquire(id)
	if !ok {
		metrics.BusyRejections.WithLabelValues(op).Inc()
		return transport.LeadResponse{}, apperr.Busy("another operation is in progress for this lead")
	}
	defer release()

	current, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return transport.LeadResponse{}, translate(err)
	}
	if err := current.EnsureMutable(); err != nil {
		return transport.LeadResponse{}, err
	}

	lead, err := write()
	if err != nil {
		return transport.LeadResponse{}, translate(err)
	}

	s.notifier.NotifyLeadChanged(ctx, tenantID, id)
	return ToLeadResponse(lead), nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("lead not found")
	case errors.Is(err, repository.ErrStatusConflict):
		return apperr.AlreadyTerminal("lead is closed and can no longer be changed")
	default:
		return err
	}
}
