package reconciliation

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"sales_pipeline_backend/internal/adapters/storage"
	"sales_pipeline_backend/platform/apperr"
	"sales_pipeline_backend/platform/logger"
	"sales_pipeline_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxNoteLength   = 1000
)

// Store is the persistence the service needs.
type Store interface {
	Record(ctx context.Context, in NewIncident) (Incident, error)
	GetByID(ctx context.Context, organizationID, id uuid.UUID) (Incident, error)
	List(ctx context.Context, params ListParams) ([]Incident, int, error)
	Resolve(ctx context.Context, organizationID, id, resolvedBy uuid.UUID, note string) (Incident, error)
}

// Service lists and resolves incidents. It never compensates on its own:
// resolving records what an operator did outside the system.
type Service struct {
	store     Store
	snapshots SnapshotLocator
	log       *logger.Logger
}

// SnapshotLocator finds the archived order snapshot for a lead.
type SnapshotLocator interface {
	LatestSnapshotURL(ctx context.Context, organizationID, leadID uuid.UUID) (*storage.PresignedURL, error)
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// WithSnapshots enables snapshot evidence links.
func (s *Service) WithSnapshots(locator SnapshotLocator) *Service {
	s.snapshots = locator
	return s
}

// Record is used by the alert worker.
func (s *Service) Record(ctx context.Context, in NewIncident) (Incident, error) {
	if in.LeadID == uuid.Nil || strings.TrimSpace(in.OrderID) == "" {
		return Incident{}, apperr.Validation("lead and order are required")
	}
	return s.store.Record(ctx, in)
}

func (s *Service) List(ctx context.Context, organizationID uuid.UUID, openOnly bool, page, pageSize int) ([]Incident, int, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}

	items, total, err := s.store.List(ctx, ListParams{
		OrganizationID: organizationID,
		OpenOnly:       openOnly,
		Offset:         (page - 1) * pageSize,
		Limit:          pageSize,
	})
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "list incidents", err)
	}
	return items, total, nil
}

func (s *Service) Resolve(ctx context.Context, organizationID, id, resolvedBy uuid.UUID, note string) (Incident, error) {
	note = sanitize.Text(note)
	if note == "" {
		return Incident{}, apperr.Validation("a resolution note is required")
	}
	if utf8.RuneCountInString(note) > maxNoteLength {
		return Incident{}, apperr.Validation("resolution note must be at most 1000 characters")
	}

	inc, err := s.store.Resolve(ctx, organizationID, id, resolvedBy, note)
	switch {
	case errors.Is(err, ErrNotFound):
		return Incident{}, apperr.NotFound("incident not found")
	case errors.Is(err, ErrAlreadyResolved):
		return Incident{}, apperr.Conflict("incident already resolved")
	case err != nil:
		return Incident{}, apperr.Wrap(apperr.KindInternal, "resolve incident", err)
	}

	s.log.Info("saga incident resolved", "incidentId", inc.ID, "leadId", inc.LeadID, "orderId", inc.OrderID, "resolvedBy", resolvedBy)
	return inc, nil
}

// SnapshotURL presigns the order snapshot sent for the incident's lead.
func (s *Service) SnapshotURL(ctx context.Context, organizationID, id uuid.UUID) (*storage.PresignedURL, error) {
	if s.snapshots == nil {
		return nil, apperr.NotFound("snapshot archive is not configured")
	}

	inc, err := s.store.GetByID(ctx, organizationID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("incident not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load incident", err)
	}

	url, err := s.snapshots.LatestSnapshotURL(ctx, organizationID, inc.LeadID)
	if errors.Is(err, storage.ErrNoSnapshot) {
		return nil, apperr.NotFound("no snapshot archived for this lead")
	}
	if err != nil {
		return nil, apperr.Unavailable("snapshot archive unavailable", err)
	}
	return url, nil
}
