// Package lifecycle runs the lead status transitions: the win saga, the loss
// handler and the admin reactivation path. Nothing else writes lead status.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"sales_pipeline_backend/internal/events"
	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/lockarena"
	"sales_pipeline_backend/internal/leads/ports"
	"sales_pipeline_backend/internal/leads/repository"
	"sales_pipeline_backend/platform/apperr"
	"sales_pipeline_backend/platform/logger"
	"sales_pipeline_backend/platform/metrics"

	"github.com/google/uuid"
)

// Repository is what the transition handlers need from persistence.
type Repository interface {
	GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Lead, error)
	ListLines(ctx context.Context, organizationID, leadID uuid.UUID) ([]domain.ProductLine, error)
	repository.StatusWriter
}

// Actor is the authenticated caller of a transition.
type Actor struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Admin    bool
}

// Deps wires the collaborators. Archiver and Incidents are optional.
type Deps struct {
	Repo      Repository
	Partners  ports.PartnerReader
	Orders    ports.OrderService
	Notifier  ports.RefreshNotifier
	Archiver  ports.SnapshotArchiver
	Incidents ports.IncidentReporter
	Bus       events.Bus
	Locks     *lockarena.Arena
	Log       *logger.Logger
}

type Service struct {
	repo      Repository
	partners  ports.PartnerReader
	orders    ports.OrderService
	notifier  ports.RefreshNotifier
	archiver  ports.SnapshotArchiver
	incidents ports.IncidentReporter
	bus       events.Bus
	locks     *lockarena.Arena
	log       *logger.Logger
	now       func() time.Time
}

func New(deps Deps) *Service {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = ports.NoopRefreshNotifier{}
	}
	return &Service{
		repo:      deps.Repo,
		partners:  deps.Partners,
		orders:    deps.Orders,
		notifier:  notifier,
		archiver:  deps.Archiver,
		incidents: deps.Incidents,
		bus:       deps.Bus,
		locks:     deps.Locks,
		log:       deps.Log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// acquire takes the per-lead busy guard.
func (s *Service) acquire(op string, leadID uuid.UUID) (func(), error) {
	release, ok := s.locks.TryAcquire(leadID)
	if !ok {
		metrics.BusyRejections.WithLabelValues(op).Inc()
		return nil, apperr.Busy("another operation is in progress for this lead")
	}
	return release, nil
}

func (s *Service) loadLead(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return domain.Lead{}, translate(err)
	}
	return lead, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

// record counts the outcome of a transition.
func record(op string, err error) {
	metrics.SagaOutcomes.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	e, ok := apperr.As(err)
	if !ok {
		return "error"
	}
	switch e.Kind {
	case apperr.KindValidation:
		return "validation"
	case apperr.KindConflict:
		if e.Reason == apperr.ReasonBusy {
			return "busy"
		}
		return "conflict"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindForbidden:
		return "forbidden"
	case apperr.KindUnavailable:
		return "unavailable"
	case apperr.KindPartialFailure:
		return "partial_failure"
	default:
		return "error"
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("lead not found")
	case errors.Is(err, repository.ErrStatusConflict):
		return apperr.AlreadyTerminal("lead status changed by another operation")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Unavailable("lead storage unavailable", err)
	}
}
