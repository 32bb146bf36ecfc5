// Package ledger maintains the product lines of a lead and keeps the lead
// value equal to the sum of their totals.
package ledger

import (
	"context"
	"errors"
	"math"

	"sales_pipeline_backend/internal/events"
	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/lockarena"
	"sales_pipeline_backend/internal/leads/ports"
	"sales_pipeline_backend/internal/leads/repository"
	"sales_pipeline_backend/platform/apperr"
	"sales_pipeline_backend/platform/logger"
	"sales_pipeline_backend/platform/metrics"
	"sales_pipeline_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Repository is what the ledger needs from persistence.
type Repository interface {
	GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Lead, error)
	repository.LedgerStore
}

// Result is the ledger after an operation. ValueCents always equals the sum
// of the line totals in Lines.
type Result struct {
	Line       *domain.ProductLine
	Lines      []domain.ProductLine
	ValueCents int64
}

// Actor is the user changing the ledger.
type Actor struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
}

type Service struct {
	repo     Repository
	locks    *lockarena.Arena
	notifier ports.RefreshNotifier
	bus      events.Bus
	log      *logger.Logger
}

// New builds the ledger service. bus may be nil when nothing listens for
// ledger changes.
func New(repo Repository, locks *lockarena.Arena, notifier ports.RefreshNotifier, bus events.Bus, log *logger.Logger) *Service {
	if notifier == nil {
		notifier = ports.NoopRefreshNotifier{}
	}
	return &Service{repo: repo, locks: locks, notifier: notifier, bus: bus, log: log}
}

// AddLine appends a product line and returns the new aggregate.
func (s *Service) AddLine(ctx context.Context, actor Actor, leadID uuid.UUID, in domain.LineInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	return s.mutate(ctx, events.LedgerLineAdded, actor, leadID, repository.LineMutation{
		Kind:           repository.LineInsert,
		ProductID:      in.ProductID,
		Description:    sanitize.Text(in.Description),
		Quantity:       in.Quantity,
		UnitPriceCents: in.UnitPriceCents,
	})
}

// UpdateLine changes quantity and unit price of an existing line.
func (s *Service) UpdateLine(ctx context.Context, actor Actor, leadID, lineID uuid.UUID, quantity float64, unitPriceCents int64) (Result, error) {
	if err := domain.ValidateQuantityAndPrice(quantity, unitPriceCents); err != nil {
		return Result{}, err
	}
	return s.mutate(ctx, events.LedgerLineUpdated, actor, leadID, repository.LineMutation{
		Kind:           repository.LineUpdate,
		LineID:         lineID,
		Quantity:       quantity,
		UnitPriceCents: unitPriceCents,
	})
}

// RemoveLine deletes a line. Removing the last line leaves the value at zero.
func (s *Service) RemoveLine(ctx context.Context, actor Actor, leadID, lineID uuid.UUID) (Result, error) {
	return s.mutate(ctx, events.LedgerLineRemoved, actor, leadID, repository.LineMutation{
		Kind:   repository.LineDelete,
		LineID: lineID,
	})
}

// ListLines returns the current ledger without taking the busy guard.
func (s *Service) ListLines(ctx context.Context, tenantID, leadID uuid.UUID) (Result, error) {
	if _, err := s.loadLead(ctx, tenantID, leadID); err != nil {
		return Result{}, err
	}
	lines, err := s.repo.ListLines(ctx, tenantID, leadID)
	if err != nil {
		return Result{}, translate(err)
	}
	return Result{Lines: lines, ValueCents: domain.SumLines(lines)}, nil
}

func (s *Service) mutate(ctx context.Context, op events.LedgerOp, actor Actor, leadID uuid.UUID, m repository.LineMutation) (Result, error) {
	tenantID := actor.TenantID
	release, ok := s.locks.TryAcquire(leadID)
	if !ok {
		metrics.BusyRejections.WithLabelValues(string(op)).Inc()
		return Result{}, apperr.Busy("another operation is in progress for this lead")
	}
	defer release()

	lead, err := s.loadLead(ctx, tenantID, leadID)
	if err != nil {
		return Result{}, err
	}
	if err := lead.EnsureMutable(); err != nil {
		return Result{}, err
	}

	res, err := s.repo.MutateLine(ctx, tenantID, leadID, m)
	if err != nil {
		return Result{}, translate(err)
	}

	metrics.LedgerMutations.WithLabelValues(string(op)).Inc()
	s.log.WithContext(ctx).Info("ledger updated", "op", op, "leadId", leadID, "valueCents", res.ValueCents)
	s.publishChange(ctx, op, actor, leadID, m, res)
	s.notifier.NotifyLeadChanged(ctx, tenantID, leadID)

	return Result{Line: res.Line, Lines: res.Lines, ValueCents: res.ValueCents}, nil
}

func (s *Service) publishChange(ctx context.Context, op events.LedgerOp, actor Actor, leadID uuid.UUID, m repository.LineMutation, res repository.LedgerResult) {
	if s.bus == nil {
		return
	}
	event := events.LeadLedgerChanged{
		BaseEvent:  events.NewBaseEvent(),
		LeadRef:    events.LeadRef{LeadID: leadID, TenantID: actor.TenantID},
		Op:         op,
		LineID:     m.LineID,
		ValueCents: res.ValueCents,
		ActorID:    actor.UserID,
	}
	if res.Line != nil {
		event.LineID = res.Line.ID
		event.ProductID = res.Line.ProductID
		event.Quantity = res.Line.Quantity
	}
	s.bus.Publish(ctx, event)
}

func (s *Service) loadLead(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return domain.Lead{}, translate(err)
	}
	return lead, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("lead not found")
	case errors.Is(err, repository.ErrLineNotFound):
		return apperr.NotFound("product line not found")
	case errors.Is(err, repository.ErrStatusConflict):
		return apperr.AlreadyTerminal("lead is closed and can no longer be changed")
	case errors.Is(err, domain.ErrValueOverflow):
		return apperr.Validation("lead value would exceed the supported maximum").
			WithDetails(map[string]interface{}{"maxValueCents": int64(math.MaxInt64)})
	default:
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Wrap(apperr.KindInternal, "ledger storage failed", err)
	}
}
