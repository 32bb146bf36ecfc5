// Package timeline keeps the history of a lead. It records lifecycle and
// product ledger events from the bus and serves them back newest first.
package timeline

import (
	"context"
	"errors"
	"fmt"

	"sales_pipeline_backend/internal/events"
	"sales_pipeline_backend/internal/leads/repository"
	"sales_pipeline_backend/platform/apperr"
	"sales_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

type Service struct {
	store repository.TimelineStore
	log   *logger.Logger
}

func New(store repository.TimelineStore, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// RegisterHandlers subscribes the recorder to every event kept in the history.
func (s *Service) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadWon{}.EventName(), s)
	bus.Subscribe(events.LeadLost{}.EventName(), s)
	bus.Subscribe(events.LeadReactivated{}.EventName(), s)
	bus.Subscribe(events.LeadWinPartiallyFailed{}.EventName(), s)
	bus.Subscribe(events.LeadLedgerChanged{}.EventName(), s)
}

// Handle records one event. Redelivery of an already recorded event is
// ignored.
func (s *Service) Handle(ctx context.Context, event events.Event) error {
	params, ok := entryFor(event)
	if !ok {
		s.log.Debug("timeline: unhandled event", "event", event.EventName())
		return nil
	}

	created, err := s.store.CreateTimelineEvent(ctx, params)
	if err != nil {
		s.log.WithContext(ctx).Error("timeline write failed",
			"event", event.EventName(), "eventId", params.EventID, "leadId", params.LeadID, "error", err)
		return fmt.Errorf("record %s: %w", event.EventName(), err)
	}
	if !created {
		s.log.Debug("timeline: duplicate event", "eventId", params.EventID)
	}
	return nil
}

// List returns the lead history, newest first.
func (s *Service) List(ctx context.Context, tenantID, leadID uuid.UUID) ([]repository.TimelineEvent, error) {
	items, err := s.store.ListTimelineEvents(ctx, tenantID, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("lead not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load lead history", err)
	}
	return items, nil
}

func entryFor(event events.Event) (repository.CreateTimelineEventParams, bool) {
	scoped, ok := event.(events.LeadEvent)
	if !ok {
		return repository.CreateTimelineEventParams{}, false
	}
	ref := scoped.Lead()
	p := repository.CreateTimelineEventParams{
		EventID:        event.EventID(),
		LeadID:         ref.LeadID,
		OrganizationID: ref.TenantID,
		OccurredAt:     event.OccurredAt(),
	}

	switch e := event.(type) {
	case events.LeadWon:
		p.EventType = repository.EventTypeWon
		p.Title = repository.EventTitleWon
		p.Metadata = map[string]any{"orderId": e.OrderID, "valueCents": e.ValueCents}
		setActor(&p, e.ActorID)
	case events.LeadLost:
		p.EventType = repository.EventTypeLost
		p.Title = repository.EventTitleLost
		p.Summary = repository.TruncateSummary(e.Reason, repository.TimelineSummaryMaxLen)
		setActor(&p, e.ActorID)
	case events.LeadReactivated:
		p.EventType = repository.EventTypeReactivated
		p.Title = repository.EventTitleReactivated
		setActor(&p, e.ActorID)
	case events.LeadWinPartiallyFailed:
		p.EventType = repository.EventTypeWinPartiallyFailed
		p.Title = repository.EventTitleWinPartiallyFailed
		p.Summary = repository.TruncateSummary(e.Cause, repository.TimelineSummaryMaxLen)
		p.Metadata = map[string]any{"orderId": e.OrderID}
		// Raised by the saga, not chosen by the user who asked for the win.
		p.ActorType = repository.ActorTypeSystem
		p.ActorID = actorRef(e.ActorID)
	case events.LeadLedgerChanged:
		p.EventType = repository.EventTypeLedgerChange
		p.Title = ledgerTitle(e.Op)
		p.Metadata = map[string]any{
			"op":         string(e.Op),
			"lineId":     e.LineID.String(),
			"valueCents": e.ValueCents,
		}
		if e.ProductID != "" {
			p.Metadata["productId"] = e.ProductID
			p.Metadata["quantity"] = e.Quantity
		}
		setActor(&p, e.ActorID)
	default:
		return repository.CreateTimelineEventParams{}, false
	}
	return p, true
}

func ledgerTitle(op events.LedgerOp) string {
	switch op {
	case events.LedgerLineAdded:
		return repository.EventTitleLineAdded
	case events.LedgerLineRemoved:
		return repository.EventTitleLineRemoved
	default:
		return repository.EventTitleLineUpdated
	}
}

// setActor attributes the entry to a user, or to the system when the event
// names nobody.
func setActor(p *repository.CreateTimelineEventParams, actorID uuid.UUID) {
	p.ActorID = actorRef(actorID)
	if p.ActorID == nil {
		p.ActorType = repository.ActorTypeSystem
		return
	}
	p.ActorType = repository.ActorTypeUser
}

func actorRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
