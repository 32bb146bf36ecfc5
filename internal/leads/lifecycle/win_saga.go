package lifecycle

import (
	"context"
	"errors"

	"sales_pipeline_backend/internal/events"
	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/ports"
	"sales_pipeline_backend/internal/leads/repository"
	"sales_pipeline_backend/platform/apperr"
	"sales_pipeline_backend/platform/metrics"

	"github.com/google/uuid"
)

const sagaWin = "lead_win"

// WinInput carries the choices made when closing the deal. PartnerID, when
// set, bills the order to that partner instead of the one on the lead.
type WinInput struct {
	PartnerID *uuid.UUID
}

// PartialFailureDetails identifies an order that exists while the lead is
// still open.
type PartialFailureDetails struct {
	LeadID  uuid.UUID `json:"leadId"`
	OrderID string    `json:"orderId"`
}

// MarkWon creates the sales order for the lead and then records the lead as
// WON. The status is only written after the order exists.
//
// Caller cancellation is honoured until the order request is dispatched.
// From then on the saga runs to completion on a detached context so an order
// that may have been created is never abandoned.
func (s *Service) MarkWon(ctx context.Context, actor Actor, leadID uuid.UUID, in WinInput) (orderID string, err error) {
	defer func() { record("win", err) }()

	release, err := s.acquire("win", leadID)
	if err != nil {
		return "", err
	}
	defer release()

	log := s.log.WithContext(ctx)
	log.SagaStep(sagaWin, "preconditions", leadID.String())

	lead, err := s.loadLead(ctx, actor.TenantID, leadID)
	if err != nil {
		return "", err
	}
	if in.PartnerID != nil && *in.PartnerID != uuid.Nil {
		partnerID := *in.PartnerID
		lead.PartnerID = &partnerID
	}
	lines, err := s.repo.ListLines(ctx, actor.TenantID, leadID)
	if err != nil {
		return "", translate(err)
	}
	if err := domain.CheckWinPreconditions(lead, lines); err != nil {
		return "", err
	}

	log.SagaStep(sagaWin, "snapshot", leadID.String())
	partner, err := s.partners.GetPartner(ctx, actor.TenantID, *lead.PartnerID)
	if err != nil {
		if errors.Is(err, ports.ErrPartnerNotFound) {
			return "", apperr.Validation("partner not found")
		}
		return "", apperr.Unavailable("partner lookup failed", err)
	}
	snapshot, err := domain.NewOrderSnapshot(lead, partner, lines, s.now())
	if err != nil {
		return "", err
	}

	if s.archiver != nil {
		if archiveErr := s.archiver.ArchiveSnapshot(ctx, snapshot); archiveErr != nil {
			log.Warn("order snapshot archive failed", "leadId", leadID, "error", archiveErr)
		}
	}

	// Last point at which the caller can still abort without side effects.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dispatchCtx := context.WithoutCancel(ctx)
	log.SagaStep(sagaWin, "create_order", leadID.String())
	orderID, err = s.orders.CreateOrder(dispatchCtx, snapshot)
	if err != nil {
		if apperr.Is(err, apperr.KindInternal) {
			log.SagaUnknownOutcome(sagaWin, leadID.String(), snapshot.IdempotencyKey(), err)
		}
		if _, ok := apperr.As(err); ok {
			return "", err
		}
		return "", apperr.Unavailable("order service unavailable", err)
	}

	log.SagaStep(sagaWin, "mark_won", leadID.String())
	wonAt := s.now()
	if err := s.repo.MarkWon(dispatchCtx, actor.TenantID, leadID, repository.WonRecord{
		OrderID:   orderID,
		PartnerID: partner.ID,
		At:        wonAt,
	}); err != nil {
		return "", s.partialFailure(dispatchCtx, actor, lead, orderID, err)
	}

	s.publish(dispatchCtx, events.LeadWon{
		BaseEvent:  events.NewBaseEventAt(wonAt),
		LeadRef:    events.LeadRef{LeadID: leadID, TenantID: actor.TenantID},
		OrderID:    orderID,
		ValueCents: snapshot.TotalCents(),
		ActorID:    actor.UserID,
	})
	s.notifier.NotifyLeadChanged(dispatchCtx, actor.TenantID, leadID)
	log.Info("lead won", "leadId", leadID, "orderId", orderID)

	return orderID, nil
}

// partialFailure escalates an order that was created while the lead could
// not be recorded as won. It is never retried here: a retry could create a
// second order.
func (s *Service) partialFailure(ctx context.Context, actor Actor, lead domain.Lead, orderID string, cause error) error {
	s.log.WithContext(ctx).SagaPartialFailure(sagaWin, lead.ID.String(), orderID, cause)
	metrics.PartialFailures.Inc()

	s.publish(ctx, events.LeadWinPartiallyFailed{
		BaseEvent: events.NewBaseEvent(),
		LeadRef:   events.LeadRef{LeadID: lead.ID, TenantID: actor.TenantID},
		OrderID:   orderID,
		Cause:     cause.Error(),
		ActorID:   actor.UserID,
	})

	if s.incidents != nil {
		if err := s.incidents.ReportPartialFailure(ctx, ports.PartialFailureIncident{
			OrganizationID: actor.TenantID,
			LeadID:         lead.ID,
			OrderID:        orderID,
			Operation:      sagaWin,
			Cause:          cause.Error(),
		}); err != nil {
			s.log.Error("partial failure report failed", "leadId", lead.ID, "orderId", orderID, "error", err)
		}
	}

	return apperr.PartialFailure("order was created but the lead could not be marked as won", cause).
		WithDetails(PartialFailureDetails{LeadID: lead.ID, OrderID: orderID})
}
