package lifecycle

import (
	"context"

	"sales_pipeline_backend/internal/events"
	"sales_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

// Reactivate reopens a lost lead. Won leads stay won: their order cannot be
// undone from here.
func (s *Service) Reactivate(ctx context.Context, actor Actor, leadID uuid.UUID) (err error) {
	defer func() { record("reactivate", err) }()

	if !actor.Admin {
		return apperr.Forbidden("only administrators can reactivate a lead")
	}

	release, err := s.acquire("reactivate", leadID)
	if err != nil {
		return err
	}
	defer release()

	lead, err := s.loadLead(ctx, actor.TenantID, leadID)
	if err != nil {
		return err
	}
	reopened, err := lead.ApplyReactivated(s.now())
	if err != nil {
		return err
	}

	if err := s.repo.Reactivate(ctx, actor.TenantID, leadID, reopened.UpdatedAt); err != nil {
		return translate(err)
	}

	s.publish(ctx, events.LeadReactivated{
		BaseEvent: events.NewBaseEventAt(reopened.UpdatedAt),
		LeadRef:   events.LeadRef{LeadID: leadID, TenantID: actor.TenantID},
		ActorID:   actor.UserID,
	})
	s.notifier.NotifyLeadChanged(ctx, actor.TenantID, leadID)
	s.log.WithContext(ctx).Info("lead reactivated", "leadId", leadID)
	return nil
}
