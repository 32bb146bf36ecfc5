package lifecycle

import (
	"context"

	"sales_pipeline_backend/internal/events"
	"sales_pipeline_backend/platform/sanitize"

	"github.com/google/uuid"
)

// MarkLost closes an open lead with a reason.
func (s *Service) MarkLost(ctx context.Context, actor Actor, leadID uuid.UUID, reason string) (err error) {
	defer func() { record("lose", err) }()

	release, err := s.acquire("lose", leadID)
	if err != nil {
		return err
	}
	defer release()

	lead, err := s.loadLead(ctx, actor.TenantID, leadID)
	if err != nil {
		return err
	}
	lost, err := lead.ApplyLost(sanitize.Text(reason), s.now())
	if err != nil {
		return err
	}

	if err := s.repo.MarkLost(ctx, actor.TenantID, leadID, *lost.LossReason, *lost.LostAt); err != nil {
		return translate(err)
	}

	s.publish(ctx, events.LeadLost{
		BaseEvent: events.NewBaseEventAt(*lost.LostAt),
		LeadRef:   events.LeadRef{LeadID: leadID, TenantID: actor.TenantID},
		Reason:    *lost.LossReason,
		ActorID:   actor.UserID,
	})
	s.notifier.NotifyLeadChanged(ctx, actor.TenantID, leadID)
	s.log.WithContext(ctx).Info("lead lost", "leadId", leadID)
	return nil
}
