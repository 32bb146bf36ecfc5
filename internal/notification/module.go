// Package notification turns lead lifecycle events into live updates for
// board viewers. Operator alerting for partial failures runs through the
// scheduler; this module only pushes them to connected admins.
package notification

import (
	"context"

	"sales_pipeline_backend/internal/events"
	"sales_pipeline_backend/internal/notification/sse"
	"sales_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

// Broadcaster delivers SSE events to connected viewers.
type Broadcaster interface {
	PublishToOrganization(orgID uuid.UUID, event sse.Event) int
	PublishToAdmins(orgID uuid.UUID, event sse.Event) int
}

// Module handles notification-related event subscriptions.
type Module struct {
	sse Broadcaster
	log *logger.Logger
}

// New creates the notification module.
func New(broadcaster Broadcaster, log *logger.Logger) *Module {
	return &Module{sse: broadcaster, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterHandlers subscribes to the lead lifecycle events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadWon{}.EventName(), m)
	bus.Subscribe(events.LeadLost{}.EventName(), m)
	bus.Subscribe(events.LeadReactivated{}.EventName(), m)
	bus.Subscribe(events.LeadWinPartiallyFailed{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadWon:
		m.sse.PublishToOrganization(e.TenantID, sse.Event{
			Type:    sse.EventLeadWon,
			LeadID:  e.LeadID,
			Message: "Lead won",
			Data:    map[string]any{"orderId": e.OrderID, "valueCents": e.ValueCents},
		})
	case events.LeadLost:
		m.sse.PublishToOrganization(e.TenantID, sse.Event{
			Type:    sse.EventLeadLost,
			LeadID:  e.LeadID,
			Message: "Lead lost",
			Data:    map[string]any{"reason": e.Reason},
		})
	case events.LeadReactivated:
		m.sse.PublishToOrganization(e.TenantID, sse.Event{
			Type:    sse.EventLeadReactivated,
			LeadID:  e.LeadID,
			Message: "Lead reactivated",
		})
	case events.LeadWinPartiallyFailed:
		delivered := m.sse.PublishToAdmins(e.TenantID, sse.Event{
			Type:    sse.EventWinPartiallyFailed,
			LeadID:  e.LeadID,
			Message: "Order created but lead not marked as won",
			Data:    map[string]any{"orderId": e.OrderID},
		})
		if delivered == 0 {
			m.log.WithContext(ctx).Warn("no admin online for partial failure", "leadId", e.LeadID, "orderId", e.OrderID)
		}
	default:
		m.log.Debug("notification: unhandled event", "event", event.EventName())
	}
	return nil
}
