package ports

import (
	"context"
	"errors"

	"sales_pipeline_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// ErrPartnerNotFound is returned by PartnerReader when the partner does not
// exist for the tenant.
var ErrPartnerNotFound = errors.New("partner not found")

// OrderService creates the sales order for a won lead. Implementations return
// apperr.KindValidation when the order service rejected the snapshot and
// apperr.KindUnavailable for transport failures. No order was created in
// either case.
type OrderService interface {
	CreateOrder(ctx context.Context, snapshot domain.OrderSnapshot) (orderID string, err error)
}

// PartnerReader reads partner master data. The engine never writes partners.
type PartnerReader interface {
	GetPartner(ctx context.Context, organizationID, partnerID uuid.UUID) (domain.Partner, error)
}

// RefreshNotifier tells views that a lead changed. Fire-and-forget: delivery
// failures are logged by the implementation and never surface to callers.
type RefreshNotifier interface {
	NotifyLeadChanged(ctx context.Context, organizationID, leadID uuid.UUID)
}

// SnapshotArchiver stores the order snapshot as reconciliation evidence.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, snapshot domain.OrderSnapshot) error
}

// IncidentReporter hands a partial failure to operators.
type IncidentReporter interface {
	ReportPartialFailure(ctx context.Context, incident PartialFailureIncident) error
}

// PartialFailureIncident describes an order that exists while the lead is
// still recorded as open.
type PartialFailureIncident struct {
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	OrderID        string
	Operation      string
	Cause          string
}

// NoopRefreshNotifier drops every notification.
type NoopRefreshNotifier struct{}

func (NoopRefreshNotifier) NotifyLeadChanged(context.Context, uuid.UUID, uuid.UUID) {}
