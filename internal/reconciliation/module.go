package reconciliation

import (
	apphttp "sales_pipeline_backend/internal/http"
	"sales_pipeline_backend/platform/validator"
)

// Module exposes the incident queue to administrators.
type Module struct {
	handler *Handler
}

func NewModule(svc *Service, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(svc, val)}
}

func (m *Module) Name() string {
	return "reconciliation"
}

// RegisterRoutes mounts the incident routes under /api/v1/admin/incidents.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/incidents"))
}

var _ apphttp.Module = (*Module)(nil)
