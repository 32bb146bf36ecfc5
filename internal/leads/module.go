// Package leads provides the lead lifecycle bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"sales_pipeline_backend/internal/events"
	apphttp "sales_pipeline_backend/internal/http"
	"sales_pipeline_backend/internal/leads/handler"
	"sales_pipeline_backend/internal/leads/ledger"
	"sales_pipeline_backend/internal/leads/lifecycle"
	"sales_pipeline_backend/internal/leads/lockarena"
	"sales_pipeline_backend/internal/leads/management"
	"sales_pipeline_backend/internal/leads/ports"
	"sales_pipeline_backend/internal/leads/repository"
	"sales_pipeline_backend/internal/leads/timeline"
	"sales_pipeline_backend/internal/notification/sse"
	"sales_pipeline_backend/platform/httpkit"
	"sales_pipeline_backend/platform/logger"
	"sales_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators assembled by the composition root. Archiver,
// Incidents and Stream are optional.
type Deps struct {
	Repo      repository.LeadsRepository
	Orders    ports.OrderService
	Notifier  ports.RefreshNotifier
	Archiver  ports.SnapshotArchiver
	Incidents ports.IncidentReporter
	Bus       events.Bus
	Stream    *sse.Service
	Validator *validator.Validator
	Log       *logger.Logger
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	management *management.Service
	ledger     *ledger.Service
	lifecycle  *lifecycle.Service
	stream     *sse.Service
}

// NewModule creates the leads module. All three services share one lock
// arena so a lead is never mutated by two operations at once.
func NewModule(deps Deps) *Module {
	locks := lockarena.New()

	mgmtSvc := management.New(deps.Repo, locks, deps.Notifier, deps.Log)
	ledgerSvc := ledger.New(deps.Repo, locks, deps.Notifier, deps.Bus, deps.Log)
	lifecycleSvc := lifecycle.New(lifecycle.Deps{
		Repo:      deps.Repo,
		Partners:  deps.Repo,
		Orders:    deps.Orders,
		Notifier:  deps.Notifier,
		Archiver:  deps.Archiver,
		Incidents: deps.Incidents,
		Bus:       deps.Bus,
		Locks:     locks,
		Log:       deps.Log,
	})
	timelineSvc := timeline.New(deps.Repo, deps.Log)
	if deps.Bus != nil {
		timelineSvc.RegisterHandlers(deps.Bus)
	}

	return &Module{
		handler:    handler.New(mgmtSvc, ledgerSvc, lifecycleSvc, timelineSvc, deps.Validator),
		management: mgmtSvc,
		ledger:     ledgerSvc,
		lifecycle:  lifecycleSvc,
		stream:     deps.Stream,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// ManagementService returns the lead management service for external use.
func (m *Module) ManagementService() *management.Service {
	return m.management
}

// LedgerService returns the product ledger service for external use.
func (m *Module) LedgerService() *ledger.Service {
	return m.ledger
}

// LifecycleService returns the status transition service for external use.
func (m *Module) LifecycleService() *lifecycle.Service {
	return m.lifecycle
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All leads routes require authentication
	leadsGroup := ctx.Protected.Group("/leads")

	if m.stream != nil {
		leadsGroup.GET("/stream", m.stream.Handler(streamViewer))
	}

	var mutate gin.HandlerFunc
	if ctx.MutationRateLimiter != nil {
		mutate = ctx.MutationRateLimiter.RateLimit()
	}
	m.handler.RegisterRoutes(leadsGroup, mutate)
}

func streamViewer(c *gin.Context) (sse.Viewer, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return sse.Viewer{}, false
	}
	return sse.Viewer{
		UserID:  identity.UserID(),
		OrgID:   identity.TenantID(),
		IsAdmin: identity.IsAdmin(),
	}, true
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
