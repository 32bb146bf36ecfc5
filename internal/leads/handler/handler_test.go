package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/leadstest"
	"sales_pipeline_backend/internal/leads/ledger"
	"sales_pipeline_backend/internal/leads/lifecycle"
	"sales_pipeline_backend/internal/leads/lockarena"
	"sales_pipeline_backend/internal/leads/management"
	"sales_pipeline_backend/internal/leads/timeline"
	"sales_pipeline_backend/internal/leads/transport"
	"sales_pipeline_backend/platform/apperr"
	"sales_pipeline_backend/platform/events"
	"sales_pipeline_backend/platform/httpkit"
	"sales_pipeline_backend/platform/logger"
	"sales_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrders struct {
	err   error
	calls int
}

func (o *stubOrders) CreateOrder(context.Context, domain.OrderSnapshot) (string, error) {
	o.calls++
	if o.err != nil {
		return "", o.err
	}
	return "SO-100", nil
}

type harness struct {
	router *gin.Engine
	store  *leadstest.Store
	orders *stubOrders
	bus    *events.InMemoryBus
	tenant uuid.UUID
	user   uuid.UUID
	roles  []string
}

func newHarness(t *testing.T, roles ...string) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{
		store:  leadstest.New(),
		orders: &stubOrders{},
		tenant: uuid.New(),
		user:   uuid.New(),
		roles:  roles,
	}
	locks := lockarena.New()
	notifier := &leadstest.Notifier{}
	log := logger.Nop()
	h.bus = events.NewInMemoryBus(log)
	t.Cleanup(h.bus.Wait)

	history := timeline.New(h.store, log)
	history.RegisterHandlers(h.bus)

	handler := New(
		management.New(h.store, locks, notifier, log),
		ledger.New(h.store, locks, notifier, h.bus, log),
		lifecycle.New(lifecycle.Deps{
			Repo:     h.store,
			Partners: h.store,
			Orders:   h.orders,
			Notifier: notifier,
			Bus:      h.bus,
			Locks:    locks,
			Log:      log,
		}),
		history,
		validator.New(),
	)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, h.user)
		c.Set(httpkit.ContextTenantIDKey, h.tenant)
		c.Set(httpkit.ContextRolesKey, h.roles)
		c.Next()
	})
	handler.RegisterRoutes(r.Group("/leads"), nil)
	h.router = r
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreateAndFetchLead(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/leads", `{"name":"Acme rooftop","tagColor":"#ff0000"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[transport.LeadResponse](t, rec)
	assert.Equal(t, "OPEN", created.Status)
	assert.Zero(t, created.ValueCents)

	rec = h.do(t, http.MethodGet, "/leads/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme rooftop", decode[transport.LeadResponse](t, rec).Name)

	rec = h.do(t, http.MethodPost, "/leads", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductRoutesKeepValueInSync(t *testing.T) {
	h := newHarness(t)
	lead := h.store.SeedLead(h.tenant, "Acme")
	base := "/leads/" + lead.ID.String() + "/products"

	rec := h.do(t, http.MethodPost, base, `{"productId":"P-1","quantity":2,"unitPriceCents":10000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[transport.LedgerResponse](t, rec)
	require.NotNil(t, added.Line)
	assert.EqualValues(t, 20000, added.ValueCents)

	rec = h.do(t, http.MethodPut, base+"/"+added.Line.ID.String(), `{"quantity":3,"unitPriceCents":10000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 30000, decode[transport.LedgerResponse](t, rec).ValueCents)

	rec = h.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[transport.LedgerResponse](t, rec).Lines, 1)

	rec = h.do(t, http.MethodDelete, base+"/"+added.Line.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[transport.LedgerResponse](t, rec).ValueCents)
	assert.Zero(t, h.store.Lead(lead.ID).ValueCents)

	rec = h.do(t, http.MethodPost, base, `{"productId":"P-1","quantity":0,"unitPriceCents":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductRoutesRejectOutOfRangeAmounts(t *testing.T) {
	h := newHarness(t)
	lead := h.store.SeedLead(h.tenant, "Acme")
	base := "/leads/" + lead.ID.String() + "/products"

	rec := h.do(t, http.MethodPost, base, `{"productId":"P-1","quantity":100000000000000000,"unitPriceCents":1000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Equal(t, "max=1000000", body.Details["quantity"])

	rec = h.do(t, http.MethodPost, base, `{"productId":"P-1","quantity":1,"unitPriceCents":9000000000000000000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, h.store.Lead(lead.ID).ValueCents)
}

func TestWinRouteReturnsOrderAndLocksLedger(t *testing.T) {
	h := newHarness(t)
	lead := h.store.SeedLead(h.tenant, "Acme")
	h.store.SeedPartner(lead.ID, domain.Partner{Name: "Acme Ltda"})
	base := "/leads/" + lead.ID.String()

	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, base+"/products", `{"productId":"P-1","quantity":1,"unitPriceCents":500}`).Code)

	rec := h.do(t, http.MethodPost, base+"/win", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SO-100", decode[transport.MarkWonResponse](t, rec).OrderID)
	assert.Equal(t, domain.StatusWon, h.store.Lead(lead.ID).Status)

	rec = h.do(t, http.MethodPost, base+"/products", `{"productId":"P-2","quantity":1,"unitPriceCents":500}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(apperr.ReasonAlreadyTerminal), decode[httpkit.ErrorResponse](t, rec).Reason)

	rec = h.do(t, http.MethodPost, base+"/win", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, h.orders.calls)
}

func TestWinRouteMapsOrderFailure(t *testing.T) {
	h := newHarness(t)
	h.orders.err = apperr.Unavailable("order service unreachable", errors.New("dial tcp"))
	lead := h.store.SeedLead(h.tenant, "Acme")
	h.store.SeedPartner(lead.ID, domain.Partner{Name: "Acme Ltda"})
	base := "/leads/" + lead.ID.String()
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, base+"/products", `{"productId":"P-1","quantity":1,"unitPriceCents":500}`).Code)

	rec := h.do(t, http.MethodPost, base+"/win", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, domain.StatusOpen, h.store.Lead(lead.ID).Status)
}

func TestWinRouteWithoutProductsIsValidationError(t *testing.T) {
	h := newHarness(t)
	lead := h.store.SeedLead(h.tenant, "Acme")
	h.store.SeedPartner(lead.ID, domain.Partner{Name: "Acme Ltda"})

	rec := h.do(t, http.MethodPost, "/leads/"+lead.ID.String()+"/win", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.orders.calls)
}

func TestLoseAndReactivateRoutes(t *testing.T) {
	agent := newHarness(t)
	lead := agent.store.SeedLead(agent.tenant, "Acme")
	base := "/leads/" + lead.ID.String()

	assert.Equal(t, http.StatusBadRequest, agent.do(t, http.MethodPost, base+"/lose", `{"reason":"   "}`).Code)
	require.Equal(t, http.StatusNoContent, agent.do(t, http.MethodPost, base+"/lose", `{"reason":"no budget"}`).Code)
	assert.Equal(t, domain.StatusLost, agent.store.Lead(lead.ID).Status)

	assert.Equal(t, http.StatusForbidden, agent.do(t, http.MethodPost, base+"/reactivate", "").Code)

	agent.roles = []string{httpkit.RoleAdmin}
	require.Equal(t, http.StatusNoContent, agent.do(t, http.MethodPost, base+"/reactivate", "").Code)
	reopened := agent.store.Lead(lead.ID)
	assert.Equal(t, domain.StatusOpen, reopened.Status)
	assert.Nil(t, reopened.LossReason)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	lead := h.store.SeedLead(h.tenant, "Acme")

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodDelete, "/leads/"+lead.ID.String(), "").Code)

	h.roles = []string{httpkit.RoleAdmin}
	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/leads/"+lead.ID.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/leads/"+lead.ID.String(), "").Code)
}

func TestSummaryRoute(t *testing.T) {
	h := newHarness(t)
	open := h.store.SeedLead(h.tenant, "Open deal")
	lost := h.store.SeedLead(h.tenant, "Lost deal")
	h.store.SeedLead(uuid.New(), "Other tenant")

	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/leads/"+open.ID.String()+"/products", `{"productId":"P-1","quantity":4,"unitPriceCents":250}`).Code)
	require.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/leads/"+lost.ID.String()+"/lose", `{"reason":"timing"}`).Code)

	rec := h.do(t, http.MethodGet, "/leads/summary", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[transport.PipelineSummaryResponse](t, rec)
	assert.Equal(t, 1, summary.OpenLeads)
	assert.Equal(t, 1, summary.LostLeads)
	assert.Zero(t, summary.WonLeads)
	assert.EqualValues(t, 1000, summary.OpenValueCents)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/leads/summary?funnelId=nope", "").Code)
}

func TestInvalidIDIsBadRequest(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/leads/not-a-uuid", "").Code)
}

func TestEventsRouteListsLeadHistory(t *testing.T) {
	h := newHarness(t, httpkit.RoleAdmin)
	lead := h.store.SeedLead(h.tenant, "Acme")
	base := "/leads/" + lead.ID.String()

	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, base+"/products", `{"productId":"P-1","quantity":1,"unitPriceCents":500}`).Code)
	require.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, base+"/lose", `{"reason":"went with a competitor"}`).Code)
	require.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, base+"/reactivate", "").Code)
	h.bus.Wait()

	rec := h.do(t, http.MethodGet, base+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[transport.TimelineResponse](t, rec)
	require.Len(t, history.Items, 3)

	types := make([]string, 0, len(history.Items))
	for _, item := range history.Items {
		types = append(types, item.EventType)
		require.NotNil(t, item.ActorID)
		assert.Equal(t, h.user, *item.ActorID)
	}
	assert.ElementsMatch(t, []string{"ledger_change", "lost", "reactivated"}, types)

	rec = h.do(t, http.MethodGet, "/leads/"+uuid.New().String()+"/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
