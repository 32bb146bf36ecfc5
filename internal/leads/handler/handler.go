package handler

import (
	"net/http"

	"sales_pipeline_backend/internal/leads/ledger"
	"sales_pipeline_backend/internal/leads/lifecycle"
	"sales_pipeline_backend/internal/leads/management"
	"sales_pipeline_backend/internal/leads/timeline"
	"sales_pipeline_backend/internal/leads/transport"
	"sales_pipeline_backend/platform/httpkit"
	"sales_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	mgmt      *management.Service
	ledger    *ledger.Service
	lifecycle *lifecycle.Service
	timeline  *timeline.Service
	val       *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(mgmt *management.Service, ledgerSvc *ledger.Service, lifecycleSvc *lifecycle.Service, timelineSvc *timeline.Service, val *validator.Validator) *Handler {
	return &Handler{mgmt: mgmt, ledger: ledgerSvc, lifecycle: lifecycleSvc, timeline: timelineSvc, val: val}
}

// RegisterRoutes mounts the lead routes. mutate wraps every state-changing
// route (rate limiting); it may be nil.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mutate gin.HandlerFunc) {
	if mutate == nil {
		mutate = func(c *gin.Context) { c.Next() }
	}

	rg.GET("", h.List)
	rg.POST("", mutate, h.Create)
	rg.GET("/summary", h.Summary)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", mutate, h.Update)
	rg.PATCH("/:id/stage", mutate, h.MoveStage)
	rg.DELETE("/:id", mutate, httpkit.RequireRole(httpkit.RoleAdmin), h.Delete)

	// Product ledger
	rg.GET("/:id/products", h.ListProducts)
	rg.POST("/:id/products", mutate, h.AddProduct)
	rg.PUT("/:id/products/:lineId", mutate, h.UpdateProduct)
	rg.DELETE("/:id/products/:lineId", mutate, h.RemoveProduct)

	// Lifecycle
	rg.POST("/:id/win", mutate, h.MarkWon)
	rg.POST("/:id/lose", mutate, h.MarkLost)
	rg.POST("/:id/reactivate", mutate, h.Reactivate)

	// History
	rg.GET("/:id/events", h.ListEvents)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	lead, err := h.mgmt.Create(c.Request.Context(), identity.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	lead, err := h.mgmt.GetByID(c.Request.Context(), identity.TenantID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.mgmt.List(c.Request.Context(), identity.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Summary(c *gin.Context) {
	var req transport.PipelineSummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	summary, err := h.mgmt.Summary(c.Request.Context(), identity.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req transport.UpdateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	lead, err := h.mgmt.UpdateDetails(c.Request.Context(), identity.TenantID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) MoveStage(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req transport.MoveStageRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	lead, err := h.mgmt.MoveStage(c.Request.Context(), identity.TenantID(), id, req.StageID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if httpkit.HandleError(c, h.mgmt.Delete(c.Request.Context(), identity.TenantID(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}
