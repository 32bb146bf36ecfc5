package reconciliation

import (
	"net/http"
	"time"

	"sales_pipeline_backend/platform/httpkit"
	"sales_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes expects an admin-only group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/:id/resolve", h.Resolve)
	rg.GET("/:id/snapshot", h.Snapshot)
}

type ListIncidentsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=open all"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type ResolveIncidentRequest struct {
	Note string `json:"note" validate:"required,max=1000"`
}

type IncidentResponse struct {
	ID             uuid.UUID  `json:"id"`
	LeadID         uuid.UUID  `json:"leadId"`
	OrderID        string     `json:"orderId"`
	Operation      string     `json:"operation"`
	Cause          string     `json:"cause"`
	CreatedAt      time.Time  `json:"createdAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy     *uuid.UUID `json:"resolvedBy,omitempty"`
	ResolutionNote *string    `json:"resolutionNote,omitempty"`
}

type IncidentListResponse struct {
	Items    []IncidentResponse `json:"items"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

func toIncidentResponse(inc Incident) IncidentResponse {
	return IncidentResponse{
		ID:             inc.ID,
		LeadID:         inc.LeadID,
		OrderID:        inc.OrderID,
		Operation:      inc.Operation,
		Cause:          inc.Cause,
		CreatedAt:      inc.CreatedAt,
		ResolvedAt:     inc.ResolvedAt,
		ResolvedBy:     inc.ResolvedBy,
		ResolutionNote: inc.ResolutionNote,
	}
}

func (h *Handler) List(c *gin.Context) {
	var req ListIncidentsRequest
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

	items, total, err := h.svc.List(c.Request.Context(), identity.TenantID(), req.Status != "all", req.Page, req.PageSize)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := IncidentListResponse{
		Items:    make([]IncidentResponse, 0, len(items)),
		Total:    total,
		Page:     max(req.Page, 1),
		PageSize: req.PageSize,
	}
	if resp.PageSize == 0 {
		resp.PageSize = defaultPageSize
	}
	for _, inc := range items {
		resp.Items = append(resp.Items, toIncidentResponse(inc))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req ResolveIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	inc, err := h.svc.Resolve(c.Request.Context(), identity.TenantID(), id, identity.UserID(), req.Note)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toIncidentResponse(inc))
}

func (h *Handler) Snapshot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	url, err := h.svc.SnapshotURL(c.Request.Context(), identity.TenantID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, url)
}
