package handler

import (
	"net/http"

	"sales_pipeline_backend/internal/leads/lifecycle"
	"sales_pipeline_backend/internal/leads/transport"
	"sales_pipeline_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

func actorFrom(identity httpkit.Identity) lifecycle.Actor {
	return lifecycle.Actor{
		TenantID: identity.TenantID(),
		UserID:   identity.UserID(),
		Admin:    identity.IsAdmin(),
	}
}

// MarkWon creates the sales order and closes the lead. The body is optional.
func (h *Handler) MarkWon(c *gin.Context) {
	leadID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req transport.MarkWonRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	orderID, err := h.lifecycle.MarkWon(c.Request.Context(), actorFrom(identity), leadID, lifecycle.WinInput{PartnerID: req.PartnerID})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.MarkWonResponse{OrderID: orderID})
}

func (h *Handler) MarkLost(c *gin.Context) {
	leadID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req transport.MarkLostRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if httpkit.HandleError(c, h.lifecycle.MarkLost(c.Request.Context(), actorFrom(identity), leadID, req.Reason)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Reactivate(c *gin.Context) {
	leadID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if httpkit.HandleError(c, h.lifecycle.Reactivate(c.Request.Context(), actorFrom(identity), leadID)) {
		return
	}
	c.Status(http.StatusNoContent)
}
