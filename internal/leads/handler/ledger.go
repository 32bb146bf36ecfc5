package handler

import (
	"net/http"

	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/ledger"
	"sales_pipeline_backend/internal/leads/transport"
	"sales_pipeline_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListProducts(c *gin.Context) {
	leadID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.ledger.ListLines(c.Request.Context(), identity.TenantID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLedgerResponse(result))
}

func (h *Handler) AddProduct(c *gin.Context) {
	leadID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req transport.AddProductLineRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.ledger.AddLine(c.Request.Context(), ledgerActor(identity), leadID, domain.LineInput{
		ProductID:      req.ProductID,
		Description:    req.Description,
		Quantity:       req.Quantity,
		UnitPriceCents: req.UnitPriceCents,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toLedgerResponse(result))
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	leadID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := parseUUIDParam(c, "lineId")
	if !ok {
		return
	}
	var req transport.UpdateProductLineRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.ledger.UpdateLine(c.Request.Context(), ledgerActor(identity), leadID, lineID, req.Quantity, req.UnitPriceCents)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLedgerResponse(result))
}

func (h *Handler) RemoveProduct(c *gin.Context) {
	leadID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := parseUUIDParam(c, "lineId")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.ledger.RemoveLine(c.Request.Context(), ledgerActor(identity), leadID, lineID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLedgerResponse(result))
}

func ledgerActor(identity httpkit.Identity) ledger.Actor {
	return ledger.Actor{TenantID: identity.TenantID(), UserID: identity.UserID()}
}

func toProductLineResponse(line domain.ProductLine) transport.ProductLineResponse {
	return transport.ProductLineResponse{
		ID:             line.ID,
		ProductID:      line.ProductID,
		Description:    line.Description,
		Quantity:       line.Quantity,
		UnitPriceCents: line.UnitPriceCents,
		TotalCents:     line.TotalCents,
	}
}

func toLedgerResponse(result ledger.Result) transport.LedgerResponse {
	resp := transport.LedgerResponse{
		Lines:      make([]transport.ProductLineResponse, 0, len(result.Lines)),
		ValueCents: result.ValueCents,
	}
	if result.Line != nil {
		line := toProductLineResponse(*result.Line)
		resp.Line = &line
	}
	for _, line := range result.Lines {
		resp.Lines = append(resp.Lines, toProductLineResponse(line))
	}
	return resp
}
