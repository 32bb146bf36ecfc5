package handler

import (
	"sales_pipeline_backend/internal/leads/repository"
	"sales_pipeline_backend/internal/leads/transport"
	"sales_pipeline_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// ListEvents returns the lead history, newest first.
func (h *Handler) ListEvents(c *gin.Context) {
	leadID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	items, err := h.timeline.List(c.Request.Context(), identity.TenantID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.TimelineResponse{Items: make([]transport.TimelineEventResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, toTimelineEventResponse(item))
	}
	httpkit.OK(c, resp)
}

func toTimelineEventResponse(e repository.TimelineEvent) transport.TimelineEventResponse {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return transport.TimelineEventResponse{
		ID:         e.ID,
		EventType:  e.EventType,
		Title:      e.Title,
		Summary:    e.Summary,
		ActorType:  e.ActorType,
		ActorID:    e.ActorID,
		Metadata:   metadata,
		OccurredAt: e.OccurredAt,
	}
}
