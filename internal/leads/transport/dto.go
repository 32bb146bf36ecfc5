package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CreateLeadRequest struct {
	Name        string     `json:"name" validate:"required,min=1,max=200"`
	Description string     `json:"description,omitempty" validate:"max=2000"`
	FunnelID    *uuid.UUID `json:"funnelId,omitempty"`
	StageID     *uuid.UUID `json:"stageId,omitempty"`
	PartnerID   *uuid.UUID `json:"partnerId,omitempty"`
	DueDate     string     `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Tag         *string    `json:"tag,omitempty" validate:"omitempty,max=50"`
	TagColor    string     `json:"tagColor,omitempty" validate:"omitempty,hexcolor"`
}

type UpdateLeadRequest struct {
	Name        *string        `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=2000"`
	DueDate     OptionalDate   `json:"dueDate,omitempty" validate:"-"`
	Tag         OptionalString `json:"tag,omitempty" validate:"-"`
	TagColor    *string        `json:"tagColor,omitempty" validate:"omitempty,hexcolor"`
	PartnerID   OptionalUUID   `json:"partnerId,omitempty" validate:"-"`
	FunnelID    OptionalUUID   `json:"funnelId,omitempty" validate:"-"`
}

type MoveStageRequest struct {
	StageID uuid.UUID `json:"stageId" validate:"required"`
}

type ListLeadsRequest struct {
	FunnelID  string `form:"funnelId" validate:"omitempty,uuid"`
	StageID   string `form:"stageId" validate:"omitempty,uuid"`
	Status    string `form:"status" validate:"omitempty,oneof=OPEN WON LOST open won lost"`
	Search    string `form:"search" validate:"max=100"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
	SortBy    string `form:"sortBy" validate:"omitempty,oneof=createdAt updatedAt name value dueDate"`
	SortOrder string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

type PipelineSummaryRequest struct {
	FunnelID string `form:"funnelId" validate:"omitempty,uuid"`
}

type AddProductLineRequest struct {
	ProductID      string  `json:"productId" validate:"required,max=100"`
	Description    string  `json:"description,omitempty" validate:"max=500"`
	Quantity       float64 `json:"quantity" validate:"gt=0,max=1000000"`
	UnitPriceCents int64   `json:"unitPriceCents" validate:"gte=0,max=1000000000000"`
}

type UpdateProductLineRequest struct {
	Quantity       float64 `json:"quantity" validate:"gt=0,max=1000000"`
	UnitPriceCents int64   `json:"unitPriceCents" validate:"gte=0,max=1000000000000"`
}

type MarkWonRequest struct {
	PartnerID *uuid.UUID `json:"partnerId,omitempty"`
}

type MarkLostRequest struct {
	// Blank reasons are rejected by the domain after trimming.
	Reason string `json:"reason" validate:"max=500"`
}

// Response DTOs

type LeadResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ValueCents  int64      `json:"valueCents"`
	FunnelID    *uuid.UUID `json:"funnelId,omitempty"`
	StageID     *uuid.UUID `json:"stageId,omitempty"`
	Status      string     `json:"status"`
	LossReason  *string    `json:"lossReason,omitempty"`
	PartnerID   *uuid.UUID `json:"partnerId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tag         *string    `json:"tag,omitempty"`
	TagColor    string     `json:"tagColor,omitempty"`
	OrderID     *string    `json:"orderId,omitempty"`
	WonAt       *time.Time `json:"wonAt,omitempty"`
	LostAt      *time.Time `json:"lostAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type LeadListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

type ProductLineResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      string    `json:"productId"`
	Description    string    `json:"description,omitempty"`
	Quantity       float64   `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	TotalCents     int64     `json:"totalCents"`
}

// LedgerResponse carries the aggregate after a ledger operation.
type LedgerResponse struct {
	Line       *ProductLineResponse  `json:"line,omitempty"`
	Lines      []ProductLineResponse `json:"lines"`
	ValueCents int64                 `json:"valueCents"`
}

type MarkWonResponse struct {
	OrderID string `json:"orderId"`
}

type PipelineSummaryResponse struct {
	OpenLeads      int   `json:"openLeads"`
	WonLeads       int   `json:"wonLeads"`
	LostLeads      int   `json:"lostLeads"`
	OpenValueCents int64 `json:"openValueCents"`
	WonValueCents  int64 `json:"wonValueCents"`
}

// TimelineEventResponse is one entry of a lead's history.
type TimelineEventResponse struct {
	ID         uuid.UUID      `json:"id"`
	EventType  string         `json:"eventType"`
	Title      string         `json:"title"`
	Summary    *string        `json:"summary,omitempty"`
	ActorType  string         `json:"actorType"`
	ActorID    *uuid.UUID     `json:"actorId,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	OccurredAt time.Time      `json:"occurredAt"`
}

type TimelineResponse struct {
	Items []TimelineEventResponse `json:"items"`
}
