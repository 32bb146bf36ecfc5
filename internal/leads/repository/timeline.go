package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimelineSummaryMaxLen is the maximum summary length in runes, before the
// ellipsis TruncateSummary appends.
const TimelineSummaryMaxLen = 400

// TruncateSummary trims text to maxLen runes, appending "..." on overflow.
// Returns nil for blank input.
func TruncateSummary(text string, maxLen int) *string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if runes := []rune(trimmed); len(runes) > maxLen {
		trimmed = string(runes[:maxLen]) + "..."
	}
	return &trimmed
}

// TimelineEvent is one entry of a lead's history.
type TimelineEvent struct {
	ID             uuid.UUID
	EventID        uuid.UUID
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	ActorType      string
	ActorID        *uuid.UUID
	EventType      string
	Title          string
	Summary        *string
	Metadata       map[string]any
	OccurredAt     time.Time
	CreatedAt      time.Time
}

// CreateTimelineEventParams describes an entry to record. EventID is the
// bus occurrence id; recording the same occurrence twice is a no-op.
type CreateTimelineEventParams struct {
	EventID        uuid.UUID
	LeadID         uuid.UUID
	OrganizationID uuid.UUID
	ActorType      string
	ActorID        *uuid.UUID
	EventType      string
	Title          string
	Summary        *string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// TimelineStore records and lists lead history.
type TimelineStore interface {
	CreateTimelineEvent(ctx context.Context, params CreateTimelineEventParams) (bool, error)
	ListTimelineEvents(ctx context.Context, organizationID, leadID uuid.UUID) ([]TimelineEvent, error)
}

var _ TimelineStore = (*Repository)(nil)

// CreateTimelineEvent inserts the entry and reports whether a row was
// written. A redelivered event id leaves the table unchanged.
func (r *Repository) CreateTimelineEvent(ctx context.Context, params CreateTimelineEventParams) (bool, error) {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO lead_timeline_events (
			event_id,
			lead_id,
			organization_id,
			actor_type,
			actor_id,
			event_type,
			title,
			summary,
			metadata,
			occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING
	`, params.EventID, params.LeadID, params.OrganizationID, params.ActorType, params.ActorID,
		params.EventType, params.Title, params.Summary, metadataJSON, params.OccurredAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// timelineRowScanner is satisfied by pgx.Rows and pgx.Row.
type timelineRowScanner interface {
	Scan(dest ...any) error
}

// scanTimelineEvent reads the columns of timelineSelectCols in order.
func scanTimelineEvent(s timelineRowScanner) (TimelineEvent, error) {
	var event TimelineEvent
	var rawMetadata []byte
	if err := s.Scan(
		&event.ID,
		&event.EventID,
		&event.LeadID,
		&event.OrganizationID,
		&event.ActorType,
		&event.ActorID,
		&event.EventType,
		&event.Title,
		&event.Summary,
		&rawMetadata,
		&event.OccurredAt,
		&event.CreatedAt,
	); err != nil {
		return TimelineEvent{}, err
	}
	if len(rawMetadata) > 0 {
		_ = json.Unmarshal(rawMetadata, &event.Metadata)
	}
	return event, nil
}

const timelineSelectCols = `
	t.id, t.event_id, t.lead_id, t.organization_id, t.actor_type, t.actor_id, t.event_type, t.title, t.summary, t.metadata, t.occurred_at, t.created_at`

// ListTimelineEvents returns a lead's history, newest first. A missing or
// soft-deleted lead is ErrNotFound.
func (r *Repository) ListTimelineEvents(ctx context.Context, organizationID, leadID uuid.UUID) ([]TimelineEvent, error) {
	if _, err := r.GetByID(ctx, organizationID, leadID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT`+timelineSelectCols+`
		FROM lead_timeline_events t
		WHERE t.lead_id = $1 AND t.organization_id = $2
		ORDER BY t.occurred_at DESC, t.created_at DESC
	`, leadID, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTimelineEvents(rows)
}

// collectTimelineEvents drains pgx rows into a slice of TimelineEvent.
func collectTimelineEvents(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]TimelineEvent, error) {
	items := make([]TimelineEvent, 0)
	for rows.Next() {
		event, err := scanTimelineEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
