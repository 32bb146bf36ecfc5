// Package repository persists leads, their product ledger and the partner
// master data the win flow reads.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales_pipeline_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("lead not found")
	// ErrStatusConflict means the lead exists but its status no longer
	// allows the conditional write.
	ErrStatusConflict = errors.New("lead status changed")
	ErrLineNotFound   = errors.New("product line not found")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `l.id, l.organization_id, l.name, l.description, l.value_cents, l.funnel_id, l.stage_id,
	l.status, l.loss_reason, l.partner_id, l.due_date, l.tag, l.tag_color, l.order_id,
	l.won_at, l.lost_at, l.created_at, l.updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead   domain.Lead
		status string
	)
	err := row.Scan(
		&lead.ID, &lead.OrganizationID, &lead.Name, &lead.Description, &lead.ValueCents, &lead.FunnelID, &lead.StageID,
		&status, &lead.LossReason, &lead.PartnerID, &lead.DueDate, &lead.Tag, &lead.TagColor, &lead.OrderID,
		&lead.WonAt, &lead.LostAt, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Status = domain.Status(status)
	return lead, nil
}

type CreateLeadParams struct {
	OrganizationID uuid.UUID
	Name           string
	Description    string
	FunnelID       *uuid.UUID
	StageID        *uuid.UUID
	PartnerID      *uuid.UUID
	DueDate        *time.Time
	Tag            *string
	TagColor       string
}

// Create inserts an OPEN lead with no product lines.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads AS l (
			organization_id, name, description, value_cents, funnel_id, stage_id, status,
			partner_id, due_date, tag, tag_color
		) VALUES ($1, $2, $3, 0, $4, $5, 'OPEN', $6, $7, $8, $9)
		RETURNING `+leadColumns,
		params.OrganizationID, params.Name, params.Description, params.FunnelID, params.StageID,
		params.PartnerID, params.DueDate, params.Tag, params.TagColor,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, organizationID, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		WHERE l.id = $1 AND l.organization_id = $2 AND l.deleted_at IS NULL
	`, id, organizationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

type ListParams struct {
	OrganizationID uuid.UUID
	FunnelID       *uuid.UUID
	StageID        *uuid.UUID
	Status         *domain.Status
	Search         string
	Offset         int
	Limit          int
	SortBy         string
	SortOrder      string
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Lead, int, error) {
	whereClause, args, argIdx := buildLeadListWhere(params)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM leads l WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortOrder := "DESC"
	if params.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	args = append(args, params.Limit, params.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM leads l
		WHERE %s
		ORDER BY %s %s, l.id
		LIMIT $%d OFFSET $%d
	`, leadColumns, whereClause, mapLeadSortColumn(params.SortBy), sortOrder, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}

func buildLeadListWhere(params ListParams) (string, []interface{}, int) {
	// Organization ID is always the first filter (mandatory for tenant isolation)
	whereClauses := []string{"l.organization_id = $1", "l.deleted_at IS NULL"}
	args := []interface{}{params.OrganizationID}
	argIdx := 2

	addEquals := func(column string, value interface{}) {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if params.FunnelID != nil {
		addEquals("l.funnel_id", *params.FunnelID)
	}
	if params.StageID != nil {
		addEquals("l.stage_id", *params.StageID)
	}
	if params.Status != nil {
		addEquals("l.status", string(*params.Status))
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(l.name ILIKE $%d OR l.description ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+search+"%")
		argIdx++
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}

func mapLeadSortColumn(sortBy string) string {
	switch sortBy {
	case "name":
		return "l.name"
	case "value":
		return "l.value_cents"
	case "dueDate":
		return "l.due_date"
	case "updatedAt":
		return "l.updated_at"
	default:
		return "l.created_at"
	}
}

type UpdateDetailsParams struct {
	Name         *string
	Description  *string
	DueDate      *time.Time
	DueDateSet   bool
	Tag          *string
	TagSet       bool
	TagColor     *string
	PartnerID    *uuid.UUID
	PartnerIDSet bool
	FunnelID     *uuid.UUID
	FunnelIDSet  bool
}

// UpdateDetails edits descriptive fields of an OPEN lead. Status, value and
// order reference are never touched here.
func (r *Repository) UpdateDetails(ctx context.Context, organizationID, id uuid.UUID, params UpdateDetailsParams) (domain.Lead, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	set := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if params.Name != nil {
		set("name", *params.Name)
	}
	if params.Description != nil {
		set("description", *params.Description)
	}
	if params.DueDateSet {
		set("due_date", params.DueDate)
	}
	if params.TagSet {
		set("tag", params.Tag)
	}
	if params.TagColor != nil {
		set("tag_color", *params.TagColor)
	}
	if params.PartnerIDSet {
		set("partner_id", params.PartnerID)
	}
	if params.FunnelIDSet {
		set("funnel_id", params.FunnelID)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, organizationID, id)
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id, organizationID)

	query := fmt.Sprintf(`
		UPDATE leads l SET %s
		WHERE l.id = $%d AND l.organization_id = $%d AND l.deleted_at IS NULL AND l.status = 'OPEN'
		RETURNING %s
	`, strings.Join(setClauses, ", "), argIdx, argIdx+1, leadColumns)

	lead, err := scanLead(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, r.explainMiss(ctx, organizationID, id)
	}
	return lead, err
}

// MoveStage changes the pipeline stage of an OPEN lead.
func (r *Repository) MoveStage(ctx context.Context, organizationID, id, stageID uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads l SET stage_id = $3, updated_at = now()
		WHERE l.id = $1 AND l.organization_id = $2 AND l.deleted_at IS NULL AND l.status = 'OPEN'
		RETURNING `+leadColumns,
		id, organizationID, stageID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, r.explainMiss(ctx, organizationID, id)
	}
	return lead, err
}

// Delete soft-deletes a lead that never produced an order.
func (r *Repository) Delete(ctx context.Context, organizationID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL AND status <> 'WON'
	`, id, organizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.explainMiss(ctx, organizationID, id)
	}
	return nil
}

// WonRecord is what a successful win persists.
type WonRecord struct {
	OrderID   string
	PartnerID uuid.UUID
	At        time.Time
}

// MarkWon records the order reference. It only succeeds while the lead is
// still OPEN so a concurrent transition in another process cannot be
// overwritten.
func (r *Repository) MarkWon(ctx context.Context, organizationID, id uuid.UUID, won WonRecord) error {
	return r.transition(ctx, organizationID, id, `
		UPDATE leads SET status = 'WON', order_id = $3, partner_id = $4, won_at = $5, updated_at = $5
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL AND status = 'OPEN'
	`, won.OrderID, won.PartnerID, won.At)
}

func (r *Repository) MarkLost(ctx context.Context, organizationID, id uuid.UUID, reason string, at time.Time) error {
	return r.transition(ctx, organizationID, id, `
		UPDATE leads SET status = 'LOST', loss_reason = $3, lost_at = $4, updated_at = $4
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL AND status = 'OPEN'
	`, reason, at)
}

func (r *Repository) Reactivate(ctx context.Context, organizationID, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, organizationID, id, `
		UPDATE leads SET status = 'OPEN', loss_reason = NULL, lost_at = NULL, updated_at = $3
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL AND status = 'LOST'
	`, at)
}

func (r *Repository) transition(ctx context.Context, organizationID, id uuid.UUID, query string, extra ...interface{}) error {
	args := append([]interface{}{id, organizationID}, extra...)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.explainMiss(ctx, organizationID, id)
	}
	return nil
}

// explainMiss distinguishes a missing lead from one whose status guard
// rejected a conditional write.
func (r *Repository) explainMiss(ctx context.Context, organizationID, id uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL)
	`, id, organizationID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}
