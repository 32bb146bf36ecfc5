package repository

import (
	"context"
	"errors"
	"fmt"

	"sales_pipeline_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes raised when a ledger write leaves the allowed range.
const (
	pgNumericOutOfRange = "22003"
	pgCheckViolation    = "23514"
)

// outOfRange maps range and CHECK failures on ledger writes to
// domain.ErrValueOverflow so they surface as validation errors.
func outOfRange(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgNumericOutOfRange || pgErr.Code == pgCheckViolation) {
		return fmt.Errorf("%w: %s", domain.ErrValueOverflow, pgErr.ConstraintName)
	}
	return err
}

// LineMutationKind selects what MutateLine does.
type LineMutationKind int

const (
	LineInsert LineMutationKind = iota
	LineUpdate
	LineDelete
)

// LineMutation is one change to a lead's product ledger.
type LineMutation struct {
	Kind           LineMutationKind
	LineID         uuid.UUID // update, delete
	ProductID      string    // insert
	Description    string    // insert
	Quantity       float64   // insert, update
	UnitPriceCents int64     // insert, update
}

// LedgerResult is the state of the ledger after a committed mutation.
type LedgerResult struct {
	Line       *domain.ProductLine // nil after delete
	Lines      []domain.ProductLine
	ValueCents int64
}

const lineColumns = `id, lead_id, product_id, description, quantity, unit_price_cents, total_cents, created_at, updated_at`

func scanLine(row pgx.Row) (domain.ProductLine, error) {
	var line domain.ProductLine
	err := row.Scan(&line.ID, &line.LeadID, &line.ProductID, &line.Description, &line.Quantity,
		&line.UnitPriceCents, &line.TotalCents, &line.CreatedAt, &line.UpdatedAt)
	return line, err
}

func (r *Repository) ListLines(ctx context.Context, organizationID, leadID uuid.UUID) ([]domain.ProductLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pl.`+lineColumns+`
		FROM lead_product_lines pl
		JOIN leads l ON l.id = pl.lead_id
		WHERE pl.lead_id = $1 AND l.organization_id = $2
		ORDER BY pl.created_at ASC, pl.id ASC
	`, leadID, organizationID)
	if err != nil {
		return nil, err
	}
	return collectLines(rows)
}

func collectLines(rows pgx.Rows) ([]domain.ProductLine, error) {
	defer rows.Close()

	lines := make([]domain.ProductLine, 0)
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return lines, nil
}

// MutateLine applies one ledger change and recomputes the lead value from
// every line read back inside the same transaction. The lead row is locked
// and must be OPEN.
func (r *Repository) MutateLine(ctx context.Context, organizationID, leadID uuid.UUID, m LineMutation) (LedgerResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return LedgerResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `
		SELECT status FROM leads
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
		FOR UPDATE
	`, leadID, organizationID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return LedgerResult{}, ErrNotFound
	}
	if err != nil {
		return LedgerResult{}, err
	}
	if domain.Status(status).IsTerminal() {
		return LedgerResult{}, ErrStatusConflict
	}

	var changed *domain.ProductLine
	switch m.Kind {
	case LineInsert:
		line, err := scanLine(tx.QueryRow(ctx, `
			INSERT INTO lead_product_lines (lead_id, product_id, description, quantity, unit_price_cents, total_cents)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+lineColumns,
			leadID, m.ProductID, m.Description, m.Quantity, m.UnitPriceCents,
			domain.LineTotalCents(m.Quantity, m.UnitPriceCents),
		))
		if err != nil {
			return LedgerResult{}, outOfRange(err)
		}
		changed = &line
	case LineUpdate:
		line, err := scanLine(tx.QueryRow(ctx, `
			UPDATE lead_product_lines
			SET quantity = $3, unit_price_cents = $4, total_cents = $5, updated_at = now()
			WHERE id = $1 AND lead_id = $2
			RETURNING `+lineColumns,
			m.LineID, leadID, m.Quantity, m.UnitPriceCents,
			domain.LineTotalCents(m.Quantity, m.UnitPriceCents),
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return LedgerResult{}, ErrLineNotFound
		}
		if err != nil {
			return LedgerResult{}, outOfRange(err)
		}
		changed = &line
	case LineDelete:
		tag, err := tx.Exec(ctx, `DELETE FROM lead_product_lines WHERE id = $1 AND lead_id = $2`, m.LineID, leadID)
		if err != nil {
			return LedgerResult{}, err
		}
		if tag.RowsAffected() == 0 {
			return LedgerResult{}, ErrLineNotFound
		}
	default:
		return LedgerResult{}, fmt.Errorf("unknown line mutation %d", m.Kind)
	}

	rows, err := tx.Query(ctx, `
		SELECT `+lineColumns+`
		FROM lead_product_lines
		WHERE lead_id = $1
		ORDER BY created_at ASC, id ASC
	`, leadID)
	if err != nil {
		return LedgerResult{}, err
	}
	lines, err := collectLines(rows)
	if err != nil {
		return LedgerResult{}, err
	}

	value, err := domain.CheckedSumLines(lines)
	if err != nil {
		return LedgerResult{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE leads SET value_cents = $2, updated_at = now() WHERE id = $1`, leadID, value); err != nil {
		return LedgerResult{}, outOfRange(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return LedgerResult{}, err
	}

	return LedgerResult{Line: changed, Lines: lines, ValueCents: value}, nil
}
