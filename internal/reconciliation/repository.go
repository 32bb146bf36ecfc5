package reconciliation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("incident not found")
	ErrAlreadyResolved = errors.New("incident already resolved")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const incidentColumns = `id, organization_id, lead_id, order_id, operation, cause, created_at, resolved_at, resolved_by, resolution_note`

func scanIncident(row pgx.Row) (Incident, error) {
	var inc Incident
	err := row.Scan(
		&inc.ID, &inc.OrganizationID, &inc.LeadID, &inc.OrderID, &inc.Operation, &inc.Cause,
		&inc.CreatedAt, &inc.ResolvedAt, &inc.ResolvedBy, &inc.ResolutionNote,
	)
	return inc, err
}

// Record inserts the incident once per (lead, order) and returns the stored
// row either way.
func (r *Repository) Record(ctx context.Context, in NewIncident) (Incident, error) {
	query := `
		WITH ins AS (
			INSERT INTO saga_incidents (id, organization_id, lead_id, order_id, operation, cause, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (lead_id, order_id) DO NOTHING
			RETURNING ` + incidentColumns + `
		)
		SELECT ` + incidentColumns + ` FROM ins
		UNION ALL
		SELECT ` + incidentColumns + ` FROM saga_incidents WHERE lead_id = $3 AND order_id = $4
		LIMIT 1`

	return scanIncident(r.pool.QueryRow(ctx, query,
		uuid.New(), in.OrganizationID, in.LeadID, in.OrderID, in.Operation, in.Cause, time.Now().UTC(),
	))
}

func (r *Repository) GetByID(ctx context.Context, organizationID, id uuid.UUID) (Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM saga_incidents WHERE id = $1 AND organization_id = $2`
	inc, err := scanIncident(r.pool.QueryRow(ctx, query, id, organizationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Incident{}, ErrNotFound
	}
	return inc, err
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Incident, int, error) {
	where := `organization_id = $1`
	if params.OpenOnly {
		where += ` AND resolved_at IS NULL`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM saga_incidents WHERE `+where, params.OrganizationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+incidentColumns+` FROM saga_incidents WHERE `+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		params.OrganizationID, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Resolve closes an open incident. Resolving twice returns ErrAlreadyResolved.
func (r *Repository) Resolve(ctx context.Context, organizationID, id, resolvedBy uuid.UUID, note string) (Incident, error) {
	query := `
		UPDATE saga_incidents
		SET resolved_at = now(), resolved_by = $3, resolution_note = $4
		WHERE id = $1 AND organization_id = $2 AND resolved_at IS NULL
		RETURNING ` + incidentColumns

	inc, err := scanIncident(r.pool.QueryRow(ctx, query, id, organizationID, resolvedBy, note))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, organizationID, id); getErr != nil {
			return Incident{}, getErr
		}
		return Incident{}, ErrAlreadyResolved
	}
	return inc, err
}
