package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thnhpht/ITS/internal/domain"
)

// ReportRepository copies processed rows into the reporting tables.
type ReportRepository interface {
	ArchiveDelta(ctx context.Context, delta domain.Delta) (string, error)
	EnsureTicketSnapshot(ctx context.Context, delta domain.Delta) (bool, error)
}

type reportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository instantiates repository.
func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &reportRepository{pool: pool}
}

// ArchiveDelta stores a copy of the delta under a fresh id and returns the id.
func (r *reportRepository) ArchiveDelta(ctx context.Context, delta domain.Delta) (string, error) {
	payload, err := json.Marshal(delta)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	const query = `INSERT INTO ticket_delta_reports (id, delta_idx, ticket_id, payload) VALUES ($1,$2,$3,$4)`
	if _, err := r.pool.Exec(ctx, query, id, delta.Index, delta.TicketID, payload); err != nil {
		return "", err
	}
	return id, nil
}

// EnsureTicketSnapshot writes the first-seen state of a ticket. It reports
// whether a row was created.
func (r *reportRepository) EnsureTicketSnapshot(ctx context.Context, delta domain.Delta) (bool, error) {
	payload, err := json.Marshal(delta)
	if err != nil {
		return false, err
	}
	const query = `INSERT INTO ticket_snapshots (ticket_id, payload) VALUES ($1,$2) ON CONFLICT (ticket_id) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, delta.TicketID, payload)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
