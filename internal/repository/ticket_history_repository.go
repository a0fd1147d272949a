package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thnhpht/ITS/internal/domain"
)

// TicketHistoryRepository stores per-field audit rows.
type TicketHistoryRepository interface {
	// Append writes every row in one batch and fills in ids and timestamps.
	Append(ctx context.Context, rows []domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Append(ctx context.Context, rows []domain.TicketHistory) error {
	if len(rows) == 0 {
		return nil
	}
	const query = `
        INSERT INTO ticket_histories (id, ticket_id, delta_idx, label, old_value, new_value, actor)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`

	batch := &pgx.Batch{}
	for i := range rows {
		row := &rows[i]
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		batch.Queue(query, row.ID, row.TicketID, row.DeltaIndex, row.Label, row.OldValue, row.NewValue, row.Actor).
			QueryRow(func(scan pgx.Row) error {
				return scan.Scan(&row.CreatedAt)
			})
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("append %d history rows: %w", len(rows), err)
	}
	return nil
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, delta_idx, label, old_value, new_value, actor, created_at
        FROM ticket_histories WHERE ticket_id=$1 ORDER BY created_at ASC, delta_idx ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketHistory, error) {
		var h domain.TicketHistory
		err := row.Scan(&h.ID, &h.TicketID, &h.DeltaIndex, &h.Label, &h.OldValue, &h.NewValue, &h.Actor, &h.CreatedAt)
		return h, err
	})
}
