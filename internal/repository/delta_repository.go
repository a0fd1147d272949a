package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thnhpht/ITS/internal/domain"
)

// PendingFilter narrows the pending delta query.
type PendingFilter struct {
	// ExcludeModifiers drops deltas written by automated actors.
	ExcludeModifiers []string
	Limit            int
}

// DeltaRepository reads pending ticket deltas and marks them processed.
type DeltaRepository interface {
	FetchPending(ctx context.Context, filter PendingFilter) ([]domain.Delta, error)
	GetPrevious(ctx context.Context, ticketID string, beforeIndex int64) (*domain.Delta, error)
	Claim(ctx context.Context, index int64) (bool, error)
	MarkDone(ctx context.Context, index int64, note string) error
}

type deltaRepository struct {
	pool *pgxpool.Pool
}

// NewDeltaRepository instantiates repository. Pass the primary pool so a
// delta marked processed is never fetched again by a lagging replica.
func NewDeltaRepository(pool *pgxpool.Pool) DeltaRepository {
	return &deltaRepository{pool: pool}
}

const deltaColumns = `idx, ticket_id, ticket_code, change_kind, l1, l2, l3, l4, l5, segment, unit,
             processing_level, priority, ticket_status, source, content, resolution,
             approver, approval_status, handoff_type, email_sent, customer_name, cif, phone,
             attachments, response_sla, first_pass_sla, follow_up_sla, received_at,
             created_by, modified_by, modified_at`

func (r *deltaRepository) FetchPending(ctx context.Context, filter PendingFilter) ([]domain.Delta, error) {
	args := []any{domain.DeltaInserted, domain.DeltaUpdated, domain.StatusClosed}
	clauses := []string{
		"change_kind IN ($1, $2)",
		"processed = FALSE",
		"l1 <> ''",
		"ticket_status <> $3",
	}
	if len(filter.ExcludeModifiers) > 0 {
		placeholders := make([]string, len(filter.ExcludeModifiers))
		for i, actor := range filter.ExcludeModifiers {
			args = append(args, actor)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("modified_by NOT IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 1
	}

	query := fmt.Sprintf(`SELECT %s FROM ticket_deltas WHERE %s ORDER BY modified_at ASC, idx ASC LIMIT %d`,
		deltaColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Delta
	for rows.Next() {
		delta, err := scanDelta(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *delta)
	}
	return result, rows.Err()
}

// GetPrevious returns the latest delta of the ticket before beforeIndex.
func (r *deltaRepository) GetPrevious(ctx context.Context, ticketID string, beforeIndex int64) (*domain.Delta, error) {
	query := fmt.Sprintf(`SELECT %s FROM ticket_deltas WHERE ticket_id=$1 AND idx < $2 ORDER BY idx DESC LIMIT 1`, deltaColumns)
	return scanDelta(r.pool.QueryRow(ctx, query, ticketID, beforeIndex))
}

// Claim flips the processed flag of a pending delta. It reports false when
// another cycle already claimed it.
func (r *deltaRepository) Claim(ctx context.Context, index int64) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE ticket_deltas SET processed = TRUE WHERE idx = $1 AND processed = FALSE`, index)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkDone suffixes the change kind of a claimed delta and appends note to
// the running log.
func (r *deltaRepository) MarkDone(ctx context.Context, index int64, note string) error {
	const query = `
        UPDATE ticket_deltas
        SET change_kind = change_kind || $1, note = note || $2
        WHERE idx = $3 AND processed = TRUE`
	cmd, err := r.pool.Exec(ctx, query, domain.DeltaDoneSuffix, note, index)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanDelta(row pgx.Row) (*domain.Delta, error) {
	var (
		delta      domain.Delta
		cls        = &delta.Classification
		receivedAt *time.Time
	)
	if err := row.Scan(
		&delta.Index,
		&delta.TicketID,
		&delta.TicketCode,
		&delta.ChangeKind,
		&cls.L1, &cls.L2, &cls.L3, &cls.L4, &cls.L5,
		&delta.Segment,
		&delta.Unit,
		&delta.ProcessingLevel,
		&delta.Priority,
		&delta.TicketStatus,
		&delta.Source,
		&delta.Content,
		&delta.Resolution,
		&delta.Approver,
		&delta.ApprovalStatus,
		&delta.HandoffType,
		&delta.EmailSent,
		&delta.CustomerName,
		&delta.CIF,
		&delta.Phone,
		&delta.Attachments,
		&delta.ResponseSLA,
		&delta.FirstPassSLA,
		&delta.FollowUpSLA,
		&receivedAt,
		&delta.CreatedBy,
		&delta.ModifiedBy,
		&delta.ModifiedAt,
	); err != nil {
		return nil, err
	}
	if receivedAt != nil {
		delta.ReceivedAt = *receivedAt
	}
	return &delta, nil
}
