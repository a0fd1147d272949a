package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thnhpht/ITS/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Point reads go to the
// primary because routing decisions depend on them.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	GetByRef(ctx context.Context, refNo string) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error
	UpdateSLA(ctx context.Context, id string, stamp domain.SLAStamp) error
	UpdateFollowUpSLA(ctx context.Context, id string, due time.Time) error
	UpdateMailTag(ctx context.Context, id, tag string) error
	UpdateRefNo(ctx context.Context, id, refNo string) error
	MarkResolved(ctx context.Context, id string, resolution domain.Resolution) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, code, status, ref_no, mail_tag, l1, l2, l3, l4, l5, segment, unit,
               processing_level, priority, sla_minutes, response_minutes, total_days,
               response_due_at, resolution_due_at, follow_up_due_at,
               resolution, resolved_by, resolution_files, processed, modified_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE code=$1`
	return r.fetchSingle(ctx, query, code)
}

// GetByRef finds the ticket whose reference list contains refNo.
func (r *ticketRepository) GetByRef(ctx context.Context, refNo string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets
        WHERE ref_no <> '' AND $1 = ANY(string_to_array(ref_no, ';'))
        ORDER BY modified_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, refNo)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		cls    = &ticket.Classification
	)
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.Code,
		&ticket.Status,
		&ticket.RefNo,
		&ticket.MailTag,
		&cls.L1, &cls.L2, &cls.L3, &cls.L4, &cls.L5,
		&ticket.Segment,
		&ticket.Unit,
		&ticket.ProcessingLevel,
		&ticket.Priority,
		&ticket.SLAMinutes,
		&ticket.ResponseMinutes,
		&ticket.TotalDays,
		&ticket.ResponseDueAt,
		&ticket.ResolutionDueAt,
		&ticket.FollowUpDueAt,
		&ticket.Resolution,
		&ticket.ResolvedBy,
		&ticket.ResolutionFiles,
		&ticket.Processed,
		&ticket.ModifiedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	return r.exec(ctx, `UPDATE tickets SET status=$1, modified_at=NOW() WHERE id=$2`, status, id)
}

func (r *ticketRepository) UpdateSLA(ctx context.Context, id string, stamp domain.SLAStamp) error {
	const query = `
        UPDATE tickets SET sla_minutes=$1, response_minutes=$2, total_days=$3,
            response_due_at=$4, resolution_due_at=$5, modified_at=NOW()
        WHERE id=$6`
	return r.exec(ctx, query,
		stamp.TotalMinutes,
		stamp.ResponseMinutes,
		stamp.TotalDays,
		stamp.ResponseDueAt,
		stamp.ResolutionDueAt,
		id,
	)
}

func (r *ticketRepository) UpdateFollowUpSLA(ctx context.Context, id string, due time.Time) error {
	return r.exec(ctx, `UPDATE tickets SET follow_up_due_at=$1, modified_at=NOW() WHERE id=$2`, due, id)
}

func (r *ticketRepository) UpdateMailTag(ctx context.Context, id, tag string) error {
	return r.exec(ctx, `UPDATE tickets SET mail_tag=$1 WHERE id=$2`, tag, id)
}

// UpdateRefNo stores the external reference list and flags the handoff as done.
func (r *ticketRepository) UpdateRefNo(ctx context.Context, id, refNo string) error {
	return r.exec(ctx, `UPDATE tickets SET ref_no=$1, processed=TRUE, modified_at=NOW() WHERE id=$2`, refNo, id)
}

func (r *ticketRepository) MarkResolved(ctx context.Context, id string, resolution domain.Resolution) error {
	const query = `
        UPDATE tickets SET status=$1, resolution=$2, resolved_by=$3, resolution_files=$4, modified_at=NOW()
        WHERE id=$5`
	return r.exec(ctx, query,
		domain.StatusProcessed,
		resolution.Content,
		resolution.Handler,
		resolution.Files,
		id,
	)
}

func (r *ticketRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
