package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/repository"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

// TicketFinder loads a stored ticket by its code.
type TicketFinder interface {
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
}

// TicketRecipients is the recipient resolution for a stored ticket.
type TicketRecipients struct {
	Ticket     *domain.Ticket
	Labels     domain.Labels
	Recipients RecipientResult
}

// LookupService answers read-only operator queries.
type LookupService struct {
	tickets    TicketFinder
	taxonomy   *TaxonomyService
	recipients *RecipientService
	logger     *zap.Logger
}

// LookupDependencies bundles collaborators for operator lookups.
type LookupDependencies struct {
	Tickets    TicketFinder
	Taxonomy   *TaxonomyService
	Recipients *RecipientService
	Logger     *zap.Logger
}

// NewLookupService constructs the service.
func NewLookupService(deps LookupDependencies) *LookupService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupService{
		tickets:    deps.Tickets,
		taxonomy:   deps.Taxonomy,
		recipients: deps.Recipients,
		logger:     logger,
	}
}

// RecipientsForTicket resolves the mail recipients a stored ticket would get.
func (s *LookupService) RecipientsForTicket(ctx context.Context, code string) (TicketRecipients, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return TicketRecipients{}, apperrors.NewValidationError("ticket code is required", nil)
	}
	ticket, err := s.tickets.GetByCode(ctx, code)
	if repository.IsNotFound(err) {
		return TicketRecipients{}, apperrors.NewNotFound("ticket", map[string]any{"code": code})
	}
	if err != nil {
		return TicketRecipients{}, apperrors.NewDependencyUnavailable("postgres", err)
	}

	labels := s.taxonomy.ResolveAll(ctx, ticket.Classification)
	res := s.recipients.Resolve(ctx, RecipientQuery{
		Labels:  labels,
		Segment: ticket.Segment,
		Unit:    domain.ParseUnitCode(ticket.Unit),
	})
	if res.Kind == ResultFailed {
		return TicketRecipients{}, res.Err
	}
	return TicketRecipients{Ticket: ticket, Labels: labels, Recipients: res}, nil
}
