package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/queue"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

// ErrNoRecipients means resolution produced no addresses; nothing is queued.
var ErrNoRecipients = errors.New("no recipients resolved")

// EmailService renders notification emails and queues them for the mailer.
type EmailService struct {
	templates *TemplateService
	publisher queue.Publisher
	queue     string
	location  *time.Location
	logger    *zap.Logger
}

// EmailDependencies bundles collaborators for email.
type EmailDependencies struct {
	Templates *TemplateService
	Publisher queue.Publisher
	Queue     string
	Location  *time.Location
	Logger    *zap.Logger
}

// NewEmailService constructs the service.
func NewEmailService(deps EmailDependencies) *EmailService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &EmailService{
		templates: deps.Templates,
		publisher: deps.Publisher,
		queue:     deps.Queue,
		location:  loc,
		logger:    logger,
	}
}

// Enqueue builds the email for the rule's template and publishes it.
func (e *EmailService) Enqueue(ctx context.Context, in DispatchInput) error {
	if len(in.Recipients.Addresses) == 0 {
		return ErrNoRecipients
	}
	msg, err := e.Build(ctx, in)
	if err != nil {
		return err
	}
	if err := queue.PublishJSON(ctx, e.publisher, e.queue, msg); err != nil {
		return apperrors.NewDependencyUnavailable("mail queue", err)
	}
	e.logger.Info("email queued",
		zap.String("ticket_id", in.Delta.TicketID),
		zap.String("ticket_code", in.Delta.TicketCode),
		zap.Int("recipients", len(msg.To)),
	)
	return nil
}

// Build renders the message. A rule without a template sends the ticket
// content under the ticket code.
func (e *EmailService) Build(ctx context.Context, in DispatchInput) (domain.EmailMessage, error) {
	d := in.Delta
	msg := domain.EmailMessage{
		Ticket:     d.TicketID,
		TicketCode: d.TicketCode,
		To:         in.Recipients.Addresses,
		Subject:    d.TicketCode,
		Body:       e.templates.Sanitize(d.Content),
		CreatedBy:  d.CreatedBy,
	}

	data := templateData(in, e.location)
	if in.Stamp != nil {
		msg.ResponseDue = formatDisplayTime(in.Stamp.ResponseDueAt, e.location)
		data["sla_phanHoiKH"] = msg.ResponseDue
	}

	if in.Rule.Email == "" {
		return msg, nil
	}
	tpl, err := e.templates.Get(ctx, in.Rule.Email)
	if err != nil {
		return msg, err
	}
	rendered := e.templates.Render(*tpl, data)
	if rendered.Subject != "" {
		msg.Subject = rendered.Subject
	}
	msg.Body = rendered.Body
	return msg, nil
}
