package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/config"
	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/observability"
	"github.com/thnhpht/ITS/internal/queue"
	"github.com/thnhpht/ITS/internal/repository"
	"github.com/thnhpht/ITS/internal/ticketapi"
)

// Consumer outcomes, reported in logs and metrics.
const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
	OutcomeMalformed = "malformed"
	OutcomeDryRun    = "dry_run"
	OutcomeFailed    = "failed"
)

// RefStore reads tickets and stores external references.
type RefStore interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateRefNo(ctx context.Context, id, refNo string) error
}

// ExternalAPI is the external ticketing surface the consumer calls.
type ExternalAPI interface {
	Create(ctx context.Context, system string, req ticketapi.CreateRequest) (ticketapi.Outcome, error)
	Update(ctx context.Context, system, refID string, req ticketapi.UpdateRequest) (ticketapi.Outcome, error)
	Templates(ctx context.Context, system string) ([]ticketapi.Template, error)
}

// HandoffConsumer drains the API queue into the external ticketing system.
type HandoffConsumer struct {
	consumer queue.Consumer
	queue    string
	tickets  RefStore
	api      ExternalAPI
	cfg      config.TicketAPIConfig
	retry    time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// HandoffConsumerDependencies bundles collaborators for the consumer.
type HandoffConsumerDependencies struct {
	Consumer queue.Consumer
	Queue    string
	Tickets  RefStore
	API      ExternalAPI
	Config   config.TicketAPIConfig
	Retry    time.Duration
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewHandoffConsumer constructs the consumer.
func NewHandoffConsumer(deps HandoffConsumerDependencies) *HandoffConsumer {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HandoffConsumer{
		consumer: deps.Consumer,
		queue:    deps.Queue,
		tickets:  deps.Tickets,
		api:      deps.API,
		cfg:      deps.Config,
		retry:    deps.Retry,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// Run consumes until ctx is cancelled. Fetch failures are logged and the
// loop continues after the retry delay.
func (c *HandoffConsumer) Run(ctx context.Context) error {
	c.logger.Info("handoff consumer started", zap.String("queue", c.queue), zap.Bool("dry_run", c.cfg.DryRun))
	for {
		if ctx.Err() != nil {
			c.logger.Info("handoff consumer stopped")
			return nil
		}
		payload, err := c.consumer.Pop(ctx, c.queue)
		switch {
		case errors.Is(err, queue.ErrEmpty):
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("queue fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.retry):
			}
			continue
		}
		c.Handle(ctx, payload)
	}
}

// Handle processes one message and returns its outcome. It never panics.
func (c *HandoffConsumer) Handle(ctx context.Context, payload []byte) (outcome string) {
	msgID := uuid.NewString()
	log := c.logger.With(zap.String("message_id", msgID), zap.String("payload", queue.Preview(payload)))
	defer func() {
		if r := recover(); r != nil {
			log.Error("handoff message panicked", zap.Any("panic", r), zap.Stack("stack"))
			outcome = OutcomeFailed
		}
		c.metrics.RecordConsumed(outcome)
	}()

	var msg domain.HandoffMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Warn("malformed handoff message", zap.Error(err))
		return OutcomeMalformed
	}
	if msg.Ticket == "" || msg.Type == "" || msg.Message == "" {
		log.Warn("handoff message missing required fields")
		return OutcomeSkipped
	}
	log = c.logger.With(zap.String("message_id", msgID), zap.String("ticket_id", msg.Ticket), zap.String("api", msg.Type))

	target, err := domain.ParseAPITarget(msg.Message)
	if err != nil {
		log.Warn("handoff message has invalid api target", zap.Error(err))
		return OutcomeMalformed
	}

	ticket, err := c.tickets.GetByID(ctx, msg.Ticket)
	if repository.IsNotFound(err) {
		log.Warn("ticket not found")
		return OutcomeSkipped
	}
	if err != nil {
		log.Error("ticket lookup failed", zap.Error(err))
		return OutcomeFailed
	}

	refs := splitRefs(ticket.RefNo)
	if len(refs) > 0 && ticket.Status != domain.StatusForwarded {
		log.Info("ticket already handed off", zap.String("ref_no", ticket.RefNo))
		return OutcomeDuplicate
	}
	if c.cfg.DryRun {
		log.Info("dry run, external api not called")
		return OutcomeDryRun
	}

	system := domain.APIHO
	if msg.Type == domain.APIITS {
		system = domain.APIITS
	}
	attachments := ticketapi.AttachmentURLs(c.cfg.CRMFileHost, ticket.ID, msg.Attachments)
	description := msg.Description
	if c.cfg.CRMTextHost != "" {
		description = strings.ReplaceAll(description, c.cfg.CRMTextHost, c.cfg.CRMFileHost)
	}

	var (
		out    ticketapi.Outcome
		newRef string
		op     string
	)
	if len(refs) > 0 {
		out, err = c.api.Update(ctx, system, refs[len(refs)-1], ticketapi.UpdateRequest{
			PhoneNumber: msg.PhoneNumber,
			Attachments: attachments,
			Description: description,
		})
		newRef = ticket.RefNo + ";" + out.RequestID
		op = OutcomeUpdated
	} else {
		templateID := c.templateID(ctx, system, target.TemplateLookupCode(), log)
		out, err = c.api.Create(ctx, system, ticketapi.CreateRequest{
			Subject:     msg.Subject,
			PhoneNumber: msg.PhoneNumber,
			TemplateID:  templateID,
			CatID:       target.Category.ID,
			SubCatID:    target.SubCategory.ID,
			ItemID:      target.Item.ID,
			Attachments: attachments,
			ComplainID:  ticket.Code,
			Description: description,
		})
		newRef = out.RequestID
		op = OutcomeCreated
	}
	if err == nil && out.RequestID == "" {
		err = ticketapi.ErrNoRequestID
	}
	if err != nil {
		log.Error("external api call failed", zap.String("op", op), zap.String("code", out.Code), zap.Error(err))
		return OutcomeFailed
	}

	if err := c.tickets.UpdateRefNo(ctx, ticket.ID, newRef); err != nil {
		log.Error("store reference failed", zap.String("ref_no", newRef), zap.Error(err))
		return OutcomeFailed
	}
	log.Info("handoff delivered", zap.String("outcome", op), zap.String("ref_no", newRef))
	return op
}

func (c *HandoffConsumer) templateID(ctx context.Context, system, prefix string, log *zap.Logger) string {
	templates, err := c.api.Templates(ctx, system)
	if err != nil {
		log.Warn("template catalogue unavailable", zap.Error(err))
		return ""
	}
	id, ok := ticketapi.FindTemplateID(templates, prefix)
	if !ok {
		log.Info("no external template for prefix", zap.String("prefix", prefix))
	}
	return id
}

func splitRefs(raw string) []string {
	var refs []string
	for _, r := range strings.Split(raw, ";") {
		if r = strings.TrimSpace(r); r != "" {
			refs = append(refs, r)
		}
	}
	return refs
}
