package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/events"
	"github.com/thnhpht/ITS/internal/observability"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

// TicketWriter is the ticket store surface the dispatcher writes through.
type TicketWriter interface {
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error
	UpdateSLA(ctx context.Context, id string, stamp domain.SLAStamp) error
	UpdateFollowUpSLA(ctx context.Context, id string, due time.Time) error
}

// Handoff sends a ticket to the external ticketing system.
type Handoff interface {
	Dispatch(ctx context.Context, in DispatchInput) error
}

// Mailer queues a notification email.
type Mailer interface {
	Enqueue(ctx context.Context, in DispatchInput) error
}

// Action is what the dispatcher decided to do with a delta.
type Action string

const (
	ActionNone     Action = "none"
	ActionNoOp     Action = "noop"
	ActionPersist  Action = "persist_status"
	ActionFollowUp Action = "follow_up_sla"
	ActionHandoff  Action = "handoff"
	ActionEmail    Action = "email"
)

// DispatchInput is everything resolved for one delta before dispatch.
type DispatchInput struct {
	Delta      domain.Delta
	Labels     domain.Labels
	Rule       domain.RoutingRule
	SLA        SLAResult
	Recipients RecipientResult
	// Stamp is set by the dispatcher once SLA due dates are computed.
	Stamp *domain.SLAStamp
}

// Decision is the pure outcome of the transition table.
type Decision struct {
	Action Action
	Status domain.TicketStatus
	Reason string
}

// DispatchOutcome reports what was executed.
type DispatchOutcome struct {
	Decision
	Stamp       *domain.SLAStamp
	SLAStamped  bool
	EmailQueued bool
	Persisted   bool
	Err         error
}

// WorkflowService is the ticket state machine.
type WorkflowService struct {
	tickets TicketWriter
	sla     *SLAService
	handoff Handoff
	mailer  Mailer
	events  events.Dispatcher
	metrics *observability.Metrics
	logger  *zap.Logger
}

// WorkflowDependencies bundles collaborators for the dispatcher.
type WorkflowDependencies struct {
	Tickets TicketWriter
	SLA     *SLAService
	Handoff Handoff
	Mailer  Mailer
	Events  events.Dispatcher
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

var errNoHandler = errors.New("no handler configured for action")

// NewWorkflowService constructs the dispatcher.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		tickets: deps.Tickets,
		sla:     deps.SLA,
		handoff: deps.Handoff,
		mailer:  deps.Mailer,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// Decide applies the transition table. The first matching row wins; the
// status triggers only apply to manual rules.
func (w *WorkflowService) Decide(in DispatchInput) Decision {
	status := in.Rule.Status
	switch status {
	case "":
		return Decision{Action: ActionNone, Reason: "rule has no status"}
	case domain.StatusClosedOrForwarded:
		return Decision{Action: ActionNoOp, Reason: "closed or forwarded"}
	}

	if in.Delta.ProcessingLevel.IsFollowUp() {
		return Decision{Action: ActionFollowUp, Reason: string(in.Delta.ProcessingLevel)}
	}
	if domain.IsExternalHandoffType(in.Delta.HandoffType) {
		return Decision{Action: ActionHandoff, Status: handoffStatus(status), Reason: "handoff type " + in.Delta.HandoffType}
	}

	switch in.Rule.Mode {
	case domain.ModeManual:
		switch {
		case status == domain.StatusOpen:
			return Decision{Action: ActionPersist, Status: domain.StatusOpen, Reason: "rule opens ticket"}
		case status == domain.StatusForwardedOrClosed:
			if in.Delta.EmailSent {
				return Decision{Action: ActionPersist, Status: domain.StatusForwarded, Reason: "email sent"}
			}
			return Decision{Action: ActionPersist, Status: domain.StatusClosed, Reason: "no email sent"}
		case in.Rule.Channel == domain.ChannelAPI:
			return Decision{Action: ActionHandoff, Status: handoffStatus(status), Reason: "manual api"}
		}
		return Decision{Action: ActionPersist, Status: status, Reason: "manual"}
	case domain.ModeAutomatic:
		switch in.Rule.Channel {
		case domain.ChannelAPI:
			return Decision{Action: ActionHandoff, Status: handoffStatus(status), Reason: "automatic api"}
		case domain.ChannelMail:
			if in.Delta.TicketStatus == domain.StatusClosed {
				return Decision{Action: ActionNone, Reason: "ticket already closed"}
			}
			return Decision{Action: ActionEmail, Status: status, Reason: "automatic mail"}
		}
		return Decision{Action: ActionNone, Reason: "automatic rule without channel"}
	}
	return Decision{Action: ActionNone, Reason: "unknown handling mode"}
}

// handoffStatus is written once a handoff succeeded. A closing rule keeps the
// ticket closed.
func handoffStatus(rule domain.TicketStatus) domain.TicketStatus {
	if rule == domain.StatusClosed {
		return domain.StatusClosed
	}
	return domain.StatusForwarded
}

// Dispatch decides and executes. Side-effect failures are logged; a status
// that depends on the handoff is only written after the handoff succeeded.
func (w *WorkflowService) Dispatch(ctx context.Context, in DispatchInput) DispatchOutcome {
	decision := w.Decide(in)
	out := DispatchOutcome{Decision: decision}
	log := w.logger.With(
		zap.String("ticket_id", in.Delta.TicketID),
		zap.String("ticket_code", in.Delta.TicketCode),
		zap.Int64("delta_index", in.Delta.Index),
		zap.String("action", string(decision.Action)),
		zap.String("rule_status", string(in.Rule.Status)),
		zap.String("channel", string(in.Rule.Channel)),
	)

	if decision.Action == ActionNone || decision.Action == ActionNoOp {
		log.Info("dispatch skipped", zap.String("reason", decision.Reason))
		w.metrics.RecordDispatch(string(decision.Action), "skipped")
		return out
	}

	if in.SLA.TotalMinutes > 0 {
		stamp := w.sla.Stamp(in.Delta.Classification.L1, in.Delta.ClockStart(), in.SLA)
		in.Stamp = &stamp
		out.Stamp = &stamp
		if err := w.tickets.UpdateSLA(ctx, in.Delta.TicketID, stamp); err != nil {
			log.Error("sla stamp failed", zap.Int("sla_minutes", stamp.TotalMinutes), zap.Error(err))
		} else {
			out.SLAStamped = true
			w.publish(ctx, events.EventSLAStamped, in.Delta.TicketID, events.SLAStampedPayload{
				TotalMinutes:    stamp.TotalMinutes,
				ResponseMinutes: stamp.ResponseMinutes,
				DueAt:           stamp.ResolutionDueAt,
			})
		}
	}

	switch decision.Action {
	case ActionPersist:
		out.Err = w.persist(ctx, in, decision)
		out.Persisted = out.Err == nil

	case ActionFollowUp:
		if in.SLA.TotalMinutes <= 0 {
			log.Info("no follow-up sla applies")
			break
		}
		due := w.sla.FollowUpDue(in.Delta.Classification.L1, in.Delta.ModifiedAt, in.SLA.TotalMinutes)
		if err := w.tickets.UpdateFollowUpSLA(ctx, in.Delta.TicketID, due); err != nil {
			log.Error("follow-up sla stamp failed", zap.Error(err))
			out.Err = err
			break
		}
		w.publish(ctx, events.EventSLAStamped, in.Delta.TicketID, events.SLAStampedPayload{
			TotalMinutes: in.SLA.TotalMinutes,
			DueAt:        due,
			FollowUp:     true,
		})

	case ActionHandoff:
		if w.handoff == nil {
			out.Err = errNoHandler
			break
		}
		if err := w.handoff.Dispatch(ctx, in); err != nil {
			if decision.Status == domain.StatusClosed && apperrors.Classify(err) == apperrors.KindMalformed {
				log.Info("closing rule has no api target, closing without handoff")
				out.Err = w.persist(ctx, in, decision)
				out.Persisted = out.Err == nil
				break
			}
			log.Error("handoff failed, status left unchanged", zap.Error(err))
			out.Err = err
			break
		}
		w.publish(ctx, events.EventHandoffQueued, in.Delta.TicketID, events.HandoffQueuedPayload{API: in.Rule.API})
		out.Err = w.persist(ctx, in, decision)
		out.Persisted = out.Err == nil

	case ActionEmail:
		switch err := w.enqueueEmail(ctx, in); {
		case errors.Is(err, ErrNoRecipients):
			log.Info("no recipients, email not queued")
		case err != nil:
			log.Error("email enqueue failed", zap.Error(err))
		default:
			out.EmailQueued = true
			w.publish(ctx, events.EventEmailQueued, in.Delta.TicketID, events.EmailQueuedPayload{
				Recipients: len(in.Recipients.Addresses),
			})
		}
		out.Err = w.persist(ctx, in, decision)
		out.Persisted = out.Err == nil
	}

	result := "ok"
	if out.Err != nil {
		result = "failed"
	}
	w.metrics.RecordDispatch(string(decision.Action), result)
	log.Info("dispatch finished",
		zap.String("status", string(decision.Status)),
		zap.String("reason", decision.Reason),
		zap.Bool("persisted", out.Persisted),
		zap.Int("recipients", len(in.Recipients.Addresses)),
		zap.Int("sla_minutes", in.SLA.TotalMinutes),
		zap.Error(out.Err),
	)
	return out
}

func (w *WorkflowService) enqueueEmail(ctx context.Context, in DispatchInput) error {
	if w.mailer == nil {
		return errNoHandler
	}
	return w.mailer.Enqueue(ctx, in)
}

func (w *WorkflowService) persist(ctx context.Context, in DispatchInput, d Decision) error {
	if err := w.tickets.UpdateStatus(ctx, in.Delta.TicketID, d.Status); err != nil {
		w.logger.Error("persist status failed",
			zap.String("ticket_id", in.Delta.TicketID),
			zap.String("status", string(d.Status)),
			zap.Error(err),
		)
		return err
	}
	w.publish(ctx, events.EventStatusPersisted, in.Delta.TicketID, events.StatusPersistedPayload{
		Status: d.Status,
		Reason: d.Reason,
	})
	return nil
}

func (w *WorkflowService) publish(ctx context.Context, t events.EventType, ticketID string, payload interface{}) {
	if w.events == nil {
		return
	}
	if err := w.events.Publish(ctx, events.New(t, ticketID, payload)); err != nil {
		w.logger.Warn("event publish failed", zap.String("event", string(t)), zap.Error(err))
	}
}
