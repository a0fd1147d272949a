package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/events"
)

// NotificationService reports dispatch side effects published on the event bus.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventStatusPersisted, n.handleStatusPersisted)
	n.dispatcher.Subscribe(events.EventSLAStamped, n.handleSLAStamped)
	n.dispatcher.Subscribe(events.EventHandoffQueued, n.handleGeneric)
	n.dispatcher.Subscribe(events.EventEmailQueued, n.handleGeneric)
	n.dispatcher.Subscribe(events.EventAuditRecorded, n.handleGeneric)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleGeneric)
}

func (n *NotificationService) handleStatusPersisted(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StatusPersistedPayload)
	if !ok {
		return n.handleGeneric(context.Background(), event)
	}
	n.logger.Info("TicketStatusPersisted",
		zap.String("ticket_id", event.TicketID),
		zap.String("status", string(payload.Status)),
		zap.String("reason", payload.Reason))
	return nil
}

func (n *NotificationService) handleSLAStamped(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLAStampedPayload)
	if !ok {
		return n.handleGeneric(context.Background(), event)
	}
	n.logger.Info("TicketSLAStamped",
		zap.String("ticket_id", event.TicketID),
		zap.Int("sla_minutes", payload.TotalMinutes),
		zap.Time("due_at", payload.DueAt),
		zap.Bool("follow_up", payload.FollowUp))
	return nil
}

func (n *NotificationService) handleGeneric(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}
