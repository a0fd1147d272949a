package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/thnhpht/ITS/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventStatusPersisted EventType = "ticket_status_persisted"
	EventSLAStamped      EventType = "ticket_sla_stamped"
	EventHandoffQueued   EventType = "ticket_handoff_queued"
	EventEmailQueued     EventType = "ticket_email_queued"
	EventAuditRecorded   EventType = "ticket_audit_recorded"
	EventTicketResolved  EventType = "ticket_resolved"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, ticketID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// StatusPersistedPayload payload.
type StatusPersistedPayload struct {
	Status domain.TicketStatus `json:"status"`
	Reason string              `json:"reason"`
}

// SLAStampedPayload payload.
type SLAStampedPayload struct {
	TotalMinutes    int       `json:"total_minutes"`
	ResponseMinutes int       `json:"response_minutes"`
	DueAt           time.Time `json:"due_at"`
	FollowUp        bool      `json:"follow_up"`
}

// HandoffQueuedPayload payload.
type HandoffQueuedPayload struct {
	API      string `json:"api"`
	Template string `json:"template"`
}

// EmailQueuedPayload payload.
type EmailQueuedPayload struct {
	Recipients int `json:"recipients"`
}

// AuditRecordedPayload payload.
type AuditRecordedPayload struct {
	DeltaIndex int64 `json:"delta_index"`
	Changes    int   `json:"changes"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	RefNo   string `json:"ref_no"`
	Handler string `json:"handler"`
}
