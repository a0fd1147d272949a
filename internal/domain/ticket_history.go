package domain

import "time"

// FieldChange is one row of an audit diff.
type FieldChange struct {
	Label string
	Old   string
	New   string
	Actor string
}

// AuditEntry is the diff recorded for one processed delta.
type AuditEntry struct {
	TicketID   string
	DeltaIndex int64
	Changes    []FieldChange
	Note       string
}

// TicketHistory is an immutable audit trail row.
type TicketHistory struct {
	ID         string
	TicketID   string
	DeltaIndex int64
	Label      string
	OldValue   string
	NewValue   string
	Actor      string
	CreatedAt  time.Time
}
