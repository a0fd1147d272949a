package domain

import (
	"errors"
	"strings"
	"time"
)

// Delta change kinds as written by the intake side.
const (
	DeltaInserted   = "Inserted"
	DeltaUpdated    = "Updated"
	DeltaDoneSuffix = "-Done"
)

var (
	ErrMissingTicketID       = errors.New("delta has no ticket id")
	ErrMissingClassification = errors.New("delta has no level 1 classification")
)

// Delta is one pending change record for a ticket.
type Delta struct {
	Index           int64
	TicketID        string
	TicketCode      string
	ChangeKind      string
	Classification  Classification
	Segment         Segment
	Unit            string
	ProcessingLevel ProcessingLevel
	Priority        string
	TicketStatus    TicketStatus
	Source          string
	Content         string
	Resolution      string
	Approver        string
	ApprovalStatus  string
	HandoffType     string
	EmailSent       bool
	CustomerName    string
	CIF             string
	Phone           string
	Attachments     string
	ResponseSLA     string
	FirstPassSLA    string
	FollowUpSLA     string
	ReceivedAt      time.Time
	CreatedBy       string
	ModifiedBy      string
	ModifiedAt      time.Time
}

// Validate rejects deltas that cannot be routed at all.
func (d Delta) Validate() error {
	if strings.TrimSpace(d.TicketID) == "" {
		return ErrMissingTicketID
	}
	if strings.TrimSpace(d.Classification.L1) == "" {
		return ErrMissingClassification
	}
	return nil
}

// IsFirstPass reports whether the delta is a first-pass change.
func (d Delta) IsFirstPass() bool {
	return d.ProcessingLevel == LevelFirstPass
}

// ClockStart is the instant SLA budgets count from.
func (d Delta) ClockStart() time.Time {
	if !d.ReceivedAt.IsZero() {
		return d.ReceivedAt
	}
	return d.ModifiedAt
}

// LevelSLA is the SLA text shown in templates for the delta's pass.
func (d Delta) LevelSLA() string {
	if d.IsFirstPass() {
		return d.FirstPassSLA
	}
	return d.FollowUpSLA
}
