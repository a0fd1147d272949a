package domain

import "time"

// TicketStatus is the workflow status stored on a ticket.
type TicketStatus string

const (
	StatusNew               TicketStatus = "Mới"
	StatusOpen              TicketStatus = "Mở"
	StatusClosed            TicketStatus = "Đóng"
	StatusForwarded         TicketStatus = "Đã chuyển tiếp"
	StatusForwardedOrClosed TicketStatus = "Đã chuyển tiếp/Đóng"
	StatusClosedOrForwarded TicketStatus = "Đóng hoặc Đã chuyển tiếp"
	StatusManualInProgress  TicketStatus = "Đang xử lý thủ công"
	StatusAutoInProgress    TicketStatus = "Đang xử lý tự động"
	StatusProcessed         TicketStatus = "Đã xử lý"
)

// IsTerminal reports whether no further routing happens from this status.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusClosedOrForwarded
}

// ProcessingLevel distinguishes the first pass from follow-up passes.
type ProcessingLevel string

const (
	LevelFirstPass  ProcessingLevel = "Xử lý lần đầu"
	LevelSecondPass ProcessingLevel = "Xử lý lần 2"
	LevelThirdPass  ProcessingLevel = "Xử lý lần 3"
	LevelFourthPass ProcessingLevel = "Xử lý lần 4"
)

// IsFollowUp reports whether the level is a 2nd, 3rd or 4th pass.
func (l ProcessingLevel) IsFollowUp() bool {
	switch l {
	case LevelSecondPass, LevelThirdPass, LevelFourthPass:
		return true
	}
	return false
}

// HandlingMode is manual (agent driven) or automatic (system driven).
type HandlingMode string

const (
	ModeManual    HandlingMode = "Thủ công"
	ModeAutomatic HandlingMode = "Tự động"
)

// Channel is the side-effect mechanism of a routing rule.
type Channel string

const (
	ChannelNone Channel = ""
	ChannelAPI  Channel = "API"
	ChannelMail Channel = "Mail"
)

// Segment is the customer type.
type Segment string

const (
	SegmentIndividual Segment = "Cá nhân"
	SegmentCorporate  Segment = "Doanh nghiệp"
)

// Downstream API identifiers carried by routing rules.
const (
	APIITS       = "ITS"
	APIHO        = "HO"
	APIHOSupport = "HO SUPPORT"
)

var externalHandoffTypes = map[string]struct{}{
	"Tra soát":     {},
	"Tra soát All": {},
	"Rủi ro":       {},
	"Rủi ro All":   {},
}

// IsExternalHandoffType reports whether a head-office ticket type always goes to the external API.
func IsExternalHandoffType(t string) bool {
	_, ok := externalHandoffTypes[t]
	return ok
}

// Classification holds the opaque taxonomy ids of a ticket.
type Classification struct {
	L1 string
	L2 string
	L3 string
	L4 string
	L5 string
}

// Labels holds resolved taxonomy names; unresolved levels are empty.
type Labels struct {
	L1 string
	L2 string
	L3 string
	L4 string
}

// Ticket is the persisted ticket row as seen by the router.
type Ticket struct {
	ID              string
	Code            string
	Status          TicketStatus
	RefNo           string
	MailTag         string
	Classification  Classification
	Segment         Segment
	Unit            string
	ProcessingLevel ProcessingLevel
	Priority        string
	SLAMinutes      int
	ResponseMinutes int
	TotalDays       int
	ResponseDueAt   *time.Time
	ResolutionDueAt *time.Time
	FollowUpDueAt   *time.Time
	Resolution      string
	ResolvedBy      string
	ResolutionFiles string
	Processed       bool
	ModifiedAt      time.Time
}

// SLAStamp is the set of SLA fields written onto a ticket.
type SLAStamp struct {
	TotalMinutes    int
	ResponseMinutes int
	TotalDays       int
	ResponseDueAt   time.Time
	ResolutionDueAt time.Time
}

// Resolution is the outcome reported back by the external ticketing system.
type Resolution struct {
	Content string
	Handler string
	Files   string
}
