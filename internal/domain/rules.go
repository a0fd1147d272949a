package domain

// RoutingRule is one row of the routing table. Empty L2/L3 are wildcards.
type RoutingRule struct {
	ID      int64
	L1      string
	L2      string
	L3      string
	Status  TicketStatus
	Mode    HandlingMode
	Channel Channel
	API     string
	Email   string
}

// SLAPolicy is one row of the SLA table. Empty L2/L3 are wildcards.
type SLAPolicy struct {
	ID                int64
	L1                string
	L2                string
	L3                string
	ProcessingLevel   ProcessingLevel
	Priority          string
	HandlingMinutes   int
	ClosingMinutes    int
	ForwardingMinutes int
	TotalDays         int
}

// TotalMinutes is the resolution budget.
func (p SLAPolicy) TotalMinutes() int {
	return p.HandlingMinutes + p.ClosingMinutes + p.ForwardingMinutes
}

// EmailTemplate is a stored subject/body pair with {name} placeholders.
type EmailTemplate struct {
	Code    string
	Subject string
	Content string
}
