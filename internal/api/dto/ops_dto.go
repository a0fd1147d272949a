package dto

import "time"

// LoginRequest payload for operator login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResolutionRequest is the body the external ticketing system sends when a
// handed-off ticket is resolved.
type ResolutionRequest struct {
	Content     string   `json:"itsContent"`
	Handler     string   `json:"pic"`
	Attachments []string `json:"attachFiles"`
}

// ResolutionResponse acknowledges a resolution.
type ResolutionResponse struct {
	TicketID   string `json:"ticket_id"`
	TicketCode string `json:"ticket_code"`
	Status     string `json:"status"`
}

// PreviewRequest describes a classification to route without side effects.
type PreviewRequest struct {
	TicketID        string `json:"ticket_id"`
	TicketCode      string `json:"ticket_code"`
	L1              string `json:"l1"`
	L2              string `json:"l2"`
	L3              string `json:"l3"`
	L4              string `json:"l4"`
	L5              string `json:"l5"`
	Segment         string `json:"segment"`
	Unit            string `json:"unit"`
	ProcessingLevel string `json:"processing_level"`
	Priority        string `json:"priority"`
	TicketStatus    string `json:"ticket_status"`
	HandoffType     string `json:"handoff_type"`
	EmailSent       bool   `json:"email_sent"`
}

// LabelsResponse holds resolved taxonomy names.
type LabelsResponse struct {
	L1 string `json:"l1"`
	L2 string `json:"l2"`
	L3 string `json:"l3"`
	L4 string `json:"l4"`
}

// RuleResponse is a matched routing rule.
type RuleResponse struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Mode    string `json:"mode"`
	Channel string `json:"channel"`
	API     string `json:"api,omitempty"`
	Email   string `json:"email,omitempty"`
}

// SLAResponse is the SLA lookup outcome.
type SLAResponse struct {
	PolicyID        int64  `json:"policy_id,omitempty"`
	TotalMinutes    int    `json:"total_minutes"`
	ResponseMinutes int    `json:"response_minutes"`
	TotalDays       int    `json:"total_days"`
	Result          string `json:"result"`
}

// RecipientsResponse is the recipient resolution outcome.
type RecipientsResponse struct {
	Addresses  []string `json:"addresses"`
	Tier       string   `json:"tier"`
	Result     string   `json:"result"`
	JobcodeKey string   `json:"jobcode_key,omitempty"`
}

// DecisionResponse is the workflow action the router would take.
type DecisionResponse struct {
	Action string `json:"action"`
	Status string `json:"status,omitempty"`
	Reason string `json:"reason"`
}

// PreviewResponse is the full routing preview.
type PreviewResponse struct {
	Labels     LabelsResponse      `json:"labels"`
	Rule       *RuleResponse       `json:"rule,omitempty"`
	SLA        SLAResponse         `json:"sla"`
	Recipients *RecipientsResponse `json:"recipients,omitempty"`
	Decision   DecisionResponse    `json:"decision"`
}

// RecipientLookupRequest names a stored ticket.
type RecipientLookupRequest struct {
	TicketCode string `json:"ticket_code"`
}

// RecipientLookupResponse is the recipient resolution for a stored ticket.
type RecipientLookupResponse struct {
	TicketID   string             `json:"ticket_id"`
	TicketCode string             `json:"ticket_code"`
	Labels     LabelsResponse     `json:"labels"`
	Recipients RecipientsResponse `json:"recipients"`
}
