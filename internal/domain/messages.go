package domain

// HandoffMessage is the flat JSON payload published to the API queue.
type HandoffMessage struct {
	Type        string `json:"type"`
	Ticket      string `json:"ticket"`
	Template    string `json:"template"`
	Message     string `json:"message"`
	Attachments string `json:"attachments"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	PhoneNumber string `json:"phone_number"`
}

// EmailMessage is the payload published to the mail queue.
type EmailMessage struct {
	Ticket      string   `json:"ticket"`
	TicketCode  string   `json:"ticket_code"`
	To          []string `json:"to"`
	Cc          []string `json:"cc,omitempty"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	CreatedBy   string   `json:"created_by"`
	ResponseDue string   `json:"response_due,omitempty"`
}

// APICallLog records one external API exchange.
type APICallLog struct {
	Host          string `json:"Host"`
	Path          string `json:"Path"`
	RequestBody   string `json:"RequestBody"`
	RequestHeader string `json:"RequestHeader"`
	RequestDate   string `json:"RequestDate"`
	ResponseDate  string `json:"ResponseDate"`
	StatusCode    int    `json:"StatusCode"`
	Response      string `json:"Response"`
}
