package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/queue"
	"github.com/thnhpht/ITS/internal/routing"
	"github.com/thnhpht/ITS/internal/rules"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

const displayTimeLayout = "02/01/2006 15:04"

// MailTagWriter stores the tag of a ticket handed off to an external system.
type MailTagWriter interface {
	UpdateMailTag(ctx context.Context, id, tag string) error
}

// HandoffService builds external ticket handoff messages and queues them
// for the handoff consumer.
type HandoffService struct {
	tickets   MailTagWriter
	templates *TemplateService
	rules     *rules.Set
	publisher queue.Publisher
	queue     string
	location  *time.Location
	logger    *zap.Logger
}

// HandoffDependencies bundles collaborators for handoff.
type HandoffDependencies struct {
	Tickets   MailTagWriter
	Templates *TemplateService
	Rules     *rules.Set
	Publisher queue.Publisher
	Queue     string
	Location  *time.Location
	Logger    *zap.Logger
}

// NewHandoffService constructs the service.
func NewHandoffService(deps HandoffDependencies) *HandoffService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &HandoffService{
		tickets:   deps.Tickets,
		templates: deps.Templates,
		rules:     deps.Rules,
		publisher: deps.Publisher,
		queue:     deps.Queue,
		location:  loc,
		logger:    logger,
	}
}

// Dispatch tags the ticket, validates the API target carried by the rule
// status and publishes the handoff message.
func (h *HandoffService) Dispatch(ctx context.Context, in DispatchInput) error {
	api := in.Rule.API
	log := h.logger.With(
		zap.String("ticket_id", in.Delta.TicketID),
		zap.String("ticket_code", in.Delta.TicketCode),
		zap.String("api", api),
	)

	if tag := h.rules.MailTag(api, in.Delta.Classification.L1); tag != "" {
		if err := h.tickets.UpdateMailTag(ctx, in.Delta.TicketID, tag); err != nil {
			log.Error("update mail tag failed", zap.String("tag", tag), zap.Error(err))
		}
	}

	if _, err := domain.ParseAPITarget(string(in.Rule.Status)); err != nil {
		log.Warn("handoff refused", zap.String("status", string(in.Rule.Status)), zap.Error(err))
		return apperrors.NewMalformedInput("handoff refused: invalid api target", map[string]any{
			"status": string(in.Rule.Status),
		})
	}

	msg := h.Build(ctx, in)
	if err := queue.PublishJSON(ctx, h.publisher, h.queue, msg); err != nil {
		return apperrors.NewDependencyUnavailable("api queue", err)
	}
	log.Info("handoff queued", zap.String("queue", h.queue), zap.String("subject", msg.Subject))
	return nil
}

// Build assembles the handoff message. Without a matching presentation the
// subject is the ticket code and the description the ticket content.
func (h *HandoffService) Build(ctx context.Context, in DispatchInput) domain.HandoffMessage {
	d := in.Delta
	msg := domain.HandoffMessage{
		Type:        in.Rule.API,
		Ticket:      d.TicketID,
		Message:     string(in.Rule.Status),
		Attachments: d.Attachments,
		Subject:     d.TicketCode,
		Description: d.Content,
		PhoneNumber: d.Phone,
	}

	labels := routing.Key{L1: in.Labels.L1, L2: in.Labels.L2, L3: in.Labels.L3}
	ids := routing.Key{L1: d.Classification.L1, L2: d.Classification.L2, L3: d.Classification.L3}
	pres, ok := h.rules.HandoffTemplateFor(in.Rule.API, labels, ids)
	if !ok {
		return msg
	}

	data := templateData(in, h.location)
	if pres.LevelShift {
		data["NhomYeuCau"] = in.Labels.L3
		data["DanhMucYeuCau"] = in.Labels.L4
	}
	if pres.Subject != "" {
		msg.Subject = h.templates.FillText(pres.Subject, data)
	}
	if pres.Template == "" {
		return msg
	}

	tpl, err := h.templates.Get(ctx, pres.Template)
	if err != nil {
		h.logger.Warn("handoff template unavailable",
			zap.String("ticket_id", d.TicketID),
			zap.String("template", pres.Template),
			zap.Error(err),
		)
		return msg
	}
	rendered := h.templates.Render(*tpl, data)
	msg.Description = rendered.Body
	if tpl.Subject != "" {
		msg.Subject = rendered.Subject
	}
	return msg
}

// templateData is the placeholder set shared by handoff and email templates.
func templateData(in DispatchInput, loc *time.Location) map[string]string {
	d := in.Delta
	return map[string]string{
		"maTicket":          d.TicketCode,
		"MucDo":             d.Priority,
		"CapDoXuLy":         string(d.ProcessingLevel),
		"thoigian_Tiepnhan": formatDisplayTime(d.ReceivedAt, loc),
		"sla":               d.LevelSLA(),
		"cif":               d.CIF,
		"DonViGan":          d.Unit,
		"companyCode":       d.Unit,
		"sla_phanHoiKH":     "",
		"customerName":      d.CustomerName,
		"phoneNumber":       d.Phone,
		"phone_number":      d.Phone,
		"NhomYeuCau":        in.Labels.L2,
		"DanhMucYeuCau":     in.Labels.L3,
		"content":           d.Content,
		"nguoiTao":          d.CreatedBy,
		"l1":                in.Labels.L1,
		"l2":                in.Labels.L2,
		"l3":                in.Labels.L3,
		"l4":                in.Labels.L4,
	}
}

func formatDisplayTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(displayTimeLayout)
}
