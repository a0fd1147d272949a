package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/thnhpht/ITS/internal/api/dto"
	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/service"
)

// RouteResolver runs the side-effect free part of the pipeline.
type RouteResolver interface {
	Resolve(ctx context.Context, delta domain.Delta) service.DispatchInput
}

// Decider maps a resolved input to a workflow action.
type Decider interface {
	Decide(in service.DispatchInput) service.Decision
}

// RecipientLookup resolves recipients for a stored ticket.
type RecipientLookup interface {
	RecipientsForTicket(ctx context.Context, code string) (service.TicketRecipients, error)
}

// RoutingHandler exposes read-only routing diagnostics to operators.
type RoutingHandler struct {
	resolver RouteResolver
	decider  Decider
	lookup   RecipientLookup
}

// NewRoutingHandler constructs handler.
func NewRoutingHandler(resolver RouteResolver, decider Decider, lookup RecipientLookup) *RoutingHandler {
	return &RoutingHandler{resolver: resolver, decider: decider, lookup: lookup}
}

// Preview handles POST /api/v1/routing/preview.
func (h *RoutingHandler) Preview(c *fiber.Ctx) error {
	var req dto.PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.L1 == "" {
		return fiber.NewError(http.StatusBadRequest, "l1 required")
	}

	delta := domain.Delta{
		TicketID:   req.TicketID,
		TicketCode: req.TicketCode,
		Classification: domain.Classification{
			L1: req.L1, L2: req.L2, L3: req.L3, L4: req.L4, L5: req.L5,
		},
		Segment:         domain.Segment(req.Segment),
		Unit:            req.Unit,
		ProcessingLevel: domain.ProcessingLevel(req.ProcessingLevel),
		Priority:        req.Priority,
		TicketStatus:    domain.TicketStatus(req.TicketStatus),
		HandoffType:     req.HandoffType,
		EmailSent:       req.EmailSent,
	}
	in := h.resolver.Resolve(c.UserContext(), delta)
	decision := h.decider.Decide(in)

	resp := dto.PreviewResponse{
		Labels: labelsResponse(in.Labels),
		SLA: dto.SLAResponse{
			PolicyID:        in.SLA.PolicyID,
			TotalMinutes:    in.SLA.TotalMinutes,
			ResponseMinutes: in.SLA.ResponseMinutes,
			TotalDays:       in.SLA.TotalDays,
			Result:          in.SLA.Kind.String(),
		},
		Decision: dto.DecisionResponse{
			Action: string(decision.Action),
			Status: string(decision.Status),
			Reason: decision.Reason,
		},
	}
	if in.Rule.ID != 0 {
		resp.Rule = &dto.RuleResponse{
			ID:      in.Rule.ID,
			Status:  string(in.Rule.Status),
			Mode:    string(in.Rule.Mode),
			Channel: string(in.Rule.Channel),
			API:     in.Rule.API,
			Email:   in.Rule.Email,
		}
	}
	if in.Rule.Channel == domain.ChannelMail {
		r := recipientsResponse(in.Recipients)
		resp.Recipients = &r
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Recipients handles POST /api/v1/recipients/lookup.
func (h *RoutingHandler) Recipients(c *fiber.Ctx) error {
	var req dto.RecipientLookupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	got, err := h.lookup.RecipientsForTicket(c.UserContext(), req.TicketCode)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RecipientLookupResponse{
		TicketID:   got.Ticket.ID,
		TicketCode: got.Ticket.Code,
		Labels:     labelsResponse(got.Labels),
		Recipients: recipientsResponse(got.Recipients),
	}})
}

func labelsResponse(l domain.Labels) dto.LabelsResponse {
	return dto.LabelsResponse{L1: l.L1, L2: l.L2, L3: l.L3, L4: l.L4}
}

func recipientsResponse(r service.RecipientResult) dto.RecipientsResponse {
	addrs := r.Addresses
	if addrs == nil {
		addrs = []string{}
	}
	return dto.RecipientsResponse{
		Addresses:  addrs,
		Tier:       r.Tier,
		Result:     r.Kind.String(),
		JobcodeKey: r.JobcodeKey,
	}
}
