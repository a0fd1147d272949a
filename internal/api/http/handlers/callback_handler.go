package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/thnhpht/ITS/internal/api/dto"
	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/service"
)

// ResolutionApplier applies an external resolution to the referenced ticket.
type ResolutionApplier interface {
	Resolve(ctx context.Context, in service.CallbackInput) (*domain.Ticket, error)
}

// CallbackHandler receives resolutions from the external ticketing system.
type CallbackHandler struct {
	callbacks ResolutionApplier
}

// NewCallbackHandler constructs handler.
func NewCallbackHandler(callbacks ResolutionApplier) *CallbackHandler {
	return &CallbackHandler{callbacks: callbacks}
}

// Resolve handles PUT /api/v1/its/:refNo.
func (h *CallbackHandler) Resolve(c *fiber.Ctx) error {
	var req dto.ResolutionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.callbacks.Resolve(c.UserContext(), service.CallbackInput{
		RefNo:       c.Params("refNo"),
		Content:     req.Content,
		Handler:     req.Handler,
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.ResolutionResponse{
			TicketID:   ticket.ID,
			TicketCode: ticket.Code,
			Status:     string(domain.StatusProcessed),
		},
	})
}
