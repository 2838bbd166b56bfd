package server

import (
	"encoding/json"
	"errors"
	"log/slog"

	"promptguy/internal/middleware"
	"promptguy/internal/models"
	"promptguy/internal/service"

	"github.com/gofiber/fiber/v2"
)

// HandleIdentityWebhook handles POST /api/webhooks/identity
// @Summary Identity provider webhook
// @Description Svix-signed user.created, user.updated and user.deleted events.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} models.ErrorResponse
// @Router /webhooks/identity [post]
func (s *Server) HandleIdentityWebhook(c *fiber.Ctx) error {
	if s.webhookVerifier == nil {
		middleware.Logger.ErrorContext(c.UserContext(), "identity webhook received but WEBHOOK_SECRET is not configured")
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			&models.AppError{Code: models.CodeInternal, Message: "Webhook secret not configured"})
	}

	body := c.Body()
	headers := service.WebhookHeaders{
		ID:        c.Get("svix-id"),
		Timestamp: c.Get("svix-timestamp"),
		Signature: c.Get("svix-signature"),
	}
	if err := s.webhookVerifier.Verify(headers, body); err != nil {
		msg := "Invalid webhook signature"
		if errors.Is(err, service.ErrWebhookMissingHeaders) {
			msg = "Missing svix headers"
		}
		middleware.Logger.WarnContext(c.UserContext(), "identity webhook rejected",
			slog.String("svix_id", headers.ID),
			slog.String("reason", err.Error()),
		)
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(msg))
	}

	var evt service.WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid webhook payload"))
	}

	if err := s.identityService.HandleWebhook(c.UserContext(), &evt); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
