package server

import (
	"promptguy/internal/models"

	"github.com/gofiber/fiber/v2"
)

type reconcileRequest struct {
	PostID *uint `json:"postId"`
}

// ReconcileCounters handles POST /api/admin/reconcile. With a postId only that
// post is recomputed, otherwise every post is scanned in batches.
// @Summary Reconcile post counters
// @Tags admin
// @Accept json
// @Produce json
// @Param request body object{postId=int} false "Single post"
// @Success 200 {object} object{postsReconciled=int,postsScanned=int}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reconcile [post]
func (s *Server) ReconcileCounters(c *fiber.Ctx) error {
	var req reconcileRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	if req.PostID != nil && *req.PostID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("postId must be greater than 0"))
	}

	res, err := s.counterService.ReconcileCounters(c.UserContext(), req.PostID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"postsReconciled": res.Repaired,
		"postsScanned":    res.Scanned,
		"repairedIds":     res.RepairedIDs,
	})
}
