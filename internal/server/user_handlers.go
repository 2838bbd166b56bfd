package server

import (
	"promptguy/internal/models"
	"promptguy/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/user/profile
// @Summary Current profile
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// CheckUsername handles GET /api/user/username/check
// @Summary Username claim state
// @Description Reports whether the caller still has to pick a username.
// @Tags users
// @Produce json
// @Success 200 {object} service.UsernameStatus
// @Router /user/username/check [get]
func (s *Server) CheckUsername(c *fiber.Ctx) error {
	return c.JSON(s.userService.UsernameStatus(currentUser(c)))
}

// UsernameAvailability handles GET /api/user/username/availability?u=
// @Summary Username availability
// @Tags users
// @Produce json
// @Param u query string true "Candidate username"
// @Success 200 {object} service.UsernameAvailability
// @Router /user/username/availability [get]
func (s *Server) UsernameAvailability(c *fiber.Ctx) error {
	res, err := s.userService.CheckAvailability(c.UserContext(), c.Query("u"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// ClaimUsername handles POST /api/user/username
// @Summary Claim username
// @Description Only allowed while the caller still has a temporary username.
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.SetUsernameInput true "Username"
// @Success 200 {object} models.UserSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/username [post]
func (s *Server) ClaimUsername(c *fiber.Ctx) error {
	return s.setUsername(c, false)
}

// ChangeUsername handles PATCH /api/user/username
// @Summary Change username
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.SetUsernameInput true "Username"
// @Success 200 {object} models.UserSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/username [patch]
func (s *Server) ChangeUsername(c *fiber.Ctx) error {
	return s.setUsername(c, true)
}

func (s *Server) setUsername(c *fiber.Ctx, allowChange bool) error {
	var in service.SetUsernameInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.UserID = currentUserID(c)
	in.AllowChange = allowChange

	user, err := s.userService.SetUsername(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user.Summary())
}
