package server

import (
	"context"
	"errors"

	"promptguy/internal/middleware"
	"promptguy/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AuthRequired verifies the bearer token and resolves (provisioning on first
// sight) the local user behind it.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := middleware.BearerToken(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		user, err := s.resolveUser(c, token)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		s.setCaller(c, user)
		return c.Next()
	}
}

// OptionalAuth resolves the caller when a valid bearer token is present and
// otherwise lets the request through anonymously.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := middleware.BearerToken(c)
		if !ok {
			return c.Next()
		}

		user, err := s.resolveUser(c, token)
		if err != nil {
			if !models.IsCode(err, models.CodeUnauthorized) {
				return models.RespondWithAppError(c, err)
			}
			return c.Next()
		}
		s.setCaller(c, user)
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the user is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if user == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

func (s *Server) resolveUser(c *fiber.Ctx, token string) (*models.User, error) {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		msg := "Invalid or expired token"
		if errors.Is(err, middleware.ErrMissingSub) || errors.Is(err, middleware.ErrInvalidIssuer) {
			msg = err.Error()
		}
		return nil, models.NewUnauthorizedError(msg)
	}
	return s.identityService.EnsureUser(c.UserContext(), claims)
}

func (s *Server) setCaller(c *fiber.Ctx, user *models.User) {
	c.Locals(localUserID, user.ID)
	c.Locals(localUser, user)
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, user.ID)
	c.SetUserContext(ctx)
}
