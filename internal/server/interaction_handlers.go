package server

import (
	"promptguy/internal/models"
	"promptguy/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postTargetRequest struct {
	PostID uint `json:"postId"`
}

type followRequest struct {
	TargetUserID uint `json:"targetUserId"`
}

// ToggleLike handles POST /api/interactions/like
// @Summary Toggle like
// @Tags interactions
// @Accept json
// @Produce json
// @Param request body object{postId=int} true "Target post"
// @Success 200 {object} object{liked=bool,likesCount=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /interactions/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	var req postTargetRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.interactionService.Toggle(c.UserContext(), models.InteractionLike, currentUserID(c), req.PostID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"liked":      res.Active,
		"likesCount": res.Count,
	})
}

// ToggleBookmark handles POST /api/interactions/bookmark
// @Summary Toggle bookmark
// @Tags interactions
// @Accept json
// @Produce json
// @Param request body object{postId=int} true "Target post"
// @Success 200 {object} object{bookmarked=bool,bookmarksCount=int}
// @Security BearerAuth
// @Router /interactions/bookmark [post]
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	var req postTargetRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.interactionService.Toggle(c.UserContext(), models.InteractionBookmark, currentUserID(c), req.PostID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"bookmarked":     res.Active,
		"bookmarksCount": res.Count,
	})
}

// ToggleFollow handles POST /api/interactions/follow
// @Summary Toggle follow
// @Tags interactions
// @Accept json
// @Produce json
// @Param request body object{targetUserId=int} true "Target user"
// @Success 200 {object} object{following=bool}
// @Security BearerAuth
// @Router /interactions/follow [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	var req followRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.interactionService.Toggle(c.UserContext(), models.InteractionFollow, currentUserID(c), req.TargetUserID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"following": res.Active})
}

// SharePost handles POST /api/interactions/share
// @Summary Share prompt
// @Description Counts a share event; shares are not toggles.
// @Tags interactions
// @Accept json
// @Produce json
// @Param request body service.ShareInput true "Shared post"
// @Success 200 {object} object{sharesCount=int}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /interactions/share [post]
func (s *Server) SharePost(c *fiber.Ctx) error {
	var in service.ShareInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.UserID = currentUserID(c)

	count, err := s.interactionService.Share(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"sharesCount": count})
}

// GetBookmarks handles GET /api/user/bookmarks
// @Summary List bookmarks
// @Tags users
// @Produce json
// @Param page query int false "1-indexed page"
// @Param limit query int false "Page size"
// @Success 200 {object} object{bookmarks=[]models.Post,hasMore=bool}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/bookmarks [get]
func (s *Server) GetBookmarks(c *fiber.Ctx) error {
	page := parsePage(c)
	posts, hasMore, err := s.interactionService.ListBookmarks(c.UserContext(), currentUserID(c), page.Page, page.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"bookmarks": posts,
		"hasMore":   hasMore,
	})
}
