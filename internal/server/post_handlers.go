package server

import (
	"promptguy/internal/models"
	"promptguy/internal/service"

	"github.com/gofiber/fiber/v2"
)

const feedCacheControl = "private, no-cache, must-revalidate"

// GetFeed handles GET /api/posts
// @Summary List prompts
// @Description Paginated prompt feed with filters, sorting and ETag revalidation.
// @Tags posts
// @Produce json
// @Param page query int false "1-indexed page"
// @Param limit query int false "Page size (max 50)"
// @Param sortBy query string false "createdAt, likesCount, bookmarksCount or viewsCount"
// @Param order query string false "asc or desc"
// @Param model query string false "Model filter"
// @Param purpose query string false "Purpose filter"
// @Param search query string false "Title, content or tag search"
// @Param userOnly query bool false "Only the caller's prompts"
// @Param filter query string false "latest, popular or trending"
// @Success 200 {object} object{posts=[]models.Post,hasMore=bool}
// @Success 304
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePage(c)
	q := service.FeedQuery{
		ViewerID: currentUserID(c),
		Page:     page.Page,
		Limit:    page.Limit,
		SortBy:   c.Query("sortBy"),
		Order:    c.Query("order"),
		Model:    c.Query("model"),
		Purpose:  c.Query("purpose"),
		Search:   c.Query("search"),
		UserOnly: c.QueryBool("userOnly", false),
		Filter:   c.Query("filter"),
	}

	res, err := s.feedService.ListFeed(c.UserContext(), q, c.Get(fiber.HeaderIfNoneMatch))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	c.Set(fiber.HeaderETag, res.ETag)
	c.Set(fiber.HeaderCacheControl, feedCacheControl)
	c.Set(fiber.HeaderVary, fiber.HeaderAuthorization)
	if res.NotModified {
		return c.SendStatus(fiber.StatusNotModified)
	}

	return c.JSON(fiber.Map{
		"posts":   res.Posts,
		"hasMore": res.HasMore,
	})
}

// CreatePost handles POST /api/posts
// @Summary Create prompt
// @Tags posts
// @Accept json
// @Produce json
// @Param request body service.CreatePostInput true "Prompt"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.CreatePostInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.AuthorID = currentUserID(c)

	created, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	// Load author data for response
	post, err := s.postService.GetPost(c.UserContext(), created.ID, in.AuthorID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get prompt
// @Description Private prompts are only visible to their author.
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update prompt
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body service.UpdatePostInput true "Prompt"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.UpdatePostInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.UserID = currentUserID(c)
	in.PostID = id

	post, err := s.postService.UpdatePost(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete prompt
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	}); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary List a user's prompts
// @Description Public prompts of the user; the author also sees their private ones.
// @Tags posts
// @Produce json
// @Param id path int true "User ID"
// @Param page query int false "1-indexed page"
// @Param limit query int false "Page size"
// @Success 200 {object} object{posts=[]models.Post,hasMore=bool}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePage(c)

	posts, hasMore, err := s.postService.ListUserPosts(c.UserContext(), service.ListUserPostsInput{
		AuthorID: authorID,
		ViewerID: currentUserID(c),
		Page:     page.Page,
		Limit:    page.Limit,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"posts":   posts,
		"hasMore": hasMore,
	})
}

// RecordView handles POST /api/posts/:id/view
// @Summary Record a view
// @Description Anonymous views count toward the total but are not attributed.
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} object{viewsCount=int}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/view [post]
func (s *Server) RecordView(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	count, err := s.viewService.RecordView(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"viewsCount": count})
}
