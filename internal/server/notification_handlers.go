package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"time"

	"promptguy/internal/middleware"
	"promptguy/internal/models"
	"promptguy/internal/service"

	"github.com/gofiber/fiber/v2"
)

const streamKeepAlive = 25 * time.Second

type markReadRequest struct {
	IDs []uint `json:"ids"`
}

// GetNotifications handles GET /api/notifications
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param page query int false "1-indexed page"
// @Param limit query int false "Page size"
// @Success 200 {object} object{notifications=[]models.Notification,hasMore=bool}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	page := parsePage(c)
	items, hasMore, err := s.notificationService.List(c.UserContext(), currentUserID(c), page.Page, page.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"notifications": items,
		"hasMore":       hasMore,
	})
}

// GetUnreadCount handles GET /api/notifications/unread-count
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Success 200 {object} object{count=int}
// @Security BearerAuth
// @Router /notifications/unread-count [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	count, err := s.notificationService.UnreadCount(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// MarkNotificationsRead handles POST /api/notifications/read. An empty or
// missing ids list marks every unread notification.
// @Summary Mark notifications read
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body object{ids=[]int} false "Notification ids; empty marks all"
// @Success 200 {object} object{updated=int}
// @Security BearerAuth
// @Router /notifications/read [post]
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	var req markReadRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	updated, err := s.notificationService.MarkRead(c.UserContext(), currentUserID(c), req.IDs)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// StreamNotifications handles GET /api/notifications/stream as a server-sent
// event stream of the caller's live notifications.
// @Summary Live notifications
// @Tags notifications
// @Produce text/event-stream
// @Success 200 {object} models.Notification
// @Failure 503 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/stream [get]
func (s *Server) StreamNotifications(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if s.redis == nil || !s.featureFlags.Enabled(service.FlagRealtimeNotifications, userID) {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			&models.AppError{Code: models.CodeInternal, Message: "Live notifications are unavailable"})
	}

	// The stream outlives the request handler, so it gets its own context.
	ctx, cancel := context.WithCancel(context.Background())
	sub := s.notifier.Subscribe(ctx, userID)
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return models.RespondWithError(c, fiber.StatusServiceUnavailable, models.NewInternalError(err))
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer func() { _ = sub.Close() }()

		messages := sub.Channel()
		ticker := time.NewTicker(streamKeepAlive)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: notification\ndata: %s\n\n", msg.Payload)
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
			}
			if err := w.Flush(); err != nil {
				middleware.Logger.Debug("notification stream closed",
					slog.Uint64("user_id", uint64(userID)),
					slog.String("reason", err.Error()),
				)
				return
			}
		}
	})
	return nil
}
