package service

import (
	"context"

	"promptguy/internal/models"
	"promptguy/internal/repository"
)

type NotificationService struct {
	notificationRepo repository.NotificationRepository
}

func NewNotificationService(notificationRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

func (s *NotificationService) List(ctx context.Context, userID uint, page, limit int) ([]models.Notification, bool, error) {
	page, limit = normalizePage(page, limit, defaultFeedLimit, defaultFeedMaxLimit)
	items, err := s.notificationRepo.ListForUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, false, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, len(items) == limit, nil
}

// MarkRead marks ids as read, or every unread notification when ids is empty.
func (s *NotificationService) MarkRead(ctx context.Context, userID uint, ids []uint) (int64, error) {
	return s.notificationRepo.MarkRead(ctx, userID, ids)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.notificationRepo.UnreadCount(ctx, userID)
}
