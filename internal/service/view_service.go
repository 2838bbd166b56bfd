package service

import (
	"context"
	"sync"

	"promptguy/internal/models"
	"promptguy/internal/observability"
	"promptguy/internal/repository"

	"golang.org/x/sync/singleflight"
)

// ViewService records post views. Anonymous views are attributed to one shared
// visitor account whose id is resolved once per process.
type ViewService struct {
	viewRepo repository.ViewRepository
	userRepo repository.UserRepository

	mu     sync.RWMutex
	anonID uint
	group  singleflight.Group
}

func NewViewService(viewRepo repository.ViewRepository, userRepo repository.UserRepository) *ViewService {
	return &ViewService{viewRepo: viewRepo, userRepo: userRepo}
}

// RecordView appends a view by viewerID (0 for anonymous) and returns the new count.
func (s *ViewService) RecordView(ctx context.Context, viewerID, postID uint) (int, error) {
	if postID == 0 {
		return 0, models.NewValidationError("postId is required")
	}
	label := "user"
	if viewerID == 0 {
		id, err := s.AnonymousUserID(ctx)
		if err != nil {
			return 0, err
		}
		viewerID = id
		label = "anonymous"
	}

	count, err := s.viewRepo.Record(ctx, postID, viewerID)
	if err != nil {
		return 0, err
	}
	observability.PostViews.WithLabelValues(label).Inc()
	return count, nil
}

// AnonymousUserID returns the shared anonymous visitor id, creating the
// account on first use. Concurrent first lookups share one query, which is
// detached from the first caller's cancellation.
func (s *ViewService) AnonymousUserID(ctx context.Context) (uint, error) {
	s.mu.RLock()
	id := s.anonID
	s.mu.RUnlock()
	if id != 0 {
		return id, nil
	}

	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do("anonymous", func() (interface{}, error) {
		user, err := EnsureAnonymousUser(shared, s.userRepo)
		if err != nil {
			return uint(0), err
		}
		s.mu.Lock()
		s.anonID = user.ID
		s.mu.Unlock()
		return user.ID, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint), nil
}

// EnsureAnonymousUser creates the anonymous visitor if it does not exist and returns it.
func EnsureAnonymousUser(ctx context.Context, userRepo repository.UserRepository) (*models.User, error) {
	return userRepo.CreateIfAbsent(ctx, &models.User{
		ExternalID: models.AnonymousExternalID,
		Email:      models.AnonymousEmail,
		Username:   models.AnonymousUsername,
		FirstName:  "Anonymous",
		LastName:   "Visitor",
	})
}
