package service

import (
	"context"
	"log/slog"
	"strings"

	"promptguy/internal/featureflags"
	"promptguy/internal/middleware"
	"promptguy/internal/models"
	"promptguy/internal/observability"
	"promptguy/internal/repository"
	"promptguy/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// FlagRealtimeNotifications gates publishing stored notifications to Redis.
const FlagRealtimeNotifications = "realtime_notifications"

// NotificationPublisher delivers a stored notification to live subscribers.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
}

type InteractionService struct {
	interactionRepo  repository.InteractionRepository
	postRepo         repository.PostRepository
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
	publisher        NotificationPublisher
	flags            *featureflags.Manager
}

type ShareInput struct {
	UserID   uint   `json:"-"`
	PostID   uint   `json:"postId" validate:"gt=0"`
	Platform string `json:"platform" validate:"max=32"`
}

func NewInteractionService(
	interactionRepo repository.InteractionRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
	publisher NotificationPublisher,
	flags *featureflags.Manager,
) *InteractionService {
	return &InteractionService{
		interactionRepo:  interactionRepo,
		postRepo:         postRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		publisher:        publisher,
		flags:            flags,
	}
}

// Toggle flips a like, bookmark or follow of actorID on targetID (a post id,
// or a user id for follows). On the activation edge the target's owner is
// notified; notification failures are logged and never fail the toggle.
func (s *InteractionService) Toggle(ctx context.Context, kind models.InteractionKind, actorID, targetID uint) (*repository.ToggleResult, error) {
	if targetID == 0 {
		if kind == models.InteractionFollow {
			return nil, models.NewValidationError("targetUserId is required")
		}
		return nil, models.NewValidationError("postId is required")
	}

	span, ctx := observability.NewSpan(ctx, "InteractionService.Toggle")
	defer span.End()
	span.AddAttributes(
		attribute.String("interaction.kind", string(kind)),
		attribute.Int64("interaction.target_id", int64(targetID)),
	)

	var (
		post        *models.Post
		recipientID uint
	)
	switch kind {
	case models.InteractionLike, models.InteractionBookmark:
		meta, err := s.postRepo.GetMeta(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if !meta.IsPublic && meta.AuthorID != actorID {
			return nil, models.NewNotFoundError("Post", targetID)
		}
		post = meta
		recipientID = meta.AuthorID
	case models.InteractionFollow:
		if actorID == targetID {
			return nil, models.NewValidationError("You cannot follow yourself")
		}
		if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
			return nil, err
		}
		recipientID = targetID
	default:
		return nil, models.NewValidationError("unsupported interaction")
	}

	res, err := s.interactionRepo.Toggle(ctx, kind, actorID, targetID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.InteractionToggles.WithLabelValues(string(kind), toggleState(res)).Inc()

	if res.Active && res.Changed && recipientID != actorID {
		s.notify(ctx, kind, actorID, recipientID, post)
	}
	return res, nil
}

func toggleState(res *repository.ToggleResult) string {
	switch {
	case !res.Changed:
		return "unchanged"
	case res.Active:
		return "on"
	default:
		return "off"
	}
}

func (s *InteractionService) notify(ctx context.Context, kind models.InteractionKind, actorID, recipientID uint, post *models.Post) {
	if s.notificationRepo == nil {
		return
	}
	logger := middleware.Logger.With(
		slog.String("kind", string(kind)),
		slog.Uint64("actor_id", uint64(actorID)),
		slog.Uint64("recipient_id", uint64(recipientID)),
	)

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		logger.WarnContext(ctx, "skipping notification: actor lookup failed", slog.String("error", err.Error()))
		return
	}
	n := models.NewInteractionNotification(kind, actor, recipientID, post)
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		logger.ErrorContext(ctx, "failed to store notification", slog.String("error", err.Error()))
		return
	}

	if s.publisher == nil || !s.flags.Enabled(FlagRealtimeNotifications, recipientID) {
		return
	}
	if err := s.publisher.PublishNotification(ctx, n); err != nil {
		logger.WarnContext(ctx, "failed to publish notification", slog.String("error", err.Error()))
	}
}

// Share records a share event and returns the post's new share count.
func (s *InteractionService) Share(ctx context.Context, in ShareInput) (int, error) {
	if err := validation.Struct(in); err != nil {
		return 0, err
	}
	meta, err := s.postRepo.GetMeta(ctx, in.PostID)
	if err != nil {
		return 0, err
	}
	if !meta.IsPublic && meta.AuthorID != in.UserID {
		return 0, models.NewNotFoundError("Post", in.PostID)
	}
	return s.interactionRepo.RecordShare(ctx, in.UserID, in.PostID, strings.ToLower(strings.TrimSpace(in.Platform)))
}

// ListBookmarks returns the caller's bookmarked posts, newest bookmark first.
func (s *InteractionService) ListBookmarks(ctx context.Context, userID uint, page, limit int) ([]*models.Post, bool, error) {
	page, limit = normalizePage(page, limit, defaultFeedLimit, defaultFeedMaxLimit)
	bookmarks, err := s.interactionRepo.ListBookmarks(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, false, err
	}
	posts := make([]*models.Post, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b.Post != nil {
			posts = append(posts, b.Post)
		}
	}
	liked, err := s.interactionRepo.LikedPostIDs(ctx, userID, postIDs(posts))
	if err != nil {
		return nil, false, err
	}
	for _, p := range posts {
		p.IsLiked = liked[p.ID]
	}
	return posts, len(bookmarks) == limit, nil
}

func postIDs(posts []*models.Post) []uint {
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}
