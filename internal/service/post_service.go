// Package service holds the business rules between HTTP handlers and repositories.
package service

import (
	"context"
	"strings"

	"promptguy/internal/models"
	"promptguy/internal/observability"
	"promptguy/internal/repository"
	"promptguy/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type PostService struct {
	postRepo        repository.PostRepository
	interactionRepo repository.InteractionRepository
}

type CreatePostInput struct {
	AuthorID uint     `json:"-"`
	Title    string   `json:"title" validate:"required,max=200"`
	Content  string   `json:"content" validate:"required,max=20000"`
	Model    string   `json:"model" validate:"max=64"`
	Purpose  string   `json:"purpose" validate:"max=64"`
	Tags     []string `json:"tags" validate:"max=10,dive,max=32"`
	IsPublic *bool    `json:"isPublic"`
}

type UpdatePostInput struct {
	UserID   uint     `json:"-"`
	PostID   uint     `json:"-"`
	Title    string   `json:"title" validate:"required,max=200"`
	Content  string   `json:"content" validate:"required,max=20000"`
	Model    string   `json:"model" validate:"max=64"`
	Purpose  string   `json:"purpose" validate:"max=64"`
	Tags     []string `json:"tags" validate:"omitempty,max=10,dive,max=32"` // nil keeps the current tags
	IsPublic *bool    `json:"isPublic"`
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

type ListUserPostsInput struct {
	AuthorID uint
	ViewerID uint
	Page     int
	Limit    int
}

func NewPostService(postRepo repository.PostRepository, interactionRepo repository.InteractionRepository) *PostService {
	return &PostService{
		postRepo:        postRepo,
		interactionRepo: interactionRepo,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	tags := models.NormalizeTags(in.Tags)
	if len(tags) > models.MaxTagsPerPost {
		return nil, models.NewValidationError("tags must contain at most 10 items")
	}

	post := &models.Post{
		AuthorID: in.AuthorID,
		Title:    in.Title,
		Content:  in.Content,
		Model:    strings.TrimSpace(in.Model),
		Purpose:  strings.TrimSpace(in.Purpose),
		IsPublic: in.IsPublic == nil || *in.IsPublic,
	}
	if err := s.postRepo.Create(ctx, post, tags); err != nil {
		return nil, err
	}
	return post, nil
}

// GetPost returns the post with viewer flags. Private posts are visible to their author only.
func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsPublic && post.AuthorID != viewerID {
		return nil, models.NewNotFoundError("Post", id)
	}
	if err := applyViewerFlags(ctx, s.interactionRepo, viewerID, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.postRepo.GetMeta(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if existing.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}

	var tags []string
	if in.Tags != nil {
		tags = models.NormalizeTags(in.Tags)
	}
	isPublic := existing.IsPublic
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	post := &models.Post{
		ID:       in.PostID,
		AuthorID: in.UserID,
		Title:    in.Title,
		Content:  in.Content,
		Model:    strings.TrimSpace(in.Model),
		Purpose:  strings.TrimSpace(in.Purpose),
		IsPublic: isPublic,
	}
	if err := s.postRepo.Update(ctx, post, tags); err != nil {
		return nil, err
	}
	return s.GetPost(ctx, in.PostID, in.UserID)
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	existing, err := s.postRepo.GetMeta(ctx, in.PostID)
	if err != nil {
		return err
	}
	if existing.AuthorID != in.UserID {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	return s.postRepo.Delete(ctx, in.PostID)
}

// ListUserPosts pages through an author's posts; private ones are included only for the author.
func (s *PostService) ListUserPosts(ctx context.Context, in ListUserPostsInput) ([]*models.Post, bool, error) {
	page, limit := normalizePage(in.Page, in.Limit, defaultFeedLimit, defaultFeedMaxLimit)
	posts, err := s.postRepo.ListByAuthor(ctx, in.AuthorID, in.AuthorID == in.ViewerID, limit, (page-1)*limit)
	if err != nil {
		return nil, false, err
	}
	if err := applyViewerFlags(ctx, s.interactionRepo, in.ViewerID, posts); err != nil {
		return nil, false, err
	}
	return posts, len(posts) == limit, nil
}

// applyViewerFlags sets IsLiked/IsBookmarked for viewerID using two batched
// lookups run concurrently. Anonymous viewers keep both flags false.
func applyViewerFlags(ctx context.Context, repo repository.InteractionRepository, viewerID uint, posts []*models.Post) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	span, ctx := observability.NewSpan(ctx, "PostService.applyViewerFlags")
	defer span.End()
	span.AddAttributes(attribute.Int("posts.count", len(posts)))

	ids := postIDs(posts)

	var liked, bookmarked map[uint]bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		liked, err = repo.LikedPostIDs(gctx, viewerID, ids)
		return err
	})
	g.Go(func() error {
		var err error
		bookmarked, err = repo.BookmarkedPostIDs(gctx, viewerID, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return err
	}

	for _, p := range posts {
		p.IsLiked = liked[p.ID]
		p.IsBookmarked = bookmarked[p.ID]
	}
	return nil
}
