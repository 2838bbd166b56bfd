package repository

import (
	"context"
	"database/sql"
	"strings"

	"promptguy/internal/cache"
	"promptguy/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortColumns whitelists feed sort keys.
var sortColumns = map[string]string{
	"createdAt":      "created_at",
	"likesCount":     "likes_count",
	"bookmarksCount": "bookmarks_count",
	"viewsCount":     "views_count",
}

// FeedFilter selects and orders feed rows. Model and Purpose are exact
// matches; empty means no filter.
type FeedFilter struct {
	ViewerID uint
	UserOnly bool
	Model    string
	Purpose  string
	Search   string
	SortBy   string
	Desc     bool
	Limit    int
	Offset   int
}

// FeedStats is the aggregate used to fingerprint a feed result set.
type FeedStats struct {
	Count          int64
	MaxUpdatedAt   string
	LikesTotal     int64
	BookmarksTotal int64
	ViewsTotal     int64

	// MaxAuthorUpdatedAt moves when an author renames or edits their profile.
	MaxAuthorUpdatedAt string
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, tags []string) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// GetMeta loads only id, author, visibility and title, bypassing the cache.
	GetMeta(ctx context.Context, postID uint) (*models.Post, error)
	// Update saves the editable fields; tags replace the existing set when non-nil.
	Update(ctx context.Context, post *models.Post, tags []string) error
	Delete(ctx context.Context, id uint) error
	ListFeed(ctx context.Context, f FeedFilter) ([]*models.Post, error)
	FeedFingerprint(ctx context.Context, f FeedFilter) (*FeedStats, error)
	ListByAuthor(ctx context.Context, authorID uint, includePrivate bool, limit, offset int) ([]*models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	conns
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB, opts ...Option) PostRepository {
	return &postRepository{conns: newConns(db, opts)}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		return replaceTags(tx, post.ID, tags)
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	post.TagRows = tagRows(post.ID, tags)
	post.Hydrate()
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := r.withDetails(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
			return wrapFind(err, "Post", id)
		}
		post.Hydrate()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	return &post, nil
}

func (r *postRepository) GetMeta(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Select("id", "author_id", "is_public", "title").Take(&post, postID).Error; err != nil {
		return nil, wrapFind(err, "Post", postID)
	}
	return &post, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
			"title":     post.Title,
			"content":   post.Content,
			"model":     post.Model,
			"purpose":   post.Purpose,
			"is_public": post.IsPublic,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if tags != nil {
			return replaceTags(tx, post.ID, tags)
		}
		return nil
	})
	if err != nil {
		return wrapFind(err, "Post", post.ID)
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

// feedReader keeps signed-in feeds on the primary so a viewer's own toggles
// and edits are visible to both the rows and the ETag aggregate.
func (r *postRepository) feedReader(f FeedFilter) *gorm.DB {
	if f.ViewerID != 0 {
		return r.db
	}
	return r.replica()
}

func (r *postRepository) ListFeed(ctx context.Context, f FeedFilter) ([]*models.Post, error) {
	var posts []*models.Post
	q := r.withDetails(r.feedScope(r.feedReader(f).WithContext(ctx), f))
	q = applySort(q, f.SortBy, f.Desc)
	if err := q.Limit(f.Limit).Offset(f.Offset).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	hydrateAll(posts)
	return posts, nil
}

func (r *postRepository) FeedFingerprint(ctx context.Context, f FeedFilter) (*FeedStats, error) {
	var row struct {
		Count              int64
		MaxUpdatedAt       sql.NullString
		LikesTotal         sql.NullInt64
		BookmarksTotal     sql.NullInt64
		ViewsTotal         sql.NullInt64
		MaxAuthorUpdatedAt sql.NullString
	}
	err := r.feedScope(r.feedReader(f).WithContext(ctx).Model(&models.Post{}), f).
		Joins("JOIN users ON users.id = posts.author_id").
		Select("COUNT(*) AS count, MAX(posts.updated_at) AS max_updated_at, " +
			"SUM(posts.likes_count) AS likes_total, SUM(posts.bookmarks_count) AS bookmarks_total, " +
			"SUM(posts.views_count) AS views_total, MAX(users.updated_at) AS max_author_updated_at").
		Scan(&row).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &FeedStats{
		Count:          row.Count,
		MaxUpdatedAt:   row.MaxUpdatedAt.String,
		LikesTotal:     row.LikesTotal.Int64,
		BookmarksTotal: row.BookmarksTotal.Int64,
		ViewsTotal:     row.ViewsTotal.Int64,

		MaxAuthorUpdatedAt: row.MaxAuthorUpdatedAt.String,
	}, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, includePrivate bool, limit, offset int) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset)
	q := r.replica().WithContext(ctx).Where("posts.author_id = ?", authorID)
	if !includePrivate {
		q = q.Where("posts.is_public = ?", true)
	}
	var posts []*models.Post
	if err := r.withDetails(q).Order("posts.created_at DESC").Order("posts.id DESC").
		Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	hydrateAll(posts)
	return posts, nil
}

// feedScope applies visibility and filters shared by ListFeed and FeedFingerprint.
func (r *postRepository) feedScope(db *gorm.DB, f FeedFilter) *gorm.DB {
	if f.UserOnly {
		db = db.Where("posts.author_id = ?", f.ViewerID)
	} else {
		db = db.Where("posts.is_public = ?", true)
	}
	if f.Model != "" {
		db = db.Where("posts.model = ?", f.Model)
	}
	if f.Purpose != "" {
		db = db.Where("posts.purpose = ?", f.Purpose)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		db = db.Where(
			"(LOWER(posts.title) LIKE ? ESCAPE '\\' OR LOWER(posts.content) LIKE ? ESCAPE '\\' OR EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = posts.id AND pt.tag = ?))",
			like, like, strings.ToLower(s),
		)
	}
	return db
}

func (r *postRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").Preload("TagRows")
}

func applySort(db *gorm.DB, sortBy string, desc bool) *gorm.DB {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = "created_at"
	}
	return db.
		Order(clause.OrderByColumn{Column: clause.Column{Table: "posts", Name: col}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Table: "posts", Name: "id"}, Desc: desc})
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func replaceTags(tx *gorm.DB, postID uint, tags []string) error {
	if err := tx.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
		return err
	}
	rows := tagRows(postID, tags)
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func tagRows(postID uint, tags []string) []models.PostTag {
	rows := make([]models.PostTag, 0, len(tags))
	for _, t := range tags {
		rows = append(rows, models.PostTag{PostID: postID, Tag: t})
	}
	return rows
}

func hydrateAll(posts []*models.Post) {
	for _, p := range posts {
		p.Hydrate()
	}
}
