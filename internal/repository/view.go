package repository

import (
	"context"

	"promptguy/internal/cache"
	"promptguy/internal/models"

	"gorm.io/gorm"
)

// ViewRepository records post views.
type ViewRepository interface {
	// Record increments the post's view counter and appends a View row in one
	// transaction, returning the new count.
	Record(ctx context.Context, postID, userID uint) (int, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
}

type viewRepository struct {
	conns
}

// NewViewRepository returns a new ViewRepository implementation.
func NewViewRepository(db *gorm.DB, opts ...Option) ViewRepository {
	return &viewRepository{conns: newConns(db, opts)}
}

func (r *viewRepository) Record(ctx context.Context, postID, userID uint) (int, error) {
	var counts []int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("views_count", gorm.Expr("views_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Create(&models.View{PostID: postID, UserID: userID}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).Pluck("views_count", &counts).Error
	})
	if err != nil {
		return 0, wrapFind(err, "Post", postID)
	}
	cache.InvalidatePost(ctx, postID)
	if len(counts) == 0 {
		return 0, nil
	}
	return counts[0], nil
}

func (r *viewRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var n int64
	if err := r.replica().WithContext(ctx).Model(&models.View{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
