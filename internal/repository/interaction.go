package repository

import (
	"context"
	"fmt"

	"promptguy/internal/cache"
	"promptguy/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ToggleResult is the relation state after a toggle.
type ToggleResult struct {
	Active bool
	// Changed is false when a concurrent request already produced the same state.
	Changed bool
	// Count is the post counter after the toggle; 0 for follows.
	Count int
}

// InteractionRepository persists toggle relations and share events.
type InteractionRepository interface {
	Toggle(ctx context.Context, kind models.InteractionKind, actorID, targetID uint) (*ToggleResult, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error)
	BookmarkedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error)
	ListBookmarks(ctx context.Context, userID uint, limit, offset int) ([]models.Bookmark, error)
	// RecordShare appends a share event and returns the new shares count.
	RecordShare(ctx context.Context, userID, postID uint, platform string) (int, error)
}

type interactionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository returns a new InteractionRepository implementation.
func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &interactionRepository{db: db}
}

// Toggle flips the (actor, target) relation inside one transaction and keeps
// the post counter in step. A concurrent insert that loses the unique-key race
// is reported as already active without touching the counter; a concurrent
// delete that finds nothing is reported as already inactive.
func (r *interactionRepository) Toggle(ctx context.Context, kind models.InteractionKind, actorID, targetID uint) (*ToggleResult, error) {
	rel, ok := models.ToggleSpecs[kind]
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("unknown interaction %q", kind))
	}
	pair := fmt.Sprintf("%s = ? AND %s = ?", rel.ActorColumn, rel.TargetColumn)

	result := &ToggleResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(models.NewRelation(kind, 0, 0)).Where(pair, actorID, targetID).Count(&existing).Error; err != nil {
			return err
		}

		if existing > 0 {
			res := tx.Where(pair, actorID, targetID).Delete(models.NewRelation(kind, 0, 0))
			if res.Error != nil {
				return res.Error
			}
			result.Active = false
			result.Changed = res.RowsAffected > 0
			if result.Changed && rel.CounterColumn != "" {
				if err := adjustCounter(tx, rel.CounterColumn, targetID, -1); err != nil {
					return err
				}
			}
		} else {
			cols := make([]clause.Column, 0, len(rel.ConflictIndex))
			for _, c := range rel.ConflictIndex {
				cols = append(cols, clause.Column{Name: c})
			}
			res := tx.Clauses(clause.OnConflict{Columns: cols, DoNothing: true}).
				Create(models.NewRelation(kind, actorID, targetID))
			if res.Error != nil {
				return res.Error
			}
			result.Active = true
			result.Changed = res.RowsAffected > 0
			if result.Changed && rel.CounterColumn != "" {
				if err := adjustCounter(tx, rel.CounterColumn, targetID, 1); err != nil {
					return err
				}
			}
		}

		if rel.CounterColumn == "" {
			return nil
		}
		var counts []int
		if err := tx.Model(&models.Post{}).Where("id = ?", targetID).Pluck(rel.CounterColumn, &counts).Error; err != nil {
			return err
		}
		if len(counts) > 0 {
			result.Count = counts[0]
		}
		return nil
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if rel.CounterColumn != "" && result.Changed {
		cache.InvalidatePost(ctx, targetID)
	}
	return result, nil
}

// adjustCounter applies a relative delta; decrements never go below zero.
func adjustCounter(tx *gorm.DB, column string, postID uint, delta int) error {
	q := tx.Model(&models.Post{}).Where("id = ?", postID)
	if delta < 0 {
		q = q.Where(column+" > 0")
	}
	return q.UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

func (r *interactionRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error) {
	return r.memberPostIDs(ctx, &models.Like{}, userID, postIDs)
}

func (r *interactionRepository) BookmarkedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error) {
	return r.memberPostIDs(ctx, &models.Bookmark{}, userID, postIDs)
}

func (r *interactionRepository) memberPostIDs(ctx context.Context, model interface{}, userID uint, postIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(postIDs))
	if userID == 0 || len(postIDs) == 0 {
		return out, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(model).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *interactionRepository) ListBookmarks(ctx context.Context, userID uint, limit, offset int) ([]models.Bookmark, error) {
	limit, offset = clampPage(limit, offset)
	var bookmarks []models.Bookmark
	err := r.db.WithContext(ctx).
		Preload("Post").
		Preload("Post.Author").
		Preload("Post.TagRows").
		Joins("JOIN posts ON posts.id = bookmarks.post_id").
		Where("bookmarks.user_id = ?", userID).
		Where("(posts.is_public = ? OR posts.author_id = ?)", true, userID).
		Order("bookmarks.created_at DESC").
		Order("bookmarks.id DESC").
		Limit(limit).Offset(offset).
		Find(&bookmarks).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range bookmarks {
		if p := bookmarks[i].Post; p != nil {
			p.Hydrate()
			p.IsBookmarked = true
		}
	}
	return bookmarks, nil
}

func (r *interactionRepository) RecordShare(ctx context.Context, userID, postID uint, platform string) (int, error) {
	var count []int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("shares_count", gorm.Expr("shares_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Create(&models.Share{UserID: userID, PostID: postID, Platform: platform}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).Pluck("shares_count", &count).Error
	})
	if err != nil {
		return 0, wrapFind(err, "Post", postID)
	}
	cache.InvalidatePost(ctx, postID)
	if len(count) == 0 {
		return 0, nil
	}
	return count[0], nil
}
