package repository

import (
	"context"

	"promptguy/internal/models"

	"gorm.io/gorm"
)

// DefaultReconcileBatch is the number of posts recomputed per statement.
const DefaultReconcileBatch = 500

// recomputeCounters resets every denormalized counter from the relation and event tables.
const recomputeCounters = `UPDATE posts SET
	likes_count = (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id),
	bookmarks_count = (SELECT COUNT(*) FROM bookmarks WHERE bookmarks.post_id = posts.id),
	shares_count = (SELECT COUNT(*) FROM shares WHERE shares.post_id = posts.id),
	views_count = (SELECT COUNT(*) FROM views WHERE views.post_id = posts.id)
WHERE posts.id IN ? AND (
	likes_count <> (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) OR
	bookmarks_count <> (SELECT COUNT(*) FROM bookmarks WHERE bookmarks.post_id = posts.id) OR
	shares_count <> (SELECT COUNT(*) FROM shares WHERE shares.post_id = posts.id) OR
	views_count <> (SELECT COUNT(*) FROM views WHERE views.post_id = posts.id)
)`

// recountPosts resets the counters of ids from their relation rows. Posts that
// no longer exist are skipped.
func recountPosts(tx *gorm.DB, ids []uint) error {
	return tx.Exec(recomputeCounters, ids).Error
}

// ReconcileResult summarizes a reconciliation pass.
type ReconcileResult struct {
	Scanned  int
	Repaired int
	// RepairedIDs lists posts whose counters were corrected.
	RepairedIDs []uint
}

// CounterRepository recomputes denormalized post counters.
type CounterRepository interface {
	// Reconcile recomputes counters for postIDs, or for every post in id order
	// when postIDs is empty, batchSize posts at a time.
	Reconcile(ctx context.Context, postIDs []uint, batchSize int) (*ReconcileResult, error)
}

type counterRepository struct {
	db *gorm.DB
}

// NewCounterRepository returns a new CounterRepository implementation.
func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) Reconcile(ctx context.Context, postIDs []uint, batchSize int) (*ReconcileResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultReconcileBatch
	}
	result := &ReconcileResult{}

	if len(postIDs) > 0 {
		for start := 0; start < len(postIDs); start += batchSize {
			end := start + batchSize
			if end > len(postIDs) {
				end = len(postIDs)
			}
			if err := r.reconcileBatch(ctx, postIDs[start:end], result); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	var lastID uint
	for {
		var ids []uint
		if err := r.db.WithContext(ctx).Model(&models.Post{}).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(batchSize).
			Pluck("id", &ids).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		if len(ids) == 0 {
			return result, nil
		}
		if err := r.reconcileBatch(ctx, ids, result); err != nil {
			return nil, err
		}
		lastID = ids[len(ids)-1]
		if len(ids) < batchSize {
			return result, nil
		}
	}
}

func (r *counterRepository) reconcileBatch(ctx context.Context, ids []uint, result *ReconcileResult) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var drifted []uint
		if err := tx.Model(&models.Post{}).
			Where(`id IN ? AND (
				likes_count <> (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) OR
				bookmarks_count <> (SELECT COUNT(*) FROM bookmarks WHERE bookmarks.post_id = posts.id) OR
				shares_count <> (SELECT COUNT(*) FROM shares WHERE shares.post_id = posts.id) OR
				views_count <> (SELECT COUNT(*) FROM views WHERE views.post_id = posts.id))`, ids).
			Pluck("id", &drifted).Error; err != nil {
			return err
		}
		if len(drifted) == 0 {
			return nil
		}
		if err := recountPosts(tx, drifted); err != nil {
			return err
		}
		result.RepairedIDs = append(result.RepairedIDs, drifted...)
		return nil
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	result.Scanned += len(ids)
	result.Repaired = len(result.RepairedIDs)
	return nil
}
