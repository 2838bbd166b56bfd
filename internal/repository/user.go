package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"promptguy/internal/cache"
	"promptguy/internal/middleware"
	"promptguy/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// GetByExternalID returns nil, nil when no user has externalID.
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	// UsernameTaken compares case-insensitively and ignores excludeID (0 excludes nobody).
	UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error)
	// CreateIfAbsent inserts user unless its external id exists, then returns the stored row.
	CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, error)
	// UpsertProfile creates user or refreshes email, names and image of the existing row.
	UpsertProfile(ctx context.Context, user *models.User) (*models.User, error)
	UpdateUsername(ctx context.Context, id uint, username string) (*models.User, error)
	DeleteByExternalID(ctx context.Context, externalID string) (bool, error)
	SetAdmin(ctx context.Context, id uint, admin bool) error
	ListAdmins(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, wrapFind(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = ?", strings.ToLower(username))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(user).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.NewConflictError("Username taken")
		}
		return nil, models.NewInternalError(err)
	}
	return r.mustGetByExternalID(ctx, user.ExternalID)
}

func (r *userRepository) UpsertProfile(ctx context.Context, user *models.User) (*models.User, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "image_url", "updated_at"}),
		}).
		Create(user).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.NewConflictError("Username taken")
		}
		return nil, models.NewInternalError(err)
	}
	stored, err := r.mustGetByExternalID(ctx, user.ExternalID)
	if err != nil {
		return nil, err
	}
	r.invalidateAuthoredPosts(ctx, stored.ID)
	return stored, nil
}

// invalidateAuthoredPosts drops cached posts that embed userID's author summary.
func (r *userRepository) invalidateAuthoredPosts(ctx context.Context, userID uint) {
	if cache.GetClient() == nil {
		return
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", userID).Pluck("id", &ids).Error; err != nil {
		middleware.Logger.WarnContext(ctx, "listing authored posts for cache invalidation failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.PostKey(id))
	}
	cache.Invalidate(ctx, keys...)
}

func (r *userRepository) mustGetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	stored, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, models.NewInternalError(errors.New("user vanished after upsert"))
	}
	return stored, nil
}

func (r *userRepository) UpdateUsername(ctx context.Context, id uint, username string) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("username", username)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return nil, models.NewConflictError("Username taken")
		}
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", id)
	}
	r.invalidateAuthoredPosts(ctx, id)
	return r.GetByID(ctx, id)
}

// DeleteByExternalID removes the user; likes, bookmarks, shares and views
// cascade with it. Counters on the posts those rows pointed at are recounted
// in the same transaction.
func (r *userRepository) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	var touched []uint
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").Where("external_id = ?", externalID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		ids, err := interactedPostIDs(tx, user.ID)
		if err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, user.ID)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		if len(ids) > 0 {
			if err := recountPosts(tx, ids); err != nil {
				return err
			}
		}
		touched = ids
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	for _, id := range touched {
		cache.InvalidatePost(ctx, id)
	}
	return deleted, nil
}

// interactedPostIDs lists every post userID has liked, bookmarked, shared or viewed.
func interactedPostIDs(tx *gorm.DB, userID uint) ([]uint, error) {
	seen := make(map[uint]struct{})
	var out []uint
	for _, model := range []interface{}{&models.Like{}, &models.Bookmark{}, &models.Share{}, &models.View{}} {
		var ids []uint
		if err := tx.Model(model).Where("user_id = ?", userID).Distinct("post_id").Pluck("post_id", &ids).Error; err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_admin", admin)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("is_admin = ?", true).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
