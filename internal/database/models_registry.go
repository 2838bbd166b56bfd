package database

import "promptguy/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models,
// ordered so foreign-key targets are created first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.PostTag{},
		&models.Like{},
		&models.Bookmark{},
		&models.Follow{},
		&models.Share{},
		&models.View{},
		&models.Notification{},
	}
}
