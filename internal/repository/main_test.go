package repository

import (
	"fmt"
	"testing"

	"promptguy/internal/config"
	"promptguy/internal/database"
	"promptguy/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newTestDB opens an isolated in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectWithOptions(&config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DBSQLitePath: ":memory:",
	}, database.ConnectOptions{ApplySchema: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

var userSeq int

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	userSeq++
	u := &models.User{
		ExternalID: fmt.Sprintf("user_ext%05d", userSeq),
		Username:   fmt.Sprintf("member%05d", userSeq),
		Email:      fmt.Sprintf("member%d@example.com", userSeq),
		FirstName:  "Member",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedPost(t *testing.T, db *gorm.DB, author *models.User, title string, public bool, tags ...string) *models.Post {
	t.Helper()
	p := &models.Post{
		AuthorID: author.ID,
		Title:    title,
		Content:  "content for " + title,
		Model:    "GPT-4",
		Purpose:  "Coding",
		IsPublic: public,
	}
	require.NoError(t, NewPostRepository(db).Create(t.Context(), p, models.NormalizeTags(tags)))
	return p
}
