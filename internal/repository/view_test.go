package repository

import (
	"context"
	"testing"

	"promptguy/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewRepository_RecordIsNotDeduplicated(t *testing.T) {
	db := newTestDB(t)
	repo := NewViewRepository(db)
	ctx := context.Background()

	author := seedUser(t, db)
	visitor := seedUser(t, db)
	post := seedPost(t, db, author, "viewed", true)

	n, err := repo.Record(ctx, post.ID, visitor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = repo.Record(ctx, post.ID, visitor.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := repo.CountByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
	assert.Equal(t, int64(2), countRows(t, db, &models.View{}, "post_id = ? AND user_id = ?", post.ID, visitor.ID))
}

func TestViewRepository_RecordMissingPost(t *testing.T) {
	db := newTestDB(t)
	visitor := seedUser(t, db)

	_, err := NewViewRepository(db).Record(context.Background(), 31337, visitor.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Zero(t, countRows(t, db, &models.View{}, "user_id = ?", visitor.ID))
}
