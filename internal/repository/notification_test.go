package repository

import (
	"context"
	"testing"

	"promptguy/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository_ListAndMarkRead(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	owner := seedUser(t, db)
	actor := seedUser(t, db)
	post := seedPost(t, db, owner, "liked", true)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, models.NewInteractionNotification(models.InteractionLike, actor, owner.ID, post)))
	}

	list, err := repo.ListForUser(ctx, owner.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Greater(t, list[0].ID, list[1].ID, "newest first")

	n, err := repo.MarkRead(ctx, owner.ID, []uint{list[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err := repo.UnreadCount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	// ids owned by someone else are ignored
	n, err = repo.MarkRead(ctx, actor.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.MarkRead(ctx, owner.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
