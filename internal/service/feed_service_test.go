package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"promptguy/internal/cache"
	"promptguy/internal/models"
	"promptguy/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newFeedService(db *gorm.DB) *FeedService {
	return NewFeedService(repository.NewPostRepository(db), repository.NewInteractionRepository(db), nil, 10, 50)
}

func TestFeedService_NotModifiedOnMatchingETag(t *testing.T) {
	db := newTestDB(t)
	svc := newFeedService(db)
	ctx := context.Background()

	author := seedUser(t, db)
	seedPost(t, db, author, "first", true)

	first, err := svc.ListFeed(ctx, FeedQuery{}, "")
	require.NoError(t, err)
	require.False(t, first.NotModified)
	require.Len(t, first.Posts, 1)
	assert.Regexp(t, `^W/"[0-9a-f]{16}"$`, first.ETag)

	again, err := svc.ListFeed(ctx, FeedQuery{}, first.ETag)
	require.NoError(t, err)
	assert.True(t, again.NotModified)
	assert.Nil(t, again.Posts)
	assert.Equal(t, first.ETag, again.ETag)

	star, err := svc.ListFeed(ctx, FeedQuery{}, "*")
	require.NoError(t, err)
	assert.True(t, star.NotModified)
}

func TestFeedService_ETagChangesWithParametersAndData(t *testing.T) {
	db := newTestDB(t)
	svc := newFeedService(db)
	ctx := context.Background()

	author := seedUser(t, db)
	fan := seedUser(t, db)
	post := seedPost(t, db, author, "first", true)

	base, err := svc.ListFeed(ctx, FeedQuery{}, "")
	require.NoError(t, err)

	variants := []FeedQuery{
		{Page: 2},
		{Limit: 5},
		{SortBy: "likesCount"},
		{Order: "asc"},
		{Model: "GPT-4"},
		{Purpose: "Coding"},
		{Search: "first"},
		{ViewerID: fan.ID},
		{ViewerID: author.ID, UserOnly: true},
	}
	seen := map[string]bool{base.ETag: true}
	for _, q := range variants {
		t.Run(fmt.Sprintf("%+v", q), func(t *testing.T) {
			res, err := svc.ListFeed(ctx, q, base.ETag)
			require.NoError(t, err)
			assert.False(t, res.NotModified)
			assert.False(t, seen[res.ETag], "etag must be unique per parameter set")
			seen[res.ETag] = true
		})
	}

	_, err = repository.NewInteractionRepository(db).Toggle(ctx, models.InteractionLike, fan.ID, post.ID)
	require.NoError(t, err)
	afterLike, err := svc.ListFeed(ctx, FeedQuery{}, base.ETag)
	require.NoError(t, err)
	assert.False(t, afterLike.NotModified, "counter changes invalidate the etag")

	seedPost(t, db, author, "second", true)
	afterCreate, err := svc.ListFeed(ctx, FeedQuery{}, afterLike.ETag)
	require.NoError(t, err)
	assert.False(t, afterCreate.NotModified)
	assert.Len(t, afterCreate.Posts, 2)
}

func TestFeedService_AuthorRenameInvalidatesETagAndCache(t *testing.T) {
	mr := useTestCache(t)
	db := newTestDB(t)
	svc := newFeedService(db)
	users := repository.NewUserRepository(db)
	posts := NewPostService(repository.NewPostRepository(db), repository.NewInteractionRepository(db))
	ctx := context.Background()

	author := seedUser(t, db)
	post := seedPost(t, db, author, "renamed author", true)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", author.ID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	before, err := svc.ListFeed(ctx, FeedQuery{}, "")
	require.NoError(t, err)
	_, err = posts.GetPost(ctx, post.ID, 0)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.PostKey(post.ID)))

	_, err = users.UpdateUsername(ctx, author.ID, "freshname2026")
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.PostKey(post.ID)), "cached author summary is dropped")

	after, err := svc.ListFeed(ctx, FeedQuery{}, before.ETag)
	require.NoError(t, err)
	assert.False(t, after.NotModified)
	require.Len(t, after.Posts, 1)
	require.NotNil(t, after.Posts[0].AuthorInfo)
	assert.Equal(t, "freshname2026", after.Posts[0].AuthorInfo.Username)

	got, err := posts.GetPost(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "freshname2026", got.AuthorInfo.Username)
}

func TestFeedService_NoFilterAliasesShareETag(t *testing.T) {
	db := newTestDB(t)
	svc := newFeedService(db)
	ctx := context.Background()
	seedPost(t, db, seedUser(t, db), "only", true)

	plain, err := svc.ListFeed(ctx, FeedQuery{}, "")
	require.NoError(t, err)
	all, err := svc.ListFeed(ctx, FeedQuery{Model: "All models", SortBy: "bogus", Page: -3}, plain.ETag)
	require.NoError(t, err)
	assert.True(t, all.NotModified)
}

func TestFeedService_HasMore(t *testing.T) {
	db := newTestDB(t)
	svc := newFeedService(db)
	ctx := context.Background()

	author := seedUser(t, db)
	for i := 0; i < 4; i++ {
		seedPost(t, db, author, fmt.Sprintf("post %d", i), true)
	}

	tests := []struct {
		page, limit int
		wantLen     int
		wantMore    bool
	}{
		{1, 2, 2, true},
		{2, 2, 2, true},
		{3, 2, 0, false},
		{1, 3, 3, true},
		{2, 3, 1, false},
		{1, 100, 4, false},
	}
	for _, tt := range tests {
		res, err := svc.ListFeed(ctx, FeedQuery{Page: tt.page, Limit: tt.limit}, "")
		require.NoError(t, err)
		assert.Len(t, res.Posts, tt.wantLen, "page %d limit %d", tt.page, tt.limit)
		assert.Equal(t, tt.wantMore, res.HasMore, "page %d limit %d", tt.page, tt.limit)
	}
}

func TestFeedService_PrivatePostsOnlyInOwnUserOnlyFeed(t *testing.T) {
	db := newTestDB(t)
	svc := newFeedService(db)
	ctx := context.Background()

	author := seedUser(t, db)
	other := seedUser(t, db)
	seedPost(t, db, author, "secret", false)
	seedPost(t, db, author, "open", true)

	for _, q := range []FeedQuery{{}, {ViewerID: author.ID}, {ViewerID: other.ID}, {ViewerID: other.ID, UserOnly: true}} {
		res, err := svc.ListFeed(ctx, q, "")
		require.NoError(t, err)
		for _, p := range res.Posts {
			assert.True(t, p.IsPublic, "query %+v leaked %q", q, p.Title)
		}
	}

	own, err := svc.ListFeed(ctx, FeedQuery{ViewerID: author.ID, UserOnly: true}, "")
	require.NoError(t, err)
	assert.Len(t, own.Posts, 2)

	_, err = svc.ListFeed(ctx, FeedQuery{UserOnly: true}, "")
	assertCode(t, err, models.CodeUnauthorized)
}

func TestFeedService_PresetAndViewerFlags(t *testing.T) {
	db := newTestDB(t)
	svc := newFeedService(db)
	interactions := repository.NewInteractionRepository(db)
	ctx := context.Background()

	author := seedUser(t, db)
	fan := seedUser(t, db)
	quiet := seedPost(t, db, author, "quiet", true)
	loved := seedPost(t, db, author, "loved", true)
	_, err := interactions.Toggle(ctx, models.InteractionLike, fan.ID, loved.ID)
	require.NoError(t, err)
	_, err = interactions.Toggle(ctx, models.InteractionBookmark, fan.ID, quiet.ID)
	require.NoError(t, err)

	res, err := svc.ListFeed(ctx, FeedQuery{ViewerID: fan.ID, Filter: "popular"}, "")
	require.NoError(t, err)
	require.Len(t, res.Posts, 2)
	assert.Equal(t, "loved", res.Posts[0].Title)
	assert.True(t, res.Posts[0].IsLiked)
	assert.False(t, res.Posts[0].IsBookmarked)
	assert.True(t, res.Posts[1].IsBookmarked)

	anon, err := svc.ListFeed(ctx, FeedQuery{Filter: "popular"}, "")
	require.NoError(t, err)
	for _, p := range anon.Posts {
		assert.False(t, p.IsLiked)
		assert.False(t, p.IsBookmarked)
	}
}

func TestETagMatches(t *testing.T) {
	etag := `W/"00000000deadbeef"`
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"*", true},
		{etag, true},
		{`"00000000deadbeef"`, true},
		{`W/"1111111111111111", ` + etag, true},
		{`W/"1111111111111111"`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ETagMatches(tt.header, etag), tt.header)
	}
}

func TestNormalizePage(t *testing.T) {
	page, limit := normalizePage(0, 0, 10, 50)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, limit)

	_, limit = normalizePage(2, 500, 10, 50)
	assert.Equal(t, 50, limit)
}
