package server

import (
	"fmt"
	"net/http"
	"testing"

	"promptguy/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleLike(t *testing.T) {
	env := newTestEnv(t)
	_, authorTok := env.user("user_2likeauth")
	_, fanTok := env.user("user_2likefan1")
	post := env.createPost(authorTok, "likeable", true)

	var body map[string]any
	resp := env.do(http.MethodPost, "/api/interactions/like", fiber.Map{"postId": post.ID}, fanTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.Equal(t, true, body["liked"])
	assert.Equal(t, float64(1), body["likesCount"])

	resp = env.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), nil, fanTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var seen models.Post
	decodeJSON(t, resp, &seen)
	assert.True(t, seen.IsLiked)
	assert.Equal(t, 1, seen.LikesCount)

	resp = env.do(http.MethodPost, "/api/interactions/like", fiber.Map{"postId": post.ID}, fanTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = nil
	decodeJSON(t, resp, &body)
	assert.Equal(t, false, body["liked"])
	assert.Equal(t, float64(0), body["likesCount"])
}

func TestToggleInteractions_Validation(t *testing.T) {
	env := newTestEnv(t)
	me, tok := env.user("user_2validat1")
	_, ownerTok := env.user("user_2validat2")
	private := env.createPost(ownerTok, "hidden", false)

	tests := []struct {
		name           string
		path           string
		body           any
		token          string
		expectedStatus int
		expectedError  string
	}{
		{"like without postId", "/api/interactions/like", fiber.Map{}, tok, http.StatusBadRequest, "postId is required"},
		{"bookmark zero postId", "/api/interactions/bookmark", fiber.Map{"postId": 0}, tok, http.StatusBadRequest, "postId is required"},
		{"like missing post", "/api/interactions/like", fiber.Map{"postId": 987654}, tok, http.StatusNotFound, ""},
		{"like private post", "/api/interactions/like", fiber.Map{"postId": private.ID}, tok, http.StatusNotFound, ""},
		{"follow self", "/api/interactions/follow", fiber.Map{"targetUserId": me.ID}, tok, http.StatusBadRequest, "You cannot follow yourself"},
		{"follow missing user", "/api/interactions/follow", fiber.Map{"targetUserId": 987654}, tok, http.StatusNotFound, ""},
		{"follow without target", "/api/interactions/follow", fiber.Map{}, tok, http.StatusBadRequest, "targetUserId is required"},
		{"unauthenticated", "/api/interactions/like", fiber.Map{"postId": private.ID}, "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(http.MethodPost, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedError != "" {
				var body models.ErrorResponse
				decodeJSON(t, resp, &body)
				assert.Equal(t, tt.expectedError, body.Error)
				assert.Equal(t, models.CodeValidation, body.Code)
			}
		})
	}
}

func TestToggleBookmark_ListedInBookmarks(t *testing.T) {
	env := newTestEnv(t)
	_, authorTok := env.user("user_2bookauth")
	_, readerTok := env.user("user_2bookread")
	post := env.createPost(authorTok, "keeper", true)

	resp := env.do(http.MethodPost, "/api/interactions/bookmark", fiber.Map{"postId": post.ID}, readerTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	decodeJSON(t, resp, &body)
	assert.Equal(t, true, body["bookmarked"])
	assert.Equal(t, float64(1), body["bookmarksCount"])

	resp = env.do(http.MethodGet, "/api/user/bookmarks", nil, readerTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Bookmarks []models.Post `json:"bookmarks"`
	}
	decodeJSON(t, resp, &list)
	require.Len(t, list.Bookmarks, 1)
	assert.Equal(t, post.ID, list.Bookmarks[0].ID)
	assert.True(t, list.Bookmarks[0].IsBookmarked)
}

func TestToggleFollow(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("user_2follower")
	target, _ := env.user("user_2followee")

	var body map[string]bool
	resp := env.do(http.MethodPost, "/api/interactions/follow", fiber.Map{"targetUserId": target.ID}, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.True(t, body["following"])

	resp = env.do(http.MethodPost, "/api/interactions/follow", fiber.Map{"targetUserId": target.ID}, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.False(t, body["following"])
}

func TestSharePost(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("user_2sharer01")
	post := env.createPost(tok, "shareable", true)

	var body map[string]int
	for want := 1; want <= 2; want++ {
		resp := env.do(http.MethodPost, "/api/interactions/share", fiber.Map{"postId": post.ID, "platform": "Twitter"}, tok)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeJSON(t, resp, &body)
		assert.Equal(t, want, body["sharesCount"])
	}

	resp := env.do(http.MethodPost, "/api/interactions/share", fiber.Map{"platform": "Twitter"}, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
