package server

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"promptguy/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedBody struct {
	Posts   []models.Post `json:"posts"`
	HasMore bool          `json:"hasMore"`
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("user_2creator1")

	tests := []struct {
		name           string
		token          string
		body           fiber.Map
		expectedStatus int
	}{
		{
			name:           "Success",
			token:          tok,
			body:           fiber.Map{"title": "SQL tutor", "content": "Explain joins", "tags": []string{"SQL", "learning"}},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Missing Title",
			token:          tok,
			body:           fiber.Map{"content": "Explain joins"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Too Many Tags",
			token:          tok,
			body:           fiber.Map{"title": "t", "content": "c", "tags": []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unauthenticated",
			body:           fiber.Map{"title": "SQL tutor", "content": "Explain joins"},
			expectedStatus: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(http.MethodPost, "/api/posts", tt.body, tt.token)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}

	resp := env.do(http.MethodPost, "/api/posts", fiber.Map{"title": "Tagged", "content": "c", "tags": []string{"Go", "go", "API"}}, tok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var post models.Post
	decodeJSON(t, resp, &post)
	assert.True(t, post.IsPublic)
	assert.Equal(t, []string{"api", "go"}, post.Tags)
	require.NotNil(t, post.AuthorInfo)
}

func TestCreatePost_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("user_2malform1")

	resp := env.do(http.MethodPost, "/api/posts", "just a string", tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPost_Visibility(t *testing.T) {
	env := newTestEnv(t)
	_, ownerTok := env.user("user_2owner001")
	_, otherTok := env.user("user_2stranger")

	public := env.createPost(ownerTok, "open", true)
	private := env.createPost(ownerTok, "secret", false)

	tests := []struct {
		name           string
		path           string
		token          string
		expectedStatus int
	}{
		{"public anonymous", fmt.Sprintf("/api/posts/%d", public.ID), "", http.StatusOK},
		{"private owner", fmt.Sprintf("/api/posts/%d", private.ID), ownerTok, http.StatusOK},
		{"private stranger", fmt.Sprintf("/api/posts/%d", private.ID), otherTok, http.StatusNotFound},
		{"private anonymous", fmt.Sprintf("/api/posts/%d", private.ID), "", http.StatusNotFound},
		{"missing", "/api/posts/999999", "", http.StatusNotFound},
		{"bad id", "/api/posts/abc", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(http.MethodGet, tt.path, nil, tt.token)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestUpdateAndDeletePost_AuthorOnly(t *testing.T) {
	env := newTestEnv(t)
	_, ownerTok := env.user("user_2author01")
	_, otherTok := env.user("user_2intruder")
	post := env.createPost(ownerTok, "draft", true)
	path := fmt.Sprintf("/api/posts/%d", post.ID)

	update := fiber.Map{"title": "final", "content": "polished", "tags": []string{"done"}}

	resp := env.do(http.MethodPut, path, update, otherTok)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodPut, path, update, ownerTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Post
	decodeJSON(t, resp, &updated)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, []string{"done"}, updated.Tags)

	resp = env.do(http.MethodDelete, path, nil, otherTok)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodDelete, path, nil, ownerTok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]bool
	decodeJSON(t, resp, &body)
	assert.True(t, body["success"])

	resp = env.do(http.MethodGet, path, nil, ownerTok)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetFeed_ETagRevalidation(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("user_2feeder01")
	env.createPost(tok, "first", true)
	second := env.createPost(tok, "second", true)

	resp := env.do(http.MethodGet, "/api/posts?limit=10", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	assert.Contains(t, etag, `W/"`)
	assert.Equal(t, feedCacheControl, resp.Header.Get("Cache-Control"))
	assert.Contains(t, resp.Header.Get("Vary"), "Authorization")

	var feed feedBody
	decodeJSON(t, resp, &feed)
	require.Len(t, feed.Posts, 2)
	assert.Equal(t, second.ID, feed.Posts[0].ID)
	assert.False(t, feed.HasMore)

	resp = env.do(http.MethodGet, "/api/posts?limit=10", nil, "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Equal(t, etag, resp.Header.Get("ETag"))
	raw, _ := io.ReadAll(resp.Body)
	assert.Empty(t, raw)

	// A like changes the counters, so the old validator no longer matches.
	resp = env.do(http.MethodPost, "/api/interactions/like", fiber.Map{"postId": second.ID}, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/posts?limit=10", nil, "", "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, etag, resp.Header.Get("ETag"))
}

func TestGetFeed_Filters(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("user_2filter01")
	env.createPost(tok, "visible", true)
	env.createPost(tok, "hidden", false)

	resp := env.do(http.MethodGet, "/api/posts", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var feed feedBody
	decodeJSON(t, resp, &feed)
	require.Len(t, feed.Posts, 1)
	assert.Equal(t, "visible", feed.Posts[0].Title)

	resp = env.do(http.MethodGet, "/api/posts?userOnly=true", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/posts?userOnly=true", nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	feed = feedBody{}
	decodeJSON(t, resp, &feed)
	assert.Len(t, feed.Posts, 2)

	resp = env.do(http.MethodGet, "/api/posts?limit=1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	feed = feedBody{}
	decodeJSON(t, resp, &feed)
	assert.Len(t, feed.Posts, 1)
	assert.True(t, feed.HasMore)
}

func TestGetUserPosts(t *testing.T) {
	env := newTestEnv(t)
	author, tok := env.user("user_2profile1")
	env.createPost(tok, "public one", true)
	env.createPost(tok, "private one", false)

	resp := env.do(http.MethodGet, fmt.Sprintf("/api/users/%d/posts", author.ID), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var feed feedBody
	decodeJSON(t, resp, &feed)
	require.Len(t, feed.Posts, 1)
	assert.Equal(t, "public one", feed.Posts[0].Title)
}

func TestRecordView(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.user("user_2viewer01")
	post := env.createPost(tok, "viewed", true)
	path := fmt.Sprintf("/api/posts/%d/view", post.ID)

	var body map[string]int
	resp := env.do(http.MethodPost, path, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.Equal(t, 1, body["viewsCount"])

	resp = env.do(http.MethodPost, path, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.Equal(t, 2, body["viewsCount"])

	resp = env.do(http.MethodPost, path, nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.Equal(t, 3, body["viewsCount"])

	var anon models.User
	require.NoError(t, env.db.Where("external_id = ?", models.AnonymousExternalID).First(&anon).Error)
	var anonViews int64
	require.NoError(t, env.db.Model(&models.View{}).Where("user_id = ?", anon.ID).Count(&anonViews).Error)
	assert.Equal(t, int64(2), anonViews)

	resp = env.do(http.MethodPost, "/api/posts/424242/view", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
