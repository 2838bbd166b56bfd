package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"promptguy/internal/middleware"
	"promptguy/internal/models"
	"promptguy/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityService_EnsureUserProvisionsOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewIdentityService(repository.NewUserRepository(db))
	ctx := context.Background()

	claims := &middleware.IdentityClaims{Subject: "user_2AbCdEfGhIj", Email: "ada@example.com", FirstName: "Ada"}
	first, err := svc.EnsureUser(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, "user_2abcdefg_temp", first.Username)
	assert.False(t, first.HasUsername())
	assert.Equal(t, "ada@example.com", first.Email)

	second, err := svc.EnsureUser(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = svc.EnsureUser(ctx, &middleware.IdentityClaims{})
	assertCode(t, err, models.CodeUnauthorized)
}

func TestIdentityService_EnsureUserRetriesPlaceholderCollision(t *testing.T) {
	db := newTestDB(t)
	svc := NewIdentityService(repository.NewUserRepository(db))
	ctx := context.Background()

	// Same first eight characters after the prefix produce the same placeholder.
	a, err := svc.EnsureUser(ctx, &middleware.IdentityClaims{Subject: "user_sharedpfxAAAA"})
	require.NoError(t, err)
	b, err := svc.EnsureUser(ctx, &middleware.IdentityClaims{Subject: "user_sharedpfxBBBB"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Username, b.Username)
	assert.True(t, models.IsTemporaryUsername(b.Username))
}

func webhookEvent(t *testing.T, typ string, data interface{}) *WebhookEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &WebhookEvent{Type: typ, Data: raw}
}

func TestIdentityService_HandleWebhook(t *testing.T) {
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	svc := NewIdentityService(users)
	ctx := context.Background()

	first := "Grace"
	created := map[string]interface{}{
		"id":                       "user_hopper01",
		"first_name":               first,
		"primary_email_address_id": "e2",
		"email_addresses": []map[string]string{
			{"id": "e1", "email_address": "old@example.com"},
			{"id": "e2", "email_address": "grace@example.com"},
		},
	}
	require.NoError(t, svc.HandleWebhook(ctx, webhookEvent(t, EventUserCreated, created)))

	stored, err := users.GetByExternalID(ctx, "user_hopper01")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "grace@example.com", stored.Email)
	assert.Equal(t, "user_hopper01_temp", stored.Username)

	_, err = users.UpdateUsername(ctx, stored.ID, "gracehopper")
	require.NoError(t, err)

	updated := map[string]interface{}{
		"id":         "user_hopper01",
		"username":   "ignored",
		"first_name": "Amazing",
		"last_name":  "Grace",
		"image_url":  "https://img.example.com/g.png",
	}
	require.NoError(t, svc.HandleWebhook(ctx, webhookEvent(t, EventUserUpdated, updated)))

	stored, err = users.GetByExternalID(ctx, "user_hopper01")
	require.NoError(t, err)
	assert.Equal(t, "gracehopper", stored.Username, "webhooks never overwrite a username")
	assert.Equal(t, "Amazing", stored.FirstName)
	assert.Equal(t, "https://img.example.com/g.png", stored.ImageURL)

	require.NoError(t, svc.HandleWebhook(ctx, webhookEvent(t, "session.created", map[string]string{"id": "sess_1"})))

	require.NoError(t, svc.HandleWebhook(ctx, webhookEvent(t, EventUserDeleted, map[string]string{"id": "user_hopper01"})))
	gone, err := users.GetByExternalID(ctx, "user_hopper01")
	require.NoError(t, err)
	assert.Nil(t, gone)

	err = svc.HandleWebhook(ctx, &WebhookEvent{Type: EventUserCreated, Data: json.RawMessage(`{"id":""}`)})
	assertCode(t, err, models.CodeValidation)
}

func TestIdentityService_UserDeletedRecountsPosts(t *testing.T) {
	useTestCache(t)
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	interactions := repository.NewInteractionRepository(db)
	posts := NewPostService(repository.NewPostRepository(db), interactions)
	svc := NewIdentityService(users)
	ctx := context.Background()

	post := seedPost(t, db, seedUser(t, db), "liked then orphaned", true)
	liker := seedUser(t, db)
	res, err := interactions.Toggle(ctx, models.InteractionLike, liker.ID, post.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)

	cached, err := posts.GetPost(ctx, post.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, cached.LikesCount)

	require.NoError(t, svc.HandleWebhook(ctx, webhookEvent(t, EventUserDeleted, map[string]string{"id": liker.ExternalID})))

	var likes int64
	require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes).Error)
	assert.Zero(t, likes)

	got, err := posts.GetPost(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LikesCount, "counter follows the cascaded relation rows")
}

func TestWebhookUser_PrimaryEmail(t *testing.T) {
	assert.Empty(t, WebhookUser{}.PrimaryEmail())
	u := WebhookUser{EmailAddresses: []WebhookEmail{{ID: "a", EmailAddress: "first@example.com"}}}
	assert.Equal(t, "first@example.com", u.PrimaryEmail())
	u.PrimaryEmailAddressID = "missing"
	assert.True(t, strings.HasPrefix(u.PrimaryEmail(), "first@"))
}
