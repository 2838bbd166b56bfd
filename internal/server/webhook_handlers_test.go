package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"promptguy/internal/config"
	"promptguy/internal/models"
	"promptguy/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) postWebhook(body []byte, headers map[string]string) *http.Response {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/identity", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func signedHeaders(t *testing.T, id string, ts time.Time, body []byte) map[string]string {
	t.Helper()
	v, err := service.NewWebhookVerifier(testWebhookSecret)
	require.NoError(t, err)
	return map[string]string{
		"svix-id":        id,
		"svix-timestamp": strconv.FormatInt(ts.Unix(), 10),
		"svix-signature": v.Sign(id, ts, body),
	}
}

const createdPayload = `{
	"type": "user.created",
	"data": {
		"id": "user_2hookuser9",
		"first_name": "Hook",
		"last_name": "User",
		"image_url": "https://img.example.com/hook.png",
		"primary_email_address_id": "idn_1",
		"email_addresses": [
			{"id": "idn_0", "email_address": "old@example.com"},
			{"id": "idn_1", "email_address": "hook@example.com"}
		]
	}
}`

func TestIdentityWebhook_UserLifecycle(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(createdPayload)
	resp := env.postWebhook(body, signedHeaders(t, "msg_created", time.Now(), body))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ack map[string]bool
	decodeJSON(t, resp, &ack)
	assert.True(t, ack["success"])

	var user models.User
	require.NoError(t, env.db.Where("external_id = ?", "user_2hookuser9").First(&user).Error)
	assert.Equal(t, "user_2hookuse_temp", user.Username)
	assert.Equal(t, "hook@example.com", user.Email)
	assert.Equal(t, "Hook", user.FirstName)

	// A claimed username survives profile updates.
	require.NoError(t, env.db.Model(&user).Update("username", "hookuser").Error)
	updated := []byte(`{"type":"user.updated","data":{"id":"user_2hookuser9","first_name":"Hooked","email_addresses":[]}}`)
	resp = env.postWebhook(updated, signedHeaders(t, "msg_updated", time.Now(), updated))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, env.db.First(&user, user.ID).Error)
	assert.Equal(t, "hookuser", user.Username)
	assert.Equal(t, "Hooked", user.FirstName)

	ignored := []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)
	resp = env.postWebhook(ignored, signedHeaders(t, "msg_session", time.Now(), ignored))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	deleted := []byte(`{"type":"user.deleted","data":{"id":"user_2hookuser9","deleted":true}}`)
	resp = env.postWebhook(deleted, signedHeaders(t, "msg_deleted", time.Now(), deleted))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count int64
	require.NoError(t, env.db.Model(&models.User{}).Where("external_id = ?", "user_2hookuser9").Count(&count).Error)
	assert.Zero(t, count)
}

func TestIdentityWebhook_Rejections(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(createdPayload)
	valid := signedHeaders(t, "msg_1", time.Now(), body)

	tampered := signedHeaders(t, "msg_1", time.Now(), body)
	tampered["svix-signature"] = signedHeaders(t, "msg_1", time.Now(), []byte(`{}`))["svix-signature"]

	tests := []struct {
		name          string
		body          []byte
		headers       map[string]string
		expectedError string
	}{
		{"missing headers", body, map[string]string{}, "Missing svix headers"},
		{"missing signature", body, map[string]string{"svix-id": valid["svix-id"], "svix-timestamp": valid["svix-timestamp"]}, "Missing svix headers"},
		{"tampered signature", body, tampered, "Invalid webhook signature"},
		{"stale timestamp", body, signedHeaders(t, "msg_1", time.Now().Add(-time.Hour), body), "Invalid webhook signature"},
		{"signed garbage", []byte("not json"), signedHeaders(t, "msg_2", time.Now(), []byte("not json")), "Invalid webhook payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postWebhook(tt.body, tt.headers)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var errBody models.ErrorResponse
			decodeJSON(t, resp, &errBody)
			assert.Equal(t, tt.expectedError, errBody.Error)
		})
	}
}

func TestIdentityWebhook_SecretNotConfigured(t *testing.T) {
	env := newTestEnvWithConfig(t, &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DBSQLitePath: ":memory:",
		JWTSecret:    testJWTSecret,
	})

	body := []byte(createdPayload)
	resp := env.postWebhook(body, signedHeaders(t, "msg_1", time.Now(), body))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestNewServerWithDeps_InvalidWebhookSecret(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewServerWithDeps(&config.Config{WebhookSecret: "whsec_%%%"}, env.db, nil, nil)
	assert.Error(t, err)

	_, err = NewServerWithDeps(&config.Config{}, nil, nil, nil)
	assert.Error(t, err)
}
