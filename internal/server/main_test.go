package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"promptguy/internal/config"
	"promptguy/internal/database"
	"promptguy/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testJWTSecret = "test-identity-secret-0123456789abcdef0123456789"
	// base64("promptguy-webhook-signing-key")
	testWebhookSecret = "whsec_cHJvbXB0Z3V5LXdlYmhvb2stc2lnbmluZy1rZXk="
)

type testEnv struct {
	t   *testing.T
	db  *gorm.DB
	srv *Server
	app *fiber.App
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, &config.Config{
		Env:           "test",
		DBDriver:      "sqlite",
		DBSQLitePath:  ":memory:",
		JWTSecret:     testJWTSecret,
		WebhookSecret: testWebhookSecret,
		FeatureFlags:  "realtime_notifications=off",
	})
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	srv, err := NewServerWithDeps(cfg, db, nil, nil)
	require.NoError(t, err)
	return &testEnv{t: t, db: db, srv: srv, app: srv.NewApp()}
}

// token signs a session token for the external subject.
func (e *testEnv) token(subject string) string {
	e.t.Helper()
	claims := jwt.MapClaims{
		"sub":        subject,
		"email":      subject + "@example.com",
		"first_name": "First " + subject,
		"exp":        time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(e.t, err)
	return signed
}

// user provisions the local user for subject through the auth middleware.
func (e *testEnv) user(subject string) (*models.User, string) {
	e.t.Helper()
	tok := e.token(subject)
	resp := e.do(http.MethodGet, "/api/user/profile", nil, tok)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)

	var u models.User
	require.NoError(e.t, e.db.Where("external_id = ?", subject).First(&u).Error)
	return &u, tok
}

func (e *testEnv) do(method, path string, body any, token string, headers ...string) *http.Response {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func (e *testEnv) createPost(token, title string, public bool) *models.Post {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/posts", fiber.Map{
		"title":    title,
		"content":  "Write a haiku about " + title,
		"model":    "GPT-4",
		"purpose":  "Writing",
		"tags":     []string{"poetry"},
		"isPublic": public,
	}, token)
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)

	var post models.Post
	decodeJSON(e.t, resp, &post)
	return &post
}
