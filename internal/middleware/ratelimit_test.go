package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimitRule_Bypass(t *testing.T) {
	rule := RateLimitRule{Name: "test", Limit: 1, Window: time.Minute}
	for _, env := range []string{"", "test", "development", "stress"} {
		t.Run("env="+env, func(t *testing.T) {
			t.Setenv("APP_ENV", env)
			d, err := rule.Check(context.Background(), nil, "ip:1")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
		})
	}

	t.Setenv("APP_ENV", "production")
	d, err := rule.Check(context.Background(), nil, "ip:1")
	assert.ErrorIs(t, err, errNoRateLimitStore)
	assert.False(t, d.Allowed)
}

func TestRateLimitRule_WindowCounting(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	rule := RateLimitRule{Name: "create_post", Limit: 3, Window: 5 * time.Minute}

	for i := 0; i < 3; i++ {
		d, err := rule.Check(ctx, rdb, "user:1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}
	assert.Greater(t, mr.TTL("rl:create_post:user:1"), time.Duration(0))

	d, err := rule.Check(ctx, rdb, "user:1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, 5*time.Minute)

	d, err = rule.Check(ctx, rdb, "user:2")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "other callers keep their own window")

	mr.FastForward(6 * time.Minute)
	d, err = rule.Check(ctx, rdb, "user:1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	okHandler := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	rule := RateLimitRule{Limit: 1, Window: time.Minute}

	t.Run("bypass in test mode", func(t *testing.T) {
		t.Setenv("APP_ENV", "test")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, rule), okHandler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("fail open with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, rule), okHandler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("fail closed with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		closed := rule
		closed.Policy = FailClosed
		app := fiber.New()
		app.Get("/sensitive", RateLimit(nil, closed), okHandler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sensitive", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("rejects over limit with Retry-After", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, rdb := newTestRedis(t)
		app := fiber.New()
		app.Post("/posts", RateLimit(rdb, RateLimitRule{Name: "create_post", Limit: 2, Window: time.Minute}), okHandler)

		for i := 0; i < 2; i++ {
			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts", nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
			_ = resp.Body.Close()
		}

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
		assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
		_ = resp.Body.Close()
	})
}
