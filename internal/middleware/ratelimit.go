package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"promptguy/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	// FailClosed answers 503 instead of letting the request through.
	FailClosed
)

var errNoRateLimitStore = errors.New("rate limit store not configured")

// RateLimitRule is a fixed-window limit shared by every route using the same Name.
type RateLimitRule struct {
	Name   string
	Limit  int
	Window time.Duration
	Policy FailPolicy
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// rateLimitBypassed skips limiting outside deployed environments. Unset APP_ENV counts as development.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

// Check counts one hit for caller against rule. The counter and its expiry
// are set in one round trip so a crash never leaves a key without a TTL.
func (r RateLimitRule) Check(ctx context.Context, rdb *redis.Client, caller string) (Decision, error) {
	if rateLimitBypassed() {
		return Decision{Allowed: true, Remaining: r.Limit}, nil
	}
	if rdb == nil {
		return Decision{}, errNoRateLimitStore
	}

	key := "rl:" + r.Name + ":" + caller
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, r.Window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	count := int(incr.Val())
	if count <= r.Limit {
		return Decision{Allowed: true, Remaining: r.Limit - count}, nil
	}
	retry := ttl.Val()
	if retry <= 0 {
		retry = r.Window
	}
	return Decision{RetryAfter: retry}, nil
}

// RateLimit enforces rule per caller: the authenticated user id when
// present, otherwise the client IP.
func RateLimit(rdb *redis.Client, rule RateLimitRule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			caller = fmt.Sprintf("user:%d", uid)
		}
		applied := rule
		if applied.Name == "" {
			applied.Name = c.Path()
		}
		name := applied.Name

		d, err := applied.Check(c.UserContext(), rdb, caller)
		if err != nil {
			if rule.Policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					slog.String("rule", name),
					slog.String("error", err.Error()),
				)
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					&models.AppError{Code: models.CodeInternal, Message: "Rate limit unavailable"})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			RateLimitRejections.WithLabelValues(name).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(d.RetryAfter.Seconds())+1))
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				&models.AppError{Code: models.CodeRateLimited, Message: "Too many requests, please slow down"})
		}
		return c.Next()
	}
}
