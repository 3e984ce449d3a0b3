package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// KeyFunc picks the subject a rate limit is counted against.
type KeyFunc func(c *fiber.Ctx) string

// RateLimit allows maxPerMin requests per subject per fixed one-minute window
// using Redis INCR/EXPIRE. It is a no-op without Redis and fails open on cache
// errors.
func RateLimit(cache *redis.Client, scope string, maxPerMin int, key KeyFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || maxPerMin <= 0 {
			return c.Next()
		}
		subject := ""
		if key != nil {
			subject = key(c)
		}
		if subject == "" {
			subject = c.IP()
		}
		k := "rl:" + scope + ":" + subject
		cnt, err := cache.Incr(c.UserContext(), k).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), k, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}

// LoginRateLimit limits login attempts per account or IP.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return RateLimit(cache, "login", maxPerMin, func(c *fiber.Ctx) string {
		var req struct {
			Account string `json:"account"`
		}
		_ = c.BodyParser(&req)
		return strings.ToLower(strings.TrimSpace(req.Account))
	})
}

// ByCaller counts requests against the authenticated account.
func ByCaller(c *fiber.Ctx) string {
	if caller, ok := Caller(c); ok {
		return caller.Hex()
	}
	return ""
}
