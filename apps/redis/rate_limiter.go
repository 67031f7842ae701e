package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/gofiber/fiber/v2"
	"github.com/iesreza/hrdesk-backend/lib/response"
)

// RateLimitConfig holds the configuration for a rate limit rule
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	Enabled     bool
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 60,
		Window:      time.Minute,
		Enabled:     true,
	}
}

var rateLimitCache sync.Map

func SetRateLimitConfig(key string, config RateLimitConfig) {
	rateLimitCache.Store(key, config)
}

func GetRateLimitConfig(key string) RateLimitConfig {
	if cached, ok := rateLimitCache.Load(key); ok {
		return cached.(RateLimitConfig)
	}
	return DefaultRateLimitConfig()
}

type decision struct {
	Allowed   bool
	Count     int64
	Remaining int
	TTL       time.Duration
}

// hit counts one request for key inside the fixed window. With Redis down
// every request is allowed.
func hit(key, client string) (decision, bool) {
	config := GetRateLimitConfig(key)
	if !config.Enabled || Client == nil {
		return decision{Allowed: true}, false
	}

	redisKey := fmt.Sprintf("rate_limit:%s:%s", key, client)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	count, err := Client.Incr(ctx, redisKey).Result()
	if err != nil {
		log.Warning("redis rate limit error: %v", err)
		return decision{Allowed: true}, false
	}
	if count == 1 {
		Client.Expire(ctx, redisKey, config.Window)
	}
	ttl, _ := Client.TTL(ctx, redisKey).Result()

	return decision{
		Allowed:   int(count) <= config.MaxRequests,
		Count:     count,
		Remaining: max(0, config.MaxRequests-int(count)),
		TTL:       ttl,
	}, true
}

// clientKey prefers the first X-Forwarded-For hop set by the ingress
func clientKey(ip, forwarded string) string {
	if forwarded == "" {
		return ip
	}
	first, _, _ := strings.Cut(forwarded, ",")
	return strings.TrimSpace(first)
}

// RateLimitMiddleware is mounted with evo.GetFiber().Use in front of evo routes
func RateLimitMiddleware(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, counted := hit(key, clientKey(c.IP(), c.Get("X-Forwarded-For")))
		if !counted {
			return c.Next()
		}

		config := GetRateLimitConfig(key)
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.TTL).Unix(), 10))

		if !d.Allowed {
			c.Set("Retry-After", strconv.Itoa(int(d.TTL.Seconds())))
			return response.FiberError(c, response.ErrTooManyRequests)
		}
		return c.Next()
	}
}

// EvoRateLimitMiddleware is the evo.Use flavour of RateLimitMiddleware
func EvoRateLimitMiddleware(key string) func(*evo.Request) error {
	return func(req *evo.Request) error {
		d, counted := hit(key, clientKey(req.IP(), req.Header("X-Forwarded-For")))
		if counted && !d.Allowed {
			return response.ErrTooManyRequests
		}
		return req.Next()
	}
}
