package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "refund-autopilot/internal/adapter/storage/redis"
	"refund-autopilot/pkg/apperror"
	"refund-autopilot/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the per-endpoint-group rate limits. Submit is
// the expensive path (two model calls per request), so it gets the tightest
// budget.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"refunds_submit":   {Limit: 30, Window: time.Minute},
		"refunds_override": {Limit: 60, Window: time.Minute},
		"refunds_read":     {Limit: 240, Window: time.Minute},
		"credentials":      {Limit: 30, Window: time.Minute},
		"auth_login":       {Limit: 10, Window: time.Minute},
		"auth_register":    {Limit: 5, Window: time.Hour},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := extractIdentifier(c)
		key := fmt.Sprintf("%s:%s", identifier, group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		// Always set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys the counter by tenant when authenticated, by client
// IP otherwise.
func extractIdentifier(c *gin.Context) string {
	if id, ok := TenantID(c); ok {
		return id.String()
	}
	return c.ClientIP()
}
