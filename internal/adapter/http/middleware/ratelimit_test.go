package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	redisStore "refund-autopilot/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitedRouter(t *testing.T, rule RateLimitRule) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	router := gin.New()
	router.GET("/", RateLimiter(redisStore.NewRateLimitStore(client), "test_group", rule, zerolog.Nop()),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router, mr
}

func TestRateLimiter_AllowsAndCountsDown(t *testing.T) {
	router, _ := rateLimitedRouter(t, RateLimitRule{Limit: 3, Window: time.Minute})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router, _ := rateLimitedRouter(t, RateLimitRule{Limit: 2, Window: time.Minute})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_001")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiter_DegradedModeAllowsOnStoreError(t *testing.T) {
	router, mr := rateLimitedRouter(t, RateLimitRule{Limit: 1, Window: time.Minute})
	mr.Close()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDefaultRateLimitRules_CoverAllGroups(t *testing.T) {
	rules := DefaultRateLimitRules()
	for _, group := range []string{
		"refunds_submit", "refunds_override", "refunds_read",
		"credentials", "auth_login", "auth_register",
	} {
		rule, ok := rules[group]
		assert.True(t, ok, "missing rule for %s", group)
		assert.Positive(t, rule.Limit)
	}
}
