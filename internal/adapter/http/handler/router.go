package handler

import (
	"refund-autopilot/internal/adapter/http/middleware"
	redisStore "refund-autopilot/internal/adapter/storage/redis"
	"refund-autopilot/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxRequestBodyBytes = 64 << 10

// RouterDeps holds everything the router needs.
type RouterDeps struct {
	RefundHandler     *RefundHandler
	AuthHandler       *AuthHandler
	CredentialHandler *CredentialHandler
	TokenSvc          ports.TokenService
	AuditSvc          ports.AuditService
	RateLimitStore    *redisStore.RateLimitStore // nil disables rate limiting
	HealthCheckers    []ports.HealthChecker
	Logger            zerolog.Logger
}

// SetupRouter builds the gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.MaxBodySize(maxRequestBodyBytes))

	router.GET("/health", HealthCheck(deps.AuditSvc, deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), deps.AuthHandler.Register)
		auth.POST("/login", rl("auth_login"), deps.AuthHandler.Login)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	refunds := v1.Group("/refunds", jwtAuth)
	{
		refunds.POST("", rl("refunds_submit"), deps.RefundHandler.Submit)
		refunds.GET("", rl("refunds_read"), deps.RefundHandler.List)
		refunds.GET("/:id", rl("refunds_read"), deps.RefundHandler.Get)
		refunds.GET("/:id/audit", rl("refunds_read"), deps.RefundHandler.AuditTrail)
		refunds.POST("/:id/override", rl("refunds_override"), deps.RefundHandler.Override)
	}

	credentials := v1.Group("/credentials", jwtAuth)
	{
		credentials.PUT("", rl("credentials"), deps.CredentialHandler.Store)
		credentials.GET("/capabilities", rl("credentials"), deps.CredentialHandler.Capabilities)
	}

	return router
}
