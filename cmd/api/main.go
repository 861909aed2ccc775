package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"refund-autopilot/config"
	"refund-autopilot/internal/adapter/ai"
	httpHandler "refund-autopilot/internal/adapter/http/handler"
	"refund-autopilot/internal/adapter/payment"
	pgStorage "refund-autopilot/internal/adapter/storage/postgres"
	redisStorage "refund-autopilot/internal/adapter/storage/redis"
	"refund-autopilot/internal/core/ports"
	"refund-autopilot/internal/service"
	"refund-autopilot/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Refund AutoPilot")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis. The service degrades to unthrottled operation without
	// it, so a connection failure is not fatal.
	var rateLimitStore *redisStorage.RateLimitStore
	healthCheckers := []ports.HealthChecker{pgStorage.NewHealthCheck(pool)}
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
	} else {
		defer rdb.Close()
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
		log.Info().Msg("Redis connected")
	}

	// Initialize repositories
	refundRepo := pgStorage.NewRefundRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	tenantRepo := pgStorage.NewTenantRepo(pool)
	credentialRepo := pgStorage.NewCredentialRepo(pool)

	// Initialize core services
	encSvc, err := service.NewEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewSignatureService()
	hashSvc := service.NewHashService()
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	authSvc := service.NewAuthService(tenantRepo, hashSvc, tokenSvc, log)
	credentialSvc := service.NewCredentialService(credentialRepo, encSvc, log)
	auditSvc := service.NewAuditService(auditRepo, log)

	aiClient := ai.NewClient(ai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
	}, cfg.OpenAI.Timeout, log)

	dispatcher := service.NewDispatcher(log,
		payment.NewStripeBackend(log),
		payment.NewPayPalBackend("", &http.Client{Timeout: cfg.Pipeline.ProviderTimeout}, log),
		payment.NewShopifyBackend("", &http.Client{Timeout: cfg.Pipeline.ProviderTimeout}, log),
	)

	notifier := service.NewSlackNotifier(credentialSvc, sigSvc,
		&http.Client{Timeout: 10 * time.Second}, 30*time.Second, log)
	defer notifier.Flush()

	refundSvc := service.NewRefundService(service.RefundServiceDeps{
		Refunds:         refundRepo,
		Audits:          auditRepo,
		Audit:           auditSvc,
		Extractor:       aiClient,
		Scorer:          aiClient,
		Creds:           credentialSvc,
		Dispatcher:      dispatcher,
		Engine:          service.NewDecisionEngine(cfg.Pipeline.AutoApproveCents(), cfg.Pipeline.FraudScoreThreshold),
		ProviderTimeout: cfg.Pipeline.ProviderTimeout,
		CredTimeout:     cfg.Pipeline.CredentialTimeout,
		DefaultCurrency: cfg.Pipeline.DefaultCurrency,
	}, notifier, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		RefundHandler:     httpHandler.NewRefundHandler(refundSvc, log),
		AuthHandler:       httpHandler.NewAuthHandler(authSvc, log),
		CredentialHandler: httpHandler.NewCredentialHandler(credentialSvc, log),
		TokenSvc:          tokenSvc,
		AuditSvc:          auditSvc,
		RateLimitStore:    rateLimitStore,
		HealthCheckers:    healthCheckers,
		Logger:            log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
