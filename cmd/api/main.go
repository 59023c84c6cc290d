package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"syncly-backend/internal/config"
	"syncly-backend/internal/db"
	"syncly-backend/internal/email"
	apihttp "syncly-backend/internal/http"
	"syncly-backend/internal/identity"
	"syncly-backend/internal/repository"
	"syncly-backend/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	var provider identity.Provider
	identityConfigured := false
	if strings.EqualFold(cfg.IdentityMode, "local") {
		if cfg.IdentitySecret == "" {
			logger.Warn("local identity secret not configured")
		}
		provider = identity.NewLocalProvider(cfg.IdentitySecret)
		identityConfigured = cfg.IdentitySecret != ""
	} else {
		if cfg.IdentityBaseURL == "" {
			logger.Fatal("IDENTITY_BASE_URL is required in remote mode")
		}
		provider = identity.NewHTTPProvider(cfg.IdentityBaseURL, cfg.IdentityAPIKey, logger)
		identityConfigured = true
	}

	var limiter service.RateLimiter
	redisConfigured := false
	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			limiter = service.NewRedisRateLimiter(redisClient, window, cfg.RateLimitMax)
			redisConfigured = true
		}
		cancel()
	}
	if limiter == nil {
		limiter = service.NewMemoryRateLimiter(window, cfg.RateLimitMax)
	}

	welcomeSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			welcomeSender = sender
		}
	}

	profileRepo := repository.NewPgProfileRepository(pool)
	reconciliationRepo := repository.NewPgReconciliationRepository(pool)
	authSvc := service.NewAuthService(logger, provider, profileRepo, reconciliationRepo, welcomeSender)
	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	healthHandler := apihttp.NewHealthHandler(pool, identityConfigured, redisConfigured)
	router := apihttp.NewRouter(logger, authHandler, healthHandler, provider, authSvc, limiter)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
