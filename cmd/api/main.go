package main

import (
	"context"
	"log"
	"net/http"

	"authcore/internal/cache"
	"authcore/internal/config"
	"authcore/internal/database"
	"authcore/internal/domain"
	"authcore/internal/middleware"
	"authcore/internal/modules/auth"
	"authcore/internal/modules/cleanup"
	"authcore/internal/observability/metrics"
	jwtsvc "authcore/internal/pkg/jwt"
	"authcore/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := db.AutoMigrate(&domain.Session{}, &domain.RefreshToken{}); err != nil {
		logger.Fatal("db migrate failed", zap.Error(err))
	}

	var stateCache auth.StateCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		stateCache = cache.NewRedisStore(client, cfg.AccessTokenTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process session cache")
		stateCache = cache.NewMemoryStore(cfg.AccessTokenTTL)
	}

	sessionRepo := repository.NewSessionRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)

	issuer := jwtsvc.New(cfg.JWTSecret, cfg.AccessTokenTTL)
	providers := auth.NewProviderRegistry()
	providers.Register(auth.DefaultProvider, auth.NewLocalProvider(issuer))

	opts := auth.Options{
		RefreshTTL:            cfg.RefreshTokenTTL,
		SessionTTL:            cfg.SessionTTL,
		SessionTTLRemember:    cfg.SessionTTLRemember,
		LockTimeout:           cfg.LockTimeout,
		MaxSessionsPerSubject: cfg.MaxSessionsPerSubject,
	}
	if cfg.IdempotencyEnabled() {
		opts.IdempotencyWindow = cfg.IdempotencyWindow
	}

	engine := auth.NewService(db, sessionRepo, tokenRepo, stateCache, issuer, providers, logger, opts)
	handler := auth.NewHandler(engine)

	sweeper := cleanup.NewService(sessionRepo, tokenRepo, stateCache, logger, cfg.CleanupInterval, cfg.CleanupRetention, cfg.SessionIdleTTL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Start(ctx)

	metrics.MustRegister()

	r := gin.Default()
	r.Use(middleware.CORS())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		handler.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.RequireSession(engine))
		{
			handler.RegisterProtectedRoutes(protected)
		}
	}

	logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
