package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/splitmate/server/internal/module/auth"
	"github.com/splitmate/server/internal/module/group"
	"github.com/splitmate/server/internal/module/linking"
	"github.com/splitmate/server/internal/shared/cache"
	"github.com/splitmate/server/internal/shared/config"
	"github.com/splitmate/server/internal/shared/database"
	"github.com/splitmate/server/internal/shared/events"
	"github.com/splitmate/server/internal/shared/logger"
	"github.com/splitmate/server/internal/shared/metrics"
	"github.com/splitmate/server/internal/shared/middleware"
)

// App wires configuration, storage, and modules into a runnable server.
type App struct {
	config  *config.Config
	db      *gorm.DB
	redis   redis.UniversalClient
	router  *gin.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics

	authHandler    *auth.Handler
	groupHandler   *group.Handler
	linkingHandler *linking.Handler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{
		config: cfg,
		logger: log,
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	app.db = db

	if err := db.AutoMigrate(
		&auth.User{},
		&group.Group{},
		&group.Member{},
		&group.Expense{},
		&group.ExpenseShare{},
		&linking.InviteToken{},
		&linking.LinkRequest{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	app.redis = redisClient

	app.metrics = metrics.New("splitmate")

	app.initModules()
	app.initRouter()

	return app, nil
}

// initModules constructs module services and handlers.
func (a *App) initModules() {
	jwtManager := auth.NewJWTManager(&auth.JWTConfig{
		Secret:            a.config.Auth.JWTSecret,
		AccessTokenExpiry: a.config.Auth.AccessTokenExpiry,
		Issuer:            a.config.Auth.Issuer,
	})
	authService := auth.NewService(auth.NewUserRepository(a.db), jwtManager, a.logger)
	a.authHandler = auth.NewHandler(authService)

	groupService := group.NewService(group.NewRepository(a.db), a.logger)
	a.groupHandler = group.NewHandler(groupService)

	linkingCfg := &linking.Config{
		TokenExpiry:   a.config.Linking.TokenExpiry,
		RequestExpiry: a.config.Linking.RequestExpiry,
		TokenLength:   a.config.Linking.TokenLength,
		Retry: linking.RetryConfig{
			MaxAttempts: a.config.Linking.RetryMaxAttempts,
			BaseDelay:   a.config.Linking.RetryBaseDelay,
			MaxDelay:    a.config.Linking.RetryMaxDelay,
			Multiplier:  a.config.Linking.RetryMultiplier,
		},
	}

	preview := linking.NewCachedPreviewProvider(
		groupService, a.redis, a.config.Linking.PreviewCacheTTL, a.logger)

	bus := events.NewBus(a.logger)
	bus.Register(&previewInvalidator{preview: preview})

	linkingService := linking.NewService(
		linking.NewTokenRepository(a.db),
		linking.NewRequestRepository(a.db),
		linking.ContextIdentityProvider{},
		linkingCfg,
		a.logger,
		linking.WithRetry(linking.NewRetryExecutor(linkingCfg.Retry)),
		linking.WithPreview(preview),
		linking.WithMetrics(linking.NewMetrics("splitmate")),
		linking.WithEvents(bus),
	)
	a.linkingHandler = linking.NewHandler(linkingService)
}

// previewInvalidator drops cached history previews when a member gets linked.
type previewInvalidator struct {
	preview *linking.CachedPreviewProvider
}

func (h *previewInvalidator) Handles() []string {
	return []string{events.MemberLinkedType}
}

func (h *previewInvalidator) Handle(event events.Event) error {
	e, ok := event.(*events.MemberLinkedEvent)
	if !ok {
		return nil
	}
	return h.preview.Invalidate(context.Background(), e.MemberID)
}

// initRouter builds the gin router with middleware and routes.
func (a *App) initRouter() {
	if a.config.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Metrics(a.metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	authRoutes := api.Group("")
	authRoutes.Use(middleware.RateLimitByIP(
		middleware.NewRedisRateLimiter(a.redis), 20, time.Minute))
	a.authHandler.RegisterRoutes(authRoutes)

	protected := api.Group("")
	protected.Use(a.authHandler.Middleware())
	a.groupHandler.RegisterRoutes(protected)
	a.linkingHandler.RegisterRoutes(protected)

	a.router = r
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop releases application resources.
func (a *App) Stop() {
	if a.redis != nil {
		if err := cache.Close(a.redis); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
