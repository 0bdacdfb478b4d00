package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"admissions/internal/access"
	"admissions/internal/app"
	"admissions/internal/cache"
	"admissions/internal/config"
	"admissions/internal/database"
	apphttp "admissions/internal/http"
	"admissions/internal/http/handlers"
	"admissions/internal/http/metrics"
	httpmw "admissions/internal/http/middleware"
	"admissions/internal/http/response"
	"admissions/internal/mail"
	"admissions/internal/observability"
	"admissions/internal/repository/postgres"
	"admissions/internal/security"
	"admissions/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTELServiceName, logger)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	db, err := database.NewPostgres(ctx, database.PostgresConfig{
		DSN:             cfg.PostgresDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdle:     cfg.DBConnMaxIdle,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	}, logger)
	if err != nil {
		logger.Fatal("postgres unavailable", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	redisClient := connectRedis(ctx, cfg.RedisURL, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	programCache := cache.New(ctx, redisClient)
	var limiter httpmw.Limiter = httpmw.NewRateLimiter()
	if redisClient != nil {
		limiter = httpmw.NewRedisLimiter(redisClient, "ratelimit", logger)
	}

	outbound := observability.InstrumentClient(&http.Client{Timeout: 10 * time.Second})
	mailer := mail.NewBrevoClient("", cfg.BrevoAPIKey, mail.Recipient{Email: cfg.MailFromEmail, Name: cfg.MailFromName}, outbound)
	if !mailer.Configured() {
		logger.Warn("BREVO_API_KEY not set, emails will fail")
	}
	var store storage.Store = storage.Disabled{}
	if cfg.StorageConfigured() {
		store = storage.NewCloudinaryStore(storage.CloudinaryConfig{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
		}, observability.InstrumentClient(&http.Client{Timeout: 30 * time.Second}))
	} else {
		logger.Warn("cloudinary not configured, document uploads are disabled")
	}

	userRepo := postgres.NewUserRepository(db)
	refreshRepo := postgres.NewRefreshTokenRepository(db)
	candidatureRepo := postgres.NewCandidatureRepository(db)
	documentRepo := postgres.NewDocumentRepository(db)
	interviewRepo := postgres.NewInterviewRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	periodRepo := postgres.NewPeriodRepository(db)
	programRepo := postgres.NewProgramRepository(db)
	statsRepo := postgres.NewStatsRepository(db)

	jwtProvider := security.NewJWTProvider(cfg.JWTSecret)
	matrix := access.NewMatrix(userRepo)

	authService := app.NewAuthService(userRepo, refreshRepo, jwtProvider, mailer, logger, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.FrontendURL)
	candidatureService := app.NewCandidatureService(candidatureRepo, documentRepo, interviewRepo, userRepo, userRepo, programRepo, periodRepo, matrix, mailer, logger)
	documentService := app.NewDocumentService(candidatureRepo, documentRepo, userRepo, userRepo, matrix, store, cfg.StorageRootFolder, mailer, logger)
	entretienService := app.NewEntretienService(interviewRepo, candidatureRepo, userRepo, programRepo, periodRepo, matrix, mailer, logger)
	notificationService := app.NewNotificationService(notificationRepo, logger)
	periodService := app.NewPeriodService(periodRepo, logger)
	programService := app.NewProgramService(programRepo, programCache, cfg.CacheTTL, logger)
	statsService := app.NewStatsService(statsRepo, userRepo)
	userService := app.NewUserService(userRepo, logger)

	collector := metrics.NewCollector()
	response.SetErrorCollector(collector)

	router := apphttp.NewRouter(apphttp.RouterDependencies{
		AuthHandler:         handlers.NewAuthHandler(authService),
		CandidatureHandler:  handlers.NewCandidatureHandler(candidatureService),
		DocumentHandler:     handlers.NewDocumentHandler(documentService),
		EntretienHandler:    handlers.NewEntretienHandler(entretienService),
		PeriodHandler:       handlers.NewPeriodHandler(periodService),
		ProgramHandler:      handlers.NewProgramHandler(programService),
		UserHandler:         handlers.NewUserHandler(userService),
		NotificationHandler: handlers.NewNotificationHandler(notificationService),
		StatsHandler:        handlers.NewStatsHandler(statsService),
		AuthMiddleware:      httpmw.NewAuthMiddleware(jwtProvider),
		Metrics:             collector,
		Limiter:             limiter,
		Logger:              logger,
		ServiceName:         cfg.OTELServiceName,
		RequestTimeout:      cfg.RequestTimeout,
		AllowedOrigins:      cfg.CORSAllowedOrigins,
		LoginPerMinute:      cfg.LoginRatePerMinute,
	})
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("API started", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", zap.Error(err))
	}
}

// connectRedis returns nil when no URL is set or the server does not answer.
// Cache and rate limiting then fall back to process memory.
func connectRedis(ctx context.Context, url string, logger *zap.Logger) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("invalid REDIS_URL, using in-memory fallbacks", zap.Error(err))
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory fallbacks", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}
