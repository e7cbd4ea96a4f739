package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HammerMeetNail/kinship/internal/config"
	"github.com/HammerMeetNail/kinship/internal/database"
	"github.com/HammerMeetNail/kinship/internal/handlers"
	"github.com/HammerMeetNail/kinship/internal/logging"
	"github.com/HammerMeetNail/kinship/internal/middleware"
	"github.com/HammerMeetNail/kinship/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New()

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Could not load .env file", map[string]interface{}{"error": err.Error()})
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	if cfg.Server.Debug {
		level = logging.LevelDebug
	}
	logger.SetLevel(level)
	logging.SetDefaultLevel(level)
	logger.Debug("Debug logging enabled", map[string]interface{}{"env": cfg.Server.Environment})

	logger.Info("Starting kinship server...")

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(context.Background(), cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr":    cfg.Redis.Addr(),
		"use_url": cfg.Redis.URL != "",
	})
	redisDB, err := database.NewRedisDB(database.RedisSettings{
		URL:      cfg.Redis.URL,
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	cache := services.NewCache(services.NewRedisAdapter(redisDB.Client), services.CacheTTLs{
		UserProfile:   cfg.Cache.UserProfileTTL,
		Relationships: cfg.Cache.RelationshipsTTL,
		Session:       cfg.Cache.SessionTTL,
	}, services.NewCacheMetrics(registry))

	sessionTTL := services.ParseSessionDuration(cfg.Auth.SessionExpiresIn)
	sessionStore := services.NewSessionStore(dbAdapter, cache, cfg.Auth.TokenSecret)
	userService := services.NewUserService(dbAdapter, cache)
	authService := services.NewAuthService(dbAdapter, userService, sessionStore, sessionTTL)
	relationshipService := services.NewRelationshipService(dbAdapter, cache)

	// Initialize handlers
	production := cfg.Server.IsProduction()
	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(authService, production)
	userHandler := handlers.NewUserHandler(userService, production)
	relationshipHandler := handlers.NewRelationshipHandler(relationshipService, production)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)
	requestLogger := middleware.NewRequestLogger(logger.WithField("component", "http"))
	authRateLimiter := middleware.NewRateLimiter(redisDB.Client, cfg.RateLimit.AuthAttempts, cfg.RateLimit.AuthWindow,
		"ratelimit:auth:", middleware.RouteKey("auth"), true)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger.Apply)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(authMiddleware.Authenticate)

	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authRateLimiter.Middleware).Post("/register", authHandler.Register)
			r.With(authRateLimiter.Middleware).Post("/login", authHandler.Login)
			r.With(authMiddleware.RequireAuth).Post("/logout", authHandler.Logout)
			r.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)

			r.Get("/users", userHandler.Search)
			r.Get("/users/{id}", userHandler.Get)
			r.Put("/users/{id}", userHandler.Update)

			r.Get("/relationships", relationshipHandler.List)
			r.Post("/relationships/request", relationshipHandler.SendRequest)
			r.Put("/relationships/{id}", relationshipHandler.Update)
			r.Delete("/relationships/{id}", relationshipHandler.Remove)
		})
	})

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go runSessionCleanup(cleanupCtx, logger.WithField("component", "session_cleanup"), authService, resolveCleanupInterval(logger, os.LookupEnv))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")
		cleanupCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

type sessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// runSessionCleanup purges expired session rows until ctx is cancelled.
func runSessionCleanup(ctx context.Context, logger *logging.Logger, cleaner sessionCleaner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupSessions(ctx, logger, cleaner)
		}
	}
}

func cleanupSessions(ctx context.Context, logger *logging.Logger, cleaner sessionCleaner) {
	removed, err := cleaner.CleanupExpiredSessions(ctx)
	if err != nil {
		logger.Warn("Session cleanup failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if removed > 0 {
		logger.Info("Expired sessions removed", map[string]interface{}{"count": removed})
	}
}

func resolveCleanupInterval(logger *logging.Logger, lookupEnv func(string) (string, bool)) time.Duration {
	interval := time.Hour
	if value, ok := lookupEnv("SESSION_CLEANUP_INTERVAL"); ok && value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			logger.Warn("Invalid SESSION_CLEANUP_INTERVAL; using default", map[string]interface{}{
				"value":   value,
				"default": interval.String(),
			})
		} else {
			interval = parsed
			logger.Info("Using session cleanup interval from env", map[string]interface{}{"interval": interval.String()})
		}
	}
	return interval
}
