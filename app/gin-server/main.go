package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/api/handlers"
	"github.com/sameboat/backend/internal/api/routes"
	"github.com/sameboat/backend/internal/auth"
	"github.com/sameboat/backend/internal/cache"
	"github.com/sameboat/backend/internal/logger"
	"github.com/sameboat/backend/internal/mailer"
	"github.com/sameboat/backend/internal/notify"
	"github.com/sameboat/backend/internal/queue"
	mongorepo "github.com/sameboat/backend/internal/repositories/mongo"
	pgrepo "github.com/sameboat/backend/internal/repositories/postgres"
	"github.com/sameboat/backend/internal/services"
	"github.com/sameboat/backend/internal/storage"
)

func main() {
	log := logger.New("gin-server")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	log.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	// MongoDB is optional: without it the attachment event log is off.
	var events mongorepo.EventRepository
	switch err := config.InitMongo(); {
	case err == nil:
		events = mongorepo.NewEventRepo(config.MongoDatabase(), cfg.EventTTL)
		log.Info("MongoDB connected")
	case errors.Is(err, config.ErrMongoNotConfigured):
		log.Warn("MONGO_URI not set; attachment events disabled")
	default:
		log.WithError(err).Fatal("MongoDB init error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := queue.New(ctx, cfg.Queue, config.RedisClient)
	if err != nil {
		log.WithError(err).Fatal("queue init error")
	}
	defer q.Close()

	tokens, err := auth.NewTokenManager(cfg.JWT)
	if err != nil {
		log.WithError(err).Fatal("token manager init error")
	}

	users := pgrepo.NewUserRepo(config.PostgresDB)
	jobs := pgrepo.NewJobRepo(config.PostgresDB)
	notifier := notify.NewRedisNotifier(config.RedisClient)

	authSvc := services.NewAuthService(users, tokens, cache.NewRedisCache(config.RedisClient),
		mailer.New(cfg.SMTP, log.WithField("component", "mailer")), cfg.FrontendBaseURL, log)
	jobSvc := services.NewJobService(jobs, q, cfg.MaxUploadBytes, log)
	eventSvc := services.NewEventService(events, jobs)

	checks := map[string]handlers.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := config.PostgresDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return config.RedisClient.Ping(ctx).Err()
		},
	}

	jobHandler := handlers.NewJobHandler(jobSvc, eventSvc, cfg.MaxUploadBytes)
	if ttl := cfg.Storage.SignedURLTTL; ttl > 0 {
		store, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			log.WithError(err).Fatal("object store init error")
		}
		defer store.Close()
		jobHandler.WithSignedURLs(store, ttl)
		log.WithField("ttl", ttl).Info("signed attachment URLs enabled")
	}

	// nil when the driver lacks the capability; the endpoint then reports 503
	insp, _ := q.(queue.Inspector)
	dead, _ := q.(queue.DeadLetterReader)

	deps := routes.Deps{
		Tokens: tokens,
		Logger: log,
		Auth:   handlers.NewAuthHandler(authSvc, cfg.JWT),
		Users:  handlers.NewUserHandler(services.NewUserService(users)),
		Jobs:   jobHandler,
		Health: handlers.NewHealthHandler(checks, insp),
		Admin:  handlers.NewAdminHandler(dead),
		WS:     handlers.NewWSHandler(notifier, cfg.FrontendBaseURL),
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown failed")
	}
	if config.MongoClient != nil {
		_ = config.MongoClient.Disconnect(shutdownCtx)
	}
	_ = config.RedisClient.Close()
}

