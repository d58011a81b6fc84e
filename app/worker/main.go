package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/logger"
	"github.com/sameboat/backend/internal/metrics"
	"github.com/sameboat/backend/internal/notify"
	"github.com/sameboat/backend/internal/queue"
	mongorepo "github.com/sameboat/backend/internal/repositories/mongo"
	pgrepo "github.com/sameboat/backend/internal/repositories/postgres"
	"github.com/sameboat/backend/internal/services"
	"github.com/sameboat/backend/internal/storage"
	"github.com/sameboat/backend/internal/workers"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logger.New("worker")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("object store init error")
	}
	defer store.Close()

	q, err := queue.New(ctx, cfg.Queue, config.RedisClient)
	if err != nil {
		log.WithError(err).Fatal("queue init error")
	}
	defer q.Close()

	jobs := pgrepo.NewJobRepo(config.PostgresDB)
	pool := &workers.AttachmentWorkerPool{
		Queue:          q,
		Jobs:           jobs,
		Store:          store,
		Notifier:       notify.NewRedisNotifier(config.RedisClient),
		MaxDeliveries:  cfg.Queue.MaxDeliveries,
		NumWorkers:     cfg.Worker.Concurrency,
		Logger:         log,
		ConsumerPrefix: consumerPrefix(),
		DrainTimeout:   cfg.Worker.DrainTimeout,
	}

	switch err := config.InitMongo(); {
	case err == nil:
		events := mongorepo.NewEventRepo(config.MongoDatabase(), cfg.EventTTL)
		pool.Events = services.NewEventService(events, jobs)
		defer func() { _ = config.MongoClient.Disconnect(context.Background()) }()
	case errors.Is(err, config.ErrMongoNotConfigured):
		log.Warn("MONGO_URI not set; attachment events disabled")
	default:
		log.WithError(err).Fatal("MongoDB init error")
	}

	shutdownMetrics := metrics.StartServer(cfg.Worker.MetricsAddr, log)

	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("worker pool start failed")
	}
	log.WithFields(logrus.Fields{
		"consumers":      pool.NumWorkers,
		"queue_driver":   cfg.Queue.Driver,
		"max_deliveries": pool.MaxDeliveries,
	}).Info("worker pool started")

	<-ctx.Done()
	log.WithField("drain_timeout", pool.DrainTimeout).Info("shutdown signal received, finishing in-flight tasks")
	pool.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownMetrics(shutdownCtx)
	log.Info("worker stopped")
}

// consumerPrefix keeps consumer names unique across worker replicas while
// staying stable across restarts of the same container.
func consumerPrefix() string {
	if v := os.Getenv("WORKER_NAME"); v != "" {
		return v
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker"
	}
	return host
}
