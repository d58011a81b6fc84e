package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/logger"
	"github.com/sameboat/backend/internal/metrics"
	"github.com/sameboat/backend/internal/queue"
	"github.com/sameboat/backend/internal/scheduler"
)

func main() {
	log := logger.New("scheduler")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := queue.New(ctx, cfg.Queue, config.RedisClient)
	if err != nil {
		log.WithError(err).Fatal("queue init error")
	}
	defer q.Close()

	insp, ok := q.(queue.Inspector)
	if !ok {
		log.WithField("driver", cfg.Queue.Driver).Fatal("queue driver does not report stats")
	}

	// the worker owns METRICS_ADDR; the scheduler takes SCHEDULER_METRICS_ADDR
	addr := os.Getenv("SCHEDULER_METRICS_ADDR")
	if addr == "" {
		addr = ":9092"
	}
	shutdownMetrics := metrics.StartServer(addr, log)

	s := &scheduler.Scheduler{
		Queue:           insp,
		Interval:        cfg.Scheduler.Interval,
		DeadLetterLimit: cfg.Scheduler.DeadLetterLimit,
		Logger:          log,
	}
	log.WithField("interval", cfg.Scheduler.Interval.String()).Info("scheduler started")
	s.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownMetrics(shutdownCtx)
	log.Info("scheduler stopped")
}
