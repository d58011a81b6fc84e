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
	"github.com/sameboat/backend/internal/logger"
	"github.com/sameboat/backend/internal/supervisor"
)

func main() {
	log := logger.New("supervisor")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}

	sup := supervisor.New(cfg.Supervisor.RestartDelay, log,
		supervisor.Child{Name: "worker", Args: []string{cfg.Supervisor.WorkerBin}},
		supervisor.Child{Name: "scheduler", Args: []string{cfg.Supervisor.SchedulerBin}},
	)
	if err := sup.Start(context.Background()); err != nil {
		log.WithError(err).Fatal("supervisor start failed")
	}

	// Placeholder server so the hosting platform sees an open port.
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"worker":    sup.Starts("worker"),
			"scheduler": sup.Starts("scheduler"),
		})
	})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.WithField("addr", srv.Addr).Info("placeholder server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("placeholder server failed")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.WithField("signal", sig.String()).Info("shutting down")

	supervisor.Shutdown(sup)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
