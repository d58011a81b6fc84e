package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	TasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attachment_tasks_enqueued_total",
		Help: "Attachment tasks written to the queue.",
	}, []string{"kind"})

	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attachment_tasks_processed_total",
		Help: "Attachment task deliveries by outcome.",
	}, []string{"kind", "outcome"}) // outcome: acked, dropped, retried, dead_lettered

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attachment_task_duration_seconds",
		Help:    "Time spent handling one attachment task delivery.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"kind"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "attachment_queue_depth",
		Help: "Attachment queue size by state, sampled by the scheduler.",
	}, []string{"state"}) // state: stream, pending, dead_letters

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route and status class.",
	}, []string{"method", "route", "status"})
)

func Handler() http.Handler { return promhttp.Handler() }

// StartServer serves /metrics on addr in the background. The returned
// function shuts the server down.
func StartServer(addr string, log *logrus.Entry) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return srv.Shutdown
}
