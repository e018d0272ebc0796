package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every tap-arena collector; it is served on /metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	TapsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "tap_requests_total",
		Help: "Tap attempts by transport and outcome code.",
	}, []string{"transport", "result"})

	TapDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tap_duration_seconds",
		Help:    "Time spent registering one tap, lock wait included.",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"transport"})

	WSConnectionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "ws_connections_total",
		Help: "Authenticated WebSocket connections accepted.",
	})
	WSConnectionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "Currently open WebSocket connections.",
	})
	WSRejectedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_rejected_total",
		Help: "WebSocket connections closed during authentication.",
	}, []string{"reason"})

	SSEConnectionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "spectator_sse_connections_total",
		Help: "Spectator event streams opened.",
	})
	SSEConnectionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "spectator_sse_connections_active",
		Help: "Currently open spectator event streams.",
	})

	HubDroppedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_updates_total",
		Help: "Round updates dropped because an observer's buffer was full.",
	})

	LoginsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"result"})

	PushJobsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "round_push_jobs_total",
		Help: "Round announcement jobs by outcome: queued, sent, failed, retry, retry_dropped, dropped, circuit_open.",
	}, []string{"result"})
	PushQueueLen = factory.NewGauge(prometheus.GaugeOpts{
		Name: "round_push_queue_len",
		Help: "Announcement jobs waiting for a worker.",
	})
	PushConfigReloadTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "round_push_config_reload_total",
		Help: "Push target file reloads by outcome.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveTap records one tap attempt. code is "ok" or the error code sent to the client.
func ObserveTap(transport, code string, started time.Time) {
	TapsTotal.WithLabelValues(transport, code).Inc()
	TapDuration.WithLabelValues(transport).Observe(time.Since(started).Seconds())
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
