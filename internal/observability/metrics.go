package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Metrics struct {
	messagesTotal     *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
	eventsDropped     prometheus.Counter
	activeClients     prometheus.Gauge
	dbQueryDuration   *prometheus.HistogramVec
	cacheHits         *prometheus.CounterVec
	logger            *zap.Logger
}

func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatly_messages_total",
				Help: "Total number of messages by lifecycle operation",
			},
			[]string{"operation", "message_type"},
		),
		notificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatly_notifications_sent_total",
				Help: "Total push notifications by outcome",
			},
			[]string{"status"},
		),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatly_events_published_total",
				Help: "Total realtime events published by name",
			},
			[]string{"event"},
		),
		eventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chatly_events_dropped_total",
				Help: "Events dropped because a client buffer was full",
			},
		),
		activeClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatly_active_websocket_clients",
				Help: "Number of connected websocket clients",
			},
		),
		dbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatly_db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_type"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatly_cache_hits_total",
				Help: "Total number of cache hits/misses",
			},
			[]string{"cache_type", "status"},
		),
		logger: logger,
	}

	prometheus.MustRegister(
		m.messagesTotal,
		m.notificationsSent,
		m.eventsPublished,
		m.eventsDropped,
		m.activeClients,
		m.dbQueryDuration,
		m.cacheHits,
	)

	return m
}

func (m *Metrics) RecordMessage(operation, messageType string) {
	m.messagesTotal.WithLabelValues(operation, messageType).Inc()
}

func (m *Metrics) RecordNotification(success bool) {
	status := "sent"
	if !success {
		status = "failed"
	}
	m.notificationsSent.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordEvent(name string) {
	m.eventsPublished.WithLabelValues(name).Inc()
}

func (m *Metrics) RecordDroppedEvent() {
	m.eventsDropped.Inc()
}

func (m *Metrics) ClientConnected() {
	m.activeClients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	m.activeClients.Dec()
}

func (m *Metrics) RecordDBQuery(queryType string, duration time.Duration) {
	m.dbQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit(cacheType string, hit bool) {
	status := "hit"
	if !hit {
		status = "miss"
	}
	m.cacheHits.WithLabelValues(cacheType, status).Inc()
}

// Start serves /metrics on its own port until the context is cancelled.
func (m *Metrics) Start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	m.logger.Info("metrics server starting", zap.Int("port", port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
