package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_refresh_total",
			Help: "Total number of message refreshes by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	silentRefreshSwallowedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_silent_refresh_swallowed_total",
			Help: "Total number of silent refresh failures swallowed without surfacing.",
		},
	)
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_actions_total",
			Help: "Total number of user actions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
	recordAPIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_record_api_request_duration_seconds",
			Help:    "Record API call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	schedulerActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "messaging_scheduler_active",
			Help: "Whether a silent-refresh timer is currently armed (0 or 1).",
		},
	)
	staleResponsesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_stale_responses_dropped_total",
			Help: "Total number of refresh responses discarded as stale.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		refreshTotal,
		silentRefreshSwallowedTotal,
		actionsTotal,
		recordAPIRequestDuration,
		schedulerActive,
		staleResponsesDroppedTotal,
		amqpPublishErrorsTotal,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// IncRefresh records a refresh attempt. Mode is "silent", "foreground" or
// "page"; outcome is "ok", "error" or "stale".
func IncRefresh(mode, outcome string) {
	refreshTotal.WithLabelValues(mode, outcome).Inc()
}

// IncSilentRefreshSwallowed counts a silent failure that was logged only.
func IncSilentRefreshSwallowed() {
	silentRefreshSwallowedTotal.Inc()
}

// IncAction records the outcome of a user action.
func IncAction(action, outcome string) {
	actionsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveRecordAPICall records the latency of one collaborator call.
func ObserveRecordAPICall(op string, elapsed time.Duration) {
	recordAPIRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetSchedulerActive flips the armed-timer gauge.
func SetSchedulerActive(active bool) {
	if active {
		schedulerActive.Set(1)
		return
	}
	schedulerActive.Set(0)
}

// IncStaleResponseDropped counts a refresh response discarded by the
// staleness check.
func IncStaleResponseDropped() {
	staleResponsesDroppedTotal.Inc()
}

// IncAMQPPublishError counts a failed audit publish.
func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

// HTTPMetricsMiddleware instruments gin routes.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
