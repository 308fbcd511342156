// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "yaca"

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connections",
		Help: "Open subscriber connections registered with the hub",
	})
	MessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Chat messages persisted",
	})
	BroadcastDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcast_dropped_total",
		Help: "Subscribers evicted because their send buffer was full",
	})
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(WsConnections, MessagesTotal, BroadcastDropped, RequestsTotal, RequestDuration)
}

// Observe records one finished request. Unmatched routes share a label so
// random paths cannot blow up cardinality.
func Observe(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	labels := prometheus.Labels{"method": method, "route": route, "status": strconv.Itoa(status)}
	RequestsTotal.With(labels).Inc()
	RequestDuration.With(labels).Observe(elapsed.Seconds())
}

// GinMiddleware times every request against its route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		c.Next()
		Observe(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(begin))
	}
}
