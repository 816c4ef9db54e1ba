// Package metrics provides Prometheus instrumentation for the task tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tasktracker"

// Metrics holds the registered collectors.
type Metrics struct {
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	CommentsCreated prometheus.Counter
	Replies         *prometheus.CounterVec
	ReadMarks       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CommentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_created_total",
			Help:      "Comments opened by workers.",
		}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comment_replies_total",
			Help:      "Replies added to comments by author role.",
		}, []string{"role"}),
		ReadMarks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comment_read_marks_total",
			Help:      "Read-state transitions by kind.",
		}, []string{"kind"}),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{m.HTTPRequests, m.HTTPDuration, m.CommentsCreated, m.Replies, m.ReadMarks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CommentCreated records a new comment.
func (m *Metrics) CommentCreated() {
	m.CommentsCreated.Inc()
}

// ReplyAdded records a reply by role.
func (m *Metrics) ReplyAdded(role models.Role) {
	m.Replies.WithLabelValues(string(role)).Inc()
}

// MarkedRead records a read-state transition of the given kind.
func (m *Metrics) MarkedRead(kind string) {
	m.ReadMarks.WithLabelValues(kind).Inc()
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
