// Package metrics Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "persona_chat"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})

	agentAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agent_assignments_total",
		Help:      "Agents assigned to participants, by strategy",
	}, []string{"strategy", "personalized"})

	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "Chat completion calls, by model, mode and outcome",
	}, []string{"model", "mode", "outcome"})

	llmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_request_duration_seconds",
		Help:      "Duration of chat completion calls in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"model", "mode"})

	limitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "limit_rejections_total",
		Help:      "Requests rejected by experiment limits",
	}, []string{"limit"})

	historyCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_cache_lookups_total",
		Help:      "Conversation history cache lookups, by result",
	}, []string{"result"})
)

// Middleware 记录 HTTP 请求指标，路径使用路由模板避免高基数
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		httpLatency.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAssignment 记录一次智能体分配
func ObserveAssignment(strategy string, personalized bool) {
	if strategy == "" {
		strategy = "none"
	}
	agentAssignments.WithLabelValues(strategy, strconv.FormatBool(personalized)).Inc()
}

// ObserveLLM 记录一次模型调用
func ObserveLLM(model string, stream bool, err error, elapsed time.Duration) {
	mode := "generate"
	if stream {
		mode = "stream"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	llmRequests.WithLabelValues(model, mode, outcome).Inc()
	llmLatency.WithLabelValues(model, mode).Observe(elapsed.Seconds())
}

// ObserveLimit 记录一次超限拒绝
func ObserveLimit(limit string) {
	limitRejections.WithLabelValues(limit).Inc()
}

// ObserveHistory 记录历史缓存命中情况
func ObserveHistory(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	historyCache.WithLabelValues(result).Inc()
}
