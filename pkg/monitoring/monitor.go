package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// GradingOutcomes 按判分来源与结果统计答案数
	GradingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grading_answers_total",
			Help: "Graded answers by grader and outcome",
		},
		[]string{"grader", "outcome"},
	)

	GenerationResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_generation_requests_total",
			Help: "AI question generation requests by result",
		},
		[]string{"provider", "result"},
	)

	MasteryTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mastery_tier_transitions_total",
			Help: "Mastery tier changes by unit type and new tier",
		},
		[]string{"unit", "tier"},
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Latency of LLM provider calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "purpose"},
	)

	ChatAnswers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_answers_total",
			Help: "Textbook assistant answers by result",
		},
		[]string{"result"},
	)

	OnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_online_users",
			Help: "WebSocket connections on this instance",
		},
	)

	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notifications pushed by event type",
		},
		[]string{"type"},
	)

	once sync.Once
)

func Init() {
	once.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(GradingOutcomes)
		prometheus.MustRegister(GenerationResults)
		prometheus.MustRegister(MasteryTransitions)
		prometheus.MustRegister(LLMLatency)
		prometheus.MustRegister(ChatAnswers)
		prometheus.MustRegister(OnlineUsers)
		prometheus.MustRegister(NotificationsSent)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
