package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contentjet"

// Collector owns the service's Prometheus registry and metric vectors.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	Generations         *prometheus.CounterVec
	GenerationTokens    *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	WebhookEvents       *prometheus.CounterVec
	RateLimited         *prometheus.CounterVec
}

// New creates a Collector with its own registry, including Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Content generations by provider, model and outcome",
		}, []string{"provider", "model", "outcome"}),
		GenerationTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Tokens consumed by generations",
		}, []string{"provider", "kind"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Provider call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"provider"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Billing webhook events by type and outcome",
		}, []string{"type", "outcome"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Generation requests rejected by the rate limiter",
		}, []string{"plan"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
		c.Generations,
		c.GenerationTokens,
		c.GenerationDuration,
		c.WebhookEvents,
		c.RateLimited,
	)
	return c
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the exposition format for this collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the matched route template.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		if c == nil {
			return
		}
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordGeneration records one generation attempt.
func (c *Collector) RecordGeneration(provider, model, outcome string, promptTokens, completionTokens int, duration time.Duration) {
	if c == nil {
		return
	}
	c.Generations.WithLabelValues(provider, model, outcome).Inc()
	if promptTokens > 0 {
		c.GenerationTokens.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.GenerationTokens.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
	if duration > 0 {
		c.GenerationDuration.WithLabelValues(provider).Observe(duration.Seconds())
	}
}

// RecordWebhookEvent counts one processed webhook event.
func (c *Collector) RecordWebhookEvent(eventType, outcome string) {
	if c == nil {
		return
	}
	c.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// RecordRateLimited counts one rejected generation request.
func (c *Collector) RecordRateLimited(plan string) {
	if c == nil {
		return
	}
	c.RateLimited.WithLabelValues(plan).Inc()
}
