package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	c := New()

	c.RecordGeneration("openai", "gpt-4o-mini", "success", 120, 30, 2*time.Second)
	c.RecordGeneration("openai", "gpt-4o-mini", "rate_limit", 0, 0, 0)
	c.RecordWebhookEvent("invoice.paid", "processed")
	c.RecordRateLimited("free")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Generations.WithLabelValues("openai", "gpt-4o-mini", "success")))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.GenerationTokens.WithLabelValues("openai", "prompt")))
	assert.Equal(t, 30.0, testutil.ToFloat64(c.GenerationTokens.WithLabelValues("openai", "completion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.WebhookEvents.WithLabelValues("invoice.paid", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RateLimited.WithLabelValues("free")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordGeneration("openai", "m", "success", 1, 1, time.Second)
		c.RecordWebhookEvent("t", "o")
		c.RecordRateLimited("free")
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := New()
	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/plans", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{}) })
	r.GET("/metrics", gin.WrapH(c.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plans", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequestsTotal.WithLabelValues("GET", "/plans", "200")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "contentjet_http_requests_total")
}
