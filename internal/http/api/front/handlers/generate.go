package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/contentjet/contentjet/internal/ai"
	"github.com/contentjet/contentjet/internal/auth"
	"github.com/contentjet/contentjet/internal/metrics"
	"github.com/contentjet/contentjet/internal/ratelimit"
	"github.com/contentjet/contentjet/internal/store"
	"github.com/contentjet/contentjet/internal/templates"
	"github.com/contentjet/contentjet/internal/tokens"
	"github.com/contentjet/contentjet/internal/usage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// GenerateHandler serves template listing and content generation.
type GenerateHandler struct {
	dispatcher *ai.Dispatcher
	store      *store.Store
	limiter    *ratelimit.Manager
	recorder   *usage.Recorder
	metrics    *metrics.Collector
}

// NewGenerateHandler constructs a GenerateHandler. limiter, recorder and collector may be nil.
func NewGenerateHandler(dispatcher *ai.Dispatcher, st *store.Store, limiter *ratelimit.Manager, recorder *usage.Recorder, collector *metrics.Collector) *GenerateHandler {
	return &GenerateHandler{
		dispatcher: dispatcher,
		store:      st,
		limiter:    limiter,
		recorder:   recorder,
		metrics:    collector,
	}
}

// generateRequest defines the request body for content generation.
type generateRequest struct {
	TemplateName string         `json:"templateName" binding:"required"`
	Variables    map[string]any `json:"variables"`
	Model        string         `json:"model"`
}

// ListTemplates returns the template catalog.
func (h *GenerateHandler) ListTemplates(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, t := range templates.List() {
		out = append(out, gin.H{
			"name":        t.Name,
			"description": t.Description,
			"variables":   t.Variables,
		})
	}
	c.JSON(http.StatusOK, gin.H{"templates": out})
}

// Generate renders a template and sends it to the configured provider.
func (h *GenerateHandler) Generate(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body generateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: templateName is required"})
		return
	}

	tmpl, errResolve := templates.Resolve(body.TemplateName)
	if errResolve != nil {
		var unknownErr *templates.UnknownTemplateError
		if errors.As(errResolve, &unknownErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          unknownErr.Error(),
				"validTemplates": unknownErr.Valid,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errResolve.Error()})
		return
	}

	model := strings.TrimSpace(body.Model)
	if !h.dispatcher.ModelAllowed(model) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("model %q is not allowed", model)})
		return
	}

	vars := stringifyVariables(body.Variables)
	messages, errRender := tmpl.Render(vars)
	if errRender != nil {
		var missingErr *templates.MissingVariablesError
		if errors.As(errRender, &missingErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   missingErr.Error(),
				"missing": missingErr.Missing,
			})
			return
		}
		log.WithError(errRender).WithField("template", tmpl.Name).Error("generate: render template failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render template failed"})
		return
	}

	if !h.allow(c, userID) {
		return
	}

	result, errGen := h.dispatcher.Generate(c.Request.Context(), messages, ai.Options{Model: model})
	if errGen != nil {
		h.metrics.RecordGeneration(h.dispatcher.ProviderName(), modelOr(model, h.dispatcher.DefaultModel()), string(ai.KindOf(errGen)), 0, 0, 0)
		h.writeGenerateError(c, errGen)
		return
	}

	requestID := uuid.NewString()
	h.metrics.RecordGeneration(result.Provider, result.Model, "success", result.PromptTokens, result.CompletionTokens, result.Duration)
	if h.recorder != nil {
		h.recorder.Record(usage.Record{
			UserID:           userID,
			RequestID:        requestID,
			TemplateName:     tmpl.Name,
			VariableKeys:     variableKeys(vars),
			Provider:         result.Provider,
			Model:            result.Model,
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalTokens:      result.TotalTokens,
			Duration:         result.Duration,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"content": result.Text,
		"metadata": gin.H{
			"requestId": requestID,
			"provider":  result.Provider,
			"model":     result.Model,
			"template":  tmpl.Name,
			"tokens": gin.H{
				"prompt":     result.PromptTokens,
				"completion": result.CompletionTokens,
				"total":      result.TotalTokens,
			},
			"durationMs": result.Duration.Milliseconds(),
		},
	})
}

// allow applies the per-user generation limit and writes the 429 response when exceeded.
// Limiter failures fail open.
func (h *GenerateHandler) allow(c *gin.Context, userID uint64) bool {
	if h.limiter == nil {
		return true
	}
	ctx := c.Request.Context()
	cfg := h.limiter.Settings()

	decision, errResolve := ratelimit.ResolveLimit(ctx, h.store, userID, cfg)
	if errResolve != nil {
		log.WithError(errResolve).WithField("user_id", userID).Warn("generate: resolve rate limit failed, using free limit")
		decision = ratelimit.Decision{Limit: cfg.FreeLimit}
	}
	if decision.Limit <= 0 {
		return true
	}

	res, errAllow := h.limiter.Allow(ctx, ratelimit.KeyForDecision(userID, decision), decision.Limit)
	if errAllow != nil {
		log.WithError(errAllow).Warn("generate: rate limit check failed")
		return true
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	if res.Allowed {
		return true
	}

	retryAfter := 1
	if !res.Reset.IsZero() {
		if secs := int(math.Ceil(time.Until(res.Reset).Seconds())); secs > retryAfter {
			retryAfter = secs
		}
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	h.metrics.RecordRateLimited(string(decision.Plan))
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again shortly"})
	return false
}

func (h *GenerateHandler) writeGenerateError(c *gin.Context, err error) {
	var budgetErr *tokens.BudgetError
	if errors.As(err, &budgetErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":           "request exceeds the model context window",
			"model":           budgetErr.Model,
			"estimatedTokens": budgetErr.Estimated,
			"reservedTokens":  budgetErr.Reserved,
			"contextWindow":   budgetErr.Window,
		})
		return
	}

	message := "content generation failed"
	switch ai.KindOf(err) {
	case ai.KindAuth:
		message = "AI provider rejected the configured credentials"
	case ai.KindRateLimit:
		message = "AI provider is rate limiting requests, try again shortly"
	case ai.KindUpstreamUnavailable:
		message = "AI provider is unavailable, try again shortly"
	case ai.KindNotImplemented:
		message = "configured AI provider is not available"
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

func stringifyVariables(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			out[key] = v
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ", ")
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out
}

func variableKeys(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func modelOr(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}
