package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/contentjet/contentjet/internal/auth"
	"github.com/contentjet/contentjet/internal/billing"
	"github.com/contentjet/contentjet/internal/metrics"
	"github.com/contentjet/contentjet/internal/models"
	"github.com/contentjet/contentjet/internal/ratelimit"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// MaxWebhookBodyBytes caps the Stripe webhook payload size.
const MaxWebhookBodyBytes = 65536

// BillingHandler serves the plan catalog, Stripe sessions and the Stripe webhook.
type BillingHandler struct {
	gateway    billing.Gateway
	reconciler *billing.Reconciler
	catalog    billing.Catalog
	limits     ratelimit.SettingsConfig
	siteURL    string
	metrics    *metrics.Collector
}

// NewBillingHandler constructs a BillingHandler. A nil gateway disables the Stripe endpoints.
func NewBillingHandler(gateway billing.Gateway, reconciler *billing.Reconciler, catalog billing.Catalog, limits ratelimit.SettingsConfig, siteURL string, collector *metrics.Collector) *BillingHandler {
	return &BillingHandler{
		gateway:    gateway,
		reconciler: reconciler,
		catalog:    catalog,
		limits:     limits,
		siteURL:    siteURL,
		metrics:    collector,
	}
}

// checkoutRequest defines the request body for checkout sessions.
type checkoutRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// ListPlans returns the plan catalog.
func (h *BillingHandler) ListPlans(c *gin.Context) {
	plans := h.catalog.Plans()
	out := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		out = append(out, gin.H{
			"type":               plan.Type,
			"name":               plan.Name,
			"interval":           plan.Interval,
			"paid":               plan.Paid,
			"enabled":            plan.Enabled,
			"rateLimitPerMinute": h.limits.LimitFor(plan.Type),
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// CreateCheckoutSession starts a Stripe checkout for a paid plan.
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if h.gateway == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing is not configured"})
		return
	}

	var body checkoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: plan is required"})
		return
	}
	plan, ok := models.ParsePlanType(body.Plan)
	if !ok || !plan.IsPaid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan must be monthly or yearly"})
		return
	}
	priceID, ok := h.catalog.PriceFor(plan)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan is not available"})
		return
	}

	url, errCheckout := h.gateway.CreateCheckoutSession(c.Request.Context(), billing.CheckoutRequest{
		UserID:        user.ID,
		PriceID:       priceID,
		CustomerID:    user.StripeCustomerID,
		CustomerEmail: user.Email,
		SuccessURL:    h.siteURL + "/dashboard?checkout=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     h.siteURL + "/pricing?checkout=cancelled",
	})
	if errCheckout != nil {
		log.WithError(errCheckout).WithField("user_id", user.ID).Error("billing: create checkout session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start checkout"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreatePortalSession opens the Stripe billing portal for the caller.
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if h.gateway == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing is not configured"})
		return
	}
	if user.StripeCustomerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no billing account for this user"})
		return
	}

	url, errPortal := h.gateway.CreatePortalSession(c.Request.Context(), user.StripeCustomerID, h.siteURL+"/dashboard")
	if errPortal != nil {
		log.WithError(errPortal).WithField("user_id", user.ID).Error("billing: create portal session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open billing portal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Webhook verifies and applies one Stripe event. Handler failures answer 500 so Stripe redelivers.
func (h *BillingHandler) Webhook(c *gin.Context) {
	if h.gateway == nil || h.reconciler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing is not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes)
	payload, errRead := io.ReadAll(c.Request.Body)
	if errRead != nil {
		var maxErr *http.MaxBytesError
		if errors.As(errRead, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	evt, errEvent := h.gateway.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if errEvent != nil {
		log.WithError(errEvent).Warn("billing: webhook verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	outcome, errHandle := h.reconciler.HandleEvent(c.Request.Context(), evt)
	if errHandle != nil {
		log.WithError(errHandle).WithFields(log.Fields{
			"event_id": evt.ID,
			"type":     evt.Type,
		}).Error("billing: webhook handler failed")
		h.metrics.RecordWebhookEvent(evt.Type, "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook handler failed"})
		return
	}
	h.metrics.RecordWebhookEvent(evt.Type, outcome)
	c.JSON(http.StatusOK, gin.H{"received": true})
}
