package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/contentjet/contentjet/internal/auth"
	"github.com/contentjet/contentjet/internal/billing"
	"github.com/contentjet/contentjet/internal/models"
	"github.com/contentjet/contentjet/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SubscriptionHandler manages the caller's local subscription rows.
type SubscriptionHandler struct {
	store *store.Store
	now   func() time.Time
}

// NewSubscriptionHandler constructs a SubscriptionHandler.
func NewSubscriptionHandler(st *store.Store) *SubscriptionHandler {
	return &SubscriptionHandler{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// createSubscriptionRequest defines the request body for creating subscriptions.
type createSubscriptionRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// updateSubscriptionRequest defines the request body for updating subscriptions.
type updateSubscriptionRequest struct {
	Plan    *string    `json:"plan"`
	Status  *string    `json:"status"`
	EndDate *time.Time `json:"end_date"`
}

// Get returns the caller's latest subscription or null.
func (h *SubscriptionHandler) Get(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sub, errFind := h.store.LatestSubscription(c.Request.Context(), userID)
	if errFind != nil {
		if errors.Is(errFind, store.ErrNotFound) {
			c.JSON(http.StatusOK, nil)
			return
		}
		log.WithError(errFind).Error("subscriptions: load latest failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load subscription failed"})
		return
	}
	c.JSON(http.StatusOK, formatSubscription(sub))
}

// Create opens a new free subscription, soft-closing any open rows. Paid plans
// are started through checkout.
func (h *SubscriptionHandler) Create(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createSubscriptionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: plan is required"})
		return
	}
	plan, ok := models.ParsePlanType(body.Plan)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan", "validPlans": models.PlanTypes()})
		return
	}
	if plan.IsPaid() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "paid plans are started through /stripe/create-checkout-session"})
		return
	}

	now := h.now()
	sub := &models.Subscription{
		UserID:               userID,
		PlanType:             plan,
		Status:               models.SubscriptionStatusActive,
		BillingAnchor:        now,
		BillingInterval:      billing.IntervalMonth,
		BillingIntervalCount: 1,
	}
	if end, okEnd := billing.NextBillingBoundary(now, sub.BillingInterval, sub.BillingIntervalCount, now); okEnd {
		sub.CurrentPeriodEnd = &end
	}
	if errCreate := h.store.CreateSubscription(c.Request.Context(), sub); errCreate != nil {
		log.WithError(errCreate).Error("subscriptions: create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create subscription failed"})
		return
	}
	c.JSON(http.StatusCreated, formatSubscription(sub))
}

// Update applies user-settable changes: downgrade to free and cancellation.
func (h *SubscriptionHandler) Update(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body updateSubscriptionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Plan == nil && body.Status == nil && body.EndDate == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	var (
		plan   models.PlanType
		cancel bool
	)
	if body.Plan != nil {
		parsed, ok := models.ParsePlanType(*body.Plan)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan", "validPlans": models.PlanTypes()})
			return
		}
		if parsed != models.PlanFree {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "plan: only a downgrade to free can be requested here"})
			return
		}
		plan = parsed
	}
	if body.Status != nil {
		parsed, ok := models.ParseSubscriptionStatus(*body.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status", "validStatuses": models.SubscriptionStatuses()})
			return
		}
		if parsed != models.SubscriptionStatusCancelled {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "status: only cancelled can be requested here"})
			return
		}
		cancel = true
	}
	if body.EndDate != nil && !cancel {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "end_date: only allowed together with status cancelled"})
		return
	}

	ctx := c.Request.Context()
	current, errFind := h.store.LatestSubscription(ctx, userID)
	if errFind != nil {
		if errors.Is(errFind, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		log.WithError(errFind).Error("subscriptions: load latest failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update subscription failed"})
		return
	}

	endedAt := h.now()
	if body.EndDate != nil {
		endedAt = body.EndDate.UTC()
	}
	updated, errUpdate := h.store.UpdateSubscription(ctx, current.ID, func(sub *models.Subscription) {
		if plan != "" {
			sub.PlanType = plan
		}
		if cancel {
			sub.Status = models.SubscriptionStatusCancelled
			if sub.EndedAt == nil || body.EndDate != nil {
				sub.EndedAt = &endedAt
			}
		}
	})
	if errUpdate != nil {
		log.WithError(errUpdate).Error("subscriptions: update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update subscription failed"})
		return
	}
	if updated.VendorSubscriptionID() != "" {
		log.WithFields(log.Fields{
			"user_id":                userID,
			"stripe_subscription_id": updated.VendorSubscriptionID(),
		}).Info("subscriptions: local row changed; vendor subscription is managed in the billing portal")
	}
	c.JSON(http.StatusOK, formatSubscription(updated))
}

// Delete soft-cancels the caller's open subscription.
func (h *SubscriptionHandler) Delete(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	open, errFind := h.store.OpenSubscription(ctx, userID)
	if errFind != nil {
		if errors.Is(errFind, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no open subscription"})
			return
		}
		log.WithError(errFind).Error("subscriptions: load open failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel subscription failed"})
		return
	}

	cancelled, errCancel := h.store.CancelSubscription(ctx, open.ID, h.now())
	if errCancel != nil {
		log.WithError(errCancel).Error("subscriptions: cancel failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel subscription failed"})
		return
	}
	c.JSON(http.StatusOK, formatSubscription(cancelled))
}

// formatSubscription converts a subscription model to a response payload.
func formatSubscription(sub *models.Subscription) gin.H {
	var vendorID any
	if id := strings.TrimSpace(sub.VendorSubscriptionID()); id != "" {
		vendorID = id
	}
	return gin.H{
		"id":                   sub.ID,
		"userId":               sub.UserID,
		"planType":             sub.PlanType,
		"status":               sub.Status,
		"billingAnchor":        sub.BillingAnchor,
		"billingInterval":      sub.BillingInterval,
		"billingIntervalCount": sub.BillingIntervalCount,
		"currentPeriodEnd":     sub.CurrentPeriodEnd,
		"cancelAtPeriodEnd":    sub.CancelAtPeriodEnd,
		"endedAt":              sub.EndedAt,
		"stripeSubscriptionId": vendorID,
		"stripeCustomerId":     sub.StripeCustomerID,
		"stripePriceId":        sub.StripePriceID,
		"createdAt":            sub.CreatedAt,
		"updatedAt":            sub.UpdatedAt,
	}
}
