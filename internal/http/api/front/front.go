package front

import (
	"github.com/contentjet/contentjet/internal/ai"
	"github.com/contentjet/contentjet/internal/auth"
	"github.com/contentjet/contentjet/internal/billing"
	handlers "github.com/contentjet/contentjet/internal/http/api/front/handlers"
	"github.com/contentjet/contentjet/internal/metrics"
	"github.com/contentjet/contentjet/internal/ratelimit"
	"github.com/contentjet/contentjet/internal/store"
	"github.com/contentjet/contentjet/internal/usage"
	"github.com/gin-gonic/gin"
)

// Dependencies carries the collaborators the public API is built from.
type Dependencies struct {
	Store      *store.Store
	Auth       *auth.Middleware
	Exchanger  *auth.Exchanger
	Dispatcher *ai.Dispatcher
	Gateway    billing.Gateway
	Reconciler *billing.Reconciler
	Catalog    billing.Catalog
	Limiter    *ratelimit.Manager
	Recorder   *usage.Recorder
	Metrics    *metrics.Collector
	SiteURL    string
}

// RegisterFrontRoutes registers the public API routes.
func RegisterFrontRoutes(r *gin.Engine, deps Dependencies) {
	if r == nil || deps.Store == nil || deps.Auth == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.Store)
	r.GET("/healthz", healthHandler.Healthz)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	session := deps.Auth.RequireSession()
	sessionOrDev := deps.Auth.RequireSessionOrDev()

	generateHandler := handlers.NewGenerateHandler(deps.Dispatcher, deps.Store, deps.Limiter, deps.Recorder, deps.Metrics)
	r.GET("/ai/generate", generateHandler.ListTemplates)
	r.POST("/ai/generate", sessionOrDev, generateHandler.Generate)

	subscriptionHandler := handlers.NewSubscriptionHandler(deps.Store)
	subscriptions := r.Group("/subscriptions", session)
	subscriptions.GET("", subscriptionHandler.Get)
	subscriptions.POST("", subscriptionHandler.Create)
	subscriptions.PATCH("", subscriptionHandler.Update)
	subscriptions.DELETE("", subscriptionHandler.Delete)

	var limits ratelimit.SettingsConfig
	if deps.Limiter != nil {
		limits = deps.Limiter.Settings()
	}
	billingHandler := handlers.NewBillingHandler(deps.Gateway, deps.Reconciler, deps.Catalog, limits, deps.SiteURL, deps.Metrics)
	r.GET("/plans", billingHandler.ListPlans)
	r.POST("/stripe/create-checkout-session", session, billingHandler.CreateCheckoutSession)
	r.POST("/stripe/create-portal-session", session, billingHandler.CreatePortalSession)
	r.POST("/stripe/webhooks", billingHandler.Webhook)

	usageHandler := handlers.NewUsageHandler(deps.Recorder)
	r.GET("/usage/monthly", sessionOrDev, usageHandler.Monthly)

	callbackHandler := handlers.NewAuthCallbackHandler(deps.Exchanger, deps.SiteURL)
	r.GET("/auth/callback", callbackHandler.Callback)
}
