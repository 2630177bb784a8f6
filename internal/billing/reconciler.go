package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contentjet/contentjet/internal/models"
	"github.com/contentjet/contentjet/internal/store"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Stripe event types handled by the Reconciler.
const (
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventCustomerSubscriptionCreated = "customer.subscription.created"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded     = "invoice.payment_succeeded"
	EventInvoicePaid                 = "invoice.paid"
)

// Outcomes recorded in the webhook event log.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeSkipped   = "skipped"
	OutcomeDuplicate = "duplicate"
)

// ErrUnresolvedUser is returned when an event cannot be linked to a local user yet.
var ErrUnresolvedUser = errors.New("billing: cannot resolve user for event")

// Reconciler applies Stripe webhook events to local subscription rows. Each handler
// recomputes derived fields from vendor data so redelivery and reordering are harmless.
type Reconciler struct {
	store   *store.Store
	gateway Gateway
	catalog Catalog
	now     func() time.Time
}

// NewReconciler constructs a Reconciler.
func NewReconciler(st *store.Store, gateway Gateway, catalog Catalog) *Reconciler {
	return &Reconciler{
		store:   st,
		gateway: gateway,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent dispatches evt and returns the recorded outcome. Errors mean the
// vendor should redeliver.
func (r *Reconciler) HandleEvent(ctx context.Context, evt Event) (string, error) {
	if evt.ID != "" {
		seen, errSeen := r.store.WebhookEventProcessed(ctx, evt.ID)
		if errSeen != nil {
			return "", errSeen
		}
		if seen {
			log.WithFields(log.Fields{"event_id": evt.ID, "type": evt.Type}).Debug("billing: duplicate event acknowledged")
			return OutcomeDuplicate, nil
		}
	}

	obj := gjson.ParseBytes(evt.Object)
	var (
		outcome string
		errEvt  error
	)
	switch evt.Type {
	case EventCheckoutSessionCompleted:
		outcome, errEvt = r.handleCheckoutCompleted(ctx, obj)
	case EventCustomerSubscriptionCreated, EventCustomerSubscriptionUpdated:
		outcome, errEvt = r.handleSubscriptionUpdated(ctx, obj)
	case EventCustomerSubscriptionDeleted:
		outcome, errEvt = r.handleSubscriptionDeleted(ctx, obj)
	case EventInvoicePaymentSucceeded, EventInvoicePaid:
		outcome, errEvt = r.handleInvoicePaid(ctx, obj)
	default:
		outcome = OutcomeIgnored
	}
	if errEvt != nil {
		return "", errEvt
	}

	if evt.ID != "" {
		if errRecord := r.store.RecordWebhookEvent(ctx, evt.ID, evt.Type, outcome); errRecord != nil {
			return "", errRecord
		}
	}
	return outcome, nil
}

func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, session gjson.Result) (string, error) {
	if mode := session.Get("mode").String(); mode != "" && mode != "subscription" {
		return OutcomeIgnored, nil
	}
	subID := idOf(session.Get("subscription"))
	if subID == "" {
		return OutcomeIgnored, nil
	}
	userID := parseUserID(session.Get("client_reference_id").String())
	if userID == 0 {
		userID = parseUserID(session.Get("metadata." + MetadataUserID).String())
	}
	if userID == 0 {
		log.WithField("subscription", subID).Warn("billing: checkout session without user reference")
		return OutcomeSkipped, nil
	}

	vendor, errFetch := r.gateway.GetSubscription(ctx, subID)
	if errFetch != nil {
		return "", errFetch
	}
	customerID := idOf(session.Get("customer"))
	if customerID == "" {
		customerID = vendor.CustomerID
	}
	if errLink := r.store.SetStripeCustomerID(ctx, userID, customerID); errLink != nil {
		if errors.Is(errLink, store.ErrNotFound) {
			log.WithFields(log.Fields{"user_id": userID, "subscription": subID}).Warn("billing: checkout for unknown user")
			return OutcomeSkipped, nil
		}
		return "", errLink
	}

	if _, errUpsert := r.store.UpsertVendorSubscription(ctx, userID, vendor.ID, r.apply(vendor, false)); errUpsert != nil {
		return "", errUpsert
	}
	return OutcomeProcessed, nil
}

// handleSubscriptionUpdated re-fetches the subscription so a late event cannot replay an
// older status over newer state.
func (r *Reconciler) handleSubscriptionUpdated(ctx context.Context, obj gjson.Result) (string, error) {
	subID := obj.Get("id").String()
	if subID == "" {
		return OutcomeIgnored, nil
	}
	vendor, errFetch := r.gateway.GetSubscription(ctx, subID)
	if errFetch != nil {
		return "", errFetch
	}

	row, errFind := r.store.FindByStripeSubscriptionID(ctx, vendor.ID)
	switch {
	case errFind == nil:
		if _, errUpdate := r.store.UpdateSubscription(ctx, row.ID, r.apply(vendor, false)); errUpdate != nil {
			return "", errUpdate
		}
		return OutcomeProcessed, nil
	case !errors.Is(errFind, store.ErrNotFound):
		return "", errFind
	}

	userID, errResolve := r.resolveUser(ctx, vendor)
	if errResolve != nil {
		return "", errResolve
	}
	if userID == 0 {
		log.WithFields(log.Fields{"subscription": vendor.ID, "customer": vendor.CustomerID}).Warn("billing: subscription update for unknown user")
		return OutcomeSkipped, nil
	}
	if _, errUpsert := r.store.UpsertVendorSubscription(ctx, userID, vendor.ID, r.apply(vendor, false)); errUpsert != nil {
		return "", errUpsert
	}
	return OutcomeProcessed, nil
}

func (r *Reconciler) handleSubscriptionDeleted(ctx context.Context, obj gjson.Result) (string, error) {
	subID := obj.Get("id").String()
	row, errFind := r.store.FindByStripeSubscriptionID(ctx, subID)
	if errors.Is(errFind, store.ErrNotFound) {
		log.WithField("subscription", subID).Info("billing: deleted subscription has no local row")
		return OutcomeSkipped, nil
	}
	if errFind != nil {
		return "", errFind
	}

	endedAt := r.now()
	if ended := obj.Get("ended_at").Int(); ended > 0 {
		endedAt = time.Unix(ended, 0).UTC()
	}
	if _, errCancel := r.store.UpdateSubscription(ctx, row.ID, func(sub *models.Subscription) {
		sub.Status = models.SubscriptionStatusCancelled
		sub.CancelAtPeriodEnd = false
		if sub.EndedAt == nil {
			sub.EndedAt = &endedAt
		}
	}); errCancel != nil {
		return "", errCancel
	}
	return OutcomeProcessed, nil
}

func (r *Reconciler) handleInvoicePaid(ctx context.Context, invoice gjson.Result) (string, error) {
	subID := idOf(invoice.Get("parent.subscription_details.subscription"))
	if subID == "" {
		subID = idOf(invoice.Get("subscription"))
	}
	if subID == "" {
		return OutcomeIgnored, nil
	}

	vendor, errFetch := r.gateway.GetSubscription(ctx, subID)
	if errFetch != nil {
		return "", errFetch
	}

	row, errFind := r.store.FindByStripeSubscriptionID(ctx, vendor.ID)
	switch {
	case errFind == nil:
		if _, errUpdate := r.store.UpdateSubscription(ctx, row.ID, r.apply(vendor, true)); errUpdate != nil {
			return "", errUpdate
		}
		return OutcomeProcessed, nil
	case !errors.Is(errFind, store.ErrNotFound):
		return "", errFind
	}

	userID, errResolve := r.resolveUser(ctx, vendor)
	if errResolve != nil {
		return "", errResolve
	}
	if userID == 0 {
		return "", fmt.Errorf("%w: invoice for subscription %s", ErrUnresolvedUser, vendor.ID)
	}
	if _, errUpsert := r.store.UpsertVendorSubscription(ctx, userID, vendor.ID, r.apply(vendor, true)); errUpsert != nil {
		return "", errUpsert
	}
	return OutcomeProcessed, nil
}

// resolveUser finds the local user for a vendor subscription via metadata, then customer id.
func (r *Reconciler) resolveUser(ctx context.Context, vendor *VendorSubscription) (uint64, error) {
	if id := vendor.UserID(); id != 0 {
		if _, errUser := r.store.GetUser(ctx, id); errUser == nil {
			return id, nil
		} else if !errors.Is(errUser, store.ErrNotFound) {
			return 0, errUser
		}
	}
	user, errUser := r.store.FindUserByStripeCustomer(ctx, vendor.CustomerID)
	switch {
	case errUser == nil:
		return user.ID, nil
	case errors.Is(errUser, store.ErrNotFound):
	default:
		return 0, errUser
	}
	sub, errSub := r.store.FindByStripeCustomerID(ctx, vendor.CustomerID)
	switch {
	case errSub == nil:
		return sub.UserID, nil
	case errors.Is(errSub, store.ErrNotFound):
		return 0, nil
	default:
		return 0, errSub
	}
}

// apply returns a mutation copying vendor state onto a row. The anchor is taken from the
// vendor only when the row is first linked; afterwards it never changes. Ended rows are
// final and left untouched.
func (r *Reconciler) apply(vendor *VendorSubscription, paid bool) func(*models.Subscription) {
	now := r.now()
	return func(sub *models.Subscription) {
		if isEnded(sub) {
			log.WithFields(log.Fields{
				"subscription": vendor.ID,
				"status":       vendor.Status,
			}).Info("billing: subscription already ended, event not applied")
			return
		}
		if sub.BillingAnchor.IsZero() || (sub.StripePriceID == "" && !vendor.BillingCycleAnchor.IsZero()) {
			anchor := vendor.BillingCycleAnchor
			if anchor.IsZero() {
				anchor = now
			}
			sub.BillingAnchor = anchor.UTC()
		}
		if vendor.Interval != "" {
			sub.BillingInterval = vendor.Interval
		}
		if sub.BillingInterval == "" {
			sub.BillingInterval = IntervalMonth
		}
		sub.BillingIntervalCount = vendor.IntervalCount
		if sub.BillingIntervalCount < 1 {
			sub.BillingIntervalCount = 1
		}

		status, known := MapVendorStatus(vendor.Status)
		if !known {
			log.WithFields(log.Fields{
				"subscription": vendor.ID,
				"status":       vendor.Status,
			}).Warn("billing: unmapped vendor status passed through")
		}
		if paid {
			status = models.SubscriptionStatusActive
		}
		sub.Status = status

		if plan, ok := r.catalog.PlanFor(vendor.PriceID); ok {
			sub.PlanType = plan
		} else {
			log.WithFields(log.Fields{
				"subscription": vendor.ID,
				"price":        vendor.PriceID,
			}).Warn("billing: unknown price id, plan unchanged")
			if sub.PlanType == "" {
				sub.PlanType = models.PlanFree
			}
		}

		sub.CancelAtPeriodEnd = vendor.CancelAtPeriodEnd
		if vendor.CustomerID != "" {
			sub.StripeCustomerID = vendor.CustomerID
		}
		if vendor.PriceID != "" {
			sub.StripePriceID = vendor.PriceID
		}

		if end, ok := NextBillingBoundary(sub.BillingAnchor, sub.BillingInterval, sub.BillingIntervalCount, now); ok {
			sub.CurrentPeriodEnd = &end
		}
		if status == models.SubscriptionStatusCancelled {
			if sub.EndedAt == nil {
				sub.EndedAt = &now
			}
		} else if status.IsOpen() {
			sub.EndedAt = nil
		}
	}
}

// isEnded reports whether a stored row was cancelled with an end stamp. Stripe does not
// reactivate a deleted subscription; a new checkout creates a new one.
func isEnded(sub *models.Subscription) bool {
	return sub.ID != 0 && sub.Status == models.SubscriptionStatusCancelled && sub.EndedAt != nil
}
