package billing

import (
	"github.com/contentjet/contentjet/internal/models"
	stripe "github.com/stripe/stripe-go/v82"
)

// vendorStatuses maps every Stripe subscription status to an internal status.
var vendorStatuses = map[stripe.SubscriptionStatus]models.SubscriptionStatus{
	stripe.SubscriptionStatusActive:            models.SubscriptionStatusActive,
	stripe.SubscriptionStatusTrialing:          models.SubscriptionStatusTrialing,
	stripe.SubscriptionStatusPastDue:           models.SubscriptionStatusPastDue,
	stripe.SubscriptionStatusCanceled:          models.SubscriptionStatusCancelled,
	stripe.SubscriptionStatusUnpaid:            models.SubscriptionStatusUnpaid,
	stripe.SubscriptionStatusIncomplete:        models.SubscriptionStatusIncomplete,
	stripe.SubscriptionStatusIncompleteExpired: models.SubscriptionStatusIncompleteExpired,
	stripe.SubscriptionStatusPaused:            models.SubscriptionStatusPaused,
}

// MapVendorStatus translates a Stripe status. Unknown values are returned unchanged
// with ok=false; they are never treated as active.
func MapVendorStatus(raw string) (models.SubscriptionStatus, bool) {
	if status, ok := vendorStatuses[stripe.SubscriptionStatus(raw)]; ok {
		return status, true
	}
	return models.SubscriptionStatus(raw), false
}
