package models

import (
	"strings"
	"time"
)

// PlanType identifies a sellable plan.
type PlanType string

// PlanType constants define the closed set of plans.
const (
	// PlanFree is the default plan without a vendor subscription.
	PlanFree PlanType = "free"
	// PlanMonthly is billed every month.
	PlanMonthly PlanType = "monthly"
	// PlanYearly is billed every year.
	PlanYearly PlanType = "yearly"
)

// ParsePlanType normalizes a plan identifier and reports whether it is known.
func ParsePlanType(raw string) (PlanType, bool) {
	switch PlanType(strings.ToLower(strings.TrimSpace(raw))) {
	case PlanFree:
		return PlanFree, true
	case PlanMonthly:
		return PlanMonthly, true
	case PlanYearly:
		return PlanYearly, true
	default:
		return "", false
	}
}

// PlanTypes lists every plan in display order.
func PlanTypes() []PlanType {
	return []PlanType{PlanFree, PlanMonthly, PlanYearly}
}

// IsPaid reports whether the plan is backed by a vendor subscription.
func (p PlanType) IsPaid() bool {
	return p == PlanMonthly || p == PlanYearly
}

// SubscriptionStatus is the internal subscription state.
type SubscriptionStatus string

// SubscriptionStatus constants define the internal states.
const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled         SubscriptionStatus = "cancelled"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

// SubscriptionStatuses lists every internal status.
func SubscriptionStatuses() []SubscriptionStatus {
	return []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusTrialing,
		SubscriptionStatusPastDue,
		SubscriptionStatusCancelled,
		SubscriptionStatusUnpaid,
		SubscriptionStatusIncomplete,
		SubscriptionStatusIncompleteExpired,
		SubscriptionStatusPaused,
	}
}

// ParseSubscriptionStatus reports whether raw names an internal status.
func ParseSubscriptionStatus(raw string) (SubscriptionStatus, bool) {
	candidate := SubscriptionStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, status := range SubscriptionStatuses() {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// OpenSubscriptionStatuses are the statuses that grant access.
var OpenSubscriptionStatuses = []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusTrialing}

// IsOpen reports whether the status grants access.
func (s SubscriptionStatus) IsOpen() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Subscription records a user's plan and its vendor-mirrored billing state.
type Subscription struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Owning user ID.

	PlanType PlanType           `gorm:"type:varchar(32);not null;default:'free'"` // Plan identifier.
	Status   SubscriptionStatus `gorm:"type:varchar(32);not null;index"`          // Internal status.

	BillingAnchor        time.Time  `gorm:"not null"`                        // Fixed anchor set at creation.
	BillingInterval      string     `gorm:"type:varchar(16);not null;default:'month'"`
	BillingIntervalCount int        `gorm:"not null;default:1"`
	CurrentPeriodEnd     *time.Time // Derived from the anchor on each billing event.
	CancelAtPeriodEnd    bool       `gorm:"not null;default:false"` // Mirrored from the vendor.
	EndedAt              *time.Time // Stamped on cancellation.

	StripeSubscriptionID *string `gorm:"type:varchar(255);uniqueIndex"` // Vendor subscription ID.
	StripeCustomerID     string  `gorm:"type:varchar(255);index"`       // Vendor customer ID.
	StripePriceID        string  `gorm:"type:varchar(255)"`             // Vendor price ID.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// VendorSubscriptionID returns the Stripe subscription id or an empty string.
func (s *Subscription) VendorSubscriptionID() string {
	if s == nil || s.StripeSubscriptionID == nil {
		return ""
	}
	return *s.StripeSubscriptionID
}
