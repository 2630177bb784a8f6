package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
)

// MetadataUserID is the Stripe metadata key carrying the local user id.
const MetadataUserID = "user_id"

// ErrSignature is returned when a webhook payload fails signature verification.
var ErrSignature = errors.New("billing: invalid webhook signature")

// VendorSubscription is the subset of a Stripe subscription the reconciler needs.
type VendorSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	Interval           string
	IntervalCount      int
	BillingCycleAnchor time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}

// UserID returns the local user id stored in metadata, or zero.
func (v *VendorSubscription) UserID() uint64 {
	if v == nil {
		return 0
	}
	return parseUserID(v.Metadata[MetadataUserID])
}

// Event is a verified webhook event. Object holds the raw data.object JSON.
type Event struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// CheckoutRequest describes a subscription checkout session.
type CheckoutRequest struct {
	UserID        uint64
	PriceID       string
	CustomerID    string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Gateway is the Stripe surface used by the service.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*VendorSubscription, error)
	ConstructEvent(payload []byte, signature string) (Event, error)
}

// StripeGateway implements Gateway with stripe-go resource clients.
type StripeGateway struct {
	webhookSecret string
	checkout      checkoutsession.Client
	portal        portalsession.Client
	subscriptions subscription.Client
}

// NewStripeGateway builds a gateway for secretKey. A nil backend uses the default Stripe API backend.
func NewStripeGateway(secretKey, webhookSecret string, backend stripe.Backend) *StripeGateway {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeGateway{
		webhookSecret: webhookSecret,
		checkout:      checkoutsession.Client{B: backend, Key: secretKey},
		portal:        portalsession.Client{B: backend, Key: secretKey},
		subscriptions: subscription.Client{B: backend, Key: secretKey},
	}
}

// CreateCheckoutSession starts a subscription checkout and returns its hosted URL.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	userID := strconv.FormatUint(req.UserID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: userID},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, userID)
	switch {
	case req.CustomerID != "":
		params.Customer = stripe.String(req.CustomerID)
	case req.CustomerEmail != "":
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	sess, err := g.checkout.New(params)
	if err != nil {
		return "", fmt.Errorf("billing: create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the customer billing portal and returns its URL.
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := g.portal.New(params)
	if err != nil {
		return "", fmt.Errorf("billing: create portal session: %w", err)
	}
	return sess.URL, nil
}

// GetSubscription retrieves a subscription and translates it to a VendorSubscription.
func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*VendorSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("billing: get subscription %s: %w", subscriptionID, err)
	}
	return fromStripeSubscription(sub), nil
}

// ConstructEvent verifies the Stripe-Signature header and decodes the event.
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	out := Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data != nil {
		out.Object = evt.Data.Raw
	}
	return out, nil
}

func fromStripeSubscription(sub *stripe.Subscription) *VendorSubscription {
	if sub == nil {
		return nil
	}
	out := &VendorSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
		IntervalCount:     1,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.BillingCycleAnchor > 0 {
		out.BillingCycleAnchor = time.Unix(sub.BillingCycleAnchor, 0).UTC()
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		out.PriceID = price.ID
		if price.Recurring != nil {
			out.Interval = string(price.Recurring.Interval)
			if price.Recurring.IntervalCount > 0 {
				out.IntervalCount = int(price.Recurring.IntervalCount)
			}
		}
	}
	return out
}

// idOf returns the id of a Stripe reference that may be a bare id or an expanded object.
func idOf(ref gjson.Result) string {
	if ref.IsObject() {
		return ref.Get("id").String()
	}
	return ref.String()
}

func parseUserID(raw string) uint64 {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
