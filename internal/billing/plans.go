package billing

import (
	"strings"

	"github.com/contentjet/contentjet/internal/config"
	"github.com/contentjet/contentjet/internal/models"
)

// Plan describes a sellable plan for the public catalog.
type Plan struct {
	Type     models.PlanType `json:"type"`
	Name     string          `json:"name"`
	Interval string          `json:"interval,omitempty"`
	PriceID  string          `json:"price_id,omitempty"`
	Paid     bool            `json:"paid"`
	Enabled  bool            `json:"enabled"`
}

// Catalog maps plan types to Stripe price ids.
type Catalog struct {
	monthly string
	yearly  string
}

// NewCatalog builds a Catalog from Stripe configuration.
func NewCatalog(cfg config.StripeConfig) Catalog {
	return Catalog{
		monthly: strings.TrimSpace(cfg.PriceMonthly),
		yearly:  strings.TrimSpace(cfg.PriceYearly),
	}
}

// PriceFor returns the price id for a paid plan.
func (c Catalog) PriceFor(plan models.PlanType) (string, bool) {
	switch plan {
	case models.PlanMonthly:
		return c.monthly, c.monthly != ""
	case models.PlanYearly:
		return c.yearly, c.yearly != ""
	default:
		return "", false
	}
}

// PlanFor resolves a Stripe price id back to a plan type.
func (c Catalog) PlanFor(priceID string) (models.PlanType, bool) {
	switch {
	case priceID == "":
		return "", false
	case priceID == c.monthly:
		return models.PlanMonthly, true
	case priceID == c.yearly:
		return models.PlanYearly, true
	default:
		return "", false
	}
}

// Plans lists the catalog in display order.
func (c Catalog) Plans() []Plan {
	return []Plan{
		{Type: models.PlanFree, Name: "Free", Enabled: true},
		{Type: models.PlanMonthly, Name: "Monthly", Interval: IntervalMonth, PriceID: c.monthly, Paid: true, Enabled: c.monthly != ""},
		{Type: models.PlanYearly, Name: "Yearly", Interval: IntervalYear, PriceID: c.yearly, Paid: true, Enabled: c.yearly != ""},
	}
}
