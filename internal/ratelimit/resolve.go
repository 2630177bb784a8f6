package ratelimit

import (
	"context"
	"errors"

	"github.com/contentjet/contentjet/internal/models"
	"github.com/contentjet/contentjet/internal/store"
)

// ResolveLimit picks the paid or free limit from the user's open subscription.
func ResolveLimit(ctx context.Context, st *store.Store, userID uint64, cfg SettingsConfig) (Decision, error) {
	if st == nil || userID == 0 {
		return Decision{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	plan := models.PlanFree
	sub, errFind := st.OpenSubscription(ctx, userID)
	switch {
	case errFind == nil:
		plan = sub.PlanType
	case errors.Is(errFind, store.ErrNotFound):
	default:
		return Decision{}, errFind
	}
	return Decision{Limit: cfg.LimitFor(plan), Plan: plan}, nil
}
