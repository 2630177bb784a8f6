package ratelimit

import (
	"context"
	"time"

	"github.com/contentjet/contentjet/internal/models"
)

// DefaultWindow is the fixed window generation limits are counted over.
const DefaultWindow = time.Minute

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// Decision describes the resolved per-window limit for a user. Zero means unlimited.
type Decision struct {
	Limit int
	Plan  models.PlanType
}
