package ratelimit

import (
	"strings"
	"time"

	"github.com/contentjet/contentjet/internal/config"
	"github.com/contentjet/contentjet/internal/models"
	internalsettings "github.com/contentjet/contentjet/internal/settings"
)

// SettingsConfig captures the resolved rate limit settings.
type SettingsConfig struct {
	FreeLimit     int
	PaidLimit     int
	Window        time.Duration
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// SettingsFromConfig builds a settings snapshot from application config. Redis is
// enabled whenever an address is configured.
func SettingsFromConfig(cfg config.RateLimitConfig) SettingsConfig {
	out := SettingsConfig{
		FreeLimit:     cfg.PerMinute,
		PaidLimit:     cfg.PaidPerMinute,
		Window:        DefaultWindow,
		RedisAddr:     strings.TrimSpace(cfg.RedisAddr),
		RedisPassword: strings.TrimSpace(cfg.RedisPassword),
		RedisDB:       cfg.RedisDB,
		RedisPrefix:   strings.TrimSpace(cfg.RedisPrefix),
	}
	out.RedisEnabled = out.RedisAddr != ""
	if out.RedisPrefix == "" {
		out.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}
	if out.RedisDB < 0 {
		out.RedisDB = 0
	}
	if out.FreeLimit < 0 {
		out.FreeLimit = 0
	}
	if out.PaidLimit < 0 {
		out.PaidLimit = 0
	}
	return out
}

// LimitFor returns the per-window limit for plan.
func (c SettingsConfig) LimitFor(plan models.PlanType) int {
	if plan.IsPaid() {
		return c.PaidLimit
	}
	return c.FreeLimit
}
