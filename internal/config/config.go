package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/contentjet/contentjet/internal/settings"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvPort         = "PORT"
	EnvAppEnv       = "APP_ENV"
	EnvSiteURL      = "SITE_URL"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"

	EnvAIProvider       = "AI_PROVIDER"
	EnvAllowedModels    = "ALLOWED_MODELS"
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL    = "OPENAI_BASE_URL"
	EnvAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	EnvAnthropicBaseURL = "ANTHROPIC_BASE_URL"
	EnvGeminiAPIKey     = "GEMINI_API_KEY"
	EnvGeminiBaseURL    = "GEMINI_BASE_URL"
	EnvModelsSync       = "MODELS_SYNC_ENABLED"

	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvStripePriceMonthly  = "STRIPE_PRICE_MONTHLY"
	EnvStripePriceYearly   = "STRIPE_PRICE_YEARLY"

	EnvAuthJWTSecret         = "AUTH_JWT_SECRET"
	EnvAuthURL               = "AUTH_URL"
	EnvAuthAnonKey           = "AUTH_ANON_KEY"
	EnvDevAuthBypass         = "DEV_AUTH_BYPASS"
	EnvDevUserExternalID     = "DEV_USER_EXTERNAL_ID"
	EnvRateLimitPerMinute    = "RATE_LIMIT_PER_MINUTE"
	EnvRateLimitPaidPerMin   = "RATE_LIMIT_PAID_PER_MINUTE"
	EnvRedisAddr             = "REDIS_ADDR"
	EnvRedisPassword         = "REDIS_PASSWORD"
	EnvRedisDB               = "REDIS_DB"
	EnvRateLimitRedisPrefix  = "RATE_LIMIT_REDIS_PREFIX"
	defaultDevUserExternalID = "dev-user"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath  string `yaml:"-"`
	Env         string `yaml:"env" validate:"oneof=development production test"`
	Port        int    `yaml:"port" validate:"gte=1,lte=65535"`
	DatabaseDSN string `yaml:"database-dsn"`
	// SiteURL is the only source for redirect URLs; request headers are never consulted.
	SiteURL    string          `yaml:"site-url" validate:"required,url"`
	Log        LogConfig       `yaml:"log"`
	AI         AIConfig        `yaml:"ai"`
	Stripe     StripeConfig    `yaml:"stripe"`
	Auth       AuthConfig      `yaml:"auth"`
	RateLimit  RateLimitConfig `yaml:"rate-limit"`
	ModelsSync bool            `yaml:"models-sync"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// ProviderCredentials holds connection settings for one LLM provider.
type ProviderCredentials struct {
	APIKey  string `yaml:"api-key"`
	BaseURL string `yaml:"base-url" validate:"omitempty,url"`
	Model   string `yaml:"model"`
}

// AIConfig selects the active provider and the models users may request.
type AIConfig struct {
	Provider      string              `yaml:"provider"`
	AllowedModels []string            `yaml:"allowed-models"`
	OpenAI        ProviderCredentials `yaml:"openai"`
	Anthropic     ProviderCredentials `yaml:"anthropic"`
	Gemini        ProviderCredentials `yaml:"gemini"`
}

// StripeConfig holds Stripe credentials and the price ids sold at checkout.
type StripeConfig struct {
	SecretKey     string `yaml:"secret-key"`
	WebhookSecret string `yaml:"webhook-secret" validate:"required_with=SecretKey"`
	PriceMonthly  string `yaml:"price-monthly"`
	PriceYearly   string `yaml:"price-yearly"`
}

// AuthConfig holds identity-provider settings.
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt-secret"`
	URL               string `yaml:"url" validate:"omitempty,url"`
	AnonKey           string `yaml:"anon-key"`
	DevBypass         bool   `yaml:"dev-bypass"`
	DevUserExternalID string `yaml:"dev-user-external-id"`
}

// RateLimitConfig holds generation rate limits and the optional Redis backend.
type RateLimitConfig struct {
	PerMinute     int    `yaml:"per-minute" validate:"gte=0"`
	PaidPerMinute int    `yaml:"paid-per-minute" validate:"gte=0"`
	RedisAddr     string `yaml:"redis-addr"`
	RedisPassword string `yaml:"redis-password"`
	RedisDB       int    `yaml:"redis-db" validate:"gte=0"`
	RedisPrefix   string `yaml:"redis-prefix"`
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file or environment.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` in config file or DB_CONNECTION)")

// ErrDevBypassInProduction rejects the local auth bypass outside development.
var ErrDevBypassInProduction = errors.New("dev auth bypass is only allowed when env is development")

// LoadFromEnv loads app config from environment variables only.
func LoadFromEnv() (AppConfig, error) {
	return Load(os.Getenv(EnvConfigPath))
}

// LoadDotEnv loads a .env file into the process environment when one exists.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, errStat := os.Stat(p); errStat != nil {
			continue
		}
		if errLoad := godotenv.Load(p); errLoad != nil {
			return fmt.Errorf("load %s: %w", p, errLoad)
		}
	}
	return nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the optional YAML config file, applies environment overrides and validates the result.
func Load(configPath string) (AppConfig, error) {
	cfg := defaults()
	cfg.ConfigPath = ResolveConfigPath(configPath)

	data, errRead := os.ReadFile(cfg.ConfigPath)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return AppConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return AppConfig{}, fmt.Errorf("read config file: %w", errRead)
	}

	if errEnv := applyEnv(&cfg); errEnv != nil {
		return AppConfig{}, errEnv
	}
	normalize(&cfg)

	if errValidate := cfg.Validate(); errValidate != nil {
		return AppConfig{}, errValidate
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c AppConfig) Validate() error {
	if errStruct := validator.New().Struct(c); errStruct != nil {
		return fmt.Errorf("invalid config: %w", errStruct)
	}
	if c.Auth.DevBypass && c.Env != settings.EnvDevelopment {
		return ErrDevBypassInProduction
	}
	return nil
}

// IsDevelopment reports whether the app runs in the development environment.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == settings.EnvDevelopment
}

// LoadDatabaseDSN returns the DSN from the environment or the resolved config.
func (c AppConfig) LoadDatabaseDSN() (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(c.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

func defaults() AppConfig {
	return AppConfig{
		Env:     settings.EnvProduction,
		Port:    settings.DefaultPort,
		SiteURL: settings.DefaultSiteURL,
		Log:     LogConfig{Level: "info", Format: "text"},
		AI:      AIConfig{Provider: settings.DefaultAIProvider},
		RateLimit: RateLimitConfig{
			PerMinute:     settings.DefaultRateLimitPerMinute,
			PaidPerMinute: settings.DefaultPaidRateLimitPerMinute,
			RedisPrefix:   settings.DefaultRateLimitRedisPrefix,
		},
	}
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.Env, EnvAppEnv)
	setString(&cfg.DatabaseDSN, EnvDBConnection)
	setString(&cfg.SiteURL, EnvSiteURL)
	setString(&cfg.Log.Level, EnvLogLevel)
	setString(&cfg.Log.Format, EnvLogFormat)

	setString(&cfg.AI.Provider, EnvAIProvider)
	if raw, ok := lookup(EnvAllowedModels); ok {
		cfg.AI.AllowedModels = splitList(raw)
	}
	setString(&cfg.AI.OpenAI.APIKey, EnvOpenAIAPIKey)
	setString(&cfg.AI.OpenAI.BaseURL, EnvOpenAIBaseURL)
	setString(&cfg.AI.Anthropic.APIKey, EnvAnthropicAPIKey)
	setString(&cfg.AI.Anthropic.BaseURL, EnvAnthropicBaseURL)
	setString(&cfg.AI.Gemini.APIKey, EnvGeminiAPIKey)
	setString(&cfg.AI.Gemini.BaseURL, EnvGeminiBaseURL)

	setString(&cfg.Stripe.SecretKey, EnvStripeSecretKey)
	setString(&cfg.Stripe.WebhookSecret, EnvStripeWebhookSecret)
	setString(&cfg.Stripe.PriceMonthly, EnvStripePriceMonthly)
	setString(&cfg.Stripe.PriceYearly, EnvStripePriceYearly)

	setString(&cfg.Auth.JWTSecret, EnvAuthJWTSecret)
	setString(&cfg.Auth.URL, EnvAuthURL)
	setString(&cfg.Auth.AnonKey, EnvAuthAnonKey)
	setString(&cfg.Auth.DevUserExternalID, EnvDevUserExternalID)

	setString(&cfg.RateLimit.RedisAddr, EnvRedisAddr)
	setString(&cfg.RateLimit.RedisPassword, EnvRedisPassword)
	setString(&cfg.RateLimit.RedisPrefix, EnvRateLimitRedisPrefix)

	for _, item := range []struct {
		key    string
		target *int
	}{
		{EnvPort, &cfg.Port},
		{EnvRateLimitPerMinute, &cfg.RateLimit.PerMinute},
		{EnvRateLimitPaidPerMin, &cfg.RateLimit.PaidPerMinute},
		{EnvRedisDB, &cfg.RateLimit.RedisDB},
	} {
		if errInt := setInt(item.target, item.key); errInt != nil {
			return errInt
		}
	}
	for _, item := range []struct {
		key    string
		target *bool
	}{
		{EnvDevAuthBypass, &cfg.Auth.DevBypass},
		{EnvModelsSync, &cfg.ModelsSync},
	} {
		if errBool := setBool(item.target, item.key); errBool != nil {
			return errBool
		}
	}
	return nil
}

func normalize(cfg *AppConfig) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.SiteURL = strings.TrimRight(strings.TrimSpace(cfg.SiteURL), "/")
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Auth.DevBypass && strings.TrimSpace(cfg.Auth.DevUserExternalID) == "" {
		cfg.Auth.DevUserExternalID = defaultDevUserExternalID
	}
	if strings.TrimSpace(cfg.RateLimit.RedisPrefix) == "" {
		cfg.RateLimit.RedisPrefix = settings.DefaultRateLimitRedisPrefix
	}
	cleaned := make([]string, 0, len(cfg.AI.AllowedModels))
	for _, model := range cfg.AI.AllowedModels {
		if trimmed := strings.TrimSpace(model); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	cfg.AI.AllowedModels = cleaned
}

func lookup(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func setString(target *string, key string) {
	if raw, ok := lookup(key); ok {
		*target = raw
	}
}

func setInt(target *int, key string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	parsed, errParse := strconv.Atoi(raw)
	if errParse != nil {
		return fmt.Errorf("parse %s: %w", key, errParse)
	}
	*target = parsed
	return nil
}

func setBool(target *bool, key string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	parsed, errParse := strconv.ParseBool(raw)
	if errParse != nil {
		return fmt.Errorf("parse %s: %w", key, errParse)
	}
	*target = parsed
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
