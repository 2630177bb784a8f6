package settings

// Application defaults shared across packages.
const (
	// SiteName is the product name used in logs and the Stripe checkout description.
	SiteName = "ContentJet"
	// DefaultPort is the fallback HTTP listen port.
	DefaultPort = 8318
	// DefaultSiteURL is the fallback public site URL used to build redirect URLs.
	DefaultSiteURL = "http://localhost:3000"
	// DefaultAIProvider is the provider used when the configured one is unknown.
	DefaultAIProvider = "openai"
	// DefaultMaxOutputTokens is the completion budget when a request omits one.
	DefaultMaxOutputTokens = 2048
	// DefaultTemperature is the sampling temperature when a request omits one.
	DefaultTemperature = 0.7
	// DefaultRateLimitPerMinute caps generations per minute for users without a paid plan (0 means unlimited).
	DefaultRateLimitPerMinute = 10
	// DefaultPaidRateLimitPerMinute caps generations per minute for users on a paid plan.
	DefaultPaidRateLimitPerMinute = 60
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "contentjet:rl"
	// SessionCookieName carries the identity-provider access token for browser requests.
	SessionCookieName = "cj-access-token"
	// CodeVerifierCookieName carries the PKCE verifier set by the sign-in page.
	CodeVerifierCookieName = "cj-code-verifier"
	// EnvDevelopment is the APP_ENV value that permits the local auth bypass.
	EnvDevelopment = "development"
	// EnvProduction is the APP_ENV value for deployed instances.
	EnvProduction = "production"
)
