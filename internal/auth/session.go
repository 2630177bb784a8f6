package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/contentjet/contentjet/internal/settings"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken indicates the request carried neither a bearer header nor a session cookie.
	ErrNoToken = errors.New("auth: no session token")
	// ErrInvalidToken covers signature, expiry and claim failures.
	ErrInvalidToken = errors.New("auth: invalid session token")
	// ErrNotConfigured indicates no signing secret is configured.
	ErrNotConfigured = errors.New("auth: session verification not configured")
)

// Claims are the identity-provider access token claims used by the API.
type Claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// DisplayName returns the best-effort display name from user metadata.
func (c *Claims) DisplayName() string {
	if c == nil {
		return ""
	}
	for _, key := range []string{"full_name", "name"} {
		if v, ok := c.UserMetadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Verifier validates HS256 session tokens issued by the identity provider.
type Verifier struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier returns a verifier for secret. An empty secret yields a verifier that rejects every token.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(strings.TrimSpace(secret)), leeway: 30 * time.Second, now: time.Now}
}

// Verify parses and validates raw, returning its claims.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	if v == nil || len(v.secret) == 0 {
		return nil, ErrNotConfigured
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoToken
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	token, errParse := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if errParse != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, errParse)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, errCookie := r.Cookie(settings.SessionCookieName); errCookie == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
