package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/contentjet/contentjet/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const exchangeTimeout = 10 * time.Second

// ErrExchangeFailed indicates the identity provider refused or failed the code exchange.
var ErrExchangeFailed = errors.New("auth: code exchange failed")

// Session is the result of a successful auth-code exchange.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Exchanger trades a PKCE auth code for a session at the identity provider.
type Exchanger struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewExchanger returns an exchanger for the configured identity provider, or nil when AUTH_URL is unset.
func NewExchanger(cfg config.AuthConfig) *Exchanger {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil
	}
	return &Exchanger{
		baseURL: baseURL,
		anonKey: strings.TrimSpace(cfg.AnonKey),
		client:  &http.Client{Timeout: exchangeTimeout},
	}
}

// Exchange posts the auth code and verifier to the token endpoint.
func (e *Exchanger) Exchange(ctx context.Context, code, verifier string) (*Session, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: identity provider not configured", ErrExchangeFailed)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", ErrExchangeFailed)
	}

	body, _ := sjson.SetBytes([]byte(`{}`), "auth_code", code)
	body, _ = sjson.SetBytes(body, "code_verifier", verifier)

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/auth/v1/token?grant_type=pkce", bytes.NewReader(body))
	if errReq != nil {
		return nil, fmt.Errorf("auth: exchange: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.anonKey != "" {
		req.Header.Set("apikey", e.anonKey)
	}

	resp, errDo := e.client.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("auth: close exchange response failed")
		}
	}()

	data, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrExchangeFailed, errRead)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := gjson.GetBytes(data, "error_description").String()
		if msg == "" {
			msg = gjson.GetBytes(data, "msg").String()
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrExchangeFailed, resp.StatusCode, msg)
	}

	parsed := gjson.ParseBytes(data)
	session := &Session{
		AccessToken:  parsed.Get("access_token").String(),
		RefreshToken: parsed.Get("refresh_token").String(),
		ExpiresIn:    time.Duration(parsed.Get("expires_in").Int()) * time.Second,
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("%w: response carried no access token", ErrExchangeFailed)
	}
	return session, nil
}
