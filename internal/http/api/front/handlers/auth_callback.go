package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/contentjet/contentjet/internal/auth"
	"github.com/contentjet/contentjet/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const defaultAfterLoginPath = "/dashboard"

// AuthCallbackHandler completes the hosted sign-in redirect.
type AuthCallbackHandler struct {
	exchanger *auth.Exchanger
	siteURL   string
	secure    bool
}

// NewAuthCallbackHandler constructs an AuthCallbackHandler. Cookies are marked Secure when siteURL is https.
func NewAuthCallbackHandler(exchanger *auth.Exchanger, siteURL string) *AuthCallbackHandler {
	return &AuthCallbackHandler{
		exchanger: exchanger,
		siteURL:   siteURL,
		secure:    strings.HasPrefix(strings.ToLower(siteURL), "https://"),
	}
}

// Callback exchanges the auth code, stores the session cookie and redirects to the site.
func (h *AuthCallbackHandler) Callback(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		c.Redirect(http.StatusFound, h.siteURL+"/login?error=missing_code")
		return
	}
	verifier, _ := c.Cookie(settings.CodeVerifierCookieName)

	session, errExchange := h.exchanger.Exchange(c.Request.Context(), code, verifier)
	if errExchange != nil {
		log.WithError(errExchange).Warn("auth: callback exchange failed")
		c.Redirect(http.StatusFound, h.siteURL+"/login?error=auth_failed")
		return
	}

	maxAge := int(session.ExpiresIn.Seconds())
	if maxAge <= 0 {
		maxAge = 3600
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(settings.SessionCookieName, session.AccessToken, maxAge, "/", "", h.secure, true)
	c.SetCookie(settings.CodeVerifierCookieName, "", -1, "/", "", h.secure, true)
	c.Redirect(http.StatusFound, h.siteURL+safeNextPath(c.Query("next")))
}

// safeNextPath keeps redirects on the configured site: only absolute paths are accepted.
func safeNextPath(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return defaultAfterLoginPath
	}
	parsed, errParse := url.Parse(next)
	if errParse != nil || parsed.IsAbs() || parsed.Host != "" {
		return defaultAfterLoginPath
	}
	return parsed.RequestURI()
}
