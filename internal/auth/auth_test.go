package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/contentjet/contentjet/internal/config"
	"github.com/contentjet/contentjet/internal/models"
	"github.com/contentjet/contentjet/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":           "ext-123",
		"email":         "ada@example.com",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{"full_name": "Ada Lovelace"},
	}
}

type fakeUsers struct {
	calls []string
	err   error
}

func (f *fakeUsers) EnsureUser(_ context.Context, externalID, email, name string) (*models.User, error) {
	f.calls = append(f.calls, externalID)
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: 42, ExternalID: externalID, Email: email, Name: name}, nil
}

func TestVerifier(t *testing.T) {
	v := NewVerifier(testSecret)

	claims, err := v.Verify(signToken(t, jwt.SigningMethodHS256, testSecret, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "ext-123", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "Ada Lovelace", claims.DisplayName())

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrNoToken},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, "other-secret", validClaims()), ErrInvalidToken},
		{"wrong alg", signToken(t, jwt.SigningMethodHS512, testSecret, validClaims()), ErrInvalidToken},
		{"expired", signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(-time.Hour).Unix()}), ErrInvalidToken},
		{"no exp", signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "x"}), ErrInvalidToken},
		{"no sub", signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}), ErrInvalidToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err = NewVerifier("").Verify("anything")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: settings.SessionCookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, TokenFromRequest(req))
}

func newTestRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", mw, func(c *gin.Context) {
		user := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": UserID(c), "external_id": user.ExternalID})
	})
	return r
}

func TestMiddleware(t *testing.T) {
	users := &fakeUsers{}
	cfg := config.AuthConfig{DevBypass: true, DevUserExternalID: "dev-user"}
	m := NewMiddleware(NewVerifier(testSecret), users, cfg)

	t.Run("valid session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret, validClaims()))
		newTestRouter(m.RequireSession()).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(42), gjson.Get(rec.Body.String(), "id").Int())
		assert.Equal(t, "ext-123", gjson.Get(rec.Body.String(), "external_id").String())
	})

	t.Run("missing session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(m.RequireSession()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	})

	t.Run("dev bypass", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(m.RequireSessionOrDev()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "dev-user", gjson.Get(rec.Body.String(), "external_id").String())
	})

	t.Run("dev bypass disabled", func(t *testing.T) {
		strict := NewMiddleware(NewVerifier(testSecret), users, config.AuthConfig{})
		rec := httptest.NewRecorder()
		newTestRouter(strict.RequireSessionOrDev()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("ensure user failure", func(t *testing.T) {
		failing := NewMiddleware(NewVerifier(testSecret), &fakeUsers{err: errors.New("db down")}, cfg)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret, validClaims()))
		newTestRouter(failing.RequireSession()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down")
	})
}

func TestExchanger(t *testing.T) {
	var gotBody, gotKey, gotGrant string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotKey = r.Header.Get("apikey")
		gotGrant = r.URL.Query().Get("grant_type")
		if gjson.Get(gotBody, "auth_code").String() == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","refresh_token":"ref","expires_in":3600}`))
	}))
	defer server.Close()

	ex := NewExchanger(config.AuthConfig{URL: server.URL + "/", AnonKey: "anon"})
	require.NotNil(t, ex)

	session, err := ex.Exchange(context.Background(), "good", "verifier-1")
	require.NoError(t, err)
	assert.Equal(t, "tok", session.AccessToken)
	assert.Equal(t, "ref", session.RefreshToken)
	assert.Equal(t, time.Hour, session.ExpiresIn)
	assert.Equal(t, "anon", gotKey)
	assert.Equal(t, "pkce", gotGrant)
	assert.Equal(t, "verifier-1", gjson.Get(gotBody, "code_verifier").String())

	_, err = ex.Exchange(context.Background(), "bad", "v")
	require.ErrorIs(t, err, ErrExchangeFailed)
	assert.Contains(t, err.Error(), "code expired")

	_, err = ex.Exchange(context.Background(), " ", "v")
	assert.ErrorIs(t, err, ErrExchangeFailed)

	assert.Nil(t, NewExchanger(config.AuthConfig{}))
}
