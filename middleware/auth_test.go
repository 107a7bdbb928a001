package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstmakers/fm-api/cache"
	"github.com/firstmakers/fm-api/domain"
	"github.com/firstmakers/fm-api/token"
)

func signAccessToken(t *testing.T, codec *token.Codec, username, email string) string {
	t.Helper()
	signed, _, err := codec.Sign(token.Claims{Username: username, Email: email}, time.Hour)
	require.NoError(t, err)
	return signed
}

func newProtectedEcho(codec *token.Codec, tokenCache cache.TokenCache, handlerCalled *bool) *echo.Echo {
	e := echo.New()
	e.POST("/protected", func(c echo.Context) error {
		*handlerCalled = true
		return c.JSON(http.StatusOK, echo.Map{"username": CurrentIdentity(c).Username})
	}, RequireToken(codec, tokenCache))
	return e
}

func TestRequireTokenMissingToken(t *testing.T) {
	codec := token.NewCodec("test-secret")
	tokenCache := cache.NewMemoryTokenCache()
	defer tokenCache.Close()

	handlerCalled := false
	e := newProtectedEcho(codec, tokenCache, &handlerCalled)

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, handlerCalled, "handler must not run without a token")
	assert.Contains(t, rec.Body.String(), "no_token")
}

func TestRequireTokenInvalidToken(t *testing.T) {
	codec := token.NewCodec("test-secret")
	tokenCache := cache.NewMemoryTokenCache()
	defer tokenCache.Close()

	handlerCalled := false
	e := newProtectedEcho(codec, tokenCache, &handlerCalled)

	t.Run("Tampered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-real-token")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, handlerCalled)
		assert.Contains(t, rec.Body.String(), "invalid_token")
	})

	t.Run("Expired", func(t *testing.T) {
		expired, _, err := codec.Sign(token.Claims{Username: "alice"}, -time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+expired)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, handlerCalled)
	})

	t.Run("WrongSigningSecret", func(t *testing.T) {
		other := token.NewCodec("other-secret")
		forged := signAccessToken(t, other, "mallory", "mallory@example.com")

		req := httptest.NewRequest(http.MethodPost, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+forged)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, handlerCalled)
	})

	// Intent tokens are signed with the same secret but must never authorize
	// API access; they are redeemable only in their own flow.
	t.Run("ResetIntentToken", func(t *testing.T) {
		signer := token.NewIntentSigner(codec, time.Hour, time.Hour)
		resetToken, _, err := signer.IssueReset("alice@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+resetToken)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, handlerCalled)
		assert.Contains(t, rec.Body.String(), "invalid_token")
	})

	t.Run("ActivationIntentToken", func(t *testing.T) {
		signer := token.NewIntentSigner(codec, time.Hour, time.Hour)
		activationToken, _, err := signer.IssueActivation("alice@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+activationToken)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, handlerCalled)
	})

	t.Run("NoUsernameClaim", func(t *testing.T) {
		anonymous, _, err := codec.Sign(token.Claims{Email: "alice@example.com"}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/protected", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+anonymous)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, handlerCalled)
	})
}

func TestRequireTokenValidToken(t *testing.T) {
	codec := token.NewCodec("test-secret")
	tokenCache := cache.NewMemoryTokenCache()
	defer tokenCache.Close()

	handlerCalled := false
	e := newProtectedEcho(codec, tokenCache, &handlerCalled)
	signed := signAccessToken(t, codec, "alice", "alice@example.com")

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signed)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, handlerCalled)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)

	// The verified token is memoized.
	entry, ok := tokenCache.Get(req.Context(), signed)
	require.True(t, ok)
	assert.Equal(t, "alice", entry.Identity.Username)
}

func TestRequireTokenCacheHitSkipsVerification(t *testing.T) {
	codec := token.NewCodec("test-secret")
	tokenCache := cache.NewMemoryTokenCache()
	defer tokenCache.Close()

	handlerCalled := false
	e := newProtectedEcho(codec, tokenCache, &handlerCalled)

	// Forge a token the codec would reject, but seed it into the cache. The
	// middleware must trust the cache entry.
	other := token.NewCodec("other-secret")
	seeded := signAccessToken(t, other, "cached", "cached@example.com")
	tokenCache.Set(context.Background(), seeded, &cache.Entry{
		Identity:  domain.Identity{Username: "cached", Email: "cached@example.com"},
		ExpiresAt: time.Now().Add(time.Hour),
	})

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+seeded)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"cached"`)
}

func TestExtractToken(t *testing.T) {
	e := echo.New()

	newContext := func(req *http.Request) echo.Context {
		return e.NewContext(req, httptest.NewRecorder())
	}

	t.Run("AuthorizationHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer abc123")
		assert.Equal(t, "abc123", ExtractToken(newContext(req)))
	})

	t.Run("HeaderSchemeCaseInsensitive", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "bearer abc123")
		assert.Equal(t, "abc123", ExtractToken(newContext(req)))
	})

	t.Run("QueryParameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?access_token=qrs456", nil)
		assert.Equal(t, "qrs456", ExtractToken(newContext(req)))
	})

	t.Run("HeaderWinsOverQuery", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?access_token=from-query", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer from-header")
		assert.Equal(t, "from-header", ExtractToken(newContext(req)))
	})

	t.Run("JSONBody", func(t *testing.T) {
		body := `{"access_token":"xyz789","other":"field"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := newContext(req)

		assert.Equal(t, "xyz789", ExtractToken(c))

		// The body is restored for the handler to bind.
		restored, err := io.ReadAll(c.Request().Body)
		require.NoError(t, err)
		assert.JSONEq(t, body, string(restored))
	})

	t.Run("NonJSONBodyIgnored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("access_token=nope"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		assert.Empty(t, ExtractToken(newContext(req)))
	})

	t.Run("NoToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Empty(t, ExtractToken(newContext(req)))
	})
}
