// Package middleware gates protected routes behind bearer-token
// authentication.
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/firstmakers/fm-api/cache"
	"github.com/firstmakers/fm-api/domain"
	"github.com/firstmakers/fm-api/token"
)

// identityKey is the echo context key the verified identity is stored under.
const identityKey = "auth_identity"

// maxBodyPeek bounds how much of a request body is read when looking for a
// body-carried token.
const maxBodyPeek = 1 << 20

// RequireToken returns echo middleware that rejects requests without a valid
// access token. A missing token is a 403 before any handler or store access;
// an invalid, expired, or non-access one is a 401. On success the verified
// identity is attached to the echo context. Verified tokens are memoized in
// tokenCache for at most a minute to skip repeated signature checks.
func RequireToken(codec *token.Codec, tokenCache cache.TokenCache) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := ExtractToken(c)
			if tokenString == "" {
				return c.JSON(http.StatusForbidden, echo.Map{
					"success":      false,
					"message":      "No token provided.",
					"message_code": "no_token",
				})
			}

			ctx := c.Request().Context()

			if entry, ok := tokenCache.Get(ctx, tokenString); ok {
				attach(c, entry.Identity)
				return next(c)
			}

			claims, err := codec.Verify(tokenString)
			if err != nil {
				log.Debug().Err(err).Msg("token verification failed")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success":      false,
					"message":      "Failed to authenticate token.",
					"message_code": "invalid_token",
				})
			}

			// Reset and activation tokens share the signing secret but carry an
			// intent tag and no username. Only access tokens authorize here.
			if claims.Intent != "" || claims.Username == "" {
				log.Debug().Str("intent", claims.Intent).Msg("non-access token rejected")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success":      false,
					"message":      "Failed to authenticate token.",
					"message_code": "invalid_token",
				})
			}

			identity := domain.Identity{Username: claims.Username, Email: claims.Email}
			tokenCache.Set(ctx, tokenString, &cache.Entry{
				Identity:  identity,
				ExpiresAt: claims.ExpiresAt.Time,
			})

			attach(c, identity)
			return next(c)
		}
	}
}

func attach(c echo.Context, identity domain.Identity) {
	c.Set(identityKey, identity)
}

// CurrentIdentity returns the identity attached by RequireToken. Handlers on
// protected routes may assume it is present.
func CurrentIdentity(c echo.Context) domain.Identity {
	identity, _ := c.Get(identityKey).(domain.Identity)
	return identity
}

// ExtractToken finds the bearer token in the Authorization header, the
// access_token query parameter, or the access_token body field, in that order.
func ExtractToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header != "" {
		scheme, value, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
	}

	if tok := c.QueryParam("access_token"); tok != "" {
		return tok
	}

	return tokenFromBody(c)
}

// tokenFromBody peeks at a JSON request body for an access_token field and
// restores the body so the handler can still bind it.
func tokenFromBody(c echo.Context) string {
	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyPeek))
	req.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.AccessToken
}
