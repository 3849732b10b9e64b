// Package middleware provides request processing shared by routes:
// bearer-token parsing and Redis-backed rate limiting. Authorization
// decisions themselves live in the auth package as explicit guards.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/ticketry/backend/internal/auth"
)

// identityKey is the context key the JWT middleware stores the caller
// identity under.
const identityKey = "identity"

// JWTAuth returns middleware that validates a Bearer access token and
// stores the resulting auth.Identity in the request context. It only
// authenticates; handlers run their own guards to authorize.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			id := auth.Identity{}
			if sub, ok := claims["sub"].(float64); ok {
				id.UserID = uint64(sub)
			}
			if email, ok := claims["email"].(string); ok {
				id.Email = email
			}
			if role, ok := claims["role"].(string); ok {
				id.Role = role
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// IdentityFrom returns the caller identity stored by JWTAuth, or the
// zero Identity when the route was reached without authentication.
func IdentityFrom(c echo.Context) auth.Identity {
	if v := c.Get(identityKey); v != nil {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Identity{}
}
