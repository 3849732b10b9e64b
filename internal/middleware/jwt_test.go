package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketry/backend/internal/auth"
	"github.com/ticketry/backend/internal/utils"
)

const testSecret = "test-secret"

func runJWT(t *testing.T, authorization string) (*httptest.ResponseRecorder, auth.Identity) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got auth.Identity
	handler := JWTAuth(testSecret)(func(c echo.Context) error {
		got = IdentityFrom(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, got
}

func TestJWTAuth(t *testing.T) {
	t.Run("valid token yields identity", func(t *testing.T) {
		tok, err := utils.NewAccessToken(testSecret, 7, "vendor@example.com", auth.RoleVendor, 5)
		require.NoError(t, err)

		rec, id := runJWT(t, "Bearer "+tok.Token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, uint64(7), id.UserID)
		assert.Equal(t, "vendor@example.com", id.Email)
		assert.Equal(t, auth.RoleVendor, id.Role)
	})

	t.Run("missing header", func(t *testing.T) {
		rec, _ := runJWT(t, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := utils.NewAccessToken("other-secret", 7, "vendor@example.com", auth.RoleVendor, 5)
		require.NoError(t, err)

		rec, _ := runJWT(t, "Bearer "+tok.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec, _ := runJWT(t, "Bearer not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestIdentityFromUnauthenticatedRoute(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, auth.Identity{}, IdentityFrom(c))
}
