package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"crm-service/pkg/config"
	"crm-service/pkg/jwtutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokens() *jwtutil.JWTUtil {
	return jwtutil.New(
		config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1},
		config.PortalConfig{SessionHours: 1},
	)
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStaffAuth(t *testing.T) {
	tokens := newTokens()
	e := echo.New()
	e.GET("/secure", func(c echo.Context) error {
		id, ok := GetUserIDFromContext(c)
		require.True(t, ok)
		return c.String(http.StatusOK, id)
	}, StaffAuth(tokens))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/secure", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set(echo.HeaderAuthorization, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	portal, err := tokens.GeneratePortalToken("client-1", "c@example.com")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+portal)
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	staff, err := tokens.GenerateStaffToken("user-1", "s@example.com", "staff")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+staff)
	rec = serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	tokens := newTokens()
	e := echo.New()
	e.DELETE("/users", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, StaffAuth(tokens), RequireRole("admin"))

	staff, _ := tokens.GenerateStaffToken("u1", "s@example.com", "staff")
	req := httptest.NewRequest(http.MethodDelete, "/users", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+staff)
	assert.Equal(t, http.StatusForbidden, serve(e, req).Code)

	admin, _ := tokens.GenerateStaffToken("u2", "a@example.com", "admin")
	req = httptest.NewRequest(http.MethodDelete, "/users", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+admin)
	assert.Equal(t, http.StatusNoContent, serve(e, req).Code)
}

func TestPortalSession(t *testing.T) {
	tokens := newTokens()
	e := echo.New()
	e.GET("/portal/me", func(c echo.Context) error {
		id, _ := GetClientIDFromContext(c)
		return c.String(http.StatusOK, id)
	}, PortalSession(tokens, "portal_session"))

	assert.Equal(t, http.StatusUnauthorized, serve(e, httptest.NewRequest(http.MethodGet, "/portal/me", nil)).Code)

	staff, _ := tokens.GenerateStaffToken("u1", "s@example.com", "staff")
	req := httptest.NewRequest(http.MethodGet, "/portal/me", nil)
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: staff})
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	session, _ := tokens.GeneratePortalToken("client-9", "c@example.com")
	req = httptest.NewRequest(http.MethodGet, "/portal/me", nil)
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: session})
	rec := serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-9", rec.Body.String())
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID)
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = serve(e, req)
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
}
