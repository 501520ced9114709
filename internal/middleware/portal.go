package middleware

import (
	"net/http"

	"crm-service/pkg/jwtutil"
	"crm-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PortalSession requires a valid portal session cookie and stores the
// client id in the context.
func PortalSession(tokens *jwtutil.JWTUtil, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			cookie, err := c.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				log.Debug("Portal request without session cookie")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not logged in"})
			}

			claims, err := tokens.ValidatePortalToken(cookie.Value)
			if err != nil {
				log.Warn("Invalid portal session", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired, please log in again"})
			}

			c.Set(ContextClientID, claims.ClientID)
			c.Set(ContextEmail, claims.Email)
			logger.SetOnEcho(c, log.With(zap.String("client_id", claims.ClientID)))

			return next(c)
		}
	}
}

// GetClientIDFromContext returns the client owning the portal session
func GetClientIDFromContext(c echo.Context) (string, bool) {
	id, ok := c.Get(ContextClientID).(string)
	return id, ok && id != ""
}
