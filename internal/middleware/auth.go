package middleware

import (
	"net/http"
	"strings"

	"crm-service/pkg/jwtutil"
	"crm-service/pkg/logger"
	"crm-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context keys set by the auth middlewares
const (
	ContextUserID   = "user_id"
	ContextEmail    = "email"
	ContextRole     = "user_role"
	ContextClientID = "client_id"
)

// StaffAuth validates the staff bearer token and stores the user in the context
func StaffAuth(tokens *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			// Get the Authorization header
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Missing Authorization header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			// Check if it's a Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid Authorization header format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := tokens.ValidateStaffToken(parts[1])
			if err != nil {
				prometheus.RecordAuthAttempt("staff_token", false)
				log.Warn("Invalid JWT token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextEmail, claims.Email)
			c.Set(ContextRole, claims.Role)
			logger.SetOnEcho(c, log.With(zap.String("user_id", claims.UserID)))

			return next(c)
		}
	}
}

// RequireRole rejects authenticated staff without one of the roles
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ContextRole).(string)
			for _, r := range roles {
				if r == role {
					return next(c)
				}
			}
			logger.FromContext(c).Warn("Role not allowed", zap.String("role", role))
			return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
		}
	}
}

// GetUserIDFromContext returns the authenticated staff user id
func GetUserIDFromContext(c echo.Context) (string, bool) {
	id, ok := c.Get(ContextUserID).(string)
	return id, ok && id != ""
}
