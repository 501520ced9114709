package handler

import (
	"net/http"

	"crm-service/pkg/database"
	"crm-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Health reports liveness. With check=db it also pings the database and,
// when one is configured, reports the message broker.
func Health(c echo.Context) error {
	if c.QueryParam("check") != "db" {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	log := logger.FromContext(c)
	body := map[string]string{"status": "ok", "database": "up"}

	// A broker outage only degrades: expiry reminders fall back to inline sending
	if broker != nil {
		body["broker"] = "up"
		if !broker.Connected() {
			log.Warn("Message broker disconnected")
			body["broker"] = "down"
			body["status"] = "degraded"
		}
	}

	if err := database.Ping(); err != nil {
		log.Error("Database health check failed", zap.Error(err))
		body["database"] = "down"
		body["status"] = "unavailable"
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	return c.JSON(http.StatusOK, body)
}
