package handler

import (
	"net/http"

	"crm-service/internal/model"
	"crm-service/internal/service"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"
	"crm-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GetDashboardStats returns the dashboard counters and recent activity.
// Individual query failures degrade to zero values and never fail the request.
func GetDashboardStats(c echo.Context) error {
	prometheus.RecordOperation("dashboard", "stats")

	stats := dashboard.Stats(c.Request().Context())
	return c.JSON(http.StatusOK, stats)
}

// GetProjectHealthReport scores every in-progress project
func GetProjectHealthReport(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("dashboard", "project_health")

	report, err := service.HealthReport(c.Request().Context(), database.GetDB(), now(), model.ProjectStatusInProgress)
	if err != nil {
		return respondError(c, err, "project health", "compute")
	}

	summary := map[service.HealthStatus]int{
		service.HealthGood:           0,
		service.HealthAtRisk:         0,
		service.HealthNeedsAttention: 0,
	}
	for _, h := range report {
		summary[h.HealthStatus]++
	}

	log.Info("Project health computed", zap.Int("projects", len(report)))
	return c.JSON(http.StatusOK, echo.Map{
		"projects": report,
		"summary":  summary,
	})
}
