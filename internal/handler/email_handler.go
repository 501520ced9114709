package handler

import (
	"net/http"
	"strings"

	"crm-service/internal/model"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"
	"crm-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// BulkEmailRequest targets either explicit clients or all active clients
type BulkEmailRequest struct {
	ClientIDs []string `json:"clientIds"`
	All       bool     `json:"all"`
	Subject   string   `json:"subject"`
	Message   string   `json:"message"`
}

// SendBulkEmail sends an announcement to many clients. Individual failures
// are counted and do not stop the loop.
func SendBulkEmail(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("email", "bulk")

	var req BulkEmailRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Message) == "" {
		return badRequest(c, "subject and message are required")
	}
	if !req.All && len(req.ClientIDs) == 0 {
		return badRequest(c, "clientIds is required unless all is true")
	}

	// Resolve recipients
	query := database.GetDB().Model(&model.Client{})
	if req.All {
		query = query.Where("status = ?", model.ClientStatusActive)
	} else {
		query = query.Where("id IN ?", req.ClientIDs)
	}

	var clients []model.Client
	if err := query.Find(&clients).Error; err != nil {
		return respondError(c, err, "clients", "retrieve")
	}

	result := mail.SendBulk(c.Request().Context(), clients, req.Subject, req.Message)
	// Report ids that matched no client
	if !req.All {
		result.AddMissing(req.ClientIDs, clients)
	}

	log.Info("Bulk email processed",
		zap.Int("recipients", len(clients)),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed))
	return c.JSON(http.StatusOK, result)
}
